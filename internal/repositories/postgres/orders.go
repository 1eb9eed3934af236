// Package postgres implements the repository contracts on a pgx pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digitalstore/api/internal/domain"
	pg "github.com/digitalstore/api/internal/platform/postgres"
	"github.com/digitalstore/api/internal/repositories"
)

// OrderRepository persists orders in the `orders` table.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository wraps a pgx pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `
	id, order_number,
	customer_email, customer_name, customer_phone,
	user_id, items,
	subtotal, discount, total, currency,
	payment_method, payment_proof, payment_reference, payment_status,
	status, delivery_status, delivery,
	created_at, updated_at, completed_at`

// NextOrderNumber mints the next human-facing order number. The sequence
// lives in a SQL function so concurrent checkouts never collide.
func (r *OrderRepository) NextOrderNumber(ctx context.Context) (string, error) {
	var number string
	if err := r.pool.QueryRow(ctx, `SELECT generate_order_number()`).Scan(&number); err != nil {
		return "", fmt.Errorf("mint order number: %w", err)
	}
	return number, nil
}

// Insert persists a new order and fills in the store-generated id and
// timestamps.
func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO orders (
			order_number,
			customer_email, customer_name, customer_phone,
			user_id, items,
			subtotal, discount, total, currency,
			payment_method, payment_reference, payment_status,
			status, delivery_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		order.OrderNumber,
		order.CustomerEmail, order.CustomerName, nullableString(order.CustomerPhone),
		nullableString(order.UserID), items,
		order.Subtotal, order.Discount, order.Total, order.Currency,
		string(order.Method), nullableString(order.PaymentReference), string(order.PaymentStatus),
		string(order.Status), string(order.DeliveryStatus),
	)
	if err := row.Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		if pg.IsUniqueViolation(err) {
			return fmt.Errorf("insert order %s: %w", order.OrderNumber, repositories.ErrConflict)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if pg.IsNotFound(err) {
			return domain.Order{}, repositories.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

// SetPaymentReference writes the provider reference once. Re-writes are
// ignored so retried charge creation cannot clobber an earlier reference.
func (r *OrderRepository) SetPaymentReference(ctx context.Context, id, reference string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET payment_reference = $2, updated_at = now()
		WHERE id = $1 AND payment_reference IS NULL`, id, reference)
	if err != nil {
		return fmt.Errorf("set payment reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return findErr
		}
	}
	return nil
}

// SetPaymentProof stores the public URL of an uploaded proof screenshot.
func (r *OrderRepository) SetPaymentProof(ctx context.Context, id, proofURL string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET payment_proof = $2, updated_at = now() WHERE id = $1`, id, proofURL)
	if err != nil {
		return fmt.Errorf("set payment proof: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// ApplyPaymentOutcome moves the order to the given payment/order status pair.
func (r *OrderRepository) ApplyPaymentOutcome(ctx context.Context, id string, payment domain.PaymentStatus, status domain.OrderStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET payment_status = $2, status = $3, updated_at = now()
		WHERE id = $1`, id, string(payment), string(status))
	if err != nil {
		return fmt.Errorf("apply payment outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// UpdateStatuses applies an admin status override; nil patch fields keep the
// current value.
func (r *OrderRepository) UpdateStatuses(ctx context.Context, id string, patch repositories.OrderStatusPatch) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status         = COALESCE($2, status),
		    payment_status = COALESCE($3, payment_status),
		    updated_at     = now()
		WHERE id = $1`, id, statusArg(patch.Status), paymentStatusArg(patch.PaymentStatus))
	if err != nil {
		return fmt.Errorf("update statuses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Deliver stores the delivery payload verbatim and stamps the order as
// completed, verified, and delivered.
func (r *OrderRepository) Deliver(ctx context.Context, id string, delivery json.RawMessage, completedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET delivery        = $2,
		    status          = 'completed',
		    payment_status  = 'verified',
		    delivery_status = 'delivered',
		    completed_at    = $3,
		    updated_at      = now()
		WHERE id = $1`, id, []byte(delivery), completedAt.UTC())
	if err != nil {
		return fmt.Errorf("deliver order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Transfer reassigns the order to another account.
func (r *OrderRepository) Transfer(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET user_id = $2, updated_at = now() WHERE id = $1`, id, userID)
	if err != nil {
		return fmt.Errorf("transfer order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// DeleteMany removes the given orders and reports how many existed.
func (r *OrderRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order       domain.Order
		phone       *string
		userID      *string
		proof       *string
		reference   *string
		items       []byte
		delivery    []byte
		completedAt *time.Time
	)
	err := row.Scan(
		&order.ID, &order.OrderNumber,
		&order.CustomerEmail, &order.CustomerName, &phone,
		&userID, &items,
		&order.Subtotal, &order.Discount, &order.Total, &order.Currency,
		&order.Method, &proof, &reference, &order.PaymentStatus,
		&order.Status, &order.DeliveryStatus, &delivery,
		&order.CreatedAt, &order.UpdatedAt, &completedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if phone != nil {
		order.CustomerPhone = *phone
	}
	if userID != nil {
		order.UserID = *userID
	}
	if proof != nil {
		order.PaymentProof = *proof
	}
	if reference != nil {
		order.PaymentReference = *reference
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return domain.Order{}, fmt.Errorf("decode items: %w", err)
		}
	}
	if len(delivery) > 0 {
		order.Delivery = json.RawMessage(delivery)
	}
	order.CompletedAt = completedAt
	return order, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func statusArg(s *domain.OrderStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func paymentStatusArg(s *domain.PaymentStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
