package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/digitalstore/api/internal/domain"
	"github.com/digitalstore/api/internal/platform/accounts"
	"github.com/digitalstore/api/internal/repositories"
)

var (
	// ErrAdminInvalidInput marks malformed admin requests.
	ErrAdminInvalidInput = errors.New("admin: invalid input")
	// ErrAdminUserNotFound is returned when an email resolves to no account.
	ErrAdminUserNotFound = errors.New("admin: user not found")
	// ErrAdminNotFound is returned when the referenced record does not exist.
	ErrAdminNotFound = errors.New("admin: not found")
	// ErrAdminConflict is returned when a write collides with existing data.
	ErrAdminConflict = errors.New("admin: conflict")
)

// AccountAdmin is the slice of the hosted auth admin API the back office uses.
type AccountAdmin interface {
	FindUserByEmail(ctx context.Context, email string) (accounts.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// AdminDeps wires the back-office service.
type AdminDeps struct {
	Orders   repositories.OrderRepository
	Products repositories.ProductRepository
	Accounts AccountAdmin
	Notifier Notifier
	Logger   *zap.Logger
	Clock    func() time.Time
}

// AdminService implements the operator back office. Authorization is enforced
// upstream by the role-gated middleware; these operations trust their caller.
type AdminService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	accounts AccountAdmin
	notifier Notifier
	logger   *zap.Logger
	clock    func() time.Time
}

// NewAdminService validates the wiring and constructs the service.
func NewAdminService(deps AdminDeps) (*AdminService, error) {
	if deps.Orders == nil {
		return nil, errors.New("services: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("services: product repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AdminService{
		orders:   deps.Orders,
		products: deps.Products,
		accounts: deps.Accounts,
		notifier: deps.Notifier,
		logger:   logger.Named("admin"),
		clock:    clock,
	}, nil
}

// DeleteOrders removes the given orders and returns how many existed.
func (s *AdminService) DeleteOrders(ctx context.Context, ids []string) (int64, error) {
	ids = trimAll(ids)
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: at least one order id is required", ErrAdminInvalidInput)
	}
	deleted, err := s.orders.DeleteMany(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.logger.Info("orders deleted", zap.Int64("count", deleted))
	return deleted, nil
}

// UpdateOrderStatusCommand carries an order status override. Nil fields keep
// their current value.
type UpdateOrderStatusCommand struct {
	OrderID       string
	Status        *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
}

// UpdateOrderStatus applies a manual status override. Verifying the payment
// or completing the order triggers the buyer confirmation path.
func (s *AdminService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error) {
	if cmd.OrderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrAdminInvalidInput)
	}
	if cmd.Status == nil && cmd.PaymentStatus == nil {
		return domain.Order{}, fmt.Errorf("%w: nothing to update", ErrAdminInvalidInput)
	}

	err := s.orders.UpdateStatuses(ctx, cmd.OrderID, repositories.OrderStatusPatch{
		Status:        cmd.Status,
		PaymentStatus: cmd.PaymentStatus,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.Order{}, ErrAdminNotFound
		}
		return domain.Order{}, err
	}

	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return domain.Order{}, err
	}

	verified := cmd.PaymentStatus != nil && *cmd.PaymentStatus == domain.PaymentStatusVerified
	completed := cmd.Status != nil && *cmd.Status == domain.OrderStatusCompleted
	if (verified || completed) && s.notifier != nil {
		s.notifier.NotifyPaymentVerified(order)
	}
	return order, nil
}

// DeliverOrder stores the delivery payload verbatim and marks the order
// completed, verified, and delivered.
func (s *AdminService) DeliverOrder(ctx context.Context, orderID string, delivery json.RawMessage) error {
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrAdminInvalidInput)
	}
	if len(delivery) == 0 || !json.Valid(delivery) {
		return fmt.Errorf("%w: delivery payload must be valid JSON", ErrAdminInvalidInput)
	}
	if err := s.orders.Deliver(ctx, orderID, delivery, s.clock()); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAdminNotFound
		}
		return err
	}
	return nil
}

// TransferOrderResult reports the account an order now belongs to.
type TransferOrderResult struct {
	OrderID     string
	OrderNumber string
	TargetID    string
	TargetEmail string
}

// TransferOrder reassigns an order to the account behind targetEmail. An
// unknown email fails the operation before any mutation.
func (s *AdminService) TransferOrder(ctx context.Context, orderID, targetEmail string) (TransferOrderResult, error) {
	if orderID == "" || strings.TrimSpace(targetEmail) == "" {
		return TransferOrderResult{}, fmt.Errorf("%w: order id and target email are required", ErrAdminInvalidInput)
	}
	if s.accounts == nil {
		return TransferOrderResult{}, errors.New("admin: accounts client not configured")
	}

	target, err := s.accounts.FindUserByEmail(ctx, targetEmail)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return TransferOrderResult{}, fmt.Errorf("%w: %s", ErrAdminUserNotFound, targetEmail)
		}
		return TransferOrderResult{}, err
	}

	if err := s.orders.Transfer(ctx, orderID, target.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return TransferOrderResult{}, ErrAdminNotFound
		}
		return TransferOrderResult{}, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return TransferOrderResult{}, err
	}
	s.logger.Info("order transferred",
		zap.String("order_id", orderID),
		zap.String("target_user", target.ID))
	return TransferOrderResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		TargetID:    target.ID,
		TargetEmail: target.Email,
	}, nil
}

// ProductCommand carries a product create or update.
type ProductCommand struct {
	Slug        string
	Title       string
	Description string
	PriceUSD    int64
	PricePEN    int64
	Image       string
	Category    string
	SortOrder   int
	InStock     bool
	IsActive    bool
}

func (c ProductCommand) validate() error {
	switch {
	case strings.TrimSpace(c.Slug) == "":
		return fmt.Errorf("%w: slug is required", ErrAdminInvalidInput)
	case strings.TrimSpace(c.Title) == "":
		return fmt.Errorf("%w: title is required", ErrAdminInvalidInput)
	case c.PriceUSD < 0 || c.PricePEN < 0:
		return fmt.Errorf("%w: prices must not be negative", ErrAdminInvalidInput)
	}
	return nil
}

func (c ProductCommand) apply(p *domain.Product) {
	p.Slug = strings.TrimSpace(c.Slug)
	p.Title = strings.TrimSpace(c.Title)
	p.Description = c.Description
	p.PriceUSD = c.PriceUSD
	p.PricePEN = c.PricePEN
	p.Image = c.Image
	p.Category = c.Category
	p.SortOrder = c.SortOrder
	p.InStock = c.InStock
	p.IsActive = c.IsActive
}

// ListProducts returns the whole catalog for the admin panel.
func (s *AdminService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.products.List(ctx)
}

// GetProduct loads one product.
func (s *AdminService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.products.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.Product{}, ErrAdminNotFound
		}
		return domain.Product{}, err
	}
	return product, nil
}

// CreateProduct adds a catalog entry.
func (s *AdminService) CreateProduct(ctx context.Context, cmd ProductCommand) (domain.Product, error) {
	if err := cmd.validate(); err != nil {
		return domain.Product{}, err
	}
	var product domain.Product
	cmd.apply(&product)
	if err := s.products.Create(ctx, &product); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return domain.Product{}, fmt.Errorf("%w: slug %q already exists", ErrAdminConflict, product.Slug)
		}
		return domain.Product{}, err
	}
	return product, nil
}

// UpdateProduct overwrites a catalog entry.
func (s *AdminService) UpdateProduct(ctx context.Context, id string, cmd ProductCommand) (domain.Product, error) {
	if id == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", ErrAdminInvalidInput)
	}
	if err := cmd.validate(); err != nil {
		return domain.Product{}, err
	}
	product := domain.Product{ID: id}
	cmd.apply(&product)
	if err := s.products.Update(ctx, &product); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return domain.Product{}, ErrAdminNotFound
		case errors.Is(err, repositories.ErrConflict):
			return domain.Product{}, fmt.Errorf("%w: slug %q already exists", ErrAdminConflict, product.Slug)
		}
		return domain.Product{}, err
	}
	return product, nil
}

// DeleteProduct removes a catalog entry.
func (s *AdminService) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: product id is required", ErrAdminInvalidInput)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAdminNotFound
		}
		return err
	}
	return nil
}

// ReorderProducts rewrites the catalog sort order to follow orderedIDs.
func (s *AdminService) ReorderProducts(ctx context.Context, orderedIDs []string) error {
	orderedIDs = trimAll(orderedIDs)
	if len(orderedIDs) == 0 {
		return fmt.Errorf("%w: at least one product id is required", ErrAdminInvalidInput)
	}
	return s.products.Reorder(ctx, orderedIDs)
}

// DeleteAccount removes a buyer account from the hosted auth service. Orders
// keep their denormalised customer snapshot.
func (s *AdminService) DeleteAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrAdminInvalidInput)
	}
	if s.accounts == nil {
		return errors.New("admin: accounts client not configured")
	}
	if err := s.accounts.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return ErrAdminUserNotFound
		}
		return err
	}
	s.logger.Info("account deleted", zap.String("user_id", userID))
	return nil
}

func trimAll(values []string) []string {
	cleaned := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	return cleaned
}
