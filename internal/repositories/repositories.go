// Package repositories declares the persistence contracts the services
// depend on. Implementations live in subpackages; tests substitute stubs.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/digitalstore/api/internal/domain"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("repositories: not found")
	// ErrConflict is returned when a write collides with an existing record.
	ErrConflict = errors.New("repositories: conflict")
)

// OrderStatusPatch carries the optional fields of an admin status override.
// Nil fields are left untouched.
type OrderStatusPatch struct {
	Status        *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
}

// OrderRepository persists orders. Every method is a single atomic statement;
// callers must not assume cross-call transactionality.
type OrderRepository interface {
	// NextOrderNumber mints a human-facing order number in one store call.
	NextOrderNumber(ctx context.Context) (string, error)
	Insert(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (domain.Order, error)

	// SetPaymentReference records the provider's charge id. The reference is
	// written at most once; a second write is silently ignored.
	SetPaymentReference(ctx context.Context, id, reference string) error
	// SetPaymentProof stores the public URL of an uploaded proof screenshot.
	SetPaymentProof(ctx context.Context, id, proofURL string) error
	// ApplyPaymentOutcome moves the order to the given payment/order status pair.
	ApplyPaymentOutcome(ctx context.Context, id string, payment domain.PaymentStatus, status domain.OrderStatus) error

	UpdateStatuses(ctx context.Context, id string, patch OrderStatusPatch) error
	// Deliver stores the delivery payload verbatim and stamps the order
	// completed/verified/delivered at completedAt.
	Deliver(ctx context.Context, id string, delivery json.RawMessage, completedAt time.Time) error
	// Transfer reassigns the order to another account.
	Transfer(ctx context.Context, id, userID string) error
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

// ProductRepository persists the catalog.
type ProductRepository interface {
	// ListActive returns the public catalog ordered by sort order.
	ListActive(ctx context.Context) ([]domain.Product, error)
	// List returns every product, including inactive ones, for the admin panel.
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
	// Reorder assigns ascending sort order following the given id sequence.
	Reorder(ctx context.Context, orderedIDs []string) error
}
