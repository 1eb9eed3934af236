// Package payments defines the provider contract the checkout orchestrator
// charges through, plus the adapters for the supported gateways.
package payments

import (
	"context"
	"errors"

	"github.com/digitalstore/api/internal/domain"
)

// Status enumerates the normalised payment states shared across providers.
// Provider-specific status vocabularies are mapped onto these three by each
// adapter; an unmapped provider status always lands on StatusPending.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or provider confirmation.
	StatusPending Status = "pending"
	// StatusVerified indicates the provider reports the money as received.
	StatusVerified Status = "verified"
	// StatusFailed indicates the provider reports a terminal failure.
	StatusFailed Status = "failed"
)

var (
	// ErrUnsupportedMethod is returned when the registry cannot locate a provider.
	ErrUnsupportedMethod = errors.New("payments: unsupported payment method")
	// ErrBadSignature is returned when a callback fails signature verification.
	ErrBadSignature = errors.New("payments: signature verification failed")
	// ErrEventIgnored is returned for verified events that reference no order,
	// such as provider actions unrelated to a purchase. They are acknowledged
	// so the provider stops re-delivering them.
	ErrEventIgnored = errors.New("payments: event references no order")
)

// ChargeRequest captures the payload required to create a provider charge.
// Amount is minor units in Currency; adapters that only charge USD convert
// with the configured rate.
type ChargeRequest struct {
	OrderID     string
	OrderNumber string
	Amount      int64
	Currency    string
	Description string
	BuyerEmail  string
	ReturnURL   string
	CancelURL   string
	CallbackURL string
}

// Charge is the provider-side order returned to the client.
type Charge struct {
	ProviderOrderID string
	RedirectURL     string
}

// WebhookEvent is a provider callback normalised for the orchestrator.
type WebhookEvent struct {
	OrderID         string
	ProviderOrderID string
	Status          Status
}

// Provider is the contract every gateway adapter implements.
type Provider interface {
	Name() string
	CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error)
}

// WebhookProvider is implemented by adapters whose payments are confirmed by
// a signed asynchronous callback. VerifyWebhook must be called before
// ParseWebhook; both operate on the raw request body.
type WebhookProvider interface {
	Provider
	VerifyWebhook(body []byte, signature string) error
	ParseWebhook(body []byte) (WebhookEvent, error)
}

// Capturer is implemented by adapters whose payments are confirmed by a
// browser redirect followed by a server-side capture call.
type Capturer interface {
	CaptureOrder(ctx context.Context, providerOrderID string) (Status, error)
}

// usdAmount converts a charge amount to USD minor units when the order was
// priced in soles. USD amounts pass through untouched.
func usdAmount(amount int64, currency string, penPerUSD float64) int64 {
	if currency == domain.CurrencyPEN {
		return domain.ConvertPENToUSD(amount, penPerUSD)
	}
	return amount
}
