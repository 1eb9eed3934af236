// Package services hosts the business operations behind the HTTP handlers:
// the checkout orchestrator, the admin back office, and the public catalog.
package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/digitalstore/api/internal/domain"
	"github.com/digitalstore/api/internal/payments"
	"github.com/digitalstore/api/internal/repositories"
)

var (
	// ErrCheckoutInvalidInput marks buyer mistakes the client can fix.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutProviderFailed marks provider-side failures; the pending order
	// is left intact so the buyer can retry.
	ErrCheckoutProviderFailed = errors.New("checkout: payment provider failed")
	// ErrCheckoutPersistence marks store failures needing operator attention.
	ErrCheckoutPersistence = errors.New("checkout: persistence failure")
	// ErrOrderNotFound is returned when the referenced order does not exist.
	ErrOrderNotFound = errors.New("checkout: order not found")
)

// Notifier is the slice of the notification dispatcher the services call.
// Both methods are fire-and-forget.
type Notifier interface {
	NotifyOrderCreated(order domain.Order)
	NotifyPaymentVerified(order domain.Order)
}

// ProofUploader stores manual payment proof screenshots and returns their
// public URL.
type ProofUploader interface {
	Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
}

// CheckoutDeps wires the checkout orchestrator.
type CheckoutDeps struct {
	Orders    repositories.OrderRepository
	Providers *payments.Registry
	Uploader  ProofUploader
	Notifier  Notifier
	Logger    *zap.Logger
	// PublicURL is the storefront origin used to build return and callback URLs.
	PublicURL string
	StoreName string
	// ProviderTimeout bounds each outbound provider call.
	ProviderTimeout time.Duration
	Clock           func() time.Time
}

// CheckoutService drives the order lifecycle from checkout to payment
// confirmation across every supported method.
type CheckoutService struct {
	orders          repositories.OrderRepository
	providers       *payments.Registry
	uploader        ProofUploader
	notifier        Notifier
	logger          *zap.Logger
	publicURL       string
	storeName       string
	providerTimeout time.Duration
	clock           func() time.Time
}

// NewCheckoutService validates the wiring and constructs the service.
func NewCheckoutService(deps CheckoutDeps) (*CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("services: order repository is required")
	}
	if deps.Providers == nil {
		return nil, errors.New("services: payment registry is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.ProviderTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &CheckoutService{
		orders:          deps.Orders,
		providers:       deps.Providers,
		uploader:        deps.Uploader,
		notifier:        deps.Notifier,
		logger:          logger.Named("checkout"),
		publicURL:       strings.TrimRight(deps.PublicURL, "/"),
		storeName:       deps.StoreName,
		providerTimeout: timeout,
		clock:           clock,
	}, nil
}

// BeginCheckoutCommand carries a provider checkout request. Monetary fields
// are minor units in Currency.
type BeginCheckoutCommand struct {
	Method        domain.PaymentMethod
	CustomerEmail string
	CustomerName  string
	CustomerPhone string
	// UserIDHint is the client-supplied account reference for sessions whose
	// token is still propagating; the authenticated identity always wins.
	UserIDHint          string
	AuthenticatedUserID string
	Items               []domain.OrderItem
	Subtotal            int64
	Discount            int64
	Total               int64
	Currency            string
}

// BeginCheckoutResult is returned to the storefront client.
type BeginCheckoutResult struct {
	OrderID     string
	OrderNumber string
	RedirectURL string
}

// BeginCheckout validates the cart, mints an order number, persists the
// pending order, and opens a charge with the selected provider.
func (s *CheckoutService) BeginCheckout(ctx context.Context, cmd BeginCheckoutCommand) (BeginCheckoutResult, error) {
	if err := validateCheckout(cmd); err != nil {
		return BeginCheckoutResult{}, err
	}
	if cmd.Method.Manual() {
		return BeginCheckoutResult{}, fmt.Errorf("%w: method %q requires a payment proof", ErrCheckoutInvalidInput, cmd.Method)
	}
	provider, err := s.providers.ForMethod(string(cmd.Method))
	if err != nil {
		return BeginCheckoutResult{}, fmt.Errorf("%w: unknown method %q", ErrCheckoutInvalidInput, cmd.Method)
	}

	order, err := s.insertPendingOrder(ctx, cmd, "")
	if err != nil {
		return BeginCheckoutResult{}, err
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	charge, err := provider.CreateCharge(chargeCtx, payments.ChargeRequest{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Amount:      order.Total,
		Currency:    order.Currency,
		Description: fmt.Sprintf("%s - Order %s", s.storeName, order.OrderNumber),
		BuyerEmail:  order.CustomerEmail,
		ReturnURL:   s.returnURL(order.ID, string(cmd.Method)),
		CancelURL:   s.publicURL + "/payment?orderId=" + order.ID,
		CallbackURL: s.publicURL + "/api/v1/webhooks/" + string(cmd.Method),
	})
	if err != nil {
		// The pending order stays; the buyer can retry or pick another method.
		s.logger.Warn("provider charge failed",
			zap.String("order_id", order.ID),
			zap.String("method", string(cmd.Method)),
			zap.Error(err))
		return BeginCheckoutResult{}, fmt.Errorf("%w: %s", ErrCheckoutProviderFailed, cmd.Method)
	}

	if err := s.orders.SetPaymentReference(ctx, order.ID, charge.ProviderOrderID); err != nil {
		s.logger.Warn("failed to persist payment reference",
			zap.String("order_id", order.ID),
			zap.String("reference", charge.ProviderOrderID),
			zap.Error(err))
	}

	if s.notifier != nil {
		s.notifier.NotifyOrderCreated(order)
	}
	return BeginCheckoutResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		RedirectURL: charge.RedirectURL,
	}, nil
}

// ManualProofCommand carries a manual-transfer checkout with its proof
// screenshot.
type ManualProofCommand struct {
	BeginCheckoutCommand
	ReferenceCode string
	ProofFilename string
	ProofMIME     string
	Proof         []byte
}

// SubmitManualProof persists a pending manual-transfer order and uploads the
// buyer's payment screenshot for review.
func (s *CheckoutService) SubmitManualProof(ctx context.Context, cmd ManualProofCommand) (BeginCheckoutResult, error) {
	if err := validateCheckout(cmd.BeginCheckoutCommand); err != nil {
		return BeginCheckoutResult{}, err
	}
	if !cmd.Method.Manual() {
		return BeginCheckoutResult{}, fmt.Errorf("%w: method %q does not take a payment proof", ErrCheckoutInvalidInput, cmd.Method)
	}
	if strings.TrimSpace(cmd.ReferenceCode) == "" {
		return BeginCheckoutResult{}, fmt.Errorf("%w: reference code is required", ErrCheckoutInvalidInput)
	}
	if len(cmd.Proof) == 0 {
		return BeginCheckoutResult{}, fmt.Errorf("%w: proof screenshot is required", ErrCheckoutInvalidInput)
	}

	order, err := s.insertPendingOrder(ctx, cmd.BeginCheckoutCommand, cmd.ReferenceCode)
	if err != nil {
		return BeginCheckoutResult{}, err
	}

	// The proof upload is best effort: the reference code already identifies
	// the transfer, so a storage hiccup must not lose the order.
	objectPath := fmt.Sprintf("%s-%d%s", order.ID, s.clock().UnixMilli(), strings.ToLower(path.Ext(cmd.ProofFilename)))
	if s.uploader != nil {
		publicURL, err := s.uploader.Upload(ctx, objectPath, cmd.ProofMIME, cmd.Proof)
		if err != nil {
			s.logger.Warn("proof upload failed",
				zap.String("order_id", order.ID),
				zap.Error(err))
		} else if err := s.orders.SetPaymentProof(ctx, order.ID, publicURL); err != nil {
			s.logger.Warn("failed to persist proof url",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}

	if s.notifier != nil {
		s.notifier.NotifyOrderCreated(order)
	}
	return BeginCheckoutResult{OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
}

// ConfirmPayment applies a provider webhook to the referenced order. It is
// idempotent: re-delivering a webhook that maps to the order's current state
// changes nothing and sends no second notification.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, method string, body []byte, signature string) error {
	wp, err := s.providers.WebhookForMethod(method)
	if err != nil {
		return err
	}
	if err := wp.VerifyWebhook(body, signature); err != nil {
		return err
	}
	event, err := wp.ParseWebhook(body)
	if err != nil {
		if errors.Is(err, payments.ErrEventIgnored) {
			s.logger.Debug("webhook event ignored", zap.String("method", method))
			return nil
		}
		return fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}
	return s.applyPaymentStatus(ctx, event.OrderID, event.Status)
}

// CaptureRedirect finalises a redirect-capture payment: the provider order is
// captured server-side and only a completed capture verifies the payment.
func (s *CheckoutService) CaptureRedirect(ctx context.Context, method, orderID, providerToken string) error {
	capturer, err := s.providers.CapturerForMethod(method)
	if err != nil {
		return err
	}
	if orderID == "" || providerToken == "" {
		return fmt.Errorf("%w: order id and provider token are required", ErrCheckoutInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("%w: %v", ErrCheckoutPersistence, err)
	}
	// The token must match the reference stored at charge creation; a token
	// minted for another order never verifies this one.
	if order.PaymentReference != "" && order.PaymentReference != providerToken {
		return fmt.Errorf("%w: token does not belong to order", ErrCheckoutInvalidInput)
	}

	captureCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	status, err := capturer.CaptureOrder(captureCtx, providerToken)
	if err != nil {
		s.logger.Warn("capture failed",
			zap.String("order_id", orderID),
			zap.String("method", method),
			zap.Error(err))
		return fmt.Errorf("%w: capture error", ErrCheckoutProviderFailed)
	}
	if status != payments.StatusVerified {
		return fmt.Errorf("%w: capture not completed", ErrCheckoutProviderFailed)
	}
	return s.applyPaymentStatus(ctx, orderID, payments.StatusVerified)
}

// applyPaymentStatus maps a normalised provider status onto the order's
// payment/fulfilment pair and persists the transition once.
func (s *CheckoutService) applyPaymentStatus(ctx context.Context, orderID string, status payments.Status) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("%w: %v", ErrCheckoutPersistence, err)
	}

	var payment domain.PaymentStatus
	var fulfilment domain.OrderStatus
	switch status {
	case payments.StatusVerified:
		payment, fulfilment = domain.PaymentStatusVerified, domain.OrderStatusProcessing
	case payments.StatusFailed:
		payment, fulfilment = domain.PaymentStatusFailed, domain.OrderStatusCancelled
	default:
		// Unknown or pending provider statuses leave the order untouched.
		return nil
	}
	if order.PaymentStatus == payment {
		return nil
	}

	if err := s.orders.ApplyPaymentOutcome(ctx, order.ID, payment, fulfilment); err != nil {
		return fmt.Errorf("%w: %v", ErrCheckoutPersistence, err)
	}
	if payment == domain.PaymentStatusVerified && s.notifier != nil {
		order.PaymentStatus = payment
		order.Status = fulfilment
		s.notifier.NotifyPaymentVerified(order)
	}
	return nil
}

func (s *CheckoutService) insertPendingOrder(ctx context.Context, cmd BeginCheckoutCommand, reference string) (domain.Order, error) {
	number, err := s.orders.NextOrderNumber(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", ErrCheckoutPersistence, err)
	}

	userID := cmd.AuthenticatedUserID
	if userID == "" {
		userID = strings.TrimSpace(cmd.UserIDHint)
	}
	order := domain.Order{
		OrderNumber:      number,
		CustomerEmail:    strings.TrimSpace(cmd.CustomerEmail),
		CustomerName:     strings.TrimSpace(cmd.CustomerName),
		CustomerPhone:    strings.TrimSpace(cmd.CustomerPhone),
		UserID:           userID,
		Items:            cmd.Items,
		Subtotal:         cmd.Subtotal,
		Discount:         cmd.Discount,
		Total:            cmd.Total,
		Currency:         cmd.Currency,
		Method:           cmd.Method,
		PaymentReference: reference,
		PaymentStatus:    domain.PaymentStatusPending,
		Status:           domain.OrderStatusPending,
		DeliveryStatus:   domain.DeliveryStatusPending,
	}
	if err := s.orders.Insert(ctx, &order); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", ErrCheckoutPersistence, err)
	}
	return order, nil
}

func (s *CheckoutService) returnURL(orderID, method string) string {
	if method == string(domain.PaymentMethodPayPal) {
		return s.publicURL + "/api/v1/payments/paypal/capture?orderId=" + orderID
	}
	return s.publicURL + "/payment?status=success&orderId=" + orderID
}

func validateCheckout(cmd BeginCheckoutCommand) error {
	switch {
	case !cmd.Method.Valid():
		return fmt.Errorf("%w: unknown payment method %q", ErrCheckoutInvalidInput, cmd.Method)
	case strings.TrimSpace(cmd.CustomerEmail) == "" || !strings.Contains(cmd.CustomerEmail, "@"):
		return fmt.Errorf("%w: buyer email is required", ErrCheckoutInvalidInput)
	case strings.TrimSpace(cmd.CustomerName) == "":
		return fmt.Errorf("%w: buyer name is required", ErrCheckoutInvalidInput)
	case len(cmd.Items) == 0:
		return fmt.Errorf("%w: cart is empty", ErrCheckoutInvalidInput)
	case !domain.ValidCurrency(cmd.Currency):
		return fmt.Errorf("%w: unknown currency %q", ErrCheckoutInvalidInput, cmd.Currency)
	case cmd.Total <= 0:
		return fmt.Errorf("%w: total must be positive", ErrCheckoutInvalidInput)
	case cmd.Discount < 0:
		return fmt.Errorf("%w: discount must not be negative", ErrCheckoutInvalidInput)
	case cmd.Total != cmd.Subtotal-cmd.Discount:
		return fmt.Errorf("%w: total does not equal subtotal minus discount", ErrCheckoutInvalidInput)
	}
	for _, item := range cmd.Items {
		if item.Quantity <= 0 || item.UnitPrice < 0 || strings.TrimSpace(item.Title) == "" {
			return fmt.Errorf("%w: invalid cart item", ErrCheckoutInvalidInput)
		}
	}
	return nil
}
