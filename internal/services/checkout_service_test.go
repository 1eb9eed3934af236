package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/digitalstore/api/internal/domain"
	"github.com/digitalstore/api/internal/payments"
	"github.com/digitalstore/api/internal/repositories"
)

// memOrders is an in-memory OrderRepository for service tests.
type memOrders struct {
	mu        sync.Mutex
	seq       int
	orders    map[string]domain.Order
	numberErr error
	insertErr error
	refErr    error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]domain.Order)}
}

func (m *memOrders) NextOrderNumber(context.Context) (string, error) {
	if m.numberErr != nil {
		return "", m.numberErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return fmt.Sprintf("DST-2025-%04d", m.seq), nil
}

func (m *memOrders) Insert(_ context.Context, order *domain.Order) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = "order-" + strconv.Itoa(len(m.orders)+1)
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID] = *order
	return nil
}

func (m *memOrders) FindByID(_ context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return domain.Order{}, repositories.ErrNotFound
	}
	return order, nil
}

func (m *memOrders) SetPaymentReference(_ context.Context, id, reference string) error {
	if m.refErr != nil {
		return m.refErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if order.PaymentReference == "" {
		order.PaymentReference = reference
		m.orders[id] = order
	}
	return nil
}

func (m *memOrders) SetPaymentProof(_ context.Context, id, proofURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return repositories.ErrNotFound
	}
	order.PaymentProof = proofURL
	m.orders[id] = order
	return nil
}

func (m *memOrders) ApplyPaymentOutcome(_ context.Context, id string, payment domain.PaymentStatus, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return repositories.ErrNotFound
	}
	order.PaymentStatus = payment
	order.Status = status
	m.orders[id] = order
	return nil
}

func (m *memOrders) UpdateStatuses(_ context.Context, id string, patch repositories.OrderStatusPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if patch.Status != nil {
		order.Status = *patch.Status
	}
	if patch.PaymentStatus != nil {
		order.PaymentStatus = *patch.PaymentStatus
	}
	m.orders[id] = order
	return nil
}

func (m *memOrders) Deliver(_ context.Context, id string, delivery json.RawMessage, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return repositories.ErrNotFound
	}
	order.Delivery = delivery
	order.Status = domain.OrderStatusCompleted
	order.PaymentStatus = domain.PaymentStatusVerified
	order.DeliveryStatus = domain.DeliveryStatusDelivered
	order.CompletedAt = &completedAt
	m.orders[id] = order
	return nil
}

func (m *memOrders) Transfer(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return repositories.ErrNotFound
	}
	order.UserID = userID
	m.orders[id] = order
	return nil
}

func (m *memOrders) DeleteMany(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if _, ok := m.orders[id]; ok {
			delete(m.orders, id)
			deleted++
		}
	}
	return deleted, nil
}

// chargeProvider is a redirect provider stub with an optional capture side.
type chargeProvider struct {
	name          string
	charge        payments.Charge
	chargeErr     error
	captureStatus payments.Status
	captureErr    error
	chargeCalls   int
	captureCalls  int
}

func (p *chargeProvider) Name() string { return p.name }

func (p *chargeProvider) CreateCharge(context.Context, payments.ChargeRequest) (payments.Charge, error) {
	p.chargeCalls++
	if p.chargeErr != nil {
		return payments.Charge{}, p.chargeErr
	}
	return p.charge, nil
}

func (p *chargeProvider) CaptureOrder(context.Context, string) (payments.Status, error) {
	p.captureCalls++
	if p.captureErr != nil {
		return payments.StatusPending, p.captureErr
	}
	return p.captureStatus, nil
}

// webhookProvider is a webhook-confirmed provider stub.
type webhookProvider struct {
	name      string
	verifyErr error
	event     payments.WebhookEvent
	parseErr  error
}

func (p *webhookProvider) Name() string { return p.name }

func (p *webhookProvider) CreateCharge(context.Context, payments.ChargeRequest) (payments.Charge, error) {
	return payments.Charge{ProviderOrderID: "prov-1", RedirectURL: "https://pay.example.test"}, nil
}

func (p *webhookProvider) VerifyWebhook([]byte, string) error { return p.verifyErr }

func (p *webhookProvider) ParseWebhook([]byte) (payments.WebhookEvent, error) {
	if p.parseErr != nil {
		return payments.WebhookEvent{}, p.parseErr
	}
	return p.event, nil
}

// countingNotifier records dispatched notifications.
type countingNotifier struct {
	mu       sync.Mutex
	created  []string
	verified []string
}

func (n *countingNotifier) NotifyOrderCreated(order domain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, order.ID)
}

func (n *countingNotifier) NotifyPaymentVerified(order domain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verified = append(n.verified, order.ID)
}

type stubUploader struct {
	url   string
	err   error
	calls int
}

func (u *stubUploader) Upload(context.Context, string, string, []byte) (string, error) {
	u.calls++
	if u.err != nil {
		return "", u.err
	}
	return u.url, nil
}

func validCommand(method domain.PaymentMethod) BeginCheckoutCommand {
	return BeginCheckoutCommand{
		Method:        method,
		CustomerEmail: "buyer@example.com",
		CustomerName:  "Maria Quispe",
		Items: []domain.OrderItem{
			{ProductID: "p1", Title: "Streaming Plus", UnitPrice: 2500, Quantity: 2},
		},
		Subtotal: 5000,
		Discount: 0,
		Total:    5000,
		Currency: domain.CurrencyPEN,
	}
}

func newCheckoutService(t *testing.T, orders *memOrders, notifier Notifier, uploader ProofUploader, providers ...payments.Provider) *CheckoutService {
	t.Helper()
	registry, err := payments.NewRegistry(providers...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	svc, err := NewCheckoutService(CheckoutDeps{
		Orders:    orders,
		Providers: registry,
		Uploader:  uploader,
		Notifier:  notifier,
		PublicURL: "https://store.test",
		StoreName: "Digital Store",
	})
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}
	return svc
}

func TestBeginCheckoutCreatesPendingOrder(t *testing.T) {
	orders := newMemOrders()
	notifier := &countingNotifier{}
	provider := &chargeProvider{
		name:   "paypal",
		charge: payments.Charge{ProviderOrderID: "PP-1", RedirectURL: "https://pay.example.test/approve"},
	}
	svc := newCheckoutService(t, orders, notifier, nil, provider)

	result, err := svc.BeginCheckout(context.Background(), validCommand(domain.PaymentMethodPayPal))
	if err != nil {
		t.Fatalf("begin checkout: %v", err)
	}
	if result.RedirectURL != "https://pay.example.test/approve" {
		t.Errorf("redirect url = %q", result.RedirectURL)
	}
	if result.OrderNumber == "" {
		t.Error("order number missing")
	}

	order, err := orders.FindByID(context.Background(), result.OrderID)
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusPending || order.Status != domain.OrderStatusPending {
		t.Errorf("order created as %s/%s, want pending/pending", order.PaymentStatus, order.Status)
	}
	if order.PaymentReference != "PP-1" {
		t.Errorf("payment reference = %q, want PP-1", order.PaymentReference)
	}
	if order.Total != order.Subtotal-order.Discount {
		t.Errorf("monetary invariant broken: %d != %d - %d", order.Total, order.Subtotal, order.Discount)
	}
	if len(notifier.created) != 1 {
		t.Errorf("order-created notifications = %d, want 1", len(notifier.created))
	}
}

func TestBeginCheckoutValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*BeginCheckoutCommand)
	}{
		{name: "unknown method", mutate: func(c *BeginCheckoutCommand) { c.Method = "stripe" }},
		{name: "manual method", mutate: func(c *BeginCheckoutCommand) { c.Method = domain.PaymentMethodYape }},
		{name: "missing email", mutate: func(c *BeginCheckoutCommand) { c.CustomerEmail = "" }},
		{name: "missing name", mutate: func(c *BeginCheckoutCommand) { c.CustomerName = "  " }},
		{name: "empty cart", mutate: func(c *BeginCheckoutCommand) { c.Items = nil }},
		{name: "zero total", mutate: func(c *BeginCheckoutCommand) { c.Subtotal, c.Total = 0, 0 }},
		{name: "negative discount", mutate: func(c *BeginCheckoutCommand) { c.Discount = -100 }},
		{name: "total mismatch", mutate: func(c *BeginCheckoutCommand) { c.Discount = 500 }},
		{name: "unknown currency", mutate: func(c *BeginCheckoutCommand) { c.Currency = "EUR" }},
		{name: "zero quantity item", mutate: func(c *BeginCheckoutCommand) { c.Items[0].Quantity = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := newMemOrders()
			provider := &chargeProvider{name: "paypal"}
			svc := newCheckoutService(t, orders, nil, nil, provider)

			cmd := validCommand(domain.PaymentMethodPayPal)
			tc.mutate(&cmd)
			_, err := svc.BeginCheckout(context.Background(), cmd)
			if !errors.Is(err, ErrCheckoutInvalidInput) {
				t.Fatalf("error = %v, want ErrCheckoutInvalidInput", err)
			}
			if len(orders.orders) != 0 {
				t.Errorf("invalid checkout persisted %d orders", len(orders.orders))
			}
			if provider.chargeCalls != 0 {
				t.Errorf("invalid checkout reached the provider")
			}
		})
	}
}

func TestBeginCheckoutProviderFailureKeepsPendingOrder(t *testing.T) {
	orders := newMemOrders()
	notifier := &countingNotifier{}
	provider := &chargeProvider{name: "cryptomus", chargeErr: errors.New("gateway down")}
	svc := newCheckoutService(t, orders, notifier, nil, provider)

	_, err := svc.BeginCheckout(context.Background(), validCommand(domain.PaymentMethodCryptomus))
	if !errors.Is(err, ErrCheckoutProviderFailed) {
		t.Fatalf("error = %v, want ErrCheckoutProviderFailed", err)
	}
	if len(orders.orders) != 1 {
		t.Fatalf("pending order should survive provider failure, got %d orders", len(orders.orders))
	}
	for _, order := range orders.orders {
		if order.PaymentStatus != domain.PaymentStatusPending {
			t.Errorf("order payment status = %s, want pending", order.PaymentStatus)
		}
	}
	if len(notifier.created) != 0 {
		t.Errorf("failed checkout should not notify, got %d", len(notifier.created))
	}
}

func TestBeginCheckoutAuthenticatedIdentityWinsOverHint(t *testing.T) {
	orders := newMemOrders()
	provider := &chargeProvider{name: "paypal", charge: payments.Charge{ProviderOrderID: "PP-1", RedirectURL: "https://x"}}
	svc := newCheckoutService(t, orders, nil, nil, provider)

	cmd := validCommand(domain.PaymentMethodPayPal)
	cmd.UserIDHint = "hinted-user"
	cmd.AuthenticatedUserID = "real-user"
	result, err := svc.BeginCheckout(context.Background(), cmd)
	if err != nil {
		t.Fatalf("begin checkout: %v", err)
	}
	order, _ := orders.FindByID(context.Background(), result.OrderID)
	if order.UserID != "real-user" {
		t.Errorf("user id = %q, want real-user", order.UserID)
	}
}

func TestConfirmPaymentTransitions(t *testing.T) {
	seed := func(t *testing.T) (*memOrders, string) {
		t.Helper()
		orders := newMemOrders()
		order := domain.Order{
			CustomerEmail: "buyer@example.com",
			CustomerName:  "Maria",
			PaymentStatus: domain.PaymentStatusPending,
			Status:        domain.OrderStatusPending,
		}
		if err := orders.Insert(context.Background(), &order); err != nil {
			t.Fatalf("seed order: %v", err)
		}
		return orders, order.ID
	}

	t.Run("verified webhook moves order to processing and notifies once", func(t *testing.T) {
		orders, orderID := seed(t)
		notifier := &countingNotifier{}
		provider := &webhookProvider{name: "cryptomus", event: payments.WebhookEvent{OrderID: orderID, Status: payments.StatusVerified}}
		svc := newCheckoutService(t, orders, notifier, nil, provider)

		if err := svc.ConfirmPayment(context.Background(), "cryptomus", []byte(`{}`), "sig"); err != nil {
			t.Fatalf("confirm payment: %v", err)
		}
		order, _ := orders.FindByID(context.Background(), orderID)
		if order.PaymentStatus != domain.PaymentStatusVerified || order.Status != domain.OrderStatusProcessing {
			t.Fatalf("order state = %s/%s, want verified/processing", order.PaymentStatus, order.Status)
		}

		// Redelivery is a no-op and must not notify again.
		if err := svc.ConfirmPayment(context.Background(), "cryptomus", []byte(`{}`), "sig"); err != nil {
			t.Fatalf("replayed confirm: %v", err)
		}
		if len(notifier.verified) != 1 {
			t.Errorf("verified notifications = %d, want 1", len(notifier.verified))
		}
	})

	t.Run("failed webhook cancels the order without notifying", func(t *testing.T) {
		orders, orderID := seed(t)
		notifier := &countingNotifier{}
		provider := &webhookProvider{name: "cryptomus", event: payments.WebhookEvent{OrderID: orderID, Status: payments.StatusFailed}}
		svc := newCheckoutService(t, orders, notifier, nil, provider)

		if err := svc.ConfirmPayment(context.Background(), "cryptomus", []byte(`{}`), "sig"); err != nil {
			t.Fatalf("confirm payment: %v", err)
		}
		order, _ := orders.FindByID(context.Background(), orderID)
		if order.PaymentStatus != domain.PaymentStatusFailed || order.Status != domain.OrderStatusCancelled {
			t.Fatalf("order state = %s/%s, want failed/cancelled", order.PaymentStatus, order.Status)
		}
		if len(notifier.verified) != 0 {
			t.Errorf("failed payment should not notify, got %d", len(notifier.verified))
		}
	})

	t.Run("event without an order is acknowledged", func(t *testing.T) {
		orders, orderID := seed(t)
		notifier := &countingNotifier{}
		provider := &webhookProvider{name: "whop", parseErr: fmt.Errorf("whop: %w", payments.ErrEventIgnored)}
		svc := newCheckoutService(t, orders, notifier, nil, provider)

		if err := svc.ConfirmPayment(context.Background(), "whop", []byte(`{"action":"plan.updated"}`), "sig"); err != nil {
			t.Fatalf("confirm payment: %v", err)
		}
		order, _ := orders.FindByID(context.Background(), orderID)
		if order.PaymentStatus != domain.PaymentStatusPending {
			t.Errorf("ignored event mutated the order")
		}
		if len(notifier.verified) != 0 {
			t.Errorf("verified notifications = %d, want 0", len(notifier.verified))
		}
	})

	t.Run("pending status leaves order untouched", func(t *testing.T) {
		orders, orderID := seed(t)
		provider := &webhookProvider{name: "cryptomus", event: payments.WebhookEvent{OrderID: orderID, Status: payments.StatusPending}}
		svc := newCheckoutService(t, orders, nil, nil, provider)

		if err := svc.ConfirmPayment(context.Background(), "cryptomus", []byte(`{}`), "sig"); err != nil {
			t.Fatalf("confirm payment: %v", err)
		}
		order, _ := orders.FindByID(context.Background(), orderID)
		if order.PaymentStatus != domain.PaymentStatusPending || order.Status != domain.OrderStatusPending {
			t.Fatalf("order state = %s/%s, want untouched pending/pending", order.PaymentStatus, order.Status)
		}
	})

	t.Run("bad signature mutates nothing", func(t *testing.T) {
		orders, orderID := seed(t)
		provider := &webhookProvider{name: "cryptomus", verifyErr: payments.ErrBadSignature}
		svc := newCheckoutService(t, orders, nil, nil, provider)

		err := svc.ConfirmPayment(context.Background(), "cryptomus", []byte(`{}`), "bad")
		if !errors.Is(err, payments.ErrBadSignature) {
			t.Fatalf("error = %v, want ErrBadSignature", err)
		}
		order, _ := orders.FindByID(context.Background(), orderID)
		if order.PaymentStatus != domain.PaymentStatusPending {
			t.Errorf("rejected webhook mutated the order")
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		orders, _ := seed(t)
		provider := &webhookProvider{name: "cryptomus", event: payments.WebhookEvent{OrderID: "missing", Status: payments.StatusVerified}}
		svc := newCheckoutService(t, orders, nil, nil, provider)

		if err := svc.ConfirmPayment(context.Background(), "cryptomus", []byte(`{}`), "sig"); !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("error = %v, want ErrOrderNotFound", err)
		}
	})
}

func TestCaptureRedirect(t *testing.T) {
	seed := func(t *testing.T, orders *memOrders) string {
		t.Helper()
		order := domain.Order{
			CustomerEmail: "buyer@example.com",
			PaymentStatus: domain.PaymentStatusPending,
			Status:        domain.OrderStatusPending,
		}
		if err := orders.Insert(context.Background(), &order); err != nil {
			t.Fatalf("seed order: %v", err)
		}
		return order.ID
	}

	t.Run("completed capture verifies", func(t *testing.T) {
		orders := newMemOrders()
		orderID := seed(t, orders)
		notifier := &countingNotifier{}
		provider := &chargeProvider{name: "paypal", captureStatus: payments.StatusVerified}
		svc := newCheckoutService(t, orders, notifier, nil, provider)

		if err := svc.CaptureRedirect(context.Background(), "paypal", orderID, "PP-TOKEN"); err != nil {
			t.Fatalf("capture redirect: %v", err)
		}
		order, _ := orders.FindByID(context.Background(), orderID)
		if order.PaymentStatus != domain.PaymentStatusVerified || order.Status != domain.OrderStatusProcessing {
			t.Fatalf("order state = %s/%s, want verified/processing", order.PaymentStatus, order.Status)
		}
		if len(notifier.verified) != 1 {
			t.Errorf("verified notifications = %d, want 1", len(notifier.verified))
		}
	})

	t.Run("token minted for another order is rejected", func(t *testing.T) {
		orders := newMemOrders()
		expensive := domain.Order{
			CustomerEmail:    "buyer@example.com",
			PaymentReference: "PP-EXPENSIVE",
			PaymentStatus:    domain.PaymentStatusPending,
			Status:           domain.OrderStatusPending,
		}
		cheap := domain.Order{
			CustomerEmail:    "attacker@example.com",
			PaymentReference: "PP-CHEAP",
			PaymentStatus:    domain.PaymentStatusPending,
			Status:           domain.OrderStatusPending,
		}
		for _, o := range []*domain.Order{&expensive, &cheap} {
			if err := orders.Insert(context.Background(), o); err != nil {
				t.Fatalf("seed order: %v", err)
			}
		}
		notifier := &countingNotifier{}
		provider := &chargeProvider{name: "paypal", captureStatus: payments.StatusVerified}
		svc := newCheckoutService(t, orders, notifier, nil, provider)

		err := svc.CaptureRedirect(context.Background(), "paypal", expensive.ID, "PP-CHEAP")
		if !errors.Is(err, ErrCheckoutInvalidInput) {
			t.Fatalf("error = %v, want ErrCheckoutInvalidInput", err)
		}
		if provider.captureCalls != 0 {
			t.Errorf("capture calls = %d, want 0", provider.captureCalls)
		}
		order, _ := orders.FindByID(context.Background(), expensive.ID)
		if order.PaymentStatus != domain.PaymentStatusPending || order.Status != domain.OrderStatusPending {
			t.Errorf("mismatched token mutated the order: %s/%s", order.PaymentStatus, order.Status)
		}
		if len(notifier.verified) != 0 {
			t.Errorf("verified notifications = %d, want 0", len(notifier.verified))
		}
	})

	t.Run("matching token verifies", func(t *testing.T) {
		orders := newMemOrders()
		order := domain.Order{
			CustomerEmail:    "buyer@example.com",
			PaymentReference: "PP-TOKEN",
			PaymentStatus:    domain.PaymentStatusPending,
			Status:           domain.OrderStatusPending,
		}
		if err := orders.Insert(context.Background(), &order); err != nil {
			t.Fatalf("seed order: %v", err)
		}
		provider := &chargeProvider{name: "paypal", captureStatus: payments.StatusVerified}
		svc := newCheckoutService(t, orders, &countingNotifier{}, nil, provider)

		if err := svc.CaptureRedirect(context.Background(), "paypal", order.ID, "PP-TOKEN"); err != nil {
			t.Fatalf("capture redirect: %v", err)
		}
		got, _ := orders.FindByID(context.Background(), order.ID)
		if got.PaymentStatus != domain.PaymentStatusVerified {
			t.Errorf("payment status = %s, want verified", got.PaymentStatus)
		}
	})

	t.Run("incomplete capture leaves order pending", func(t *testing.T) {
		orders := newMemOrders()
		orderID := seed(t, orders)
		provider := &chargeProvider{name: "paypal", captureStatus: payments.StatusPending}
		svc := newCheckoutService(t, orders, nil, nil, provider)

		err := svc.CaptureRedirect(context.Background(), "paypal", orderID, "PP-TOKEN")
		if !errors.Is(err, ErrCheckoutProviderFailed) {
			t.Fatalf("error = %v, want ErrCheckoutProviderFailed", err)
		}
		order, _ := orders.FindByID(context.Background(), orderID)
		if order.PaymentStatus != domain.PaymentStatusPending {
			t.Errorf("incomplete capture mutated the order")
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		orders := newMemOrders()
		provider := &chargeProvider{name: "paypal", captureStatus: payments.StatusVerified}
		svc := newCheckoutService(t, orders, nil, nil, provider)

		if err := svc.CaptureRedirect(context.Background(), "paypal", "missing", "PP-TOKEN"); !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("error = %v, want ErrOrderNotFound", err)
		}
	})
}

func TestSubmitManualProof(t *testing.T) {
	manualCommand := func() ManualProofCommand {
		cmd := validCommand(domain.PaymentMethodYape)
		return ManualProofCommand{
			BeginCheckoutCommand: cmd,
			ReferenceCode:        "YAPE-12345",
			ProofFilename:        "receipt.png",
			ProofMIME:            "image/png",
			Proof:                []byte("fake-image-bytes"),
		}
	}

	t.Run("happy path stores proof url", func(t *testing.T) {
		orders := newMemOrders()
		notifier := &countingNotifier{}
		uploader := &stubUploader{url: "https://cdn.example.test/payment-proofs/x.png"}
		svc := newCheckoutService(t, orders, notifier, uploader, &chargeProvider{name: "paypal"})

		result, err := svc.SubmitManualProof(context.Background(), manualCommand())
		if err != nil {
			t.Fatalf("submit manual proof: %v", err)
		}
		order, _ := orders.FindByID(context.Background(), result.OrderID)
		if order.PaymentReference != "YAPE-12345" {
			t.Errorf("payment reference = %q", order.PaymentReference)
		}
		if order.PaymentProof != uploader.url {
			t.Errorf("payment proof = %q", order.PaymentProof)
		}
		if order.PaymentStatus != domain.PaymentStatusPending {
			t.Errorf("payment status = %s, want pending", order.PaymentStatus)
		}
		if len(notifier.created) != 1 {
			t.Errorf("order-created notifications = %d, want 1", len(notifier.created))
		}
	})

	t.Run("upload failure keeps the order", func(t *testing.T) {
		orders := newMemOrders()
		uploader := &stubUploader{err: errors.New("bucket offline")}
		svc := newCheckoutService(t, orders, nil, uploader, &chargeProvider{name: "paypal"})

		result, err := svc.SubmitManualProof(context.Background(), manualCommand())
		if err != nil {
			t.Fatalf("upload failure should not fail the checkout: %v", err)
		}
		order, _ := orders.FindByID(context.Background(), result.OrderID)
		if order.PaymentProof != "" {
			t.Errorf("payment proof = %q, want empty", order.PaymentProof)
		}
	})

	t.Run("rejects provider methods and missing fields", func(t *testing.T) {
		orders := newMemOrders()
		svc := newCheckoutService(t, orders, nil, &stubUploader{}, &chargeProvider{name: "paypal"})

		cmd := manualCommand()
		cmd.Method = domain.PaymentMethodPayPal
		if _, err := svc.SubmitManualProof(context.Background(), cmd); !errors.Is(err, ErrCheckoutInvalidInput) {
			t.Fatalf("provider method error = %v, want ErrCheckoutInvalidInput", err)
		}

		cmd = manualCommand()
		cmd.ReferenceCode = ""
		if _, err := svc.SubmitManualProof(context.Background(), cmd); !errors.Is(err, ErrCheckoutInvalidInput) {
			t.Fatalf("missing reference error = %v, want ErrCheckoutInvalidInput", err)
		}

		cmd = manualCommand()
		cmd.Proof = nil
		if _, err := svc.SubmitManualProof(context.Background(), cmd); !errors.Is(err, ErrCheckoutInvalidInput) {
			t.Fatalf("missing proof error = %v, want ErrCheckoutInvalidInput", err)
		}
		if len(orders.orders) != 0 {
			t.Errorf("invalid submissions persisted %d orders", len(orders.orders))
		}
	})
}
