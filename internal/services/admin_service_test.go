package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/digitalstore/api/internal/domain"
	"github.com/digitalstore/api/internal/platform/accounts"
	"github.com/digitalstore/api/internal/repositories"
)

// memProducts is an in-memory ProductRepository for admin tests.
type memProducts struct {
	mu       sync.Mutex
	seq      int
	products map[string]domain.Product
}

func newMemProducts() *memProducts {
	return &memProducts{products: make(map[string]domain.Product)}
}

func (m *memProducts) sorted(activeOnly bool) []domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

func (m *memProducts) ListActive(context.Context) ([]domain.Product, error) { return m.sorted(true), nil }

func (m *memProducts) List(context.Context) ([]domain.Product, error) { return m.sorted(false), nil }

func (m *memProducts) Get(_ context.Context, id string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[id]
	if !ok {
		return domain.Product{}, repositories.ErrNotFound
	}
	return product, nil
}

func (m *memProducts) Create(_ context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.Slug == product.Slug {
			return repositories.ErrConflict
		}
	}
	m.seq++
	product.ID = "prod-" + strconv.Itoa(m.seq)
	m.products[product.ID] = *product
	return nil
}

func (m *memProducts) Update(_ context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[product.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.products[product.ID] = *product
	return nil
}

func (m *memProducts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memProducts) Reorder(_ context.Context, orderedIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range orderedIDs {
		product, ok := m.products[id]
		if !ok {
			continue
		}
		product.SortOrder = i
		m.products[id] = product
	}
	return nil
}

// stubAccounts answers auth admin lookups from a fixed directory.
type stubAccounts struct {
	users   map[string]accounts.User // keyed by lowercased email
	deleted []string
}

func (s *stubAccounts) FindUserByEmail(_ context.Context, email string) (accounts.User, error) {
	user, ok := s.users[strings.ToLower(email)]
	if !ok {
		return accounts.User{}, accounts.ErrUserNotFound
	}
	return user, nil
}

func (s *stubAccounts) DeleteUser(_ context.Context, userID string) error {
	for _, user := range s.users {
		if user.ID == userID {
			s.deleted = append(s.deleted, userID)
			return nil
		}
	}
	return accounts.ErrUserNotFound
}

func newAdminService(t *testing.T, orders *memOrders, products *memProducts, acc AccountAdmin, notifier Notifier) *AdminService {
	t.Helper()
	svc, err := NewAdminService(AdminDeps{
		Orders:   orders,
		Products: products,
		Accounts: acc,
		Notifier: notifier,
		Clock:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new admin service: %v", err)
	}
	return svc
}

func seedOrder(t *testing.T, orders *memOrders) domain.Order {
	t.Helper()
	order := domain.Order{
		CustomerEmail: "buyer@example.com",
		CustomerName:  "Maria",
		Total:         5000,
		Currency:      domain.CurrencyPEN,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}
	if err := orders.Insert(context.Background(), &order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestDeleteOrders(t *testing.T) {
	orders := newMemOrders()
	first := seedOrder(t, orders)
	second := seedOrder(t, orders)
	svc := newAdminService(t, orders, newMemProducts(), nil, nil)

	deleted, err := svc.DeleteOrders(context.Background(), []string{first.ID, second.ID, "missing"})
	if err != nil {
		t.Fatalf("delete orders: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	if _, err := svc.DeleteOrders(context.Background(), []string{" ", ""}); !errors.Is(err, ErrAdminInvalidInput) {
		t.Fatalf("blank ids error = %v, want ErrAdminInvalidInput", err)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	statusOf := func(s domain.OrderStatus) *domain.OrderStatus { return &s }
	paymentOf := func(s domain.PaymentStatus) *domain.PaymentStatus { return &s }

	t.Run("verifying payment notifies the buyer", func(t *testing.T) {
		orders := newMemOrders()
		seeded := seedOrder(t, orders)
		notifier := &countingNotifier{}
		svc := newAdminService(t, orders, newMemProducts(), nil, notifier)

		order, err := svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusCommand{
			OrderID:       seeded.ID,
			PaymentStatus: paymentOf(domain.PaymentStatusVerified),
		})
		if err != nil {
			t.Fatalf("update status: %v", err)
		}
		if order.PaymentStatus != domain.PaymentStatusVerified {
			t.Errorf("payment status = %s, want verified", order.PaymentStatus)
		}
		if order.Status != domain.OrderStatusPending {
			t.Errorf("order status = %s, want pending (untouched)", order.Status)
		}
		if len(notifier.verified) != 1 {
			t.Errorf("verified notifications = %d, want 1", len(notifier.verified))
		}
	})

	t.Run("completing the order notifies the buyer", func(t *testing.T) {
		orders := newMemOrders()
		seeded := seedOrder(t, orders)
		notifier := &countingNotifier{}
		svc := newAdminService(t, orders, newMemProducts(), nil, notifier)

		if _, err := svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusCommand{
			OrderID: seeded.ID,
			Status:  statusOf(domain.OrderStatusCompleted),
		}); err != nil {
			t.Fatalf("update status: %v", err)
		}
		if len(notifier.verified) != 1 {
			t.Errorf("verified notifications = %d, want 1", len(notifier.verified))
		}
	})

	t.Run("cancelling stays silent", func(t *testing.T) {
		orders := newMemOrders()
		seeded := seedOrder(t, orders)
		notifier := &countingNotifier{}
		svc := newAdminService(t, orders, newMemProducts(), nil, notifier)

		if _, err := svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusCommand{
			OrderID: seeded.ID,
			Status:  statusOf(domain.OrderStatusCancelled),
		}); err != nil {
			t.Fatalf("update status: %v", err)
		}
		if len(notifier.verified) != 0 {
			t.Errorf("cancellation notified the buyer")
		}
	})

	t.Run("empty patch is rejected", func(t *testing.T) {
		orders := newMemOrders()
		seeded := seedOrder(t, orders)
		svc := newAdminService(t, orders, newMemProducts(), nil, nil)

		_, err := svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusCommand{OrderID: seeded.ID})
		if !errors.Is(err, ErrAdminInvalidInput) {
			t.Fatalf("error = %v, want ErrAdminInvalidInput", err)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		svc := newAdminService(t, newMemOrders(), newMemProducts(), nil, nil)
		_, err := svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusCommand{
			OrderID: "missing",
			Status:  statusOf(domain.OrderStatusCompleted),
		})
		if !errors.Is(err, ErrAdminNotFound) {
			t.Fatalf("error = %v, want ErrAdminNotFound", err)
		}
	})
}

func TestDeliverOrder(t *testing.T) {
	orders := newMemOrders()
	seeded := seedOrder(t, orders)
	svc := newAdminService(t, orders, newMemProducts(), nil, nil)

	payload := json.RawMessage(`{"accounts":[{"email":"cuenta@example.com","password":"s3cret"}]}`)
	if err := svc.DeliverOrder(context.Background(), seeded.ID, payload); err != nil {
		t.Fatalf("deliver order: %v", err)
	}

	order, _ := orders.FindByID(context.Background(), seeded.ID)
	if order.Status != domain.OrderStatusCompleted {
		t.Errorf("status = %s, want completed", order.Status)
	}
	if order.PaymentStatus != domain.PaymentStatusVerified {
		t.Errorf("payment status = %s, want verified", order.PaymentStatus)
	}
	if order.DeliveryStatus != domain.DeliveryStatusDelivered {
		t.Errorf("delivery status = %s, want delivered", order.DeliveryStatus)
	}
	if order.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}
	if string(order.Delivery) != string(payload) {
		t.Errorf("delivery payload = %s", order.Delivery)
	}

	if err := svc.DeliverOrder(context.Background(), seeded.ID, json.RawMessage(`{broken`)); !errors.Is(err, ErrAdminInvalidInput) {
		t.Fatalf("invalid JSON error = %v, want ErrAdminInvalidInput", err)
	}
	if err := svc.DeliverOrder(context.Background(), "missing", payload); !errors.Is(err, ErrAdminNotFound) {
		t.Fatalf("unknown order error = %v, want ErrAdminNotFound", err)
	}
}

func TestTransferOrder(t *testing.T) {
	directory := &stubAccounts{users: map[string]accounts.User{
		"nuevo@example.com": {ID: "user-9", Email: "nuevo@example.com"},
	}}

	t.Run("reassigns to the target account", func(t *testing.T) {
		orders := newMemOrders()
		seeded := seedOrder(t, orders)
		svc := newAdminService(t, orders, newMemProducts(), directory, nil)

		result, err := svc.TransferOrder(context.Background(), seeded.ID, "Nuevo@Example.com")
		if err != nil {
			t.Fatalf("transfer order: %v", err)
		}
		if result.TargetID != "user-9" {
			t.Errorf("target id = %q, want user-9", result.TargetID)
		}
		order, _ := orders.FindByID(context.Background(), seeded.ID)
		if order.UserID != "user-9" {
			t.Errorf("order user id = %q, want user-9", order.UserID)
		}
	})

	t.Run("unknown email mutates nothing", func(t *testing.T) {
		orders := newMemOrders()
		seeded := seedOrder(t, orders)
		svc := newAdminService(t, orders, newMemProducts(), directory, nil)

		_, err := svc.TransferOrder(context.Background(), seeded.ID, "nadie@example.com")
		if !errors.Is(err, ErrAdminUserNotFound) {
			t.Fatalf("error = %v, want ErrAdminUserNotFound", err)
		}
		order, _ := orders.FindByID(context.Background(), seeded.ID)
		if order.UserID != "" {
			t.Errorf("failed transfer mutated the order, user id = %q", order.UserID)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		svc := newAdminService(t, newMemOrders(), newMemProducts(), directory, nil)
		if _, err := svc.TransferOrder(context.Background(), "missing", "nuevo@example.com"); !errors.Is(err, ErrAdminNotFound) {
			t.Fatalf("error = %v, want ErrAdminNotFound", err)
		}
	})
}

func TestProductCRUD(t *testing.T) {
	products := newMemProducts()
	svc := newAdminService(t, newMemOrders(), products, nil, nil)
	ctx := context.Background()

	cmd := ProductCommand{
		Slug:     "netflix-premium",
		Title:    "Netflix Premium",
		PriceUSD: 599,
		PricePEN: 1999,
		Category: "streaming",
		InStock:  true,
		IsActive: true,
	}
	created, err := svc.CreateProduct(ctx, cmd)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created product has no id")
	}

	if _, err := svc.CreateProduct(ctx, cmd); !errors.Is(err, ErrAdminConflict) {
		t.Fatalf("duplicate slug error = %v, want ErrAdminConflict", err)
	}

	cmd.Title = "Netflix Premium 4K"
	cmd.IsActive = false
	updated, err := svc.UpdateProduct(ctx, created.ID, cmd)
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Title != "Netflix Premium 4K" {
		t.Errorf("title = %q", updated.Title)
	}

	all, err := svc.ListProducts(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("list products = %d items, err %v", len(all), err)
	}
	active, _ := products.ListActive(ctx)
	if len(active) != 0 {
		t.Errorf("inactive product still listed publicly")
	}

	if _, err := svc.GetProduct(ctx, "missing"); !errors.Is(err, ErrAdminNotFound) {
		t.Fatalf("get missing error = %v, want ErrAdminNotFound", err)
	}
	if err := svc.DeleteProduct(ctx, created.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if err := svc.DeleteProduct(ctx, created.ID); !errors.Is(err, ErrAdminNotFound) {
		t.Fatalf("double delete error = %v, want ErrAdminNotFound", err)
	}

	if _, err := svc.CreateProduct(ctx, ProductCommand{Slug: "x"}); !errors.Is(err, ErrAdminInvalidInput) {
		t.Fatalf("missing title error = %v, want ErrAdminInvalidInput", err)
	}
}

func TestReorderProducts(t *testing.T) {
	products := newMemProducts()
	svc := newAdminService(t, newMemOrders(), products, nil, nil)
	ctx := context.Background()

	var ids []string
	for _, slug := range []string{"a", "b", "c"} {
		created, err := svc.CreateProduct(ctx, ProductCommand{Slug: slug, Title: strings.ToUpper(slug), IsActive: true})
		if err != nil {
			t.Fatalf("seed product %s: %v", slug, err)
		}
		ids = append(ids, created.ID)
	}

	reversed := []string{ids[2], ids[1], ids[0]}
	if err := svc.ReorderProducts(ctx, reversed); err != nil {
		t.Fatalf("reorder products: %v", err)
	}
	listed, _ := svc.ListProducts(ctx)
	for i, want := range reversed {
		if listed[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, listed[i].ID, want)
		}
	}

	if err := svc.ReorderProducts(ctx, nil); !errors.Is(err, ErrAdminInvalidInput) {
		t.Fatalf("empty reorder error = %v, want ErrAdminInvalidInput", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	directory := &stubAccounts{users: map[string]accounts.User{
		"buyer@example.com": {ID: "user-1", Email: "buyer@example.com"},
	}}
	svc := newAdminService(t, newMemOrders(), newMemProducts(), directory, nil)

	if err := svc.DeleteAccount(context.Background(), "user-1"); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if len(directory.deleted) != 1 || directory.deleted[0] != "user-1" {
		t.Errorf("deleted = %v, want [user-1]", directory.deleted)
	}

	if err := svc.DeleteAccount(context.Background(), "ghost"); !errors.Is(err, ErrAdminUserNotFound) {
		t.Fatalf("unknown user error = %v, want ErrAdminUserNotFound", err)
	}
	if err := svc.DeleteAccount(context.Background(), ""); !errors.Is(err, ErrAdminInvalidInput) {
		t.Fatalf("empty id error = %v, want ErrAdminInvalidInput", err)
	}
}
