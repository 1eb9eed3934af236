// Package notifications fans order events out to the operator's Telegram chat
// and to email, without ever blocking or failing the request that triggered
// them.
package notifications

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/digitalstore/api/internal/domain"
)

// TelegramSender abstracts the Telegram channel for tests.
type TelegramSender interface {
	SendMessage(ctx context.Context, text string) error
}

// EmailSender abstracts the SMTP channel for tests.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// DispatcherDeps wires the dispatcher. Either channel may be nil when its
// credentials are not configured; the other keeps working.
type DispatcherDeps struct {
	Telegram   TelegramSender
	Email      EmailSender
	Logger     *zap.Logger
	StoreName  string
	StoreURL   string
	AdminEmail string
	// Timeout bounds each detached dispatch; defaults to 30s.
	Timeout time.Duration
}

// Dispatcher delivers order notifications on detached goroutines. Delivery is
// at-most-once per transition; failures are logged and swallowed.
type Dispatcher struct {
	telegram   TelegramSender
	email      EmailSender
	logger     *zap.Logger
	storeName  string
	storeURL   string
	adminEmail string
	timeout    time.Duration
	wg         sync.WaitGroup
	clock      func() time.Time
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		telegram:   deps.Telegram,
		email:      deps.Email,
		logger:     logger.Named("notifications"),
		storeName:  deps.StoreName,
		storeURL:   strings.TrimRight(deps.StoreURL, "/"),
		adminEmail: deps.AdminEmail,
		timeout:    timeout,
		clock:      time.Now,
	}
}

// NotifyOrderCreated alerts the operator about a fresh pending order.
func (d *Dispatcher) NotifyOrderCreated(order domain.Order) {
	adminURL := d.storeURL + "/admin/orders"
	message := orderCreatedTelegram(order, adminURL, d.clock())
	subject, body := orderCreatedEmail(order, d.storeName, adminURL)

	d.dispatch("order_created", order.OrderNumber,
		d.telegramTask(message),
		d.emailTask(d.adminEmail, subject, body),
	)
}

// NotifyPaymentVerified tells the buyer their payment cleared and alerts the
// operator.
func (d *Dispatcher) NotifyPaymentVerified(order domain.Order) {
	adminURL := d.storeURL + "/admin/orders"
	subject, body := paymentVerifiedEmail(order, d.storeName, d.storeURL+"/account")

	d.dispatch("payment_verified", order.OrderNumber,
		d.telegramTask(paymentVerifiedTelegram(order, adminURL)),
		d.emailTask(order.CustomerEmail, subject, body),
	)
}

// Wait blocks until in-flight dispatches finish. Called on shutdown so
// detached sends are not cut off mid-flight.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) telegramTask(message string) func(context.Context) error {
	if d.telegram == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return d.telegram.SendMessage(ctx, message)
	}
}

func (d *Dispatcher) emailTask(to, subject, body string) func(context.Context) error {
	if d.email == nil || strings.TrimSpace(to) == "" {
		return nil
	}
	return func(ctx context.Context) error {
		return d.email.Send(ctx, to, subject, body)
	}
}

// dispatch runs the tasks on a detached goroutine with a fresh bounded
// context, so delivery survives the originating request. Every task settles;
// one channel failing never short-circuits the other.
func (d *Dispatcher) dispatch(event, orderNumber string, tasks ...func(context.Context) error) {
	live := tasks[:0]
	for _, task := range tasks {
		if task != nil {
			live = append(live, task)
		}
	}
	if len(live) == 0 {
		return
	}

	// Dispatch id correlates the log lines of one fan-out.
	now := d.clock()
	dispatchID := ulid.MustNew(ulid.Timestamp(now), rand.New(rand.NewSource(now.UnixNano()))).String()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		var g errgroup.Group
		for _, task := range live {
			task := task
			g.Go(func() error {
				if err := task(ctx); err != nil {
					d.logger.Warn("notification delivery failed",
						zap.String("dispatch_id", dispatchID),
						zap.String("event", event),
						zap.String("order_number", orderNumber),
						zap.Error(err))
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}
