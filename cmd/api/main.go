package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/digitalstore/api/internal/handlers"
	"github.com/digitalstore/api/internal/notifications"
	"github.com/digitalstore/api/internal/payments"
	"github.com/digitalstore/api/internal/platform/accounts"
	"github.com/digitalstore/api/internal/platform/auth"
	"github.com/digitalstore/api/internal/platform/config"
	"github.com/digitalstore/api/internal/platform/idempotency"
	"github.com/digitalstore/api/internal/platform/observability"
	pg "github.com/digitalstore/api/internal/platform/postgres"
	"github.com/digitalstore/api/internal/platform/storage"
	pgrepo "github.com/digitalstore/api/internal/repositories/postgres"
	"github.com/digitalstore/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	orderRepo := pgrepo.NewOrderRepository(pool)
	productRepo := pgrepo.NewProductRepository(pool)

	registry, err := buildProviderRegistry(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build payment providers", zap.Error(err))
	}

	dispatcher := buildDispatcher(cfg, logger)

	var uploader services.ProofUploader
	var accountAdmin services.AccountAdmin
	if cfg.Store.BaseURL != "" && cfg.Store.ServiceKey != "" {
		storageClient, err := storage.NewClient(cfg.Store.BaseURL, cfg.Store.ServiceKey, cfg.Store.ProofBucket)
		if err != nil {
			logger.Fatal("failed to initialise storage client", zap.Error(err))
		}
		uploader = storageClient

		accountsClient, err := accounts.NewClient(cfg.Store.BaseURL, cfg.Store.ServiceKey)
		if err != nil {
			logger.Fatal("failed to initialise accounts client", zap.Error(err))
		}
		accountAdmin = accountsClient
	} else {
		logger.Warn("hosted platform credentials missing; proof uploads and account admin disabled")
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutDeps{
		Orders:          orderRepo,
		Providers:       registry,
		Uploader:        uploader,
		Notifier:        dispatcher,
		Logger:          logger,
		PublicURL:       cfg.Server.PublicURL,
		StoreName:       cfg.Notify.FromName,
		ProviderTimeout: cfg.Checkout.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal("failed to build checkout service", zap.Error(err))
	}

	adminService, err := services.NewAdminService(services.AdminDeps{
		Orders:   orderRepo,
		Products: productRepo,
		Accounts: accountAdmin,
		Notifier: dispatcher,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("failed to build admin service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(productRepo)
	if err != nil {
		logger.Fatal("failed to build catalog service", zap.Error(err))
	}

	authn, err := auth.NewAuthenticator(cfg.Auth.JWTSecret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAudience(cfg.Auth.Audience),
	)
	if err != nil {
		logger.Fatal("failed to build authenticator", zap.Error(err))
	}

	idempotencyMiddleware := idempotency.Middleware(
		idempotency.NewMemoryStore(),
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	checkoutHandlers := handlers.NewCheckoutHandlers(checkoutService, cfg.Server.PublicURL)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(adminService)
	adminProductHandlers := handlers.NewAdminProductHandlers(adminService)
	adminUserHandlers := handlers.NewAdminUserHandlers(adminService)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(map[string]handlers.ReadinessChecker{
			"postgres": pingDatabase(pool),
		})),
		handlers.WithCatalogRoutes(handlers.NewCatalogHandlers(catalogService).Routes),
		handlers.WithLocaleRoutes(handlers.NewLocaleHandlers().Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithCheckoutMiddlewares(authn.OptionalAuth(), idempotencyMiddleware),
		handlers.WithPaymentRoutes(checkoutHandlers.CaptureRoutes),
		handlers.WithWebhookRoutes(handlers.NewWebhookHandlers(checkoutService).Routes),
		handlers.WithWebhookMiddlewares(handlers.RateLimitByIP(cfg.RateLimits.WebhookPerMinute)),
		handlers.WithAdminRoutes(func(r chi.Router) {
			adminOrderHandlers.Routes(r)
			adminProductHandlers.Routes(r)
			adminUserHandlers.Routes(r)
		}),
		handlers.WithAdminMiddlewares(authn.RequireAuth(auth.RoleAdmin)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("digital store api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	// Let in-flight notification goroutines finish before exiting.
	dispatcher.Wait()
}

func buildProviderRegistry(cfg config.Config, logger *zap.Logger) (*payments.Registry, error) {
	var providers []payments.Provider

	if cfg.Providers.PayPal.ClientID != "" && cfg.Providers.PayPal.ClientSecret != "" {
		paypal, err := payments.NewPayPalProvider(payments.PayPalConfig{
			APIBase:      cfg.Providers.PayPal.APIBase,
			ClientID:     cfg.Providers.PayPal.ClientID,
			ClientSecret: cfg.Providers.PayPal.ClientSecret,
			PENPerUSD:    cfg.Checkout.PENPerUSD,
			BrandName:    cfg.Notify.FromName,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, paypal)
	} else {
		logger.Warn("paypal credentials missing; method disabled")
	}

	if cfg.Providers.Cryptomus.MerchantID != "" && cfg.Providers.Cryptomus.APIKey != "" {
		cryptomus, err := payments.NewCryptomusProvider(payments.CryptomusConfig{
			APIBase:    cfg.Providers.Cryptomus.APIBase,
			MerchantID: cfg.Providers.Cryptomus.MerchantID,
			APIKey:     cfg.Providers.Cryptomus.APIKey,
			PENPerUSD:  cfg.Checkout.PENPerUSD,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, cryptomus)
	} else {
		logger.Warn("cryptomus credentials missing; method disabled")
	}

	if cfg.Providers.Whop.APIKey != "" && cfg.Providers.Whop.CompanyID != "" {
		whop, err := payments.NewWhopProvider(payments.WhopConfig{
			APIBase:       cfg.Providers.Whop.APIBase,
			APIKey:        cfg.Providers.Whop.APIKey,
			CompanyID:     cfg.Providers.Whop.CompanyID,
			WebhookSecret: cfg.Providers.Whop.WebhookSecret,
			PENPerUSD:     cfg.Checkout.PENPerUSD,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, whop)
	} else {
		logger.Warn("whop credentials missing; method disabled")
	}

	return payments.NewRegistry(providers...)
}

func buildDispatcher(cfg config.Config, logger *zap.Logger) *notifications.Dispatcher {
	var telegram notifications.TelegramSender
	if cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID != "" {
		notifier, err := notifications.NewTelegramNotifier(notifications.TelegramConfig{
			BotToken: cfg.Notify.TelegramBotToken,
			ChatID:   cfg.Notify.TelegramChatID,
		})
		if err != nil {
			logger.Warn("telegram channel disabled", zap.Error(err))
		} else {
			telegram = notifier
		}
	}

	var email notifications.EmailSender
	if cfg.Notify.SMTPHost != "" && cfg.Notify.FromEmail != "" {
		notifier, err := notifications.NewEmailNotifier(notifications.EmailConfig{
			Host:      cfg.Notify.SMTPHost,
			Port:      cfg.Notify.SMTPPort,
			Username:  cfg.Notify.SMTPUser,
			Password:  cfg.Notify.SMTPPass,
			FromEmail: cfg.Notify.FromEmail,
			FromName:  cfg.Notify.FromName,
		})
		if err != nil {
			logger.Warn("email channel disabled", zap.Error(err))
		} else {
			email = notifier
		}
	}

	return notifications.NewDispatcher(notifications.DispatcherDeps{
		Telegram:   telegram,
		Email:      email,
		Logger:     logger,
		StoreName:  cfg.Notify.FromName,
		StoreURL:   cfg.Server.PublicURL,
		AdminEmail: cfg.Notify.AdminEmail,
		Timeout:    cfg.Notify.Timeout,
	})
}

func pingDatabase(pool *pgxpool.Pool) handlers.ReadinessChecker {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}
