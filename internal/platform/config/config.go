package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile           = ".env"
	defaultPort              = "8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultProviderTimeout   = 20 * time.Second
	defaultNotifyTimeout     = 30 * time.Second
	defaultSMTPPort          = 465
	defaultPENPerUSD         = 3.75
	defaultProofBucket       = "payment-proofs"
	defaultPayPalAPIBase     = "https://api-m.paypal.com"
	defaultCryptomusAPIBase  = "https://api.cryptomus.com"
	defaultWhopAPIBase       = "https://api.whop.com"
	defaultIdempotencyHeader = "Idempotency-Key"
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultWebhookPerMinute  = 60
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Store       StoreConfig
	Auth        AuthConfig
	Providers   ProviderConfig
	Notify      NotifyConfig
	Checkout    CheckoutConfig
	Idempotency IdempotencyConfig
	RateLimits  RateLimitConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	PublicURL    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds the connection string for the hosted Postgres store.
type DatabaseConfig struct {
	URL string
}

// StoreConfig points at the hosted platform's REST surface (storage buckets,
// auth admin API) and the privileged service key used to call it.
type StoreConfig struct {
	BaseURL     string
	ServiceKey  string
	ProofBucket string
}

// AuthConfig controls verification of end-user bearer tokens issued by the
// hosted auth service.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

// ProviderConfig collects per-provider credentials.
type ProviderConfig struct {
	PayPal    PayPalConfig
	Cryptomus CryptomusConfig
	Whop      WhopConfig
}

// PayPalConfig holds the client-credential pair for the card/PayPal gateway.
type PayPalConfig struct {
	APIBase      string
	ClientID     string
	ClientSecret string
}

// CryptomusConfig holds the merchant credentials for the crypto processor.
type CryptomusConfig struct {
	APIBase    string
	MerchantID string
	APIKey     string
}

// WhopConfig holds the creator-commerce checkout credentials.
type WhopConfig struct {
	APIBase       string
	APIKey        string
	CompanyID     string
	WebhookSecret string
}

// NotifyConfig configures the notification dispatcher.
type NotifyConfig struct {
	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	FromName   string
	AdminEmail string

	TelegramBotToken string
	TelegramChatID   string

	Timeout time.Duration
}

// CheckoutConfig tunes checkout orchestration behaviour.
type CheckoutConfig struct {
	// PENPerUSD is the single conversion rate applied when charging a PEN
	// order through a USD-denominated provider.
	PENPerUSD       float64
	ProviderTimeout time.Duration
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
}

// RateLimitConfig controls webhook request throttling.
type RateLimitConfig struct {
	WebhookPerMinute int
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env
// overrides and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			PublicURL:    strings.TrimRight(stringWithDefault(lookup, "API_SERVER_PUBLIC_URL", ""), "/"),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Database: DatabaseConfig{
			URL: stringWithDefault(lookup, "API_DATABASE_URL", ""),
		},
		Store: StoreConfig{
			BaseURL:     strings.TrimRight(stringWithDefault(lookup, "API_STORE_BASE_URL", ""), "/"),
			ServiceKey:  stringWithDefault(lookup, "API_STORE_SERVICE_KEY", ""),
			ProofBucket: stringWithDefault(lookup, "API_STORE_PROOF_BUCKET", defaultProofBucket),
		},
		Auth: AuthConfig{
			JWTSecret: stringWithDefault(lookup, "API_AUTH_JWT_SECRET", ""),
			Issuer:    stringWithDefault(lookup, "API_AUTH_ISSUER", ""),
			Audience:  stringWithDefault(lookup, "API_AUTH_AUDIENCE", "authenticated"),
		},
		Providers: ProviderConfig{
			PayPal: PayPalConfig{
				APIBase:      strings.TrimRight(stringWithDefault(lookup, "API_PAYPAL_API_BASE", defaultPayPalAPIBase), "/"),
				ClientID:     stringWithDefault(lookup, "API_PAYPAL_CLIENT_ID", ""),
				ClientSecret: stringWithDefault(lookup, "API_PAYPAL_CLIENT_SECRET", ""),
			},
			Cryptomus: CryptomusConfig{
				APIBase:    strings.TrimRight(stringWithDefault(lookup, "API_CRYPTOMUS_API_BASE", defaultCryptomusAPIBase), "/"),
				MerchantID: stringWithDefault(lookup, "API_CRYPTOMUS_MERCHANT_ID", ""),
				APIKey:     stringWithDefault(lookup, "API_CRYPTOMUS_API_KEY", ""),
			},
			Whop: WhopConfig{
				APIBase:       strings.TrimRight(stringWithDefault(lookup, "API_WHOP_API_BASE", defaultWhopAPIBase), "/"),
				APIKey:        stringWithDefault(lookup, "API_WHOP_API_KEY", ""),
				CompanyID:     stringWithDefault(lookup, "API_WHOP_COMPANY_ID", ""),
				WebhookSecret: stringWithDefault(lookup, "API_WHOP_WEBHOOK_SECRET", ""),
			},
		},
		Notify: NotifyConfig{
			SMTPHost:         stringWithDefault(lookup, "API_NOTIFY_SMTP_HOST", ""),
			SMTPPort:         intWithDefault(lookup, "API_NOTIFY_SMTP_PORT", defaultSMTPPort),
			SMTPUser:         stringWithDefault(lookup, "API_NOTIFY_SMTP_USER", ""),
			SMTPPass:         stringWithDefault(lookup, "API_NOTIFY_SMTP_PASS", ""),
			FromEmail:        stringWithDefault(lookup, "API_NOTIFY_FROM_EMAIL", ""),
			FromName:         stringWithDefault(lookup, "API_NOTIFY_FROM_NAME", "Digital Store"),
			AdminEmail:       stringWithDefault(lookup, "API_NOTIFY_ADMIN_EMAIL", ""),
			TelegramBotToken: stringWithDefault(lookup, "API_NOTIFY_TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID:   stringWithDefault(lookup, "API_NOTIFY_TELEGRAM_CHAT_ID", ""),
			Timeout:          durationWithDefault(lookup, "API_NOTIFY_TIMEOUT", defaultNotifyTimeout),
		},
		Checkout: CheckoutConfig{
			PENPerUSD:       floatWithDefault(lookup, "API_CHECKOUT_PEN_PER_USD", defaultPENPerUSD),
			ProviderTimeout: durationWithDefault(lookup, "API_CHECKOUT_PROVIDER_TIMEOUT", defaultProviderTimeout),
		},
		Idempotency: IdempotencyConfig{
			Header: stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:    durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
		RateLimits: RateLimitConfig{
			WebhookPerMinute: intWithDefault(lookup, "API_RATELIMIT_WEBHOOK_PER_MIN", defaultWebhookPerMinute),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Database.URL == "" {
		missing = append(missing, "Database.URL")
	}
	if cfg.Auth.JWTSecret == "" {
		missing = append(missing, "Auth.JWTSecret")
	}
	if cfg.Checkout.PENPerUSD <= 0 {
		missing = append(missing, "Checkout.PENPerUSD")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
