package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/digitalstore/api/internal/domain"
)

const whopName = "whop"

// WhopConfig configures the WhopProvider.
type WhopConfig struct {
	APIBase       string
	APIKey        string
	CompanyID     string
	WebhookSecret string
	PENPerUSD     float64
	CheckoutBase  string
	HTTPClient    *http.Client
}

// WhopProvider charges through the creator-commerce platform by creating a
// hidden one-time checkout configuration per order. Payment confirmation
// arrives on an HMAC-signed webhook carrying the order id in metadata.
type WhopProvider struct {
	apiBase       string
	apiKey        string
	companyID     string
	webhookSecret string
	penPerUSD     float64
	checkoutBase  string
	httpClient    *http.Client
}

// NewWhopProvider constructs the adapter.
func NewWhopProvider(cfg WhopConfig) (*WhopProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.CompanyID) == "" {
		return nil, errors.New("whop: api key and company id are required")
	}
	if cfg.PENPerUSD <= 0 {
		return nil, errors.New("whop: conversion rate must be positive")
	}
	p := &WhopProvider{
		apiBase:       strings.TrimRight(cfg.APIBase, "/"),
		apiKey:        cfg.APIKey,
		companyID:     cfg.CompanyID,
		webhookSecret: cfg.WebhookSecret,
		penPerUSD:     cfg.PENPerUSD,
		checkoutBase:  strings.TrimRight(cfg.CheckoutBase, "/"),
		httpClient:    cfg.HTTPClient,
	}
	if p.apiBase == "" {
		p.apiBase = "https://api.whop.com"
	}
	if p.checkoutBase == "" {
		p.checkoutBase = "https://whop.com/checkout"
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return p, nil
}

// Name implements Provider.
func (p *WhopProvider) Name() string { return whopName }

// CreateCharge creates the hidden one-time checkout configuration.
func (p *WhopProvider) CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	usd := usdAmount(req.Amount, req.Currency, p.penPerUSD)
	body := map[string]any{
		"company_id": p.companyID,
		"mode":       "payment",
		"plan": map[string]any{
			"company_id":    p.companyID,
			"title":         req.Description,
			"initial_price": float64(usd) / 100,
			"currency":      strings.ToLower(domain.CurrencyUSD),
			"plan_type":     "one_time",
			"visibility":    "hidden",
		},
		"metadata": map[string]string{
			"order_id": req.OrderID,
		},
		"redirect_url": req.ReturnURL,
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Charge{}, fmt.Errorf("whop: encode checkout configuration: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/api/v2/checkout_configurations", bytes.NewReader(encoded))
	if err != nil {
		return Charge{}, fmt.Errorf("whop: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Charge{}, fmt.Errorf("whop: create checkout configuration: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	if err := decodeOrFail(resp, &payload, "whop: create checkout configuration"); err != nil {
		return Charge{}, err
	}
	if payload.ID == "" {
		return Charge{}, errors.New("whop: checkout configuration response missing id")
	}
	return Charge{
		ProviderOrderID: payload.ID,
		RedirectURL:     p.checkoutBase + "/" + payload.ID,
	}, nil
}

// VerifyWebhook checks the x-whop-signature HMAC over the raw body.
func (p *WhopProvider) VerifyWebhook(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if p.webhookSecret == "" || signature == "" {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(p.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// ParseWebhook maps a verified event onto the normalised form. Only the two
// success actions confirm money; everything else stays pending.
func (p *WhopProvider) ParseWebhook(body []byte) (WebhookEvent, error) {
	var payload struct {
		Action string `json:"action"`
		Data   struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("whop: decode webhook: %w", err)
	}
	orderID := payload.Data.Metadata["order_id"]
	if orderID == "" {
		// Events without order metadata (plan updates, memberships created
		// outside the store) are acknowledged, not retried.
		return WebhookEvent{}, fmt.Errorf("whop: %w", ErrEventIgnored)
	}

	status := StatusPending
	switch payload.Action {
	case "payment.succeeded", "membership.went_active":
		status = StatusVerified
	}
	return WebhookEvent{
		OrderID:         orderID,
		ProviderOrderID: payload.Data.ID,
		Status:          status,
	}, nil
}
