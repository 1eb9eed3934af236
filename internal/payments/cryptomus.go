package payments

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/digitalstore/api/internal/domain"
)

const cryptomusName = "cryptomus"

// CryptomusConfig configures the CryptomusProvider.
type CryptomusConfig struct {
	APIBase    string
	MerchantID string
	APIKey     string
	PENPerUSD  float64
	HTTPClient *http.Client
}

// CryptomusProvider charges through the crypto processor. Invoices are
// created in USD (converted from soles when needed) and settled in USDT;
// payment confirmation arrives on a signed webhook.
type CryptomusProvider struct {
	apiBase    string
	merchantID string
	apiKey     string
	penPerUSD  float64
	httpClient *http.Client
}

// NewCryptomusProvider constructs the adapter.
func NewCryptomusProvider(cfg CryptomusConfig) (*CryptomusProvider, error) {
	if strings.TrimSpace(cfg.MerchantID) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("cryptomus: merchant id and api key are required")
	}
	if cfg.PENPerUSD <= 0 {
		return nil, errors.New("cryptomus: conversion rate must be positive")
	}
	p := &CryptomusProvider{
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		merchantID: cfg.MerchantID,
		apiKey:     cfg.APIKey,
		penPerUSD:  cfg.PENPerUSD,
		httpClient: cfg.HTTPClient,
	}
	if p.apiBase == "" {
		p.apiBase = "https://api.cryptomus.com"
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return p, nil
}

// Name implements Provider.
func (p *CryptomusProvider) Name() string { return cryptomusName }

// sign computes the processor's request signature: MD5 over the base64 of the
// raw JSON body concatenated with the API key.
func (p *CryptomusProvider) sign(body []byte) string {
	encoded := base64.StdEncoding.EncodeToString(body)
	sum := md5.Sum([]byte(encoded + p.apiKey))
	return hex.EncodeToString(sum[:])
}

// CreateCharge opens an invoice and returns its hosted payment page URL.
func (p *CryptomusProvider) CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	usd := usdAmount(req.Amount, req.Currency, p.penPerUSD)
	body := map[string]string{
		"amount":       domain.FormatAmount(usd),
		"currency":     domain.CurrencyUSD,
		"to_currency":  "USDT",
		"network":      "BSC",
		"order_id":     req.OrderID,
		"url_return":   req.CancelURL,
		"url_success":  req.ReturnURL,
		"url_callback": req.CallbackURL,
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Charge{}, fmt.Errorf("cryptomus: encode invoice: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/v1/payment", bytes.NewReader(encoded))
	if err != nil {
		return Charge{}, fmt.Errorf("cryptomus: build invoice request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("merchant", p.merchantID)
	httpReq.Header.Set("sign", p.sign(encoded))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Charge{}, fmt.Errorf("cryptomus: create invoice: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		State  int `json:"state"`
		Result struct {
			UUID string `json:"uuid"`
			URL  string `json:"url"`
		} `json:"result"`
		Message string `json:"message"`
	}
	if err := decodeOrFail(resp, &payload, "cryptomus: create invoice"); err != nil {
		return Charge{}, err
	}
	if payload.State != 0 || payload.Result.UUID == "" || payload.Result.URL == "" {
		return Charge{}, fmt.Errorf("cryptomus: invoice rejected (state %d): %s", payload.State, payload.Message)
	}
	return Charge{ProviderOrderID: payload.Result.UUID, RedirectURL: payload.Result.URL}, nil
}

// VerifyWebhook checks the `sign` header the processor sends with callbacks.
func (p *CryptomusProvider) VerifyWebhook(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrBadSignature
	}
	expected := p.sign(body)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return ErrBadSignature
	}
	return nil
}

// ParseWebhook maps a verified callback onto the normalised event.
func (p *CryptomusProvider) ParseWebhook(body []byte) (WebhookEvent, error) {
	var payload struct {
		OrderID string `json:"order_id"`
		UUID    string `json:"uuid"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("cryptomus: decode webhook: %w", err)
	}
	if payload.OrderID == "" {
		return WebhookEvent{}, errors.New("cryptomus: webhook missing order_id")
	}
	return WebhookEvent{
		OrderID:         payload.OrderID,
		ProviderOrderID: payload.UUID,
		Status:          cryptomusStatus(payload.Status),
	}, nil
}

// cryptomusStatus maps the processor's status vocabulary onto the normalised
// set. Anything outside the two known groups stays pending.
func cryptomusStatus(status string) Status {
	switch status {
	case "paid", "paid_over":
		return StatusVerified
	case "wrong_amount", "cancel", "fail":
		return StatusFailed
	default:
		return StatusPending
	}
}
