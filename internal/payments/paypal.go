package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/digitalstore/api/internal/domain"
)

const paypalName = "paypal"

// PayPalConfig configures the PayPalProvider.
type PayPalConfig struct {
	APIBase      string
	ClientID     string
	ClientSecret string
	// PENPerUSD converts sol-denominated totals; the gateway only charges USD.
	PENPerUSD  float64
	BrandName  string
	HTTPClient *http.Client
}

// PayPalProvider charges through the card gateway. Payments are confirmed by
// the buyer's browser redirect followed by a server-side capture, so the
// adapter implements Capturer and has no webhook.
type PayPalProvider struct {
	apiBase      string
	clientID     string
	clientSecret string
	penPerUSD    float64
	brandName    string
	httpClient   *http.Client
}

// NewPayPalProvider constructs the adapter.
func NewPayPalProvider(cfg PayPalConfig) (*PayPalProvider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("paypal: client credentials are required")
	}
	if cfg.PENPerUSD <= 0 {
		return nil, errors.New("paypal: conversion rate must be positive")
	}
	p := &PayPalProvider{
		apiBase:      strings.TrimRight(cfg.APIBase, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		penPerUSD:    cfg.PENPerUSD,
		brandName:    cfg.BrandName,
		httpClient:   cfg.HTTPClient,
	}
	if p.apiBase == "" {
		p.apiBase = "https://api-m.paypal.com"
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return p, nil
}

// Name implements Provider.
func (p *PayPalProvider) Name() string { return paypalName }

// accessToken fetches a client-credentials token. The gateway caches tokens
// server-side, so requesting one per call keeps the adapter stateless.
func (p *PayPalProvider) accessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("paypal: build token request: %w", err)
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal: token request: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken      string `json:"access_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("paypal: decode token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || payload.AccessToken == "" {
		return "", fmt.Errorf("paypal: token request failed (%d): %s", resp.StatusCode, payload.ErrorDescription)
	}
	return payload.AccessToken, nil
}

// CreateCharge opens a gateway order and returns the buyer approval URL.
func (p *PayPalProvider) CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return Charge{}, err
	}

	usd := usdAmount(req.Amount, req.Currency, p.penPerUSD)
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.OrderNumber,
			"description":  req.Description,
			"amount": map[string]string{
				"currency_code": domain.CurrencyUSD,
				"value":         domain.FormatAmount(usd),
			},
		}},
		"application_context": map[string]string{
			"brand_name":   p.brandName,
			"landing_page": "NO_PREFERENCE",
			"user_action":  "PAY_NOW",
			"return_url":   req.ReturnURL,
			"cancel_url":   req.CancelURL,
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Charge{}, fmt.Errorf("paypal: encode order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/v2/checkout/orders", bytes.NewReader(encoded))
	if err != nil {
		return Charge{}, fmt.Errorf("paypal: build order request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Charge{}, fmt.Errorf("paypal: create order: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := decodeOrFail(resp, &payload, "paypal: create order"); err != nil {
		return Charge{}, err
	}

	charge := Charge{ProviderOrderID: payload.ID}
	for _, link := range payload.Links {
		if link.Rel == "approve" {
			charge.RedirectURL = link.Href
			break
		}
	}
	if charge.ProviderOrderID == "" || charge.RedirectURL == "" {
		return Charge{}, errors.New("paypal: order response missing id or approve link")
	}
	return charge, nil
}

// CaptureOrder captures the gateway order after the buyer approved it. Only a
// COMPLETED capture counts as money received.
func (p *PayPalProvider) CaptureOrder(ctx context.Context, providerOrderID string) (Status, error) {
	if providerOrderID == "" {
		return StatusPending, errors.New("paypal: provider order id is required")
	}
	token, err := p.accessToken(ctx)
	if err != nil {
		return StatusPending, err
	}

	endpoint := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", p.apiBase, providerOrderID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return StatusPending, fmt.Errorf("paypal: build capture request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return StatusPending, fmt.Errorf("paypal: capture order: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeOrFail(resp, &payload, "paypal: capture order"); err != nil {
		return StatusPending, err
	}
	if payload.Status == "COMPLETED" {
		return StatusVerified, nil
	}
	return StatusPending, nil
}

func decodeOrFail(resp *http.Response, out any, op string) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s failed with status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
