package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newPayPalTestServer(t *testing.T, captureStatus string, created *map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "token-123"})
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if created != nil {
			_ = json.NewDecoder(r.Body).Decode(created)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "PAYPAL-ORDER-1",
			"links": []map[string]string{
				{"rel": "self", "href": "https://example.test/self"},
				{"rel": "approve", "href": "https://example.test/approve"},
			},
		})
	})
	mux.HandleFunc("/v2/checkout/orders/PAYPAL-ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": captureStatus})
	})
	return httptest.NewServer(mux)
}

func TestPayPalCreateChargeConvertsSolesAndExtractsApproveLink(t *testing.T) {
	var created map[string]any
	server := newPayPalTestServer(t, "COMPLETED", &created)
	defer server.Close()

	provider, err := NewPayPalProvider(PayPalConfig{
		APIBase:      server.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		PENPerUSD:    3.75,
		BrandName:    "Digital Store",
		HTTPClient:   server.Client(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	charge, err := provider.CreateCharge(context.Background(), ChargeRequest{
		OrderID:     "order-1",
		OrderNumber: "DST-20250301-0001",
		Amount:      7500, // S/ 75.00 -> $20.00
		Currency:    "PEN",
		Description: "Digital Store - Order DST-20250301-0001",
		ReturnURL:   "https://store.test/payment?status=success",
		CancelURL:   "https://store.test/payment",
	})
	if err != nil {
		t.Fatalf("create charge: %v", err)
	}
	if charge.ProviderOrderID != "PAYPAL-ORDER-1" {
		t.Errorf("provider order id = %q", charge.ProviderOrderID)
	}
	if charge.RedirectURL != "https://example.test/approve" {
		t.Errorf("redirect url = %q", charge.RedirectURL)
	}

	units, _ := created["purchase_units"].([]any)
	if len(units) != 1 {
		t.Fatalf("purchase units = %v", created["purchase_units"])
	}
	unit := units[0].(map[string]any)
	if got := unit["reference_id"]; got != "DST-20250301-0001" {
		t.Errorf("reference_id = %v", got)
	}
	amount := unit["amount"].(map[string]any)
	if got := amount["value"]; got != "20.00" {
		t.Errorf("amount value = %v, want 20.00", got)
	}
	if got := amount["currency_code"]; got != "USD" {
		t.Errorf("currency_code = %v, want USD", got)
	}
}

func TestPayPalCaptureOrder(t *testing.T) {
	cases := []struct {
		name          string
		captureStatus string
		want          Status
	}{
		{name: "completed capture verifies", captureStatus: "COMPLETED", want: StatusVerified},
		{name: "pending capture stays pending", captureStatus: "PENDING", want: StatusPending},
		{name: "declined capture stays pending", captureStatus: "DECLINED", want: StatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := newPayPalTestServer(t, tc.captureStatus, nil)
			defer server.Close()

			provider, err := NewPayPalProvider(PayPalConfig{
				APIBase:      server.URL,
				ClientID:     "client-id",
				ClientSecret: "client-secret",
				PENPerUSD:    3.75,
				HTTPClient:   server.Client(),
			})
			if err != nil {
				t.Fatalf("new provider: %v", err)
			}

			status, err := provider.CaptureOrder(context.Background(), "PAYPAL-ORDER-1")
			if err != nil {
				t.Fatalf("capture: %v", err)
			}
			if status != tc.want {
				t.Errorf("status = %q, want %q", status, tc.want)
			}
		})
	}
}
