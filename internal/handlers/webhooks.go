package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/digitalstore/api/internal/domain"
	"github.com/digitalstore/api/internal/payments"
	"github.com/digitalstore/api/internal/platform/httpx"
	"github.com/digitalstore/api/internal/platform/requestctx"
	"github.com/digitalstore/api/internal/services"
)

const maxWebhookBody = 64 * 1024

// Signature header names used by each provider's webhook delivery.
const (
	cryptomusSignatureHeader = "sign"
	whopSignatureHeader      = "x-whop-signature"
)

// WebhookHandlers receives provider payment callbacks.
type WebhookHandlers struct {
	checkout *services.CheckoutService
}

// NewWebhookHandlers constructs the webhook handlers.
func NewWebhookHandlers(checkout *services.CheckoutService) *WebhookHandlers {
	return &WebhookHandlers{checkout: checkout}
}

// Routes registers the webhook endpoints under the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/cryptomus", h.handle(domain.PaymentMethodCryptomus, cryptomusSignatureHeader))
	r.Post("/whop", h.handle(domain.PaymentMethodWhop, whopSignatureHeader))
}

func (h *WebhookHandlers) handle(method domain.PaymentMethod, signatureHeader string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read webhook body", http.StatusBadRequest))
			return
		}

		err = h.checkout.ConfirmPayment(ctx, string(method), body, r.Header.Get(signatureHeader))
		switch {
		case err == nil:
			writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
		case errors.Is(err, payments.ErrBadSignature):
			requestctx.Logger(ctx).Warn("webhook signature rejected",
				zap.String("method", string(method)),
				zap.String("remote", r.RemoteAddr))
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusUnauthorized))
		case errors.Is(err, services.ErrOrderNotFound):
			httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		case errors.Is(err, services.ErrCheckoutInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "webhook payload malformed", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("internal_error", "webhook processing failed", http.StatusInternalServerError))
		}
	}
}
