package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/digitalstore/api/internal/domain"
	"github.com/digitalstore/api/internal/platform/auth"
	"github.com/digitalstore/api/internal/platform/httpx"
	"github.com/digitalstore/api/internal/services"
)

const (
	maxCheckoutRequestBody = 32 * 1024
	maxProofUploadSize     = 5 * 1024 * 1024
	maxManualFormSize      = maxProofUploadSize + maxCheckoutRequestBody
)

// CheckoutHandlers exposes the checkout endpoints. Guests may check out;
// an authenticated identity, when present, is attached to the order.
type CheckoutHandlers struct {
	checkout *services.CheckoutService
	// storefrontURL is where browser redirects land after a capture attempt.
	storefrontURL string
}

// NewCheckoutHandlers constructs the checkout handlers.
func NewCheckoutHandlers(checkout *services.CheckoutService, storefrontURL string) *CheckoutHandlers {
	return &CheckoutHandlers{
		checkout:      checkout,
		storefrontURL: strings.TrimRight(storefrontURL, "/"),
	}
}

// Routes registers the checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/checkout/manual", h.submitManualProof)
	r.Post("/checkout/{method}", h.beginCheckout)
}

// CaptureRoutes registers the browser-facing payment return endpoints.
func (h *CheckoutHandlers) CaptureRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/payments/paypal/capture", h.capturePayPal)
}

type checkoutItemRequest struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

type checkoutRequest struct {
	Customer struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"customer"`
	UserID   string                `json:"userId"`
	Items    []checkoutItemRequest `json:"items"`
	Subtotal int64                 `json:"subtotal"`
	Discount int64                 `json:"discount"`
	Total    int64                 `json:"total"`
	Currency string                `json:"currency"`
}

type checkoutResponse struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

func (h *CheckoutHandlers) beginCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	method := strings.ToLower(chi.URLParam(r, "method"))

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := req.toCommand(ctx, method)
	result, err := h.checkout.BeginCheckout(ctx, cmd)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		OrderID:     result.OrderID,
		OrderNumber: result.OrderNumber,
		RedirectURL: result.RedirectURL,
	})
}

func (h *CheckoutHandlers) submitManualProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxManualFormSize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request must be multipart form data", http.StatusBadRequest))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	var req checkoutRequest
	if raw := r.FormValue("customer"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Customer); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "customer field must be valid JSON", http.StatusBadRequest))
			return
		}
	}
	if raw := r.FormValue("items"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Items); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "items field must be valid JSON", http.StatusBadRequest))
			return
		}
	}
	req.UserID = r.FormValue("userId")
	req.Currency = r.FormValue("currency")
	req.Subtotal = formInt64(r, "subtotal")
	req.Discount = formInt64(r, "discount")
	req.Total = formInt64(r, "total")

	proof, header, err := formFile(r, "screenshot")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "screenshot file is required", http.StatusBadRequest))
		return
	}
	defer proof.Close()

	data, err := io.ReadAll(io.LimitReader(proof, maxProofUploadSize+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read screenshot", http.StatusBadRequest))
		return
	}
	if int64(len(data)) > maxProofUploadSize {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "screenshot exceeds size limit", http.StatusRequestEntityTooLarge))
		return
	}

	cmd := services.ManualProofCommand{
		BeginCheckoutCommand: req.toCommand(ctx, r.FormValue("paymentMethod")),
		ReferenceCode:        r.FormValue("referenceCode"),
		ProofFilename:        header.Filename,
		ProofMIME:            header.Header.Get("Content-Type"),
		Proof:                data,
	}
	result, err := h.checkout.SubmitManualProof(ctx, cmd)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		OrderID:     result.OrderID,
		OrderNumber: result.OrderNumber,
	})
}

// capturePayPal finalises the redirect flow. PayPal sends the buyer's browser
// here with token (the provider order id) and our orderId; the outcome is
// rendered by the storefront payment page we redirect to.
func (h *CheckoutHandlers) capturePayPal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := r.URL.Query().Get("orderId")
	token := r.URL.Query().Get("token")

	err := h.checkout.CaptureRedirect(ctx, string(domain.PaymentMethodPayPal), orderID, token)
	status := "success"
	if err != nil {
		status = "error"
	}

	q := url.Values{}
	q.Set("status", status)
	if orderID != "" {
		q.Set("orderId", orderID)
	}
	http.Redirect(w, r, h.storefrontURL+"/payment?"+q.Encode(), http.StatusFound)
}

func (req checkoutRequest) toCommand(ctx context.Context, method string) services.BeginCheckoutCommand {
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	cmd := services.BeginCheckoutCommand{
		Method:        domain.PaymentMethod(strings.ToLower(strings.TrimSpace(method))),
		CustomerEmail: req.Customer.Email,
		CustomerName:  req.Customer.Name,
		CustomerPhone: req.Customer.Phone,
		UserIDHint:    req.UserID,
		Items:         items,
		Subtotal:      req.Subtotal,
		Discount:      req.Discount,
		Total:         req.Total,
		Currency:      strings.ToUpper(strings.TrimSpace(req.Currency)),
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		cmd.AuthenticatedUserID = identity.UID
	}
	return cmd
}

// formInt64 parses a minor-unit amount field; malformed values become zero and
// fail the monetary invariant downstream.
func formInt64(r *http.Request, field string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(r.FormValue(field)), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	return file, header, nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutProviderFailed):
		httpx.WriteError(ctx, w, httpx.NewError("provider_unavailable", "payment provider rejected the request", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "checkout failed", http.StatusInternalServerError))
	}
}
