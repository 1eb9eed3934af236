package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/digitalstore/api/internal/domain"
	"github.com/digitalstore/api/internal/platform/httpx"
	"github.com/digitalstore/api/internal/services"
)

const maxAdminRequestBody = 256 * 1024

// AdminOrderHandlers exposes the back-office order operations. The router
// mounts these behind admin-role authentication.
type AdminOrderHandlers struct {
	admin *services.AdminService
}

// NewAdminOrderHandlers constructs the admin order handlers.
func NewAdminOrderHandlers(admin *services.AdminService) *AdminOrderHandlers {
	return &AdminOrderHandlers{admin: admin}
}

// Routes registers the admin order endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders/delete", h.deleteOrders)
	r.Post("/orders/status", h.updateStatus)
	r.Post("/orders/deliver", h.deliver)
	r.Post("/orders/transfer", h.transfer)
}

func (h *AdminOrderHandlers) deleteOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		OrderIDs []string `json:"orderIds"`
	}
	if !decodeAdminBody(ctx, w, r, &req) {
		return
	}

	deleted, err := h.admin.DeleteOrders(ctx, req.OrderIDs)
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		OrderID       string `json:"orderId"`
		Status        string `json:"status"`
		PaymentStatus string `json:"paymentStatus"`
	}
	if !decodeAdminBody(ctx, w, r, &req) {
		return
	}

	cmd := services.UpdateOrderStatusCommand{OrderID: strings.TrimSpace(req.OrderID)}
	if req.Status != "" {
		status := domain.OrderStatus(req.Status)
		cmd.Status = &status
	}
	if req.PaymentStatus != "" {
		payment := domain.PaymentStatus(req.PaymentStatus)
		cmd.PaymentStatus = &payment
	}

	order, err := h.admin.UpdateOrderStatus(ctx, cmd)
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"orderId":       order.ID,
		"status":        order.Status,
		"paymentStatus": order.PaymentStatus,
	})
}

func (h *AdminOrderHandlers) deliver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		OrderID  string          `json:"orderId"`
		Delivery json.RawMessage `json:"delivery"`
	}
	if !decodeAdminBody(ctx, w, r, &req) {
		return
	}

	if err := h.admin.DeliverOrder(ctx, strings.TrimSpace(req.OrderID), req.Delivery); err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "delivered"})
}

func (h *AdminOrderHandlers) transfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		OrderID     string `json:"orderId"`
		TargetEmail string `json:"targetEmail"`
	}
	if !decodeAdminBody(ctx, w, r, &req) {
		return
	}

	result, err := h.admin.TransferOrder(ctx, strings.TrimSpace(req.OrderID), req.TargetEmail)
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"orderId":     result.OrderID,
		"orderNumber": result.OrderNumber,
		"userId":      result.TargetID,
		"email":       result.TargetEmail,
	})
}

func decodeAdminBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := readLimitedBody(r, maxAdminRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func writeAdminError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAdminInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAdminUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "no account matches that email", http.StatusNotFound))
	case errors.Is(err, services.ErrAdminNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	case errors.Is(err, services.ErrAdminConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "admin operation failed", http.StatusInternalServerError))
	}
}
