package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/digitalstore/api/internal/services"
)

// AdminUserHandlers exposes buyer account maintenance for the back office.
type AdminUserHandlers struct {
	admin *services.AdminService
}

// NewAdminUserHandlers constructs the admin user handlers.
func NewAdminUserHandlers(admin *services.AdminService) *AdminUserHandlers {
	return &AdminUserHandlers{admin: admin}
}

// Routes registers the admin user endpoints.
func (h *AdminUserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/users/delete", h.deleteUser)
}

func (h *AdminUserHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		UserID string `json:"userId"`
	}
	if !decodeAdminBody(ctx, w, r, &req) {
		return
	}

	if err := h.admin.DeleteAccount(ctx, strings.TrimSpace(req.UserID)); err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}
