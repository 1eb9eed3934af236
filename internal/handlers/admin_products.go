package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/digitalstore/api/internal/services"
)

// AdminProductHandlers exposes catalog management for the back office.
type AdminProductHandlers struct {
	admin *services.AdminService
}

// NewAdminProductHandlers constructs the admin product handlers.
func NewAdminProductHandlers(admin *services.AdminService) *AdminProductHandlers {
	return &AdminProductHandlers{admin: admin}
}

// Routes registers the admin product endpoints.
func (h *AdminProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.list)
	r.Post("/products", h.create)
	r.Post("/products/reorder", h.reorder)
	r.Get("/products/{productId}", h.get)
	r.Put("/products/{productId}", h.update)
	r.Delete("/products/{productId}", h.delete)
}

type productRequest struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceUSD    int64  `json:"priceUsd"`
	PricePEN    int64  `json:"pricePen"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	SortOrder   int    `json:"sortOrder"`
	InStock     bool   `json:"inStock"`
	IsActive    bool   `json:"isActive"`
}

func (req productRequest) toCommand() services.ProductCommand {
	return services.ProductCommand{
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		PriceUSD:    req.PriceUSD,
		PricePEN:    req.PricePEN,
		Image:       req.Image,
		Category:    req.Category,
		SortOrder:   req.SortOrder,
		InStock:     req.InStock,
		IsActive:    req.IsActive,
	}
}

func (h *AdminProductHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	products, err := h.admin.ListProducts(ctx)
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"products": toProductResponses(products)})
}

func (h *AdminProductHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	product, err := h.admin.GetProduct(ctx, chi.URLParam(r, "productId"))
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toProductResponse(product))
}

func (h *AdminProductHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req productRequest
	if !decodeAdminBody(ctx, w, r, &req) {
		return
	}
	product, err := h.admin.CreateProduct(ctx, req.toCommand())
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toProductResponse(product))
}

func (h *AdminProductHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req productRequest
	if !decodeAdminBody(ctx, w, r, &req) {
		return
	}
	product, err := h.admin.UpdateProduct(ctx, chi.URLParam(r, "productId"), req.toCommand())
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toProductResponse(product))
}

func (h *AdminProductHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.admin.DeleteProduct(ctx, chi.URLParam(r, "productId")); err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminProductHandlers) reorder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		ProductIDs []string `json:"productIds"`
	}
	if !decodeAdminBody(ctx, w, r, &req) {
		return
	}
	ids := make([]string, 0, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if err := h.admin.ReorderProducts(ctx, ids); err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "reordered"})
}
