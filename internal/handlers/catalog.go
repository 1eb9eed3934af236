package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digitalstore/api/internal/domain"
	"github.com/digitalstore/api/internal/platform/httpx"
	"github.com/digitalstore/api/internal/services"
)

// CatalogHandlers serves the public product listing.
type CatalogHandlers struct {
	catalog *services.CatalogService
}

// NewCatalogHandlers constructs the catalog handlers.
func NewCatalogHandlers(catalog *services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes registers the public catalog endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
}

type productResponse struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	PriceUSD    int64  `json:"priceUsd"`
	PricePEN    int64  `json:"pricePen"`
	Image       string `json:"image,omitempty"`
	Category    string `json:"category,omitempty"`
	SortOrder   int    `json:"sortOrder"`
	InStock     bool   `json:"inStock"`
	IsActive    bool   `json:"isActive"`
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	products, err := h.catalog.ActiveProducts(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unable to load products", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"products": toProductResponses(products)})
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Slug:        p.Slug,
		Title:       p.Title,
		Description: p.Description,
		PriceUSD:    p.PriceUSD,
		PricePEN:    p.PricePEN,
		Image:       p.Image,
		Category:    p.Category,
		SortOrder:   p.SortOrder,
		InStock:     p.InStock,
		IsActive:    p.IsActive,
	}
}

func toProductResponses(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}
