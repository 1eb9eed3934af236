package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digitalstore/api/internal/platform/locale"
)

// Country headers consulted in order: the CDN-injected geo header first, then
// an explicit client override.
var countryHeaders = []string{"CF-IPCountry", "X-Country-Code"}

// LocaleHandlers resolves the buyer's language and currency preference.
type LocaleHandlers struct{}

// NewLocaleHandlers constructs the locale handlers.
func NewLocaleHandlers() *LocaleHandlers {
	return &LocaleHandlers{}
}

// Routes registers the locale endpoint.
func (h *LocaleHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/locale", h.detect)
}

type localeResponse struct {
	Language string `json:"language"`
	Currency string `json:"currency"`
	Country  string `json:"country,omitempty"`
}

func (h *LocaleHandlers) detect(w http.ResponseWriter, r *http.Request) {
	var country string
	for _, header := range countryHeaders {
		if value := r.Header.Get(header); value != "" {
			country = value
			break
		}
	}

	pref := locale.Detect(country, r.Header.Get("Accept-Language"))
	writeJSONResponse(w, http.StatusOK, localeResponse{
		Language: pref.Language,
		Currency: pref.Currency,
		Country:  pref.Country,
	})
}
