// Package locale resolves the language and display currency for a visitor
// from the edge-provided country header and the Accept-Language header.
package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Preference is the resolved locale for a storefront visitor.
type Preference struct {
	Language string `json:"language"`
	Currency string `json:"currency"`
	Country  string `json:"country,omitempty"`
}

const (
	// LanguageSpanish is served to Latin American visitors.
	LanguageSpanish = "es"
	// LanguageEnglish is the fallback for everyone else.
	LanguageEnglish = "en"

	currencyPEN = "PEN"
	currencyUSD = "USD"
)

// spanishSpeakingCountries lists the ISO 3166-1 alpha-2 codes that default to
// the Spanish storefront regardless of browser language.
var spanishSpeakingCountries = map[string]struct{}{
	"PE": {}, "MX": {}, "AR": {}, "CO": {}, "CL": {}, "EC": {}, "BO": {},
	"VE": {}, "UY": {}, "PY": {}, "GT": {}, "HN": {}, "SV": {}, "NI": {},
	"CR": {}, "PA": {}, "DO": {}, "CU": {}, "ES": {},
}

var matcher = language.NewMatcher([]language.Tag{
	language.English, // first tag is the fallback
	language.Spanish,
})

// Detect resolves the visitor's locale. The country code wins when it is a
// Spanish-speaking one; otherwise the Accept-Language header decides. Only
// Peru gets PEN pricing, every other visitor sees USD.
func Detect(countryCode, acceptLanguage string) Preference {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))

	pref := Preference{
		Language: LanguageEnglish,
		Currency: currencyUSD,
		Country:  countryCode,
	}
	if countryCode == "PE" {
		pref.Currency = currencyPEN
	}

	if _, ok := spanishSpeakingCountries[countryCode]; ok {
		pref.Language = LanguageSpanish
		return pref
	}

	if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
		if tag, _, conf := matcher.Match(tags...); conf > language.No {
			if base, _ := tag.Base(); base.String() == LanguageSpanish {
				pref.Language = LanguageSpanish
			}
		}
	}
	return pref
}
