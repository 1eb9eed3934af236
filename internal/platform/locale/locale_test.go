package locale

import "testing"

func TestDetect(t *testing.T) {
	cases := []struct {
		name           string
		country        string
		acceptLanguage string
		wantLanguage   string
		wantCurrency   string
	}{
		{name: "peru gets spanish and soles", country: "PE", wantLanguage: "es", wantCurrency: "PEN"},
		{name: "mexico gets spanish and dollars", country: "MX", wantLanguage: "es", wantCurrency: "USD"},
		{name: "lowercase country code", country: "pe", wantLanguage: "es", wantCurrency: "PEN"},
		{name: "us defaults to english", country: "US", wantLanguage: "en", wantCurrency: "USD"},
		{name: "us with spanish browser", country: "US", acceptLanguage: "es-419,es;q=0.9,en;q=0.5", wantLanguage: "es", wantCurrency: "USD"},
		{name: "unknown country english browser", country: "DE", acceptLanguage: "de-DE,de;q=0.9,en;q=0.5", wantLanguage: "en", wantCurrency: "USD"},
		{name: "no hints at all", wantLanguage: "en", wantCurrency: "USD"},
		{name: "garbage accept language", country: "FR", acceptLanguage: ";;;", wantLanguage: "en", wantCurrency: "USD"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(tc.country, tc.acceptLanguage)
			if got.Language != tc.wantLanguage {
				t.Errorf("language = %q, want %q", got.Language, tc.wantLanguage)
			}
			if got.Currency != tc.wantCurrency {
				t.Errorf("currency = %q, want %q", got.Currency, tc.wantCurrency)
			}
		})
	}
}
