package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "unit-test-signing-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestAuthenticator(t *testing.T, opts ...Option) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(testSecret, opts...)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	return a
}

func TestVerifyExtractsIdentity(t *testing.T) {
	a := newTestAuthenticator(t)
	token := signToken(t, jwt.MapClaims{
		"sub":   "user-1",
		"email": "buyer@example.com",
		"role":  "authenticated",
		"app_metadata": map[string]any{
			"roles": []any{"admin"},
		},
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	identity, err := a.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.UID != "user-1" {
		t.Fatalf("uid = %q, want user-1", identity.UID)
	}
	if identity.Email != "buyer@example.com" {
		t.Fatalf("email = %q", identity.Email)
	}
	if !identity.HasRole("admin") {
		t.Fatalf("expected admin role, got %v", identity.Roles)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	a := newTestAuthenticator(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := token.SignedString([]byte("a-different-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := a.Verify(signed); err == nil {
		t.Fatal("expected verification failure")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a := newTestAuthenticator(t)
	token := signToken(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	if _, err := a.Verify(token); err == nil {
		t.Fatal("expected expiry failure")
	}
}

func TestRequireAuthRoleGate(t *testing.T) {
	a := newTestAuthenticator(t)

	cases := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{
			name:       "missing header",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong role",
			header: "Bearer " + signToken(t, jwt.MapClaims{
				"sub":  "user-2",
				"role": "authenticated",
				"exp":  time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "admin role",
			header: "Bearer " + signToken(t, jwt.MapClaims{
				"sub": "admin-1",
				"app_metadata": map[string]any{
					"roles": []any{"admin"},
				},
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handlerCalled := false
			handler := a.RequireAuth(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/admin/orders/delete", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus != http.StatusOK && handlerCalled {
				t.Fatal("handler must not run for rejected requests")
			}
		})
	}
}

func TestOptionalAuthAnonymousPassThrough(t *testing.T) {
	a := newTestAuthenticator(t)
	var sawIdentity bool
	handler := a.OptionalAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawIdentity = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/checkout/paypal", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if sawIdentity {
		t.Fatal("anonymous request must not carry an identity")
	}
}

func TestOptionalAuthRejectsForgedToken(t *testing.T) {
	a := newTestAuthenticator(t)
	handler := a.OptionalAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/checkout/paypal", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
