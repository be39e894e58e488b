package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/statements/OKA-1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_CustomerReadsStatements(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "OKA-1", "customer")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	var gotAccount string
	var gotRole Role
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = AccountNumberFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/statements/OKA-1?period=2025-12", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gotAccount != "OKA-1" || gotRole != RoleCustomer {
		t.Fatalf("unexpected identity %q %q", gotAccount, gotRole)
	}
}

func TestAuthMiddleware_CustomerForbiddenAdmin(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "OKA-1", "customer")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/sweep", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	handler := NewMiddleware([]byte("s"), NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)).Wrap(okHandler())
	for _, path := range []string{"/healthz", "/metrics"} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	token := mustToken(t, []byte("other"), "OKA-1", "customer")
	handler := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil)).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/OKA-1/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestParseJWT_CustomerNeedsAccount(t *testing.T) {
	secret := []byte("test-secret")
	if _, err := ParseJWT(mustToken(t, secret, "", "customer"), secret); err == nil {
		t.Fatal("expected error for customer token without account")
	}
	if _, err := ParseJWT(mustToken(t, secret, "", "staff"), secret); err != nil {
		t.Fatalf("staff token: %v", err)
	}
	if _, err := ParseJWT(mustToken(t, secret, "OKA-1", "superuser"), secret); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestOwnerOrStaff(t *testing.T) {
	var authz AccountAuthorizer = OwnerOrStaff{}
	customer := WithIdentity(context.Background(), "OKA-1", RoleCustomer, "u1")
	staff := WithIdentity(context.Background(), "", RoleStaff, "u2")

	if err := authz.AuthorizeAccount(customer, "OKA-1"); err != nil {
		t.Fatalf("own account: %v", err)
	}
	if err := authz.AuthorizeAccount(customer, "OKA-2"); !errors.Is(err, ErrAccountForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := authz.AuthorizeAccount(staff, "OKA-2"); err != nil {
		t.Fatalf("staff: %v", err)
	}
	if err := authz.AuthorizeAccount(context.Background(), "OKA-1"); !errors.Is(err, ErrAccountForbidden) {
		t.Fatalf("anonymous: expected forbidden, got %v", err)
	}
}

func mustToken(t *testing.T, secret []byte, accountNumber, role string) string {
	t.Helper()
	claims := Claims{
		AccountNumber: accountNumber,
		Role:          role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
