package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func withTestTokens(t *testing.T, secret string) {
	t.Helper()
	originalSecret, originalTTL := tokenSecret, tokenTTL
	ConfigureTokens(secret, time.Hour)
	t.Cleanup(func() {
		tokenSecret, tokenTTL = originalSecret, originalTTL
	})
}

func TestIssueAndParseBearerToken(t *testing.T) {
	withTestTokens(t, "test-secret")

	signed, expires, err := issueToken(9, "owner@example.com", time.Now())
	if err != nil {
		t.Fatalf("issueToken returned error: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expected expiry in the future, got %v", expires)
	}

	id, err := parseBearerToken("Bearer " + signed)
	if err != nil {
		t.Fatalf("parseBearerToken returned error: %v", err)
	}
	if id != 9 {
		t.Fatalf("expected user id 9, got %d", id)
	}
}

func TestParseBearerTokenRejectsInvalidTokens(t *testing.T) {
	withTestTokens(t, "test-secret")

	expired, _, err := issueToken(9, "owner@example.com", time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("issueToken returned error: %v", err)
	}

	tests := map[string]string{
		"expired":      "Bearer " + expired,
		"wrong scheme": "Basic abc",
		"garbage":      "Bearer not-a-token",
		"missing":      "Bearer",
	}
	for name, header := range tests {
		if _, err := parseBearerToken(header); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	ConfigureTokens("other-secret", time.Hour)
	valid, _, _ := issueToken(9, "owner@example.com", time.Now())
	ConfigureTokens("test-secret", time.Hour)
	if _, err := parseBearerToken("Bearer " + valid); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestTokensDisabledWithoutSecret(t *testing.T) {
	withTestTokens(t, "  ")

	if _, _, err := issueToken(1, "a@b.c", time.Now()); err != errTokensDisabled {
		t.Fatalf("expected errTokensDisabled, got %v", err)
	}
	if _, err := parseBearerToken("Bearer x"); err != errTokensDisabled {
		t.Fatalf("expected errTokensDisabled, got %v", err)
	}
}

func TestIssueTokenHandler(t *testing.T) {
	withTestTokens(t, "test-secret")
	_, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	seed := httptest.NewRequest(http.MethodPost, "/signup", nil)
	user, err := createUser(seed, "owner@example.com", "Owner", "Shop", "password123")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	w := httptest.NewRecorder()
	IssueToken(w, httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{"email":"owner@example.com","password":"password123"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	id, err := parseBearerToken("Bearer " + resp.Token)
	if err != nil || id != user.ID {
		t.Fatalf("expected token for user %d, got %d (err=%v)", user.ID, id, err)
	}

	w = httptest.NewRecorder()
	IssueToken(w, httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{"email":"owner@example.com","password":"wrong"}`)))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}
}

func TestRequireAuthenticationAcceptsBearerToken(t *testing.T) {
	withTestTokens(t, "test-secret")
	sm, cleanup := withTestSessionManager(t)
	t.Cleanup(cleanup)

	signed, _, err := issueToken(12, "owner@example.com", time.Now())
	if err != nil {
		t.Fatalf("issueToken returned error: %v", err)
	}

	var seen uint
	handler := sm.LoadAndSave(RequireAuthentication(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = currentUserID(r)
	})))

	req := httptest.NewRequest(http.MethodGet, "/app/api/sales", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if seen != 12 {
		t.Fatalf("expected bearer user 12, got %d", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/app/api/sales", nil)
	req.Header.Set("Authorization", "Bearer broken")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", w.Code)
	}
}
