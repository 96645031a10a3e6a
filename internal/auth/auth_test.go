package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)

	token, err := mgr.GenerateToken("svc-frontend")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	principal, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if principal.Subject != "svc-frontend" || principal.Method != "jwt" {
		t.Errorf("unexpected principal: %+v", principal)
	}
}

func TestJWTWrongKeyRejected(t *testing.T) {
	token, err := NewJWTManager("secret-a", time.Hour).GenerateToken("svc")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	_, err = NewJWTManager("secret-b", time.Hour).ValidateToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTExpiredRejected(t *testing.T) {
	mgr := NewJWTManager("test-secret", -time.Minute)
	token, err := mgr.GenerateToken("svc")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := mgr.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestExtractBearerToken(t *testing.T) {
	token, err := ExtractBearerToken("Bearer abc123")
	if err != nil || token != "abc123" {
		t.Fatalf("unexpected result: %q, %v", token, err)
	}
	if _, err := ExtractBearerToken("Basic abc123"); err == nil {
		t.Error("expected error for non-bearer header")
	}
	if _, err := ExtractBearerToken(""); err == nil {
		t.Error("expected error for empty header")
	}
}

func TestAPIKeyStoreValidate(t *testing.T) {
	hash, err := HashKey("dm_live_123")
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}
	store := NewAPIKeyStore(map[string]string{"frontend": hash})

	label, err := store.Validate("dm_live_123")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if label != "frontend" {
		t.Errorf("expected label frontend, got %s", label)
	}

	if _, err := store.Validate("wrong-key"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
	}
	if _, err := store.Validate(""); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey for empty key, got %v", err)
	}
}

func newTestMiddleware(t *testing.T, enabled bool) (*Middleware, string) {
	t.Helper()
	hash, err := HashKey("dm_test_key")
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}
	mw := NewMiddleware(
		NewJWTManager("test-secret", time.Hour),
		NewAPIKeyStore(map[string]string{"tester": hash}),
		enabled,
	)
	return mw, "dm_test_key"
}

func echoPrincipal(t *testing.T, captured **Principal) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok {
			t.Error("expected principal in context")
		}
		*captured = p
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	mw, _ := newTestMiddleware(t, false)

	var got *Principal
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	mw.Handler(echoPrincipal(t, &got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.Method != "anonymous" {
		t.Errorf("expected anonymous principal, got %+v", got)
	}
}

func TestMiddlewareRejectsMissingCredentials(t *testing.T) {
	mw, _ := newTestMiddleware(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error, got %s", ct)
	}
}

func TestMiddlewareAcceptsAPIKeyHeader(t *testing.T) {
	mw, key := newTestMiddleware(t, true)

	var got *Principal
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	req.Header.Set("X-API-Key", key)
	mw.Handler(echoPrincipal(t, &got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.Subject != "tester" || got.Method != "api_key" {
		t.Errorf("unexpected principal: %+v", got)
	}
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	mw, _ := newTestMiddleware(t, true)
	token, err := mw.jwtManager.GenerateToken("svc")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	var got *Principal
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	mw.Handler(echoPrincipal(t, &got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.Subject != "svc" || got.Method != "jwt" {
		t.Errorf("unexpected principal: %+v", got)
	}
}

func TestMiddlewareStreamQueryParam(t *testing.T) {
	mw, key := newTestMiddleware(t, true)

	var got *Principal
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stream/sse?query_id=q1&api_key="+key, nil)
	mw.Handler(echoPrincipal(t, &got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.Method != "api_key" {
		t.Errorf("unexpected principal: %+v", got)
	}

	// Query param credentials are not honored off the streaming paths.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/query?api_key="+key, nil)
	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	})).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 off stream path, got %d", rec.Code)
	}
}

func TestMiddlewareRejectsBadAPIKey(t *testing.T) {
	mw, _ := newTestMiddleware(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	req.Header.Set("X-API-Key", "not-a-key")
	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
