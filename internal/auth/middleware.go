package auth

import (
	"net/http"
	"strings"
)

// Middleware authenticates HTTP requests. When disabled every request runs
// as an anonymous principal, matching deployments with no auth configured.
type Middleware struct {
	jwtManager *JWTManager
	keys       *APIKeyStore
	enabled    bool
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(jwtManager *JWTManager, keys *APIKeyStore, enabled bool) *Middleware {
	return &Middleware{
		jwtManager: jwtManager,
		keys:       keys,
		enabled:    enabled,
	}
}

// Handler wraps next with request authentication.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), &Principal{
				Subject: "anonymous",
				Method:  "anonymous",
			})))
			return
		}

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			token, err := ExtractBearerToken(authHeader)
			if err != nil {
				unauthorized(w, "Invalid authorization header")
				return
			}
			principal, err := m.jwtManager.ValidateToken(token)
			if err != nil {
				unauthorized(w, "Invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
			return
		}

		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
			m.serveWithAPIKey(w, r, next, apiKey)
			return
		}

		// Browser EventSource cannot send custom headers, so streaming
		// endpoints accept the key as a query parameter.
		if strings.Contains(r.URL.Path, "/stream/") {
			if apiKey := r.URL.Query().Get("api_key"); apiKey != "" {
				m.serveWithAPIKey(w, r, next, apiKey)
				return
			}
		}

		unauthorized(w, "Authentication required")
	})
}

func (m *Middleware) serveWithAPIKey(w http.ResponseWriter, r *http.Request, next http.Handler, apiKey string) {
	label, err := m.keys.Validate(apiKey)
	if err != nil {
		unauthorized(w, "Invalid API key")
		return
	}
	next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), &Principal{
		Subject: label,
		Method:  "api_key",
	})))
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
