// Package httpapi is the HTTP surface of the DualMind API service:
// query processing, PDF parsing, the tool catalog, sessions, history,
// health, and the event streams.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/auth"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/config"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/health"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/history"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/planner"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/session"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/streaming"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/tools"
)

// Deps are the collaborators the server needs. History and Redis are
// optional; a nil history store disables the history endpoints and a
// nil Redis client switches rate limiting to the in-process limiter.
type Deps struct {
	Planner  *planner.Client
	Sessions *session.Manager
	History  *history.Store
	Catalog  *tools.Catalog
	Events   *streaming.Manager
	Health   *health.Registry
	Redis    *redis.Client
}

// Server wires handlers and middleware into one http.Handler.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	planner  *planner.Client
	sessions *session.Manager
	hist     *history.Store
	catalog  *tools.Catalog
	events   *streaming.Manager
	checks   *health.Registry
	auth     *auth.Middleware
	limiter  *rateLimiter
}

func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		planner:  deps.Planner,
		sessions: deps.Sessions,
		hist:     deps.History,
		catalog:  deps.Catalog,
		events:   deps.Events,
		checks:   deps.Health,
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	keys := auth.NewAPIKeyStore(cfg.Auth.APIKeys)
	s.auth = auth.NewMiddleware(jwtManager, keys, cfg.Auth.Enabled)

	s.limiter = newRateLimiter(cfg.RateLimit, deps.Redis, logger)
	return s
}

// Handler builds the routed handler with the full middleware chain:
// recovery, request logging and CORS wrap every route; auth and rate
// limiting apply per route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints stay open so probes work without credentials.
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/health/detailed", s.handleHealthDetailed)

	mux.Handle("POST /api/query",
		s.auth.Handler(s.limiter.Middleware(http.HandlerFunc(s.handleQuery))))
	mux.Handle("POST /api/parse-pdf",
		s.auth.Handler(s.limiter.Middleware(http.HandlerFunc(s.handleParsePDF))))
	mux.Handle("GET /api/tools",
		s.auth.Handler(s.limiter.Middleware(http.HandlerFunc(s.handleTools))))

	mux.Handle("GET /api/history",
		s.auth.Handler(s.limiter.Middleware(http.HandlerFunc(s.handleHistory))))
	mux.Handle("GET /api/history/{id}",
		s.auth.Handler(s.limiter.Middleware(http.HandlerFunc(s.handleHistoryRecord))))
	mux.Handle("GET /api/sessions/{id}",
		s.auth.Handler(s.limiter.Middleware(http.HandlerFunc(s.handleSession))))

	// Long-lived streams skip the rate limiter; one poll-free
	// connection replaces what would otherwise be constant polling.
	mux.Handle("GET /api/stream/sse", s.auth.Handler(http.HandlerFunc(s.handleSSE)))
	mux.Handle("GET /api/stream/ws", s.auth.Handler(http.HandlerFunc(s.handleWS)))

	// Generated charts and documents.
	mux.Handle("GET /static/",
		http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.Service.StaticDir))))

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}

// sendJSON writes a JSON response body with the given status code.
func (s *Server) sendJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

// sendError writes a JSON error response.
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
