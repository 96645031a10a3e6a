package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/auth"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/config"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/metrics"
)

const (
	maxTrackedClients = 4096
	clientIdleTTL     = 10 * time.Minute
)

// rateLimiter throttles requests per client. With Redis it uses a
// fixed one-minute INCR window shared across instances; without Redis,
// a per-client token bucket kept in process.
type rateLimiter struct {
	cfg    config.RateLimitConfig
	redis  *redis.Client
	logger *zap.Logger

	mu    sync.Mutex
	local map[string]*localClient
}

type localClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, logger *zap.Logger) *rateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &rateLimiter{
		cfg:    cfg,
		redis:  rdb,
		logger: logger,
		local:  make(map[string]*localClient),
	}
}

// Middleware enforces the limit and sets the X-RateLimit headers.
func (rl *rateLimiter) Middleware(next http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.clientKey(r)

		var (
			allowed   bool
			remaining int
			resetAt   time.Time
			backend   string
		)
		if rl.redis != nil {
			allowed, remaining, resetAt = rl.checkRedis(r.Context(), key)
			backend = "redis"
		} else {
			allowed, remaining, resetAt = rl.checkLocal(key)
			backend = "local"
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.cfg.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))

		if !allowed {
			metrics.RateLimitRejections.WithLabelValues(backend).Inc()
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client", key),
				zap.String("path", r.URL.Path),
				zap.String("backend", backend),
			)
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller: the authenticated principal when
// there is one, the client IP otherwise.
func (rl *rateLimiter) clientKey(r *http.Request) string {
	if p, ok := auth.GetPrincipal(r.Context()); ok && p.Method != "anonymous" {
		return p.Method + ":" + p.Subject
	}
	return "ip:" + clientIP(r)
}

// checkRedis runs the fixed-window counter. Redis errors fail open so
// a broken Redis never blocks traffic.
func (rl *rateLimiter) checkRedis(ctx context.Context, key string) (bool, int, time.Time) {
	window := time.Now().Truncate(time.Minute)
	resetAt := window.Add(time.Minute)
	windowKey := fmt.Sprintf("ratelimit:%s:%d", key, window.Unix())

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, time.Minute+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Error("Rate limit check failed", zap.Error(err))
		return true, rl.cfg.RequestsPerMinute, resetAt
	}

	count := int(incr.Val())
	remaining := rl.cfg.RequestsPerMinute - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.cfg.RequestsPerMinute, remaining, resetAt
}

// checkLocal runs the in-process token bucket for one client.
func (rl *rateLimiter) checkLocal(key string) (bool, int, time.Time) {
	now := time.Now()

	rl.mu.Lock()
	client, ok := rl.local[key]
	if !ok {
		if len(rl.local) >= maxTrackedClients {
			rl.evictIdleLocked(now)
		}
		perSecond := rate.Limit(float64(rl.cfg.RequestsPerMinute) / 60.0)
		client = &localClient{limiter: rate.NewLimiter(perSecond, rl.cfg.Burst)}
		rl.local[key] = client
	}
	client.lastSeen = now
	limiter := client.limiter
	rl.mu.Unlock()

	allowed := limiter.Allow()
	remaining := int(limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining, now.Add(time.Minute)
}

// evictIdleLocked drops clients not seen recently; when everything is
// recent the oldest goes anyway so the map stays bounded.
func (rl *rateLimiter) evictIdleLocked(now time.Time) {
	var (
		oldestKey  string
		oldestSeen time.Time
	)
	for key, client := range rl.local {
		if now.Sub(client.lastSeen) > clientIdleTTL {
			delete(rl.local, key)
			continue
		}
		if oldestKey == "" || client.lastSeen.Before(oldestSeen) {
			oldestKey = key
			oldestSeen = client.lastSeen
		}
	}
	if len(rl.local) >= maxTrackedClients && oldestKey != "" {
		delete(rl.local, oldestKey)
	}
}
