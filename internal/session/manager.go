package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/metrics"
)

const (
	defaultTTL         = 24 * time.Hour
	defaultMaxSessions = 10000

	// maxExchanges bounds the per-session history.
	maxExchanges = 50
)

// Manager handles session storage with an optional Redis backend. Without
// Redis it runs cache-only: sessions survive for the process lifetime but
// not across restarts.
type Manager struct {
	rdb    *redis.Client
	logger *zap.Logger
	ttl    time.Duration

	mu          sync.Mutex
	localCache  map[string]*Session
	cacheAccess map[string]time.Time
	maxSessions int
}

// NewManager creates a session manager. An empty redisAddr, or a Redis
// that does not answer the startup ping, degrades to cache-only mode.
func NewManager(redisAddr string, logger *zap.Logger) *Manager {
	m := &Manager{
		logger:      logger,
		ttl:         defaultTTL,
		localCache:  make(map[string]*Session),
		cacheAccess: make(map[string]time.Time),
		maxSessions: defaultMaxSessions,
	}

	if redisAddr == "" {
		logger.Info("Session manager running cache-only, no Redis configured")
		return m
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, session manager degrading to cache-only",
			zap.String("addr", redisAddr),
			zap.Error(err),
		)
		_ = rdb.Close()
		return m
	}

	m.rdb = rdb
	logger.Info("Session manager connected to Redis", zap.String("addr", redisAddr))
	return m
}

// GetOrCreate returns the session for sessionID, creating it if missing or
// expired. An empty sessionID gets a generated one.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID != "" {
		existing, err := m.Get(ctx, sessionID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExpired) {
			return nil, err
		}
	} else {
		sessionID = uuid.New().String()
	}

	now := time.Now()
	session := &Session{
		ID:        sessionID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		Exchanges: make([]Exchange, 0),
	}

	if err := m.save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.logger.Info("Created new session", zap.String("session_id", sessionID))
	metrics.SessionsCreated.Inc()

	return session, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	if session, ok := m.localCache[sessionID]; ok {
		m.cacheAccess[sessionID] = time.Now()
		m.mu.Unlock()
		metrics.SessionCacheHits.Inc()
		if session.IsExpired() {
			_ = m.Delete(ctx, sessionID)
			return nil, ErrSessionExpired
		}
		return session, nil
	}
	m.mu.Unlock()
	metrics.SessionCacheMisses.Inc()

	if m.rdb == nil {
		return nil, ErrSessionNotFound
	}

	data, err := m.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if session.IsExpired() {
		_ = m.Delete(ctx, sessionID)
		return nil, ErrSessionExpired
	}

	m.mu.Lock()
	m.localCache[sessionID] = &session
	m.cacheAccess[sessionID] = time.Now()
	m.evictLocked()
	metrics.SessionCacheSize.Set(float64(len(m.localCache)))
	m.mu.Unlock()

	return &session, nil
}

// AppendExchange records a completed query round trip on the session.
func (m *Manager) AppendExchange(ctx context.Context, sessionID string, ex Exchange) (*Session, error) {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	session.Exchanges = append(session.Exchanges, ex)
	if len(session.Exchanges) > maxExchanges {
		session.Exchanges = session.Exchanges[len(session.Exchanges)-maxExchanges:]
	}
	session.UpdatedAt = time.Now()
	session.ExpiresAt = session.UpdatedAt.Add(m.ttl)

	if err := m.save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// Update persists a modified session.
func (m *Manager) Update(ctx context.Context, session *Session) error {
	if session == nil {
		return fmt.Errorf("session is nil")
	}
	session.UpdatedAt = time.Now()
	if err := m.save(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session from Redis and the local cache.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if m.rdb != nil {
		if err := m.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	m.mu.Lock()
	delete(m.localCache, sessionID)
	delete(m.cacheAccess, sessionID)
	metrics.SessionCacheSize.Set(float64(len(m.localCache)))
	m.mu.Unlock()

	m.logger.Info("Deleted session", zap.String("session_id", sessionID))
	return nil
}

// CleanupExpired sweeps expired sessions from the local cache. Redis entries
// expire on their own via key TTLs.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleaned := 0
	for id, session := range m.localCache {
		if session.IsExpired() {
			delete(m.localCache, id)
			delete(m.cacheAccess, id)
			cleaned++
		}
	}
	if cleaned > 0 {
		metrics.SessionCacheSize.Set(float64(len(m.localCache)))
		m.logger.Info("Cleaned up expired sessions", zap.Int("count", cleaned))
	}
	return cleaned
}

// RedisClient returns the underlying Redis client for health checks.
// It is nil in cache-only mode.
func (m *Manager) RedisClient() *redis.Client {
	return m.rdb
}

// Close closes the session manager
func (m *Manager) Close() error {
	if m.rdb != nil {
		return m.rdb.Close()
	}
	return nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func (m *Manager) save(ctx context.Context, session *Session) error {
	if m.rdb != nil {
		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		ttl := time.Until(session.ExpiresAt)
		if ttl <= 0 {
			ttl = m.ttl
		}
		if err := m.rdb.Set(ctx, sessionKey(session.ID), data, ttl).Err(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.localCache[session.ID] = session
	m.cacheAccess[session.ID] = time.Now()
	m.evictLocked()
	metrics.SessionCacheSize.Set(float64(len(m.localCache)))
	m.mu.Unlock()

	return nil
}

// evictLocked removes the least recently used half of the cache once it
// grows past maxSessions. Caller must hold m.mu.
func (m *Manager) evictLocked() {
	if len(m.localCache) <= m.maxSessions {
		return
	}

	type accessEntry struct {
		id   string
		time time.Time
	}
	entries := make([]accessEntry, 0, len(m.localCache))
	for id := range m.localCache {
		entries = append(entries, accessEntry{id: id, time: m.cacheAccess[id]})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].time.Before(entries[j].time)
	})

	toRemove := m.maxSessions / 2
	if toRemove < 1 {
		toRemove = 1
	}
	for i := 0; i < toRemove && i < len(entries); i++ {
		delete(m.localCache, entries[i].id)
		delete(m.cacheAccess, entries[i].id)
		metrics.SessionCacheEvictions.Inc()
	}
}
