// Package history persists completed query round trips for later retrieval.
// Writes are queued and flushed by background workers so the request path
// never blocks on the database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/metrics"
)

// ErrNotFound is returned when no history record matches the query ID.
var ErrNotFound = errors.New("history record not found")

const (
	defaultQueueSize = 512
	defaultWorkers   = 4

	writeTimeout = 5 * time.Second
	drainTimeout = 10 * time.Second
)

// Record is one persisted query execution.
type Record struct {
	ID          uuid.UUID `db:"id" json:"id"`
	QueryID     string    `db:"query_id" json:"query_id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	Query       string    `db:"query" json:"query"`
	FinalAnswer string    `db:"final_answer" json:"final_answer"`
	Summary     string    `db:"summary" json:"summary"`
	Status      string    `db:"status" json:"status"`
	SourceCount int       `db:"source_count" json:"source_count"`
	DurationMs  int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Store writes and reads query history.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger

	queue    chan Record
	stopCh   chan struct{}
	workerWg sync.WaitGroup
	pending  sync.WaitGroup
	workers  int
}

// Open connects to Postgres and configures the connection pool.
func Open(dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("History database connected")
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS query_history (
	id TEXT PRIMARY KEY,
	query_id TEXT NOT NULL UNIQUE,
	session_id TEXT NOT NULL DEFAULT '',
	query TEXT NOT NULL,
	final_answer TEXT NOT NULL,
	summary TEXT NOT NULL,
	status TEXT NOT NULL,
	source_count INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_query_history_session
	ON query_history (session_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_query_history_created
	ON query_history (created_at DESC);
`

// EnsureSchema creates the history table if it does not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure history schema: %w", err)
	}
	return nil
}

// NewStore creates a history store and starts its write workers.
func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	s := &Store{
		db:      db,
		logger:  logger,
		queue:   make(chan Record, defaultQueueSize),
		stopCh:  make(chan struct{}),
		workers: defaultWorkers,
	}
	for i := 0; i < s.workers; i++ {
		s.workerWg.Add(1)
		go s.writeWorker(i)
	}
	return s
}

// Enqueue queues a record for async persistence. When the queue stays full
// after a few retries the record is dropped and counted.
func (s *Store) Enqueue(rec Record) {
	const maxRetries = 3
	const retryDelay = 10 * time.Millisecond

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	s.pending.Add(1)
	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case s.queue <- rec:
			metrics.HistoryQueueDepth.Set(float64(len(s.queue)))
			return
		default:
			if attempt < maxRetries-1 {
				time.Sleep(retryDelay)
			}
		}
	}

	s.pending.Done()
	metrics.HistoryWritesDropped.Inc()
	s.logger.Warn("History queue full, dropping record",
		zap.String("query_id", rec.QueryID))
}

func (s *Store) writeWorker(id int) {
	defer s.workerWg.Done()
	s.logger.Debug("History write worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-s.stopCh:
			s.drain()
			s.logger.Debug("History write worker stopped", zap.Int("worker_id", id))
			return
		case rec := <-s.queue:
			s.process(rec)
		}
	}
}

func (s *Store) process(rec Record) {
	defer s.pending.Done()
	metrics.HistoryQueueDepth.Set(float64(len(s.queue)))

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := s.insert(ctx, rec); err != nil {
		metrics.HistoryWritesTotal.WithLabelValues("error").Inc()
		s.logger.Error("Failed to persist history record",
			zap.String("query_id", rec.QueryID),
			zap.Error(err),
		)
		return
	}
	metrics.HistoryWritesTotal.WithLabelValues("ok").Inc()
}

// drain empties the queue during shutdown.
func (s *Store) drain() {
	timeout := time.After(drainTimeout)
	for {
		select {
		case rec := <-s.queue:
			s.process(rec)
		case <-timeout:
			s.logger.Warn("Timeout draining history queue")
			return
		default:
			return
		}
	}
}

func (s *Store) insert(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO query_history (
			id, query_id, session_id, query, final_answer, summary,
			status, source_count, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.QueryID, rec.SessionID, rec.Query, rec.FinalAnswer,
		rec.Summary, rec.Status, rec.SourceCount, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	return nil
}

// Recent returns the newest records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []Record
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, query_id, session_id, query, final_answer, summary,
		       status, source_count, duration_ms, created_at
		FROM query_history
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return records, nil
}

// Get returns the record for a query ID.
func (s *Store) Get(ctx context.Context, queryID string) (*Record, error) {
	var rec Record
	err := s.db.GetContext(ctx, &rec, `
		SELECT id, query_id, session_id, query, final_answer, summary,
		       status, source_count, duration_ms, created_at
		FROM query_history
		WHERE query_id = $1`, queryID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get history record: %w", err)
	}
	return &rec, nil
}

// BySession returns a session's records, newest first.
func (s *Store) BySession(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []Record
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, query_id, session_id, query, final_answer, summary,
		       status, source_count, duration_ms, created_at
		FROM query_history
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list session history: %w", err)
	}
	return records, nil
}

// Flush blocks until every queued record has been processed.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close stops the workers, drains queued writes, and closes the database.
func (s *Store) Close() error {
	s.logger.Info("Shutting down history store")
	close(s.stopCh)
	s.workerWg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
