// Package health aggregates dependency checks for the detailed health
// endpoint. Checks run on demand, in parallel, each under its own
// timeout.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CheckStatus represents the result of a health check
type CheckStatus int

const (
	StatusHealthy CheckStatus = iota
	StatusDegraded
	StatusUnhealthy
)

func (s CheckStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

func (s CheckStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// CheckResult contains the result of one component's check.
type CheckResult struct {
	Component  string                 `json:"component"`
	Status     CheckStatus            `json:"status"`
	Message    string                 `json:"message,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
	Critical   bool                   `json:"critical"`
}

// Checker is one dependency's health probe. Critical checkers take the
// whole service down when unhealthy; non-critical ones only degrade it.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
	Critical() bool
}

// Report is the aggregated outcome of all registered checks.
type Report struct {
	Status     CheckStatus            `json:"status"`
	Components map[string]CheckResult `json:"components"`
	Timestamp  time.Time              `json:"timestamp"`
	DurationMs int64                  `json:"duration_ms"`
}

// Healthy reports whether the service should answer 200 on the
// detailed health endpoint.
func (r Report) Healthy() bool { return r.Status != StatusUnhealthy }

const defaultCheckTimeout = 5 * time.Second

// Registry holds the registered checkers.
type Registry struct {
	mu       sync.RWMutex
	checkers []Checker
	logger   *zap.Logger
	timeout  time.Duration
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{logger: logger, timeout: defaultCheckTimeout}
}

// Register adds a checker. Registration order is not significant.
func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, c)
}

// RunAll executes every registered check in parallel and aggregates
// the results. Any critical failure makes the report unhealthy; any
// other irregularity degrades it.
func (r *Registry) RunAll(ctx context.Context) Report {
	r.mu.RLock()
	checkers := make([]Checker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	start := time.Now()
	results := make([]CheckResult, len(checkers))

	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			results[i] = r.runOne(checkCtx, c)
		}(i, c)
	}
	wg.Wait()

	report := Report{
		Status:     StatusHealthy,
		Components: make(map[string]CheckResult, len(results)),
		Timestamp:  start.UTC(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	for _, res := range results {
		report.Components[res.Component] = res
		switch {
		case res.Status == StatusUnhealthy && res.Critical:
			report.Status = StatusUnhealthy
		case res.Status != StatusHealthy && report.Status != StatusUnhealthy:
			report.Status = StatusDegraded
		}
	}
	return report
}

// runOne shields the aggregate from a panicking checker.
func (r *Registry) runOne(ctx context.Context, c Checker) (result CheckResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Health check panicked",
				zap.String("checker", c.Name()),
				zap.Any("panic", rec),
			)
			result = CheckResult{
				Component:  c.Name(),
				Status:     StatusUnhealthy,
				Error:      "health check panicked",
				Critical:   c.Critical(),
				DurationMs: time.Since(start).Milliseconds(),
			}
		}
	}()
	return c.Check(ctx)
}
