package health

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/circuitbreaker"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/planner"
)

// degradedLatency marks a dependency that answers but slowly.
const degradedLatency = 100 * time.Millisecond

// PlannerChecker probes the planner service. The planner is the one
// dependency queries cannot run without, so it is critical.
type PlannerChecker struct {
	client *planner.Client
}

func NewPlannerChecker(client *planner.Client) *PlannerChecker {
	return &PlannerChecker{client: client}
}

func (p *PlannerChecker) Name() string   { return "planner" }
func (p *PlannerChecker) Critical() bool { return true }

func (p *PlannerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "planner", Critical: true}

	state := p.client.BreakerState()
	err := p.client.Health(ctx)
	result.DurationMs = time.Since(start).Milliseconds()
	result.Details = map[string]interface{}{
		"circuit_breaker": state.String(),
	}

	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "planner ping failed"
		return result
	}
	if state != circuitbreaker.StateClosed {
		result.Status = StatusDegraded
		result.Message = "planner circuit breaker not closed"
		return result
	}
	result.Status = StatusHealthy
	result.Message = "planner reachable"
	return result
}

// RedisChecker probes the session store. Sessions degrade to local
// cache without Redis, so this check never takes the service down.
type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Name() string   { return "redis" }
func (r *RedisChecker) Critical() bool { return false }

func (r *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "redis", Critical: false}

	if r.client == nil {
		result.Status = StatusDegraded
		result.Message = "redis not configured, sessions are in-memory only"
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	err := r.client.Ping(ctx).Err()
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "redis ping failed"
		return result
	}
	if time.Since(start) > degradedLatency {
		result.Status = StatusDegraded
		result.Message = "redis responding with high latency"
		return result
	}
	result.Status = StatusHealthy
	result.Message = "redis healthy"
	return result
}

// DatabaseChecker probes the query history store. History is an
// optional feature, so this check only degrades the service.
type DatabaseChecker struct {
	db *sqlx.DB
}

func NewDatabaseChecker(db *sqlx.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

func (d *DatabaseChecker) Name() string   { return "database" }
func (d *DatabaseChecker) Critical() bool { return false }

func (d *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "database", Critical: false}

	if d.db == nil {
		result.Status = StatusDegraded
		result.Message = "database not configured, query history disabled"
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	err := d.db.PingContext(ctx)
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "database ping failed"
		return result
	}

	stats := d.db.Stats()
	result.Details = map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
	}
	result.Status = StatusHealthy
	result.Message = "database healthy"
	return result
}
