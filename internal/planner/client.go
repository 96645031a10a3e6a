// Package planner is the HTTP client for the planning and execution
// backend. The backend turns a query into a tool plan, runs the tools,
// and reports per-tool results; answer synthesis happens on this side.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/circuitbreaker"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/config"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/metrics"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/streaming"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/synthesis"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/tracing"
)

// ErrUnavailable is returned when the planner cannot be reached: the
// circuit breaker is open or the request failed in transport.
var ErrUnavailable = errors.New("planner unavailable")

// Client calls the planner service over HTTP. Calls go through a
// circuit breaker so a dead planner fails fast instead of piling up
// blocked requests.
type Client struct {
	base          string
	http          *http.Client
	httpw         *circuitbreaker.HTTPWrapper
	events        *streaming.Manager
	logger        *zap.Logger
	maxIterations int
}

// New builds a planner client from configuration. events may be nil
// when no progress streaming is wanted.
func New(cfg config.PlannerConfig, events *streaming.Manager, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	iterations := cfg.MaxIterations
	if iterations <= 0 {
		iterations = 3
	}

	httpClient := &http.Client{Timeout: timeout}
	c := &Client{
		base:          strings.TrimRight(cfg.BaseURL, "/"),
		http:          httpClient,
		events:        events,
		logger:        logger,
		maxIterations: iterations,
	}
	if cfg.Breaker.Enabled {
		c.httpw = circuitbreaker.NewHTTPWrapper("planner", breakerConfig(cfg.Breaker), httpClient, logger)
	}
	return c
}

// breakerConfig fills unset fields from the breaker defaults so a
// partial config section cannot produce a breaker that trips on the
// first failure.
func breakerConfig(cfg config.CircuitBreakerConfig) circuitbreaker.Config {
	out := circuitbreaker.DefaultConfig()
	if cfg.MaxRequests > 0 {
		out.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		out.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		out.Timeout = cfg.Timeout
	}
	if cfg.FailureThreshold > 0 {
		out.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.SuccessThreshold > 0 {
		out.SuccessThreshold = cfg.SuccessThreshold
	}
	return out
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.httpw != nil {
		return c.httpw.Do(req)
	}
	return c.http.Do(req)
}

// BreakerState reports the planner breaker state for health payloads.
// Closed is reported when the breaker is disabled.
func (c *Client) BreakerState() circuitbreaker.State {
	if c.httpw == nil {
		return circuitbreaker.StateClosed
	}
	return c.httpw.State()
}

// QueryOptions carries per-call settings for ProcessQuery.
type QueryOptions struct {
	// QueryID keys progress events; empty disables them.
	QueryID string
	// MaxIterations overrides the configured planning iteration cap
	// when positive.
	MaxIterations int
	// Context is conversation context forwarded to the planner, as
	// produced by the session store.
	Context map[string]interface{}
}

// Result is one planner round trip. Plan and RawResults keep the
// planner's exact JSON for API passthrough; Records is the typed view
// synthesis consumes.
type Result struct {
	Plan       json.RawMessage
	RawResults json.RawMessage
	Records    []synthesis.ToolResultRecord
	Context    map[string]interface{}
}

type planRequest struct {
	Query         string                 `json:"query"`
	MaxIterations int                    `json:"max_iterations"`
	Context       map[string]interface{} `json:"context,omitempty"`
}

type planResponse struct {
	Plan             json.RawMessage        `json:"plan"`
	ExecutionResults json.RawMessage        `json:"execution_results"`
	Context          map[string]interface{} `json:"context"`
}

// ProcessQuery sends the query to the planner and decodes the plan and
// tool results. Tool completion events are published per decoded record.
func (c *Client) ProcessQuery(ctx context.Context, query string, opts QueryOptions) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "planner.execute")
	defer span.End()

	iterations := opts.MaxIterations
	if iterations <= 0 {
		iterations = c.maxIterations
	}
	body, _ := json.Marshal(planRequest{
		Query:         query,
		MaxIterations: iterations,
		Context:       opts.Context,
	})

	url := c.base + "/plan/execute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build planner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	start := time.Now()
	resp, err := c.do(req)
	if err != nil {
		metrics.RecordPlannerRequest("error", time.Since(start).Seconds())
		if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordPlannerRequest("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("planner status %d", resp.StatusCode)
	}

	var wire planResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		metrics.RecordPlannerRequest("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("decode planner response: %w", err)
	}

	var records []synthesis.ToolResultRecord
	if len(wire.ExecutionResults) > 0 && !bytes.Equal(bytes.TrimSpace(wire.ExecutionResults), []byte("null")) {
		if err := json.Unmarshal(wire.ExecutionResults, &records); err != nil {
			metrics.RecordPlannerRequest("error", time.Since(start).Seconds())
			return nil, fmt.Errorf("decode execution results: %w", err)
		}
	}
	metrics.RecordPlannerRequest("ok", time.Since(start).Seconds())

	c.publishToolEvents(opts.QueryID, records)

	return &Result{
		Plan:       wire.Plan,
		RawResults: wire.ExecutionResults,
		Records:    records,
		Context:    wire.Context,
	}, nil
}

func (c *Client) publishToolEvents(queryID string, records []synthesis.ToolResultRecord) {
	if c.events == nil || queryID == "" {
		return
	}
	for _, r := range records {
		evt := streaming.Event{Tool: r.Tool}
		if r.Succeeded() {
			evt.Type = streaming.EventToolCompleted
			evt.Message = "completed"
		} else {
			evt.Type = streaming.EventToolFailed
			evt.Message = "failed"
		}
		c.events.Publish(queryID, evt)
	}
}

// PDFResult is the planner's text extraction of one uploaded PDF.
type PDFResult struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// ParsePDF uploads a PDF to the planner's parsing tool and returns the
// extracted text. The upload is buffered in memory before sending.
func (c *Client) ParsePDF(ctx context.Context, filename string, file io.Reader) (*PDFResult, error) {
	ctx, span := tracing.StartSpan(ctx, "planner.parse_pdf")
	defer span.End()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart form: %w", err)
	}

	url := c.base + "/tools/pdf-parse"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("build planner request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.do(req)
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("planner status %d", resp.StatusCode)
	}

	var out PDFResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode pdf response: %w", err)
	}
	if out.Filename == "" {
		out.Filename = filename
	}
	return &out, nil
}

// Health pings the planner's health endpoint through the breaker so an
// open circuit reports unhealthy without a network call.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("planner status %d", resp.StatusCode)
	}
	return nil
}
