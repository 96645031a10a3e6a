package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/history"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/metrics"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/planner"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/session"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/streaming"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/synthesis"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/tools"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/tracing"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/util"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100

	maxPDFUploadBytes = 25 << 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}{
		Status:  "ok",
		Message: "DualMind API is running",
	})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	report := s.checks.RunAll(r.Context())
	code := http.StatusOK
	if !report.Healthy() {
		code = http.StatusServiceUnavailable
	}
	s.sendJSON(w, code, report)
}

type queryRequest struct {
	Query     string                 `json:"query"`
	Context   map[string]interface{} `json:"context,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// queryResponse echoes the planner's plan and execution results verbatim
// alongside the synthesized answer.
type queryResponse struct {
	Status           string                 `json:"status"`
	Query            string                 `json:"query"`
	Plan             json.RawMessage        `json:"plan"`
	ExecutionResults json.RawMessage        `json:"execution_results"`
	FinalAnswer      string                 `json:"final_answer"`
	Summary          string                 `json:"summary"`
	Context          map[string]interface{} `json:"context"`
	SessionID        string                 `json:"session_id"`
	QueryID          string                 `json:"query_id"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.sendError(w, "Query is required", http.StatusBadRequest)
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), "query.process")
	defer span.End()

	queryID := uuid.New().String()
	start := time.Now()

	s.events.Publish(queryID, streaming.Event{
		Type:    streaming.EventQueryReceived,
		Message: "Query received",
	})

	sess, err := s.sessions.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		s.logger.Error("Failed to resolve session",
			zap.String("session_id", req.SessionID), zap.Error(err))
		metrics.RecordQuery("error", time.Since(start).Seconds())
		s.sendError(w, "Failed to resolve session", http.StatusInternalServerError)
		return
	}
	if len(req.Context) > 0 {
		sess.MergeMetadata(req.Context)
		if err := s.sessions.Update(ctx, sess); err != nil {
			s.logger.Warn("Failed to persist session context",
				zap.String("session_id", sess.ID), zap.Error(err))
		}
	}

	s.logger.Info("Processing query",
		zap.String("query_id", queryID),
		zap.String("session_id", sess.ID),
		zap.String("query", util.TruncateString(req.Query, 120, true)))

	// The planner sees the conversation so far plus whatever context
	// the request supplied, request keys winning on collision.
	planCtx := sess.ContextPayload()
	for k, v := range req.Context {
		planCtx[k] = v
	}

	s.events.Publish(queryID, streaming.Event{
		Type:    streaming.EventPlanningStarted,
		Message: "Planning started",
	})

	res, err := s.planner.ProcessQuery(ctx, req.Query, planner.QueryOptions{
		QueryID: queryID,
		Context: planCtx,
	})
	if err != nil {
		s.logger.Error("Planner request failed",
			zap.String("query_id", queryID), zap.Error(err))
		s.events.Publish(queryID, streaming.Event{
			Type:    streaming.EventQueryFailed,
			Message: "Planner request failed",
		})
		metrics.RecordQuery("error", time.Since(start).Seconds())
		if errors.Is(err, planner.ErrUnavailable) {
			s.sendError(w, "Planner service unavailable", http.StatusBadGateway)
		} else {
			s.sendError(w, "Planner request failed", http.StatusBadGateway)
		}
		return
	}

	s.events.Publish(queryID, streaming.Event{
		Type:    streaming.EventPlanReady,
		Message: "Plan ready",
	})
	s.events.Publish(queryID, streaming.Event{
		Type:    streaming.EventSynthesisStarted,
		Message: "Synthesis started",
	})

	synthStart := time.Now()
	_, synthSpan := tracing.StartSpan(ctx, "synthesis.compose")
	answer := synthesis.Synthesize(req.Query, res.Records, res.Plan)
	summary := synthesis.ExecutiveSummary(req.Query, res.Records)
	synthSpan.End()
	metrics.RecordSynthesis(time.Since(synthStart).Seconds(),
		synthesis.SuccessCount(res.Records), synthesis.StrategyOf(res.Records))

	s.events.Publish(queryID, streaming.Event{
		Type:    streaming.EventSynthesisCompleted,
		Message: "Synthesis completed",
	})

	updated, err := s.sessions.AppendExchange(ctx, sess.ID, session.Exchange{
		QueryID: queryID,
		Query:   req.Query,
		Answer:  answer,
		Summary: summary,
	})
	if err != nil {
		s.logger.Warn("Failed to record session exchange",
			zap.String("session_id", sess.ID), zap.Error(err))
		updated = sess
	}

	if s.hist != nil {
		s.hist.Enqueue(history.Record{
			QueryID:     queryID,
			SessionID:   sess.ID,
			Query:       req.Query,
			FinalAnswer: answer,
			Summary:     summary,
			Status:      "success",
			SourceCount: synthesis.SuccessCount(res.Records),
			DurationMs:  time.Since(start).Milliseconds(),
		})
	}

	s.events.Publish(queryID, streaming.Event{
		Type:    streaming.EventQueryCompleted,
		Message: "Query completed",
		Payload: map[string]interface{}{
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})
	metrics.RecordQuery("success", time.Since(start).Seconds())

	respCtx := res.Context
	if respCtx == nil {
		respCtx = updated.ContextPayload()
	}
	s.sendJSON(w, http.StatusOK, queryResponse{
		Status:           "success",
		Query:            req.Query,
		Plan:             orEmptyArray(res.Plan),
		ExecutionResults: orEmptyArray(res.RawResults),
		FinalAnswer:      answer,
		Summary:          summary,
		Context:          respCtx,
		SessionID:        sess.ID,
		QueryID:          queryID,
	})
}

// orEmptyArray substitutes an empty JSON array for missing or null
// passthrough fields so the response shape stays stable.
func orEmptyArray(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`[]`)
	}
	return raw
}

func (s *Server) handleParsePDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPDFUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			metrics.PDFParsesTotal.WithLabelValues("error").Inc()
			s.sendError(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.sendError(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	res, err := s.planner.ParsePDF(r.Context(), header.Filename, file)
	if err != nil {
		s.logger.Error("PDF parse failed",
			zap.String("filename", header.Filename), zap.Error(err))
		metrics.PDFParsesTotal.WithLabelValues("error").Inc()
		if errors.Is(err, planner.ErrUnavailable) {
			s.sendError(w, "Planner service unavailable", http.StatusBadGateway)
		} else {
			s.sendError(w, "PDF parsing failed", http.StatusBadGateway)
		}
		return
	}

	metrics.PDFParsesTotal.WithLabelValues("success").Inc()
	s.sendJSON(w, http.StatusOK, struct {
		Status   string `json:"status"`
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}{
		Status:   "success",
		Filename: res.Filename,
		Content:  res.Content,
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, struct {
		Status string             `json:"status"`
		Tools  []tools.Descriptor `json:"tools"`
	}{
		Status: "success",
		Tools:  s.catalog.List(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		s.sendError(w, "Query history is not enabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.sendError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := s.hist.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to load history", zap.Error(err))
		s.sendError(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, struct {
		Status  string           `json:"status"`
		Count   int              `json:"count"`
		History []history.Record `json:"history"`
	}{
		Status:  "success",
		Count:   len(records),
		History: records,
	})
}

func (s *Server) handleHistoryRecord(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		s.sendError(w, "Query history is not enabled", http.StatusNotFound)
		return
	}

	rec, err := s.hist.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			s.sendError(w, "History record not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to load history record", zap.Error(err))
		s.sendError(w, "Failed to load history record", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, struct {
		Status string          `json:"status"`
		Record *history.Record `json:"record"`
	}{
		Status: "success",
		Record: rec,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
			s.sendError(w, "Session not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to load session", zap.Error(err))
		s.sendError(w, "Failed to load session", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, struct {
		Status  string           `json:"status"`
		Session *session.Session `json:"session"`
	}{
		Status:  "success",
		Session: sess,
	})
}
