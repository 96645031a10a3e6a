package httpapi

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/config"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/health"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/history"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/planner"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/session"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/streaming"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/tools"
)

// harness wires a Server against a stub planner backend with in-memory
// sessions, no auth and no rate limiting unless a test opts in.
type harness struct {
	cfg     *config.Config
	server  *Server
	handler http.Handler
	events  *streaming.Manager
}

func newHarness(t *testing.T, plannerFn http.HandlerFunc, mutate func(*config.Config)) *harness {
	t.Helper()

	backend := httptest.NewServer(plannerFn)
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.Planner.BaseURL = backend.URL
	cfg.Planner.Timeout = 5 * time.Second
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	logger := zaptest.NewLogger(t)
	events := streaming.NewManager(64)
	pl := planner.New(cfg.Planner, events, logger)

	deps := Deps{
		Planner:  pl,
		Sessions: session.NewManager("", logger),
		Catalog:  tools.NewCatalog(),
		Events:   events,
		Health:   health.NewRegistry(logger),
	}
	deps.Health.Register(health.NewPlannerChecker(pl))

	srv := NewServer(cfg, deps, logger)
	return &harness{cfg: cfg, server: srv, handler: srv.Handler(), events: events}
}

func (h *harness) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(method, target, rd))
	return rec
}

type queryResponseBody struct {
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

func TestHealth(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {}, nil)

	rec := h.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		`{"status":"ok","message":"DualMind API is running"}`,
		strings.TrimSpace(rec.Body.String()))
}

func TestHealthDetailed(t *testing.T) {
	t.Run("healthy planner", func(t *testing.T) {
		h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}, nil)

		rec := h.do(t, http.MethodGet, "/api/health/detailed", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"planner"`)
	})

	t.Run("planner down is unhealthy", func(t *testing.T) {
		h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}, nil)

		rec := h.do(t, http.MethodGet, "/api/health/detailed", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"unhealthy"`)
	})
}

func TestQueryEndToEnd(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]interface{}
	)
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/plan/execute", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"plan": [{"tool": "qa_engine"}, {"tool": "wikipedia_search"}],
			"execution_results": [
				{"tool": "qa_engine", "status": "success", "output": "Photosynthesis converts light into chemical energy."},
				{"tool": "wikipedia_search", "status": "success", "output": "Photosynthesis is a process used by plants and other organisms to convert light energy into chemical energy that fuels their activities."}
			],
			"context": null
		}`)
	}, nil)

	rec := h.do(t, http.MethodPost, "/api/query",
		`{"query": "What is photosynthesis?", "context": {"locale": "en"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp queryResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "What is photosynthesis?", resp.Query)
	assert.JSONEq(t, `[{"tool": "qa_engine"}, {"tool": "wikipedia_search"}]`, string(resp.Plan))
	assert.Contains(t, string(resp.ExecutionResults), "wikipedia_search")
	assert.Contains(t, resp.FinalAnswer, "Answer to: What is photosynthesis?")
	assert.Contains(t, resp.FinalAnswer, "Photosynthesis converts light into chemical energy.")
	assert.Contains(t, resp.Summary, "Total of 2 information sources consulted.")
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.QueryID)
	assert.Equal(t, float64(1), resp.Context["exchange_count"])

	mu.Lock()
	sent := bodies[0]
	mu.Unlock()
	assert.Equal(t, "What is photosynthesis?", sent["query"])
	assert.Equal(t, float64(3), sent["max_iterations"])
	sentCtx, ok := sent["context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "en", sentCtx["locale"])
	assert.Equal(t, resp.SessionID, sentCtx["session_id"])

	evts := h.events.ReplaySince(resp.QueryID, 0)
	types := make([]streaming.EventType, 0, len(evts))
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.Equal(t, []streaming.EventType{
		streaming.EventQueryReceived,
		streaming.EventPlanningStarted,
		streaming.EventToolCompleted,
		streaming.EventToolCompleted,
		streaming.EventPlanReady,
		streaming.EventSynthesisStarted,
		streaming.EventSynthesisCompleted,
		streaming.EventQueryCompleted,
	}, types)
}

func TestQuerySessionContinuity(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]interface{}
	)
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()

		fmt.Fprint(w, `{
			"plan": [{"tool": "qa_engine"}],
			"execution_results": [{"tool": "qa_engine", "status": "success", "output": "Go is a programming language designed at Google."}],
			"context": null
		}`)
	}, nil)

	rec := h.do(t, http.MethodPost, "/api/query", `{"query": "What is Go?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var first queryResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = h.do(t, http.MethodPost, "/api/query",
		fmt.Sprintf(`{"query": "Who designed it?", "session_id": %q}`, first.SessionID))
	require.Equal(t, http.StatusOK, rec.Code)
	var second queryResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.NotEqual(t, first.QueryID, second.QueryID)
	assert.Equal(t, float64(2), second.Context["exchange_count"])

	// The second planner call carries the first exchange as context.
	mu.Lock()
	sent := bodies[1]
	mu.Unlock()
	sentCtx, ok := sent["context"].(map[string]interface{})
	require.True(t, ok)
	hist, ok := sentCtx["history"].([]interface{})
	require.True(t, ok)
	require.Len(t, hist, 1)
	prev, ok := hist[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "What is Go?", prev["query"])
	assert.Equal(t, first.QueryID, prev["query_id"])
}

func TestQueryValidation(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("planner must not be called for invalid requests")
	}, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", `{}`, "Query is required"},
		{"whitespace query", `{"query": "   "}`, "Query is required"},
		{"malformed json", `{"query": `, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/query", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestQueryPlannerUnavailable(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {}, func(cfg *config.Config) {
		cfg.Planner.BaseURL = backend.URL
	})

	rec := h.do(t, http.MethodPost, "/api/query", `{"query": "anything"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"Planner service unavailable"}`, rec.Body.String())
}

func TestQueryPlannerError(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, func(cfg *config.Config) {
		cfg.Planner.Breaker.Enabled = false
	})

	rec := h.do(t, http.MethodPost, "/api/query", `{"query": "anything"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"Planner request failed"}`, rec.Body.String())
}

func TestParsePDF(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tools/pdf-parse", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 fake content", string(data))

		fmt.Fprintf(w, `{"filename": %q, "content": "Extracted text."}`, header.Filename)
	}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake content"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/parse-pdf", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	h.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t,
		`{"status":"success","filename":"report.pdf","content":"Extracted text."}`,
		rec.Body.String())
}

func TestParsePDFNoFile(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("planner must not be called without a file")
	}, nil)

	rec := h.do(t, http.MethodPost, "/api/parse-pdf", "not multipart")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, rec.Body.String())
}

func TestTools(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {}, nil)

	rec := h.do(t, http.MethodGet, "/api/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string             `json:"status"`
		Tools  []tools.Descriptor `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Len(t, resp.Tools, len(tools.Defaults()))

	names := make(map[string]bool)
	for _, d := range resp.Tools {
		names[d.Name] = true
	}
	assert.True(t, names["qa_engine"])
	assert.True(t, names["wikipedia_search"])
}

func TestHistoryDisabled(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {}, nil)

	rec := h.do(t, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Query history is not enabled"}`, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/history/some-id", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := history.NewStore(sqlx.NewDb(db, "sqlmock"), zaptest.NewLogger(t))
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	logger := zaptest.NewLogger(t)
	events := streaming.NewManager(16)
	srv := NewServer(cfg, Deps{
		Planner:  planner.New(cfg.Planner, events, logger),
		Sessions: session.NewManager("", logger),
		History:  store,
		Catalog:  tools.NewCatalog(),
		Events:   events,
		Health:   health.NewRegistry(logger),
	}, logger)
	handler := srv.Handler()

	do := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	recID := uuid.New()
	createdAt := time.Now()
	columns := []string{
		"id", "query_id", "session_id", "query", "final_answer",
		"summary", "status", "source_count", "duration_ms", "created_at",
	}

	t.Run("list with default limit", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, query_id, session_id").
			WithArgs(20).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				recID.String(), "q-1", "s-1", "What is Go?", "An answer.",
				"A summary.", "success", 2, int64(1200), createdAt,
			))

		rec := do("/api/history")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Status  string           `json:"status"`
			Count   int              `json:"count"`
			History []history.Record `json:"history"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp.Status)
		assert.Equal(t, 1, resp.Count)
		require.Len(t, resp.History, 1)
		assert.Equal(t, "q-1", resp.History[0].QueryID)
	})

	t.Run("limit caps at 100", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, query_id, session_id").
			WithArgs(100).
			WillReturnRows(sqlmock.NewRows(columns))

		rec := do("/api/history?limit=500")
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := do("/api/history?limit=zero")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid limit"}`, rec.Body.String())
	})

	t.Run("record found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, query_id, session_id").
			WithArgs("q-1").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				recID.String(), "q-1", "s-1", "What is Go?", "An answer.",
				"A summary.", "success", 2, int64(1200), createdAt,
			))

		rec := do("/api/history/q-1")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"query_id":"q-1"`)
	})

	t.Run("record missing", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, query_id, session_id").
			WithArgs("q-404").
			WillReturnError(sql.ErrNoRows)

		rec := do("/api/history/q-404")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"History record not found"}`, rec.Body.String())
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionEndpoint(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"plan": [{"tool": "qa_engine"}],
			"execution_results": [{"tool": "qa_engine", "status": "success", "output": "An answer."}],
			"context": null
		}`)
	}, nil)

	rec := h.do(t, http.MethodPost, "/api/query", `{"query": "hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp queryResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = h.do(t, http.MethodGet, "/api/sessions/"+resp.SessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var sessResp struct {
		Status  string           `json:"status"`
		Session *session.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessResp))
	assert.Equal(t, "success", sessResp.Status)
	require.NotNil(t, sessResp.Session)
	require.Len(t, sessResp.Session.Exchanges, 1)
	assert.Equal(t, "hello", sessResp.Session.Exchanges[0].Query)

	rec = h.do(t, http.MethodGet, "/api/sessions/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Session not found"}`, rec.Body.String())
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(dir+"/chart.txt", "chart bytes"))

	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {}, func(cfg *config.Config) {
		cfg.Service.StaticDir = dir
	})

	rec := h.do(t, http.MethodGet, "/static/chart.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chart bytes", rec.Body.String())

	rec = h.do(t, http.MethodGet, "/static/missing.txt", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
