package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/streaming"
)

const subscriberBuffer = 256

// parseTypeFilter splits the comma-separated types parameter. An empty
// filter passes everything.
func parseTypeFilter(raw string) map[streaming.EventType]struct{} {
	filter := map[streaming.EventType]struct{}{}
	if raw == "" {
		return filter
	}
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			filter[streaming.EventType(t)] = struct{}{}
		}
	}
	return filter
}

func skipEvent(evt streaming.Event, filter map[streaming.EventType]struct{}) bool {
	if len(filter) == 0 {
		return false
	}
	_, ok := filter[evt.Type]
	return !ok
}

// lastEventID reads the SSE Last-Event-ID header, falling back to the
// last_event_id query parameter for clients that cannot set headers.
func lastEventID(r *http.Request) uint64 {
	if lei := r.Header.Get("Last-Event-ID"); lei != "" {
		if n, err := strconv.ParseUint(lei, 10, 64); err == nil {
			return n
		}
	}
	if q := r.URL.Query().Get("last_event_id"); q != "" {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// handleSSE streams query progress events via Server-Sent Events.
// GET /api/stream/sse?query_id=<id>&types=TOOL_COMPLETED,...&last_event_id=N
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	queryID := r.URL.Query().Get("query_id")
	if queryID == "" {
		s.sendError(w, "query_id is required", http.StatusBadRequest)
		return
	}
	typeFilter := parseTypeFilter(r.URL.Query().Get("types"))
	lastID := lastEventID(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := s.events.Subscribe(queryID, subscriberBuffer)
	defer s.events.Unsubscribe(queryID, ch)

	// Initial comment establishes the stream before any event exists.
	fmt.Fprintf(w, ": connected to query %s\n\n", queryID)
	flusher.Flush()

	// Replay backlog since lastID (best-effort).
	if lastID > 0 {
		for _, evt := range s.events.ReplaySince(queryID, lastID) {
			if skipEvent(evt, typeFilter) {
				continue
			}
			writeSSEEvent(w, evt)
		}
		flusher.Flush()
	}

	interval := s.cfg.Streaming.PingInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ping := time.NewTicker(interval)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("SSE client disconnected", zap.String("query_id", queryID))
			return
		case evt := <-ch:
			if skipEvent(evt, typeFilter) {
				continue
			}
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-ping.C:
			// Heartbeat to keep connections alive through proxies.
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w io.Writer, evt streaming.Event) {
	if evt.Seq > 0 {
		fmt.Fprintf(w, "id: %d\n", evt.Seq)
	}
	if evt.Type != "" {
		fmt.Fprintf(w, "event: %s\n", evt.Type)
	}
	fmt.Fprintf(w, "data: %s\n\n", string(evt.Marshal()))
}
