package streaming

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/metrics"
)

// Event is one query progress update delivered over SSE and WebSocket.
type Event struct {
	QueryID   string                 `json:"query_id"`
	Type      EventType              `json:"type"`
	Tool      string                 `json:"tool,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Seq       uint64                 `json:"seq"`
}

// Marshal returns the event as JSON for SSE frames and logs.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

const (
	defaultRingCapacity = 256
	maxTrackedQueries   = 1024
	ringIdleTTL         = 10 * time.Minute
)

// Manager is in-memory pub/sub of query events. Each query keeps a
// fixed-capacity ring of recent events so reconnecting clients can
// replay from a sequence number. Publish never blocks: slow subscribers
// lose events.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	capacity    int
}

var (
	defaultMgr *Manager
	once       sync.Once
)

// Get returns the process-wide manager, initializing it lazily.
func Get() *Manager {
	once.Do(func() {
		defaultMgr = NewManager(defaultRingCapacity)
	})
	return defaultMgr
}

// NewManager builds an isolated manager, mainly for tests.
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
	}
}

// Subscribe adds a subscriber channel for a query; the caller must drain
// it and call Unsubscribe when done.
func (m *Manager) Subscribe(queryID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[queryID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		m.subscribers[queryID] = subs
	}
	subs[ch] = struct{}{}
	metrics.StreamSubscribers.Inc()
	return ch
}

// Unsubscribe removes the subscriber channel and closes it.
func (m *Manager) Unsubscribe(queryID string, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subscribers[queryID]; ok {
		if _, member := subs[ch]; !member {
			return
		}
		delete(subs, ch)
		close(ch)
		metrics.StreamSubscribers.Dec()
		if len(subs) == 0 {
			delete(m.subscribers, queryID)
		}
	}
}

// Publish assigns the next sequence number, records the event in the
// query's ring and fans it out without blocking.
func (m *Manager) Publish(queryID string, evt Event) {
	now := time.Now()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = now
	}
	evt.QueryID = queryID

	m.mu.Lock()
	rg := m.history[queryID]
	if rg == nil {
		if len(m.history) >= maxTrackedQueries {
			m.evictIdleLocked(now)
		}
		rg = newRing(m.capacity)
		m.history[queryID] = rg
	}
	rg.lastPublish = now
	evt.Seq = rg.nextSeq
	rg.nextSeq++
	rg.push(evt)
	// Fan out under the lock: sends cannot block, and Unsubscribe
	// closes channels while holding it.
	for ch := range m.subscribers[queryID] {
		select {
		case ch <- evt:
		default:
			metrics.StreamEventsDropped.Inc()
		}
	}
	m.mu.Unlock()
}

// ReplaySince returns retained events with Seq > since, oldest first.
func (m *Manager) ReplaySince(queryID string, since uint64) []Event {
	m.mu.RLock()
	rg := m.history[queryID]
	m.mu.RUnlock()
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// evictIdleLocked drops rings for queries that finished long ago and have
// no listeners. If every ring is busy, the stalest one goes anyway so the
// map stays bounded.
func (m *Manager) evictIdleLocked(now time.Time) {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, rg := range m.history {
		if len(m.subscribers[id]) > 0 {
			continue
		}
		if now.Sub(rg.lastPublish) > ringIdleTTL {
			delete(m.history, id)
			continue
		}
		if oldestID == "" || rg.lastPublish.Before(oldestAt) {
			oldestID = id
			oldestAt = rg.lastPublish
		}
	}
	if len(m.history) >= maxTrackedQueries && oldestID != "" {
		delete(m.history, oldestID)
	}
}

// ring is a fixed-capacity buffer of a query's recent events.
type ring struct {
	buf         []Event
	start       int
	count       int
	nextSeq     uint64
	lastPublish time.Time
}

// Sequences start at 1 so ReplaySince(id, 0) means "from the beginning".
func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity), nextSeq: 1} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
