package session

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session doesn't exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session has expired
	ErrSessionExpired = errors.New("session expired")
)

// Session represents a conversation with query continuity across requests.
type Session struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	ExpiresAt time.Time              `json:"expires_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Exchanges []Exchange             `json:"exchanges"`
}

// Exchange is one completed query/answer round trip.
type Exchange struct {
	QueryID   string    `json:"query_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RecentExchanges returns the most recent exchanges, newest last.
func (s *Session) RecentExchanges(count int) []Exchange {
	if len(s.Exchanges) <= count {
		return s.Exchanges
	}
	return s.Exchanges[len(s.Exchanges)-count:]
}

// MergeMetadata folds request-supplied context into the session metadata.
func (s *Session) MergeMetadata(ctx map[string]interface{}) {
	if len(ctx) == 0 {
		return
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{}, len(ctx))
	}
	for k, v := range ctx {
		s.Metadata[k] = v
	}
	s.UpdatedAt = time.Now()
}

// ContextPayload builds the continuity object echoed back on query responses.
func (s *Session) ContextPayload() map[string]interface{} {
	history := make([]map[string]interface{}, 0, len(s.Exchanges))
	for _, ex := range s.Exchanges {
		history = append(history, map[string]interface{}{
			"query_id":  ex.QueryID,
			"query":     ex.Query,
			"summary":   ex.Summary,
			"timestamp": ex.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return map[string]interface{}{
		"session_id":     s.ID,
		"exchange_count": len(s.Exchanges),
		"history":        history,
	}
}
