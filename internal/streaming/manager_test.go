package streaming

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	m := NewManager(8)
	ch := m.Subscribe("q1", 4)
	defer m.Unsubscribe("q1", ch)

	m.Publish("q1", Event{Type: EventToolStarted, Tool: "news_fetcher"})

	select {
	case evt := <-ch:
		if evt.QueryID != "q1" {
			t.Errorf("QueryID = %q, want q1", evt.QueryID)
		}
		if evt.Type != EventToolStarted || evt.Tool != "news_fetcher" {
			t.Errorf("unexpected event: %+v", evt)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not assigned")
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	m := NewManager(8)
	ch := m.Subscribe("q1", 1)
	defer m.Unsubscribe("q1", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			m.Publish("q1", Event{Type: EventToolCompleted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}
}

func TestReplaySince(t *testing.T) {
	m := NewManager(3)
	for i := 0; i < 4; i++ {
		m.Publish("q1", Event{Type: EventToolCompleted})
	}

	// Capacity 3 retains seq 2,3,4 after the ring wraps.
	evs := m.ReplaySince("q1", 0)
	if len(evs) != 3 || evs[0].Seq != 2 || evs[2].Seq != 4 {
		t.Fatalf("unexpected ring contents: %+v", evs)
	}

	evs = m.ReplaySince("q1", 2)
	if len(evs) != 2 || evs[0].Seq != 3 || evs[1].Seq != 4 {
		t.Fatalf("unexpected replay since 2: %+v", evs)
	}

	if evs := m.ReplaySince("unknown", 0); evs != nil {
		t.Errorf("replay of unknown query = %+v, want nil", evs)
	}
}

func TestReplayIsolatedPerQuery(t *testing.T) {
	m := NewManager(8)
	m.Publish("q1", Event{Type: EventQueryReceived})
	m.Publish("q2", Event{Type: EventQueryReceived})
	m.Publish("q2", Event{Type: EventQueryCompleted})

	if got := len(m.ReplaySince("q1", 0)); got != 1 {
		t.Errorf("q1 replay length = %d, want 1", got)
	}
	if got := len(m.ReplaySince("q2", 0)); got != 2 {
		t.Errorf("q2 replay length = %d, want 2", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := NewManager(8)
	ch := m.Subscribe("q1", 1)
	m.Unsubscribe("q1", ch)

	if _, open := <-ch; open {
		t.Error("channel still open after unsubscribe")
	}
	// A second unsubscribe of the same channel is a no-op.
	m.Unsubscribe("q1", ch)
}
