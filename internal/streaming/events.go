package streaming

// EventType labels a query lifecycle event.
type EventType string

const (
	EventQueryReceived      EventType = "QUERY_RECEIVED"
	EventPlanningStarted    EventType = "PLANNING_STARTED"
	EventPlanReady          EventType = "PLAN_READY"
	EventToolStarted        EventType = "TOOL_STARTED"
	EventToolCompleted      EventType = "TOOL_COMPLETED"
	EventToolFailed         EventType = "TOOL_FAILED"
	EventSynthesisStarted   EventType = "SYNTHESIS_STARTED"
	EventSynthesisCompleted EventType = "SYNTHESIS_COMPLETED"
	EventQueryCompleted     EventType = "QUERY_COMPLETED"
	EventQueryFailed        EventType = "QUERY_FAILED"
)
