package ldevents

// EventSenderResult is the return type for EventSender.SendEventData.
type EventSenderResult struct {
	// Success is true if the event payload was delivered.
	Success bool
	// MustShutDown is true if the server returned an error indicating that no further event data
	// should be sent - normally meaning the SDK key is invalid, so retrying would just repeat the
	// same failure.
	MustShutDown bool
	// TimeFromServer is the last known date/time reported by the server, if available.
	TimeFromServer uint64
}

// EventDataKind tells an EventSender which event service endpoint a payload belongs to.
type EventDataKind string

const (
	// AnalyticsEventDataKind denotes a payload of analytics events - the per-user/per-flag data
	// produced by the SDK as applications call Identify/TrackEvent/variation methods.
	AnalyticsEventDataKind EventDataKind = "analytics"
	// DiagnosticEventDataKind denotes a payload describing the SDK's own configuration and
	// runtime statistics, sent separately from analytics events.
	DiagnosticEventDataKind EventDataKind = "diagnostic"
)

// EventSender delivers an already-serialized event payload to the events service. Implementations
// own transport concerns (HTTP, retries, auth headers); the event processor only knows how to
// produce bytes and hand them to one of these.
type EventSender interface {
	SendEventData(kind EventDataKind, data []byte, eventCount int) EventSenderResult
}

// EventProcessor is the SDK-facing side of analytics event handling: accept events as they occur,
// batch and summarize them, and flush the result to an EventSender on its own schedule.
type EventProcessor interface {
	// SendEvent records one event asynchronously; it returns before the event has necessarily
	// been batched or sent.
	SendEvent(Event)
	// Flush requests an out-of-cycle delivery of whatever is currently buffered. Like SendEvent,
	// this is asynchronous - it schedules delivery rather than blocking until it finishes.
	Flush()
	// Close flushes and delivers everything buffered, then shuts the processor down. SendEvent
	// and Flush calls made after Close returns are silently dropped.
	Close() error
}
