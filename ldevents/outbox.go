package ldevents

import "github.com/launchdarkly/go-server-sdk-evalcore/ldlog"

// eventsOutbox holds full-fidelity events awaiting the next flush plus the running summary
// counters, and tracks how many events have been dropped once the buffer fills up.
type eventsOutbox struct {
	pending       []Event
	summarizer    eventSummarizer
	capacity      int
	overCapacity  bool
	droppedEvents int
	loggers       ldlog.Loggers
}

func newEventsOutbox(capacity int, loggers ldlog.Loggers) *eventsOutbox {
	return &eventsOutbox{
		pending:    make([]Event, 0, capacity),
		summarizer: newEventSummarizer(),
		capacity:   capacity,
		loggers:    loggers,
	}
}

// addEvent appends a full-fidelity event, or counts it as dropped once capacity is reached. Only
// the first drop after the buffer fills logs a warning - repeating it on every subsequent event
// would just spam the log for the remainder of the flush interval.
func (b *eventsOutbox) addEvent(event Event) {
	if b.atCapacity() {
		b.noteDropped()
		return
	}
	b.overCapacity = false
	b.pending = append(b.pending, event)
}

func (b *eventsOutbox) atCapacity() bool {
	return len(b.pending) >= b.capacity
}

func (b *eventsOutbox) noteDropped() {
	if !b.overCapacity {
		b.overCapacity = true
		b.loggers.Warn("Exceeded event queue capacity. Increase capacity to avoid dropping events.")
	}
	b.droppedEvents++
}

func (b *eventsOutbox) addToSummary(event Event) {
	b.summarizer.summarizeEvent(event)
}

func (b *eventsOutbox) pendingEvents() []Event {
	return b.pending
}

func (b *eventsOutbox) pendingSummary() eventSummary {
	return b.summarizer.snapshot()
}

func (b *eventsOutbox) clear() {
	b.pending = make([]Event, 0, b.capacity)
	b.summarizer.reset()
}
