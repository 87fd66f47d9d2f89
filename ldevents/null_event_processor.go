package ldevents

// discardingEventProcessor is the EventProcessor used when a client is configured with events
// disabled entirely (as opposed to merely offline-but-buffering): every call is a no-op.
type discardingEventProcessor struct{}

// NewNullEventProcessor returns an EventProcessor that drops every event it's given.
func NewNullEventProcessor() EventProcessor {
	return discardingEventProcessor{}
}

func (discardingEventProcessor) SendEvent(Event) {}

func (discardingEventProcessor) Flush() {}

func (discardingEventProcessor) Close() error {
	return nil
}
