package ldevents

import (
	"github.com/launchdarkly/go-server-sdk-evalcore/ldtime"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

// eventSummarizer tracks per-flag evaluation counters and the earliest and latest creation dates
// of the feature events it has summarized.
// Its methods are deliberately not thread-safe; they are only ever called from the event
// dispatcher's single processing goroutine.
type eventSummarizer struct {
	eventsState eventSummary
}

// variationVersionKey distinguishes the counters within a single flag's summary by which
// variation was returned and which flag version produced it. Either field may be undefined,
// which happens when the flag itself could not be found.
type variationVersionKey struct {
	variation ldvalue.OptionalInt
	version   ldvalue.OptionalInt
}

type counterValue struct {
	count   int
	value   ldvalue.Value
	unknown bool
}

type flagSummary struct {
	defaultValue ldvalue.Value
	counters     map[variationVersionKey]*counterValue
}

type eventSummary struct {
	flags     map[string]*flagSummary
	startDate ldtime.UnixMillisecondTime
	endDate   ldtime.UnixMillisecondTime
}

func newEventSummarizer() eventSummarizer {
	return eventSummarizer{eventsState: newEventSummary()}
}

func newEventSummary() eventSummary {
	return eventSummary{flags: make(map[string]*flagSummary)}
}

// summarizeEvent folds a FeatureRequestEvent into the running summary. Other event types are
// ignored; they are never summarized.
func (s *eventSummarizer) summarizeEvent(evt Event) {
	fe, ok := evt.(FeatureRequestEvent)
	if !ok {
		return
	}

	fs, ok := s.eventsState.flags[fe.Key]
	if !ok {
		fs = &flagSummary{defaultValue: fe.Default, counters: make(map[variationVersionKey]*counterValue)}
		s.eventsState.flags[fe.Key] = fs
	}

	key := variationVersionKey{variation: fe.Variation, version: fe.Version}
	if cv, ok := fs.counters[key]; ok {
		cv.count++
	} else {
		fs.counters[key] = &counterValue{count: 1, value: fe.Value, unknown: !fe.Version.IsDefined()}
	}

	if s.eventsState.startDate == 0 || fe.CreationDate < s.eventsState.startDate {
		s.eventsState.startDate = fe.CreationDate
	}
	if fe.CreationDate > s.eventsState.endDate {
		s.eventsState.endDate = fe.CreationDate
	}
}

func (s *eventSummarizer) snapshot() eventSummary {
	return s.eventsState
}

func (s *eventSummarizer) reset() {
	s.eventsState = newEventSummary()
}
