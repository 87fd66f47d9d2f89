package ldevents

import (
	"github.com/launchdarkly/go-server-sdk-evalcore/ldreason"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldtime"
	"github.com/launchdarkly/go-server-sdk-evalcore/lduser"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

// FlagEventProperties is the events package's view of a feature flag: just enough information to
// decide how an evaluation of that flag should be recorded, without a dependency on the flag data
// model itself.
type FlagEventProperties interface {
	GetKey() string
	GetVersion() int
	IsFullEventTrackingEnabled() bool
	GetDebugEventsUntilDate() ldtime.UnixMillisecondTime
	IsExperimentationEnabled(reason ldreason.EvaluationReason) bool
}

// Event is implemented by every event type the processor can accept.
type Event interface {
	GetBase() BaseEvent
}

// BaseEvent contains the fields common to every event type.
type BaseEvent struct {
	CreationDate ldtime.UnixMillisecondTime
	User         lduser.User
}

// GetBase implements Event.
func (b BaseEvent) GetBase() BaseEvent { return b }

// FeatureRequestEvent describes a single flag evaluation.
type FeatureRequestEvent struct {
	BaseEvent
	Key                  string
	Value                ldvalue.Value
	Default              ldvalue.Value
	Variation            ldvalue.OptionalInt
	Version              ldvalue.OptionalInt
	PrereqOf             ldvalue.OptionalString
	Reason               ldreason.EvaluationReason
	TrackReason          bool
	TrackEvents          bool
	DebugEventsUntilDate ldtime.UnixMillisecondTime
	Debug                bool
}

// IdentifyEvent records that a user was seen, with their full attributes.
type IdentifyEvent struct {
	BaseEvent
}

// IndexEvent is generated the first time a given user is referenced by an event, so the analytics
// store has a record of their attributes without requiring every event to carry a full user.
type IndexEvent struct {
	BaseEvent
}

// CustomEvent records an application-defined event, optionally with a numeric metric value.
type CustomEvent struct {
	BaseEvent
	Key         string
	Data        ldvalue.Value
	HasMetric   bool
	MetricValue float64
}

// AliasEvent associates two user/context keys as referring to the same underlying person.
type AliasEvent struct {
	CreationDate        ldtime.UnixMillisecondTime
	Key                 string
	ContextKind         string
	PreviousKey         string
	PreviousContextKind string
}

// GetBase implements Event. AliasEvent carries no user, so this returns a BaseEvent with only the
// creation date set.
func (e AliasEvent) GetBase() BaseEvent {
	return BaseEvent{CreationDate: e.CreationDate}
}

// EventFactory creates analytics events, deciding along the way whether full evaluation reasons
// should be attached.
type EventFactory struct {
	withReasons    bool
	timestampFn    func() ldtime.UnixMillisecondTime
}

// NewEventFactory creates an EventFactory. If timestampFn is nil, the current time is used for
// every event's creation date.
func NewEventFactory(withReasons bool, timestampFn func() ldtime.UnixMillisecondTime) EventFactory {
	return EventFactory{withReasons: withReasons, timestampFn: timestampFn}
}

func (f EventFactory) currentTime() ldtime.UnixMillisecondTime {
	if f.timestampFn != nil {
		return f.timestampFn()
	}
	return ldtime.UnixMillisNow()
}

// NewEvalEvent creates a FeatureRequestEvent for the result of evaluating a known flag.
func (f EventFactory) NewEvalEvent(
	flag FlagEventProperties,
	user lduser.User,
	detail ldreason.EvaluationDetail,
	defaultVal ldvalue.Value,
	prereqOf string,
) FeatureRequestEvent {
	requireExperimentData := flag.IsExperimentationEnabled(detail.Reason)
	trackEvents := flag.IsFullEventTrackingEnabled() || requireExperimentData

	evt := FeatureRequestEvent{
		BaseEvent:            BaseEvent{CreationDate: f.currentTime(), User: user},
		Key:                  flag.GetKey(),
		Value:                detail.Value,
		Default:              defaultVal,
		Version:              ldvalue.NewOptionalInt(flag.GetVersion()),
		Reason:               detail.Reason,
		TrackReason:          requireExperimentData,
		TrackEvents:          trackEvents,
		DebugEventsUntilDate: flag.GetDebugEventsUntilDate(),
	}
	if detail.VariationIndex.IsDefined() {
		evt.Variation = ldvalue.NewOptionalInt(detail.VariationIndex.IntValue())
	}
	if prereqOf != "" {
		evt.PrereqOf = ldvalue.NewOptionalString(prereqOf)
	}
	if f.withReasons {
		evt.TrackReason = true
	}
	return evt
}

// NewUnknownFlagEvent creates a FeatureRequestEvent for a flag key that could not be found.
func (f EventFactory) NewUnknownFlagEvent(
	key string,
	user lduser.User,
	defaultVal ldvalue.Value,
	reason ldreason.EvaluationReason,
) FeatureRequestEvent {
	return FeatureRequestEvent{
		BaseEvent:   BaseEvent{CreationDate: f.currentTime(), User: user},
		Key:         key,
		Value:       defaultVal,
		Default:     defaultVal,
		Reason:      reason,
		TrackReason: f.withReasons,
	}
}

// NewIdentifyEvent creates an IdentifyEvent for user.
func (f EventFactory) NewIdentifyEvent(user lduser.User) IdentifyEvent {
	return IdentifyEvent{BaseEvent: BaseEvent{CreationDate: f.currentTime(), User: user}}
}

// NewCustomEvent creates a CustomEvent. hasMetric and metricValue are only meaningful together;
// pass hasMetric false to omit the metric value entirely.
func (f EventFactory) NewCustomEvent(
	key string,
	user lduser.User,
	data ldvalue.Value,
	hasMetric bool,
	metricValue float64,
) CustomEvent {
	return CustomEvent{
		BaseEvent:   BaseEvent{CreationDate: f.currentTime(), User: user},
		Key:         key,
		Data:        data,
		HasMetric:   hasMetric,
		MetricValue: metricValue,
	}
}

// NewAliasEvent creates an AliasEvent linking two user keys.
func (f EventFactory) NewAliasEvent(key, contextKind, previousKey, previousContextKind string) AliasEvent {
	return AliasEvent{
		CreationDate:        f.currentTime(),
		Key:                 key,
		ContextKind:         contextKind,
		PreviousKey:         previousKey,
		PreviousContextKind: previousContextKind,
	}
}
