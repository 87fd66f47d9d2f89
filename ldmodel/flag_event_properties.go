package ldmodel

import (
	"github.com/launchdarkly/go-server-sdk-evalcore/ldreason"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldtime"
)

// FlagEventProperties is a view of FeatureFlag that answers the questions the events package
// needs to decide how to track an evaluation, without the events package importing ldmodel.
type FlagEventProperties FeatureFlag

// GetKey returns the flag key.
func (p FlagEventProperties) GetKey() string {
	return p.Key
}

// GetVersion returns the flag version.
func (p FlagEventProperties) GetVersion() int {
	return p.Version
}

// IsFullEventTrackingEnabled returns true if the flag has been configured to always generate
// detailed event data.
func (p FlagEventProperties) IsFullEventTrackingEnabled() bool {
	return p.TrackEvents
}

// GetDebugEventsUntilDate returns zero normally, but if event debugging has been temporarily
// enabled for the flag, it returns the time at which debugging mode should expire.
func (p FlagEventProperties) GetDebugEventsUntilDate() ldtime.UnixMillisecondTime {
	if !p.DebugEventsUntilDate.IsDefined() {
		return 0
	}
	return ldtime.UnixMillisecondTime(p.DebugEventsUntilDate.IntValue())
}

// IsExperimentationEnabled returns true if, based on the EvaluationReason returned by the flag
// evaluation, an event for that evaluation should have full tracking enabled and always report
// the reason even if the application didn't explicitly request this. For instance, this is true
// if a rule was matched that had tracking enabled for that specific rule.
//
// This differs from IsFullEventTrackingEnabled in that it is dependent on the result of a
// specific evaluation; also, IsFullEventTrackingEnabled being true does not imply that the event
// should always contain a reason, whereas IsExperimentationEnabled being true does force the
// reason to be included.
func (p FlagEventProperties) IsExperimentationEnabled(reason ldreason.EvaluationReason) bool {
	switch reason.GetKind() {
	case ldreason.EvalReasonFallthrough:
		return p.TrackEventsFallthrough
	case ldreason.EvalReasonRuleMatch:
		i := reason.GetRuleIndex()
		if i >= 0 && i < len(p.Rules) {
			return p.Rules[i].TrackEvents
		}
	}
	return false
}
