// Package flagstate provides the AllFlags snapshot type and its builder.
package flagstate

import (
	"encoding/json"
	"fmt"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldreason"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldtime"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

// AllFlags captures the result of evaluating every flag for one user at one moment, as returned
// by LDClient.AllFlagsState. Front ends consume it instead of re-running evaluation: marshalling
// it with json.Marshal produces the bootstrap document the LaunchDarkly JavaScript client reads.
type AllFlags struct {
	flags map[string]FlagState
	valid bool
}

// FlagState is one flag's entry within AllFlags: the evaluation result plus the metadata an
// event-generating client would need (version, tracking settings, debug window).
type FlagState struct {
	// Value is what the flag evaluated to for the snapshot's user.
	Value ldvalue.Value

	// Variation is the index of the chosen variation, absent when the evaluation produced no
	// variation (off with no off-variation, or an error).
	Variation ldvalue.OptionalInt

	// Version is the flag's version at evaluation time. Every flag in a snapshot has one, so
	// this is a plain int; unknown flag keys simply have no entry.
	Version int

	// Reason explains how the value was chosen. It is only populated when reasons were
	// requested, or when TrackReason forces it.
	Reason ldreason.EvaluationReason

	// TrackEvents mirrors the flag's own event-tracking setting.
	TrackEvents bool

	// TrackReason is set when the evaluation landed on a rule or fallthrough that is part of an
	// experiment (see ldmodel.FlagEventProperties.IsExperimentationEnabled); the reason must
	// then reach the front end whether or not reasons were requested.
	TrackReason bool

	// DebugEventsUntilDate, when non-zero, is the end of the flag's debug-event window.
	DebugEventsUntilDate ldtime.UnixMillisecondTime

	// OmitDetails marks a flag whose version and reason are withheld from the JSON form under
	// OptionDetailsOnlyForTrackedFlags. The variation index is kept either way.
	OmitDetails bool
}

// IsValid is false when the snapshot could not be built at all (client offline or not yet
// initialized, data store unreachable); such a snapshot contains no flag data.
func (a AllFlags) IsValid() bool {
	return a.valid
}

// GetFlag returns one flag's recorded state and whether the key was present in the snapshot.
func (a AllFlags) GetFlag(flagKey string) (FlagState, bool) {
	f, ok := a.flags[flagKey]
	return f, ok
}

// GetValue returns one flag's evaluated value, or ldvalue.Null() if the flag evaluated to its
// default or the key is not in the snapshot. Shorthand for GetFlag(flagKey).Value.
func (a AllFlags) GetValue(flagKey string) ldvalue.Value {
	return a.flags[flagKey].Value
}

// ToValuesMap projects the snapshot down to a flag-key-to-value map, discarding all metadata.
// For bootstrapping a front-end client use json.Marshal on the AllFlags itself instead; this
// projection has no $flagsState section.
func (a AllFlags) ToValuesMap() map[string]ldvalue.Value {
	values := make(map[string]ldvalue.Value, len(a.flags))
	for key, flag := range a.flags {
		values[key] = flag.Value
	}
	return values
}

// MarshalJSON produces the bootstrap document format: each flag key mapped to its value at the
// top level, a $valid marker, and a $flagsState section holding the per-flag metadata.
func (a AllFlags) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(a.flags)+2)
	doc["$valid"] = a.valid
	metadata := make(map[string]map[string]interface{}, len(a.flags))
	for key, flag := range a.flags {
		doc[key] = flag.Value
		metadata[key] = flag.metadataJSON()
	}
	doc["$flagsState"] = metadata
	return json.Marshal(doc)
}

func (f FlagState) metadataJSON() map[string]interface{} {
	m := make(map[string]interface{}, 5)
	if f.Variation.IsDefined() {
		m["variation"] = f.Variation.IntValue()
	}
	if !f.OmitDetails {
		m["version"] = f.Version
		if f.Reason.GetKind() != "" {
			m["reason"] = f.Reason
		}
	}
	if f.TrackEvents {
		m["trackEvents"] = true
	}
	if f.TrackReason {
		m["trackReason"] = true
	}
	if f.DebugEventsUntilDate > 0 {
		m["debugEventsUntilDate"] = uint64(f.DebugEventsUntilDate)
	}
	return m
}

// Option is the interface for optional parameters that can be passed to LDClient.AllFlagsState.
type Option interface {
	fmt.Stringer
	apply(*allFlagsOptions)
}

type allFlagsOptions struct {
	withReasons          bool
	detailsOnlyIfTracked bool
}

type clientSideOnlyOption struct{}
type withReasonsOption struct{}
type detailsOnlyForTrackedFlagsOption struct{}

// OptionClientSideOnly restricts the snapshot to flags marked as available to client-side
// (environment-ID) SDKs. By default every flag is included.
func OptionClientSideOnly() Option {
	return clientSideOnlyOption{}
}

// OptionWithReasons includes each flag's evaluation reason in the snapshot. By default reasons
// are dropped, since they are the largest piece of per-flag metadata.
func OptionWithReasons() Option {
	return withReasonsOption{}
}

// OptionDetailsOnlyForTrackedFlags omits metadata that exists only to support event generation
// (version, reason) for any flag that has neither event tracking nor an active debugging window,
// shrinking the document when it is being shipped to a front end.
func OptionDetailsOnlyForTrackedFlags() Option {
	return detailsOnlyForTrackedFlagsOption{}
}

func (o clientSideOnlyOption) String() string { return "ClientSideOnly" }

func (o clientSideOnlyOption) apply(options *allFlagsOptions) {
	// Filtering happens while the caller enumerates flags, before AddFlag; nothing to record here.
}

func (o withReasonsOption) String() string { return "WithReasons" }

func (o withReasonsOption) apply(options *allFlagsOptions) {
	options.withReasons = true
}

func (o detailsOnlyForTrackedFlagsOption) String() string { return "DetailsOnlyForTrackedFlags" }

func (o detailsOnlyForTrackedFlagsOption) apply(options *allFlagsOptions) {
	options.detailsOnlyIfTracked = true
}

// AllFlagsBuilder accumulates FlagState entries into an AllFlags snapshot, applying the chosen
// options as flags are added. It is used by LDClient.AllFlagsState and usable from test code.
// Builder methods are not safe for concurrent use.
type AllFlagsBuilder struct {
	state   AllFlags
	options allFlagsOptions
}

// NewAllFlagsBuilder creates a builder; the snapshot it builds will report IsValid() == true.
func NewAllFlagsBuilder(options ...Option) *AllFlagsBuilder {
	b := &AllFlagsBuilder{
		state: AllFlags{
			flags: make(map[string]FlagState),
			valid: true,
		},
	}
	for _, o := range options {
		o.apply(&b.options)
	}
	return b
}

// Build returns an immutable snapshot of everything added so far.
func (b *AllFlagsBuilder) Build() AllFlags {
	s := b.state
	s.flags = make(map[string]FlagState, len(b.state.flags))
	for k, v := range b.state.flags {
		s.flags[k] = v
	}
	return s
}

// AddFlag records one flag's state, applying the builder options: a flag that earns no detail
// under OptionDetailsOnlyForTrackedFlags is marked OmitDetails, and the reason is stripped
// unless reasons were requested or the evaluation itself forces reason tracking.
func (b *AllFlagsBuilder) AddFlag(flagKey string, flag FlagState) *AllFlagsBuilder {
	if b.options.detailsOnlyIfTracked {
		debugActive := flag.DebugEventsUntilDate != 0 && flag.DebugEventsUntilDate > ldtime.UnixMillisNow()
		if !flag.TrackEvents && !flag.TrackReason && !debugActive {
			flag.OmitDetails = true
		}
	}
	if !b.options.withReasons && !flag.TrackReason {
		flag.Reason = ldreason.EvaluationReason{}
	}
	b.state.flags[flagKey] = flag
	return b
}
