// Package ldmodel defines the flag and segment data model, and the operators and bucketing
// function used to interpret it. These types mirror the JSON schema that a data source
// delivers into the store; they carry no evaluation state of their own.
package ldmodel

import "github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"

// FeatureFlag is the data model object for a feature flag.
type FeatureFlag struct {
	Key                    string               `json:"key"`
	Version                int                  `json:"version"`
	Deleted                bool                 `json:"deleted,omitempty"`
	On                     bool                 `json:"on"`
	Variations             []ldvalue.Value      `json:"variations"`
	OffVariation           ldvalue.OptionalInt  `json:"offVariation"`
	Fallthrough            VariationOrRollout   `json:"fallthrough"`
	Targets                []Target             `json:"targets,omitempty"`
	Rules                  []FlagRule           `json:"rules,omitempty"`
	Prerequisites          []Prerequisite       `json:"prerequisites,omitempty"`
	Salt                   string               `json:"salt"`
	TrackEvents            bool                 `json:"trackEvents,omitempty"`
	TrackEventsFallthrough bool                 `json:"trackEventsFallthrough,omitempty"`
	DebugEventsUntilDate   ldvalue.OptionalInt  `json:"debugEventsUntilDate,omitempty"`
	ClientSide             ClientSideAvailability `json:"-"`
}

// Target is a set of user keys that are explicitly assigned a variation.
type Target struct {
	Values    []string `json:"values"`
	Variation int      `json:"variation"`
}

// Prerequisite is a reference to another flag that must evaluate to a specific variation.
type Prerequisite struct {
	Key       string `json:"key"`
	Variation int    `json:"variation"`
}

// FlagRule is one rule within a flag: a conjunction of clauses plus the variation or rollout
// to use when all clauses match.
type FlagRule struct {
	ID      string   `json:"id,omitempty"`
	Clauses []Clause `json:"clauses,omitempty"`
	VariationOrRollout
	TrackEvents bool `json:"trackEvents,omitempty"`
}

// Clause is one predicate within a rule or segment rule.
type Clause struct {
	Attribute string          `json:"attribute"`
	Op        string          `json:"op"`
	Values    []ldvalue.Value `json:"values"`
	Negate    bool            `json:"negate,omitempty"`
}

// VariationOrRollout specifies either a direct variation index or a weighted Rollout.
type VariationOrRollout struct {
	Variation ldvalue.OptionalInt `json:"variation"`
	Rollout   *Rollout            `json:"rollout,omitempty"`
}

// RolloutKind distinguishes a plain percentage rollout from an experiment.
type RolloutKind string

const (
	// RolloutKindRollout is a plain weighted rollout; IsInExperiment is always false.
	RolloutKindRollout RolloutKind = "rollout"
	// RolloutKindExperiment is a rollout whose bucketed variations (other than untracked ones)
	// are reported as being part of an experiment.
	RolloutKindExperiment RolloutKind = "experiment"
)

// Rollout describes a percentage-based split across variations.
type Rollout struct {
	Kind       RolloutKind         `json:"kind,omitempty"`
	Seed       ldvalue.OptionalInt `json:"seed,omitempty"`
	Variations []WeightedVariation `json:"variations"`
	BucketBy   string              `json:"bucketBy,omitempty"`
}

// WeightedVariation is one entry of a Rollout.
type WeightedVariation struct {
	Variation int  `json:"variation"`
	Weight    int  `json:"weight"`
	Untracked bool `json:"untracked,omitempty"`
}

// ClientSideAvailability records which of the two wire schemas for client-side visibility was
// used when the flag was parsed, so re-serialization can round-trip it.
type ClientSideAvailability struct {
	UsingEnvironmentID bool
	UsingMobileKey     bool
	Explicit           bool
}

// Segment is the data model object for a user segment.
type Segment struct {
	Key      string        `json:"key"`
	Version  int           `json:"version"`
	Deleted  bool          `json:"deleted,omitempty"`
	Salt     string        `json:"salt"`
	Included []string      `json:"included,omitempty"`
	Excluded []string      `json:"excluded,omitempty"`
	Rules    []SegmentRule `json:"rules,omitempty"`
}

// SegmentRule is one rule within a segment.
type SegmentRule struct {
	Clauses  []Clause            `json:"clauses,omitempty"`
	Weight   ldvalue.OptionalInt `json:"weight,omitempty"`
	BucketBy string              `json:"bucketBy,omitempty"`
}
