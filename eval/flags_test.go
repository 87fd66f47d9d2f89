package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldmodel"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldreason"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
	"github.com/launchdarkly/go-server-sdk-evalcore/lduser"
)

type mockData struct {
	flags    map[string]ldmodel.FeatureFlag
	segments map[string]ldmodel.Segment
}

func (m mockData) GetFlag(key string) (ldmodel.FeatureFlag, bool) {
	f, ok := m.flags[key]
	return f, ok
}

func (m mockData) GetSegment(key string) (ldmodel.Segment, bool) {
	s, ok := m.segments[key]
	return s, ok
}

func boolFlag(key string, on bool, variations ...ldvalue.Value) ldmodel.FeatureFlag {
	return ldmodel.FeatureFlag{
		Key:          key,
		On:           on,
		Variations:   variations,
		OffVariation: ldvalue.NewOptionalInt(0),
		Fallthrough:  ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(1)},
	}
}

func TestEvaluateOffReturnsOffVariation(t *testing.T) {
	flag := boolFlag("flag", false, ldvalue.String("off"), ldvalue.String("on"))
	user := lduser.NewUser("user1")
	result := Evaluate(flag, user, mockData{}, ldvalue.String("default"))
	assert.Equal(t, "off", result.Detail.Value.StringValue())
	assert.Equal(t, ldreason.EvalReasonOff, result.Detail.Reason.GetKind())
}

func TestEvaluateOffWithNoOffVariationIsAbsentNotError(t *testing.T) {
	flag := boolFlag("flag", false, ldvalue.String("off"), ldvalue.String("on"))
	flag.OffVariation = ldvalue.OptionalInt{}
	user := lduser.NewUser("user1")
	result := Evaluate(flag, user, mockData{}, ldvalue.String("default"))
	assert.False(t, result.Detail.VariationIndex.IsDefined())
	assert.Equal(t, ldreason.EvalReasonOff, result.Detail.Reason.GetKind())
	assert.Equal(t, ldreason.EvalErrorKind(""), result.Detail.Reason.GetErrorKind())
}

func TestEvaluateFallthrough(t *testing.T) {
	flag := boolFlag("flag", true, ldvalue.String("off"), ldvalue.String("on"))
	user := lduser.NewUser("user1")
	result := Evaluate(flag, user, mockData{}, ldvalue.String("default"))
	assert.Equal(t, "on", result.Detail.Value.StringValue())
	assert.Equal(t, ldreason.EvalReasonFallthrough, result.Detail.Reason.GetKind())
}

func TestEvaluateTargetMatch(t *testing.T) {
	flag := boolFlag("flag", true, ldvalue.String("off"), ldvalue.String("on"))
	flag.Targets = []ldmodel.Target{{Values: []string{"user1"}, Variation: 0}}
	user := lduser.NewUser("user1")
	result := Evaluate(flag, user, mockData{}, ldvalue.String("default"))
	assert.Equal(t, "off", result.Detail.Value.StringValue())
	assert.Equal(t, ldreason.EvalReasonTargetMatch, result.Detail.Reason.GetKind())
}

func TestEvaluateRuleMatch(t *testing.T) {
	flag := boolFlag("flag", true, ldvalue.String("off"), ldvalue.String("on"))
	flag.Rules = []ldmodel.FlagRule{
		{
			ID: "rule1",
			Clauses: []ldmodel.Clause{
				{Attribute: "country", Op: "in", Values: []ldvalue.Value{ldvalue.String("fr")}},
			},
			VariationOrRollout: ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(0)},
		},
	}
	user := lduser.NewUserBuilder("user1").Custom("country", ldvalue.String("fr")).Build()
	result := Evaluate(flag, user, mockData{}, ldvalue.String("default"))
	assert.Equal(t, "off", result.Detail.Value.StringValue())
	assert.Equal(t, ldreason.EvalReasonRuleMatch, result.Detail.Reason.GetKind())
	assert.Equal(t, 0, result.Detail.Reason.GetRuleIndex())
	assert.Equal(t, "rule1", result.Detail.Reason.GetRuleID())
}

func TestEvaluatePrerequisiteFailed(t *testing.T) {
	main := boolFlag("feature0", true, ldvalue.String("off"), ldvalue.String("on"))
	main.Prerequisites = []ldmodel.Prerequisite{{Key: "feature1", Variation: 1}}
	main.OffVariation = ldvalue.NewOptionalInt(1)

	prereq := ldmodel.FeatureFlag{
		Key:          "feature1",
		On:           false,
		Variations:   []ldvalue.Value{ldvalue.String("nogo"), ldvalue.String("go")},
		OffVariation: ldvalue.NewOptionalInt(1),
	}

	data := mockData{flags: map[string]ldmodel.FeatureFlag{"feature1": prereq}}
	user := lduser.NewUser("user1")
	result := Evaluate(main, user, data, ldvalue.String("default"))

	assert.Equal(t, "on", result.Detail.Value.StringValue())
	assert.Equal(t, ldreason.EvalReasonPrerequisiteFailed, result.Detail.Reason.GetKind())
	assert.Equal(t, "feature1", result.Detail.Reason.GetPrerequisiteKey())
	assert.Len(t, result.PrerequisiteEvents, 1)
	assert.Equal(t, "feature1", result.PrerequisiteEvents[0].FlagKey)
	assert.Equal(t, "go", result.PrerequisiteEvents[0].Detail.Value.StringValue())
	assert.Equal(t, 1, result.PrerequisiteEvents[0].Detail.VariationIndex.IntValue())
	assert.Equal(t, "feature0", result.PrerequisiteEvents[0].PrerequisiteOf)
}

func TestEvaluatePrerequisiteCycleIsMalformedFlag(t *testing.T) {
	a := boolFlag("a", true, ldvalue.String("off"), ldvalue.String("on"))
	a.Prerequisites = []ldmodel.Prerequisite{{Key: "b", Variation: 1}}
	b := boolFlag("b", true, ldvalue.String("off"), ldvalue.String("on"))
	b.Prerequisites = []ldmodel.Prerequisite{{Key: "a", Variation: 1}}

	data := mockData{flags: map[string]ldmodel.FeatureFlag{"a": a, "b": b}}
	user := lduser.NewUser("user1")
	result := Evaluate(a, user, data, ldvalue.String("default"))

	assert.Equal(t, ldreason.EvalReasonError, result.Detail.Reason.GetKind())
	assert.Equal(t, ldreason.EvalErrorMalformedFlag, result.Detail.Reason.GetErrorKind())
}

func TestEvaluateSegmentMatch(t *testing.T) {
	flag := boolFlag("flag", true, ldvalue.String("off"), ldvalue.String("on"))
	flag.Rules = []ldmodel.FlagRule{
		{
			Clauses: []ldmodel.Clause{
				{Attribute: "key", Op: "segmentMatch", Values: []ldvalue.Value{ldvalue.String("seg1")}},
			},
			VariationOrRollout: ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(0)},
		},
	}
	segment := ldmodel.Segment{Key: "seg1", Included: []string{"user1"}}
	data := mockData{segments: map[string]ldmodel.Segment{"seg1": segment}}
	user := lduser.NewUser("user1")
	result := Evaluate(flag, user, data, ldvalue.String("default"))
	assert.Equal(t, "off", result.Detail.Value.StringValue())
	assert.Equal(t, ldreason.EvalReasonRuleMatch, result.Detail.Reason.GetKind())
}

func TestEvaluateRolloutFallthrough(t *testing.T) {
	flag := boolFlag("hashKey", true, ldvalue.String("fall"), ldvalue.String("off"), ldvalue.String("on"))
	flag.Salt = "saltyA"
	flag.Fallthrough = ldmodel.VariationOrRollout{
		Rollout: &ldmodel.Rollout{
			Kind: ldmodel.RolloutKindExperiment,
			Variations: []ldmodel.WeightedVariation{
				{Variation: 0, Weight: 100000},
			},
		},
	}
	user := lduser.NewUser("userKeyA")
	result := Evaluate(flag, user, mockData{}, ldvalue.String("default"))
	assert.Equal(t, "fall", result.Detail.Value.StringValue())
	assert.Equal(t, 0, result.Detail.VariationIndex.IntValue())
	assert.Equal(t, ldreason.EvalReasonFallthrough, result.Detail.Reason.GetKind())
	assert.True(t, result.Detail.Reason.IsInExperiment())
}
