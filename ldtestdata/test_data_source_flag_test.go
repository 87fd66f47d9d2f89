package ldtestdata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldmodel"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

var threeStringValues = []ldvalue.Value{ldvalue.String("red"), ldvalue.String("green"), ldvalue.String("blue")}

func buildFlag(configure func(*FlagBuilder)) ldmodel.FeatureFlag {
	f := newFlagBuilder("flagkey").BooleanFlag()
	configure(f)
	return f.createFlag(1)
}

func TestFlagConfigSimpleBoolean(t *testing.T) {
	f := buildFlag(func(f *FlagBuilder) {})
	assert.True(t, f.On)
	assert.Equal(t, []ldvalue.Value{ldvalue.Bool(true), ldvalue.Bool(false)}, f.Variations)
	assert.Equal(t, 0, f.Fallthrough.Variation.IntValue())
	assert.Equal(t, falseVariationForBool, f.OffVariation.IntValue())

	f = buildFlag(func(f *FlagBuilder) { f.On(false) })
	assert.False(t, f.On)

	f = buildFlag(func(f *FlagBuilder) { f.VariationForAll(false) })
	assert.Equal(t, falseVariationForBool, f.Fallthrough.Variation.IntValue())

	f = buildFlag(func(f *FlagBuilder) { f.FallthroughVariation(false).OffVariation(true) })
	assert.Equal(t, falseVariationForBool, f.Fallthrough.Variation.IntValue())
	assert.Equal(t, trueVariationForBool, f.OffVariation.IntValue())
}

func TestFlagConfigNonBooleanForcedBackToBoolean(t *testing.T) {
	f := buildFlag(func(f *FlagBuilder) {
		f.Variations(ldvalue.Int(1), ldvalue.Int(2))
		f.BooleanFlag()
	})
	assert.Equal(t, []ldvalue.Value{ldvalue.Bool(true), ldvalue.Bool(false)}, f.Variations)

	f = buildFlag(func(f *FlagBuilder) {
		f.ValueForAll(ldvalue.String("x"))
		f.BooleanFlag()
	})
	assert.Equal(t, []ldvalue.Value{ldvalue.Bool(true), ldvalue.Bool(false)}, f.Variations)
}

func TestFlagConfigStringVariations(t *testing.T) {
	f := buildFlag(func(f *FlagBuilder) {
		f.Variations(threeStringValues...).OffVariationIndex(0).FallthroughVariationIndex(2)
	})
	assert.Equal(t, threeStringValues, f.Variations)
	assert.Equal(t, 0, f.OffVariation.IntValue())
	assert.Equal(t, 2, f.Fallthrough.Variation.IntValue())

	f = buildFlag(func(f *FlagBuilder) {
		f.Variations(threeStringValues...).VariationForAllIndex(1)
	})
	assert.Equal(t, 1, f.Fallthrough.Variation.IntValue())
	assert.Empty(t, f.Targets)
	assert.Empty(t, f.Rules)
}

func TestFlagValueForAllReducesToSingleVariation(t *testing.T) {
	f := buildFlag(func(f *FlagBuilder) { f.ValueForAll(ldvalue.String("x")) })
	assert.Equal(t, []ldvalue.Value{ldvalue.String("x")}, f.Variations)
	assert.Equal(t, 0, f.Fallthrough.Variation.IntValue())
}

func TestFlagUserTargets(t *testing.T) {
	f := buildFlag(func(f *FlagBuilder) {
		f.VariationForUser("a", true).VariationForUser("b", true)
	})
	assert.Equal(t, []ldmodel.Target{{Variation: 0, Values: []string{"a", "b"}}}, f.Targets)

	f = buildFlag(func(f *FlagBuilder) {
		f.VariationForUser("a", true).VariationForUser("a", true)
	})
	assert.Equal(t, []ldmodel.Target{{Variation: 0, Values: []string{"a"}}}, f.Targets)

	f = buildFlag(func(f *FlagBuilder) {
		f.VariationForUser("a", false).VariationForUser("b", true).VariationForUser("c", false)
	})
	assert.Equal(t, []ldmodel.Target{
		{Variation: 0, Values: []string{"b"}},
		{Variation: 1, Values: []string{"a", "c"}},
	}, f.Targets)

	f = buildFlag(func(f *FlagBuilder) {
		f.VariationForUser("a", true).VariationForUser("b", true).VariationForUser("a", false)
	})
	assert.Equal(t, []ldmodel.Target{
		{Variation: 0, Values: []string{"b"}},
		{Variation: 1, Values: []string{"a"}},
	}, f.Targets)
}

func TestFlagClearTargetsRemovesTargets(t *testing.T) {
	f := buildFlag(func(f *FlagBuilder) {
		f.VariationForUser("a", true).ClearTargets()
	})
	assert.Empty(t, f.Targets)
}

func TestFlagRules(t *testing.T) {
	f := buildFlag(func(f *FlagBuilder) {
		f.IfMatch("name", ldvalue.String("Patsy"), ldvalue.String("Edina")).ThenReturn(true)
	})
	if assert.Len(t, f.Rules, 1) {
		rule := f.Rules[0]
		assert.Equal(t, "rule0", rule.ID)
		assert.Equal(t, trueVariationForBool, rule.Variation.IntValue())
		assert.Equal(t, []ldmodel.Clause{{
			Attribute: "name",
			Op:        "in",
			Values:    []ldvalue.Value{ldvalue.String("Patsy"), ldvalue.String("Edina")},
		}}, rule.Clauses)
	}
}

func TestFlagRulesWithMultipleClauses(t *testing.T) {
	f := buildFlag(func(f *FlagBuilder) {
		f.IfMatch("name", ldvalue.String("Patsy")).AndNotMatch("country", ldvalue.String("gb")).ThenReturn(true)
	})
	if assert.Len(t, f.Rules, 1) {
		assert.Len(t, f.Rules[0].Clauses, 2)
		assert.False(t, f.Rules[0].Clauses[0].Negate)
		assert.True(t, f.Rules[0].Clauses[1].Negate)
	}
}

func TestFlagMultipleRulesAreOrdered(t *testing.T) {
	f := buildFlag(func(f *FlagBuilder) {
		f.IfMatch("name", ldvalue.String("a")).ThenReturn(true)
		f.IfMatch("name", ldvalue.String("b")).ThenReturn(false)
	})
	if assert.Len(t, f.Rules, 2) {
		assert.Equal(t, "rule0", f.Rules[0].ID)
		assert.Equal(t, "rule1", f.Rules[1].ID)
	}
}

func TestFlagClearRulesRemovesRules(t *testing.T) {
	f := buildFlag(func(f *FlagBuilder) {
		f.IfMatch("name", ldvalue.String("a")).ThenReturn(true)
		f.ClearRules()
	})
	assert.Empty(t, f.Rules)
}

func TestCopyFlagBuilderIsIndependent(t *testing.T) {
	original := newFlagBuilder("flagkey").BooleanFlag().VariationForUser("a", true)
	clone := copyFlagBuilder(original)
	clone.VariationForUser("b", true)

	originalFlag := original.createFlag(1)
	cloneFlag := clone.createFlag(1)
	assert.Equal(t, []ldmodel.Target{{Variation: 0, Values: []string{"a"}}}, originalFlag.Targets)
	assert.Equal(t, []ldmodel.Target{{Variation: 0, Values: []string{"a", "b"}}}, cloneFlag.Targets)
}
