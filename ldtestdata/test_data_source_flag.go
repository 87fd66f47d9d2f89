package ldtestdata

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldmodel"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

const (
	trueVariationForBool  = 0
	falseVariationForBool = 1
)

// FlagBuilder is a builder for feature flag configurations to be used with TestDataSource.
type FlagBuilder struct {
	key                  string
	on                   bool
	offVariation         ldvalue.OptionalInt
	fallthroughVariation ldvalue.OptionalInt
	variations           []ldvalue.Value
	targets              map[int]map[string]bool
	rules                []*RuleBuilder
}

// RuleBuilder is a builder for feature flag rules to be used with TestDataSource.
//
// A flag can have any number of rules, and a rule can have any number of clauses. A clause is an
// individual test such as "name is 'X'". A rule matches a user if all of its clauses match.
//
// To start defining a rule, use one of the flag builder's matching methods such as IfMatch. This
// defines the first clause for the rule. Optionally, add more clauses with methods like AndMatch.
// Finally, call ThenReturn or ThenReturnIndex to finish defining the rule.
type RuleBuilder struct {
	owner     *FlagBuilder
	variation int
	clauses   []ldmodel.Clause
}

func newFlagBuilder(key string) *FlagBuilder {
	return &FlagBuilder{key: key, on: true}
}

func copyFlagBuilder(from *FlagBuilder) *FlagBuilder {
	f := new(FlagBuilder)
	*f = *from
	f.variations = slices.Clone(from.variations)
	if f.rules != nil {
		f.rules = make([]*RuleBuilder, 0, len(from.rules))
		for _, r := range from.rules {
			f.rules = append(f.rules, copyTestFlagRuleBuilder(r, f))
		}
	}
	if f.targets != nil {
		f.targets = make(map[int]map[string]bool, len(from.targets))
		for variation, keys := range from.targets {
			clone := make(map[string]bool, len(keys))
			for k, v := range keys {
				clone[k] = v
			}
			f.targets[variation] = clone
		}
	}
	return f
}

// BooleanFlag is a shortcut for setting the flag to use the standard boolean configuration.
//
// This is the default for all new flags created with TestDataSource.Flag. The flag will have two
// variations, true and false (in that order); it will return false whenever targeting is off, and
// true when targeting is on if no other settings specify otherwise.
func (f *FlagBuilder) BooleanFlag() *FlagBuilder {
	if f.isBooleanFlag() {
		return f
	}
	return f.Variations(ldvalue.Bool(true), ldvalue.Bool(false)).
		FallthroughVariationIndex(trueVariationForBool).
		OffVariationIndex(falseVariationForBool)
}

// On sets targeting to be on or off for this flag.
//
// The effect of this depends on the rest of the flag configuration, just as it does on the real
// LaunchDarkly dashboard. In the default configuration from TestDataSource.Flag with a new flag
// key, the flag returns false whenever targeting is off, and true when targeting is on.
func (f *FlagBuilder) On(on bool) *FlagBuilder {
	f.on = on
	return f
}

// FallthroughVariation specifies the fallthrough variation for a boolean flag: the value returned
// when targeting is on and the user was not matched by a more specific target or rule.
//
// If the flag previously had other variations, this also changes it to a boolean flag.
//
// To specify the variation by index instead, for a non-boolean flag, use
// FallthroughVariationIndex.
func (f *FlagBuilder) FallthroughVariation(variation bool) *FlagBuilder {
	return f.BooleanFlag().FallthroughVariationIndex(variationForBool(variation))
}

// FallthroughVariationIndex specifies the index of the fallthrough variation: the value returned
// when targeting is on and the user was not matched by a more specific target or rule. The index
// is 0 for the first variation, 1 for the second, and so on.
//
// To specify the variation as true or false instead, for a boolean flag, use
// FallthroughVariation.
func (f *FlagBuilder) FallthroughVariationIndex(variationIndex int) *FlagBuilder {
	f.fallthroughVariation = ldvalue.NewOptionalInt(variationIndex)
	return f
}

// OffVariation specifies the off variation for a boolean flag: the variation returned whenever
// targeting is off.
//
// If the flag previously had other variations, this also changes it to a boolean flag.
//
// To specify the variation by index instead, for a non-boolean flag, use OffVariationIndex.
func (f *FlagBuilder) OffVariation(variation bool) *FlagBuilder {
	return f.BooleanFlag().OffVariationIndex(variationForBool(variation))
}

// OffVariationIndex specifies the index of the off variation: the variation returned whenever
// targeting is off. The index is 0 for the first variation, 1 for the second, and so on.
//
// To specify the variation as true or false instead, for a boolean flag, use OffVariation.
func (f *FlagBuilder) OffVariationIndex(variationIndex int) *FlagBuilder {
	f.offVariation = ldvalue.NewOptionalInt(variationIndex)
	return f
}

// VariationForAll sets the flag to return the specified boolean variation by default for all
// users.
//
// Targeting is switched on, any existing targets or rules are removed, and the flag's variations
// are set to true and false. The fallthrough variation is set to the specified value. The off
// variation is left unchanged.
//
// To specify the variation by index instead, for a non-boolean flag, use VariationForAllIndex.
func (f *FlagBuilder) VariationForAll(variation bool) *FlagBuilder {
	return f.BooleanFlag().VariationForAllIndex(variationForBool(variation))
}

// VariationForAllIndex sets the flag to always return the specified variation for all users. The
// index is 0 for the first variation, 1 for the second, and so on.
//
// Targeting is switched on, and any existing targets or rules are removed. The fallthrough
// variation is set to the specified value. The off variation is left unchanged.
//
// To specify the variation as true or false instead, for a boolean flag, use VariationForAll.
func (f *FlagBuilder) VariationForAllIndex(variationIndex int) *FlagBuilder {
	return f.On(true).ClearRules().ClearTargets().FallthroughVariationIndex(variationIndex)
}

// ValueForAll sets the flag to always return the specified variation value for all users.
//
// The value may be of any JSON type, as defined by ldvalue.Value. This changes the flag to have
// only a single variation, which is this value, returned regardless of whether targeting is on or
// off. Any existing targets or rules are removed.
func (f *FlagBuilder) ValueForAll(value ldvalue.Value) *FlagBuilder {
	f.variations = []ldvalue.Value{value}
	return f.VariationForAllIndex(0)
}

// VariationForUser sets the flag to return the specified boolean variation for a specific user
// key when targeting is on.
//
// This has no effect when targeting is turned off for the flag.
//
// If the flag was not already a boolean flag, this also changes it to a boolean flag.
//
// To specify the variation by index instead, for a non-boolean flag, use VariationIndexForUser.
func (f *FlagBuilder) VariationForUser(userKey string, variation bool) *FlagBuilder {
	return f.BooleanFlag().VariationIndexForUser(userKey, variationForBool(variation))
}

// VariationIndexForUser sets the flag to return the specified variation for a specific user key
// when targeting is on. The index is 0 for the first variation, 1 for the second, and so on.
//
// This has no effect when targeting is turned off for the flag.
//
// To specify the variation as true or false instead, for a boolean flag, use VariationForUser.
func (f *FlagBuilder) VariationIndexForUser(userKey string, variationIndex int) *FlagBuilder {
	if f.targets == nil {
		f.targets = make(map[int]map[string]bool)
	}
	for i := range f.variations {
		keys := f.targets[i]
		if i == variationIndex {
			if keys == nil {
				keys = make(map[string]bool)
				f.targets[i] = keys
			}
			keys[userKey] = true
		} else {
			delete(keys, userKey)
		}
	}
	return f
}

// Variations changes the allowable variation values for the flag.
//
// The values may be of any JSON type, as defined by ldvalue.Value. For instance, a boolean flag
// normally has ldvalue.Bool(true), ldvalue.Bool(false); a string-valued flag might have
// ldvalue.String("red"), ldvalue.String("green"); etc.
func (f *FlagBuilder) Variations(values ...ldvalue.Value) *FlagBuilder {
	f.variations = slices.Clone(values)
	return f
}

// IfMatch starts defining a flag rule, using the "is one of" operator.
//
// The method returns a RuleBuilder. Call its ThenReturn or ThenReturnIndex method to finish the
// rule, or add more clauses with another method like AndMatch.
//
// For example, this creates a rule that returns true if the user's name attribute is "Patsy" or
// "Edina":
//
//	testData.Flag("flag").
//		IfMatch("name", ldvalue.String("Patsy"), ldvalue.String("Edina")).
//		ThenReturn(true)
func (f *FlagBuilder) IfMatch(attribute string, values ...ldvalue.Value) *RuleBuilder {
	return newTestFlagRuleBuilder(f).AndMatch(attribute, values...)
}

// IfNotMatch starts defining a flag rule, using the "is not one of" operator.
//
// The method returns a RuleBuilder. Call its ThenReturn or ThenReturnIndex method to finish the
// rule, or add more clauses with another method like AndMatch.
//
// For example, this creates a rule that returns true if the user's name attribute is neither
// "Saffron" nor "Bubble":
//
//	testData.Flag("flag").
//		IfNotMatch("name", ldvalue.String("Saffron"), ldvalue.String("Bubble")).
//		ThenReturn(true)
func (f *FlagBuilder) IfNotMatch(attribute string, values ...ldvalue.Value) *RuleBuilder {
	return newTestFlagRuleBuilder(f).AndNotMatch(attribute, values...)
}

// ClearRules removes any existing rules from the flag. This undoes the effect of methods like
// IfMatch.
func (f *FlagBuilder) ClearRules() *FlagBuilder {
	f.rules = nil
	return f
}

// ClearTargets removes any existing user targets from the flag. This undoes the effect of methods
// like VariationForUser.
func (f *FlagBuilder) ClearTargets() *FlagBuilder {
	f.targets = nil
	return f
}

func (f *FlagBuilder) isBooleanFlag() bool {
	return len(f.variations) == 2 &&
		f.variations[trueVariationForBool].Equal(ldvalue.Bool(true)) &&
		f.variations[falseVariationForBool].Equal(ldvalue.Bool(false))
}

func (f *FlagBuilder) createFlag(version int) ldmodel.FeatureFlag {
	flag := ldmodel.FeatureFlag{
		Key:         f.key,
		Version:     version,
		On:          f.on,
		Variations:  slices.Clone(f.variations),
		Fallthrough: ldmodel.VariationOrRollout{},
	}
	if f.offVariation.IsDefined() {
		flag.OffVariation = f.offVariation
	}
	if f.fallthroughVariation.IsDefined() {
		flag.Fallthrough.Variation = f.fallthroughVariation
	}

	// Sort the target variation indexes and the keys within each, for deterministic output.
	variationIndexes := make([]int, 0, len(f.targets))
	for variation := range f.targets {
		variationIndexes = append(variationIndexes, variation)
	}
	sort.Ints(variationIndexes)
	for _, variation := range variationIndexes {
		keysMap := f.targets[variation]
		keys := make([]string, 0, len(keysMap))
		for key := range keysMap {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			flag.Targets = append(flag.Targets, ldmodel.Target{Variation: variation, Values: keys})
		}
	}

	for i, r := range f.rules {
		flag.Rules = append(flag.Rules, ldmodel.FlagRule{
			ID:                 fmt.Sprintf("rule%d", i),
			Clauses:            r.clauses,
			VariationOrRollout: ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(r.variation)},
		})
	}
	return flag
}

func newTestFlagRuleBuilder(owner *FlagBuilder) *RuleBuilder {
	return &RuleBuilder{owner: owner}
}

func copyTestFlagRuleBuilder(from *RuleBuilder, owner *FlagBuilder) *RuleBuilder {
	return &RuleBuilder{owner: owner, variation: from.variation, clauses: slices.Clone(from.clauses)}
}

// AndMatch adds another clause, using the "is one of" operator.
//
// For example, this creates a rule that returns true if the user's name attribute is "Patsy" and
// the country is "gb":
//
//	testData.Flag("flag").
//		IfMatch("name", ldvalue.String("Patsy")).
//		AndMatch("country", ldvalue.String("gb")).
//		ThenReturn(true)
func (r *RuleBuilder) AndMatch(attribute string, values ...ldvalue.Value) *RuleBuilder {
	r.clauses = append(r.clauses, ldmodel.Clause{Attribute: attribute, Op: "in", Values: slices.Clone(values)})
	return r
}

// AndNotMatch adds another clause, using the "is not one of" operator.
//
// For example, this creates a rule that returns true if the user's name attribute is "Patsy" and
// the country is not "gb":
//
//	testData.Flag("flag").
//		IfMatch("name", ldvalue.String("Patsy")).
//		AndNotMatch("country", ldvalue.String("gb")).
//		ThenReturn(true)
func (r *RuleBuilder) AndNotMatch(attribute string, values ...ldvalue.Value) *RuleBuilder {
	r.clauses = append(r.clauses,
		ldmodel.Clause{Attribute: attribute, Op: "in", Values: slices.Clone(values), Negate: true})
	return r
}

// ThenReturn finishes defining the rule, specifying the result value as a boolean.
func (r *RuleBuilder) ThenReturn(variation bool) *FlagBuilder {
	r.owner.BooleanFlag()
	return r.ThenReturnIndex(variationForBool(variation))
}

// ThenReturnIndex finishes defining the rule, specifying the result as a variation index. The
// index is 0 for the first variation, 1 for the second, and so on.
func (r *RuleBuilder) ThenReturnIndex(variation int) *FlagBuilder {
	r.variation = variation
	r.owner.rules = append(r.owner.rules, r)
	return r.owner
}

func variationForBool(value bool) int {
	if value {
		return trueVariationForBool
	}
	return falseVariationForBool
}
