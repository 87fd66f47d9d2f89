// Package eval implements the evaluation algorithm: resolving a feature flag to a value for a
// given user, including prerequisites, targets, rules, segment matching, and rollouts.
package eval

import (
	"github.com/launchdarkly/go-server-sdk-evalcore/ldmodel"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldreason"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
	"github.com/launchdarkly/go-server-sdk-evalcore/lduser"
)

// DataProvider is the evaluator's view of the store: lookups by key, returning (item, found).
// A deleted item must be reported as not found, matching the store's "live items only" contract.
type DataProvider interface {
	GetFlag(key string) (ldmodel.FeatureFlag, bool)
	GetSegment(key string) (ldmodel.Segment, bool)
}

// PrerequisiteEvent describes one prerequisite flag's own evaluation, produced as a side effect
// of evaluating a flag that depends on it.
type PrerequisiteEvent struct {
	FlagKey        string
	User           lduser.User
	Detail         ldreason.EvaluationDetail
	PrerequisiteOf string
}

// Result is the outcome of evaluating a single top-level flag.
type Result struct {
	Detail             ldreason.EvaluationDetail
	PrerequisiteEvents []PrerequisiteEvent
}

// Evaluate resolves flag for user against data, returning the evaluation detail and any
// prerequisite side events. defaultValue is substituted as Detail.Value when the result is an
// error (it is never itself evaluated).
func Evaluate(flag ldmodel.FeatureFlag, user lduser.User, data DataProvider, defaultValue ldvalue.Value) Result {
	if user.Key() == "" {
		return Result{Detail: ldreason.NewEvaluationError(defaultValue, ldreason.EvalErrorUserNotSpecified)}
	}

	events := make([]PrerequisiteEvent, 0)
	detail, err := evaluateInternal(flag, user, data, defaultValue, map[string]bool{}, &events)
	if err != errNone {
		return Result{Detail: ldreason.NewEvaluationError(defaultValue, ldreason.EvalErrorKind(err))}
	}
	return Result{Detail: detail, PrerequisiteEvents: events}
}

// evalErr is a sentinel for "evaluation failed with this error kind", distinct from "miss".
type evalErr ldreason.EvalErrorKind

const errNone evalErr = ""

func evaluateInternal(
	flag ldmodel.FeatureFlag,
	user lduser.User,
	data DataProvider,
	defaultValue ldvalue.Value,
	visited map[string]bool,
	events *[]PrerequisiteEvent,
) (ldreason.EvaluationDetail, evalErr) {
	if !flag.On {
		return offResult(flag)
	}

	if reason, failed, evalError := checkPrerequisites(flag, user, data, defaultValue, visited, events); evalError != errNone {
		return ldreason.EvaluationDetail{}, evalError
	} else if failed {
		return offResultWithReason(flag, reason)
	}

	if idx, ok := matchTarget(flag, user); ok {
		return variationResult(flag, idx, ldreason.NewEvalReasonTargetMatch())
	}

	for ruleIndex, rule := range flag.Rules {
		matched, evalError := ruleMatches(rule, user, data)
		if evalError != errNone {
			return ldreason.EvaluationDetail{}, evalError
		}
		if !matched {
			continue
		}
		idx, inExperiment, ok := resolveVariationOrRollout(rule.VariationOrRollout, flag.Key, flag.Salt, user)
		if !ok {
			return ldreason.EvaluationDetail{}, evalErr(ldreason.EvalErrorMalformedFlag)
		}
		return variationResult(flag, idx, ldreason.NewEvalReasonRuleMatchExperiment(ruleIndex, rule.ID, inExperiment))
	}

	idx, inExperiment, ok := resolveVariationOrRollout(flag.Fallthrough, flag.Key, flag.Salt, user)
	if !ok {
		return ldreason.EvaluationDetail{}, evalErr(ldreason.EvalErrorMalformedFlag)
	}
	return variationResult(flag, idx, ldreason.NewEvalReasonFallthroughExperiment(inExperiment))
}

func offResult(flag ldmodel.FeatureFlag) (ldreason.EvaluationDetail, evalErr) {
	return offResultWithReason(flag, ldreason.NewEvalReasonOff())
}

func offResultWithReason(flag ldmodel.FeatureFlag, reason ldreason.EvaluationReason) (ldreason.EvaluationDetail, evalErr) {
	if !flag.OffVariation.IsDefined() {
		return ldreason.EvaluationDetail{Reason: reason}, errNone
	}
	idx := flag.OffVariation.IntValue()
	if idx < 0 || idx >= len(flag.Variations) {
		return ldreason.EvaluationDetail{}, evalErr(ldreason.EvalErrorMalformedFlag)
	}
	return ldreason.NewEvaluationDetail(flag.Variations[idx], idx, reason), errNone
}

func variationResult(flag ldmodel.FeatureFlag, idx int, reason ldreason.EvaluationReason) (ldreason.EvaluationDetail, evalErr) {
	if idx < 0 || idx >= len(flag.Variations) {
		return ldreason.EvaluationDetail{}, evalErr(ldreason.EvalErrorMalformedFlag)
	}
	return ldreason.NewEvaluationDetail(flag.Variations[idx], idx, reason), errNone
}

// checkPrerequisites recursively evaluates each prerequisite flag, appending one PrerequisiteEvent
// per prerequisite. It returns (failureReason, true, errNone) for the first unsatisfied
// prerequisite, or (zero, false, errNone) if all are satisfied.
func checkPrerequisites(
	flag ldmodel.FeatureFlag,
	user lduser.User,
	data DataProvider,
	defaultValue ldvalue.Value,
	visited map[string]bool,
	events *[]PrerequisiteEvent,
) (ldreason.EvaluationReason, bool, evalErr) {
	for _, prereq := range flag.Prerequisites {
		if visited[prereq.Key] {
			return ldreason.EvaluationReason{}, false, evalErr(ldreason.EvalErrorMalformedFlag)
		}
		prereqFlag, found := data.GetFlag(prereq.Key)
		if !found {
			return ldreason.NewEvalReasonPrerequisiteFailed(prereq.Key), true, errNone
		}

		childVisited := make(map[string]bool, len(visited)+1)
		for k, v := range visited {
			childVisited[k] = v
		}
		childVisited[flag.Key] = true

		prereqDetail, evalError := evaluateInternal(prereqFlag, user, data, ldvalue.Null(), childVisited, events)
		if evalError != errNone {
			return ldreason.EvaluationReason{}, false, evalError
		}

		*events = append(*events, PrerequisiteEvent{
			FlagKey:        prereq.Key,
			User:           user,
			Detail:         prereqDetail,
			PrerequisiteOf: flag.Key,
		})

		satisfied := prereqFlag.On && prereqDetail.VariationIndex.IsDefined() &&
			prereqDetail.VariationIndex.IntValue() == prereq.Variation
		if !satisfied {
			return ldreason.NewEvalReasonPrerequisiteFailed(prereq.Key), true, errNone
		}
	}
	return ldreason.EvaluationReason{}, false, errNone
}

func matchTarget(flag ldmodel.FeatureFlag, user lduser.User) (int, bool) {
	key := user.Key()
	for _, target := range flag.Targets {
		for _, v := range target.Values {
			if v == key {
				return target.Variation, true
			}
		}
	}
	return 0, false
}

func ruleMatches(rule ldmodel.FlagRule, user lduser.User, data DataProvider) (bool, evalErr) {
	for _, clause := range rule.Clauses {
		matched, evalError := clauseMatches(clause, user, data)
		if evalError != errNone {
			return false, evalError
		}
		if !matched {
			return false, errNone
		}
	}
	return true, errNone
}

func clauseMatches(clause ldmodel.Clause, user lduser.User, data DataProvider) (bool, evalErr) {
	if clause.Op == "segmentMatch" {
		matched := false
		for _, v := range clause.Values {
			if !v.IsString() {
				continue
			}
			segment, found := data.GetSegment(v.StringValue())
			if !found {
				continue
			}
			if segmentMatches(segment, user) {
				matched = true
				break
			}
		}
		if clause.Negate {
			return !matched, errNone
		}
		return matched, errNone
	}

	value, ok := user.GetAttribute(clause.Attribute)
	if !ok || value.IsNull() {
		return false, errNone
	}
	return ldmodel.MatchClauseNoSegments(clause, value), errNone
}

func segmentMatches(segment ldmodel.Segment, user lduser.User) bool {
	key := user.Key()
	for _, k := range segment.Included {
		if k == key {
			return true
		}
	}
	for _, k := range segment.Excluded {
		if k == key {
			return false
		}
	}
	for _, rule := range segment.Rules {
		if segmentRuleMatches(rule, user, segment.Key, segment.Salt) {
			return true
		}
	}
	return false
}

func segmentRuleMatches(rule ldmodel.SegmentRule, user lduser.User, segmentKey, salt string) bool {
	for _, clause := range rule.Clauses {
		value, ok := user.GetAttribute(clause.Attribute)
		if !ok || value.IsNull() || !ldmodel.MatchClauseNoSegments(clause, value) {
			return false
		}
	}
	if !rule.Weight.IsDefined() {
		return true
	}
	bucketBy := rule.BucketBy
	if bucketBy == "" {
		bucketBy = "key"
	}
	bucketable, bucketableOK := ldmodel.BucketUserValue(user.GetAttribute, bucketBy)
	if !bucketableOK {
		return false
	}
	secondary, hasSecondary := user.Secondary()
	bucket := ldmodel.Bucket(segmentKey, bucketable, salt, ldvalue.OptionalInt{}, secondary, hasSecondary)
	return bucket < float64(rule.Weight.IntValue())/100000.0
}

// resolveVariationOrRollout resolves a VariationOrRollout to a variation index, returning
// (index, inExperiment, ok). ok is false for a malformed rollout (no variations).
func resolveVariationOrRollout(vr ldmodel.VariationOrRollout, flagKey, salt string, user lduser.User) (int, bool, bool) {
	if vr.Variation.IsDefined() {
		return vr.Variation.IntValue(), false, true
	}
	rollout := vr.Rollout
	if rollout == nil || len(rollout.Variations) == 0 {
		return 0, false, false
	}

	inExperiment := rollout.Kind == ldmodel.RolloutKindExperiment
	bucketBy := rollout.BucketBy
	if bucketBy == "" {
		bucketBy = "key"
	}
	secondary, hasSecondary := user.Secondary()

	var bucket float64
	if bucketable, ok := ldmodel.BucketUserValue(user.GetAttribute, bucketBy); ok {
		bucket = ldmodel.Bucket(flagKey, bucketable, salt, rollout.Seed, secondary, hasSecondary)
	} else {
		bucket = 0
	}

	var sum float64
	last := rollout.Variations[len(rollout.Variations)-1]
	for _, wv := range rollout.Variations {
		sum += float64(wv.Weight) / 100000.0
		if bucket < sum {
			if wv.Untracked {
				inExperiment = false
			}
			return wv.Variation, inExperiment, true
		}
	}
	if last.Untracked {
		inExperiment = false
	}
	return last.Variation, inExperiment, true
}
