// Package ldreason defines the types used to explain why a flag evaluation produced a
// particular result: EvaluationReason and EvaluationDetail.
package ldreason

import (
	"encoding/json"
	"fmt"
)

// EvalReasonKind defines the possible values of EvaluationReason.Kind.
type EvalReasonKind string

const (
	// EvalReasonOff indicates that the flag was off and therefore returned its configured off value.
	EvalReasonOff EvalReasonKind = "OFF"
	// EvalReasonTargetMatch indicates that the user key was specifically targeted for this flag.
	EvalReasonTargetMatch EvalReasonKind = "TARGET_MATCH"
	// EvalReasonRuleMatch indicates that the user matched one of the flag's rules.
	EvalReasonRuleMatch EvalReasonKind = "RULE_MATCH"
	// EvalReasonPrerequisiteFailed indicates that the flag was considered off because it had at
	// least one prerequisite flag that either was off or did not return the desired variation.
	EvalReasonPrerequisiteFailed EvalReasonKind = "PREREQUISITE_FAILED"
	// EvalReasonFallthrough indicates that the flag was on but the user did not match any targets
	// or rules.
	EvalReasonFallthrough EvalReasonKind = "FALLTHROUGH"
	// EvalReasonError indicates that the flag could not be evaluated, e.g. because it does not
	// exist or due to an unexpected error. The result value will be the default value that the
	// caller passed to the evaluation method.
	EvalReasonError EvalReasonKind = "ERROR"
)

// EvalErrorKind defines the possible values of EvaluationReason.ErrorKind.
type EvalErrorKind string

const (
	// EvalErrorClientNotReady indicates that the caller tried to evaluate a flag before the store
	// had been initialized with flag data.
	EvalErrorClientNotReady EvalErrorKind = "CLIENT_NOT_READY"
	// EvalErrorFlagNotFound indicates that the caller provided a flag key that did not match any
	// known flag.
	EvalErrorFlagNotFound EvalErrorKind = "FLAG_NOT_FOUND"
	// EvalErrorMalformedFlag indicates that there was an internal inconsistency in the flag data,
	// e.g. a rule specified a nonexistent variation, or a prerequisite cycle was detected.
	EvalErrorMalformedFlag EvalErrorKind = "MALFORMED_FLAG"
	// EvalErrorUserNotSpecified indicates that the caller passed a user without a key.
	EvalErrorUserNotSpecified EvalErrorKind = "USER_NOT_SPECIFIED"
	// EvalErrorWrongType indicates that the result value was not of the requested type.
	EvalErrorWrongType EvalErrorKind = "WRONG_TYPE"
	// EvalErrorException indicates that an unexpected error stopped flag evaluation.
	EvalErrorException EvalErrorKind = "EXCEPTION"
)

// EvaluationReason describes why a flag evaluation produced the value it did.
//
// This struct is immutable; construct one with the New* factory functions below.
type EvaluationReason struct {
	kind            EvalReasonKind
	ruleIndex       int
	hasRuleIndex    bool
	ruleID          string
	prerequisiteKey string
	inExperiment    bool
	errorKind       EvalErrorKind
}

// GetKind describes the general category of the reason.
func (r EvaluationReason) GetKind() EvalReasonKind { return r.kind }

// GetRuleIndex returns the index of the matched rule (0 being the first) if Kind is
// EvalReasonRuleMatch, or -1 otherwise.
func (r EvaluationReason) GetRuleIndex() int {
	if r.hasRuleIndex {
		return r.ruleIndex
	}
	return -1
}

// GetRuleID returns the unique identifier of the matched rule if Kind is EvalReasonRuleMatch,
// or an empty string otherwise.
func (r EvaluationReason) GetRuleID() string { return r.ruleID }

// GetPrerequisiteKey returns the flag key of the prerequisite that failed, if Kind is
// EvalReasonPrerequisiteFailed, or an empty string otherwise.
func (r EvaluationReason) GetPrerequisiteKey() string { return r.prerequisiteKey }

// IsInExperiment reports whether the evaluation landed in a rollout bucket that was marked
// as part of an experiment (and was not the untracked variation).
func (r EvaluationReason) IsInExperiment() bool { return r.inExperiment }

// GetErrorKind describes the type of error, if Kind is EvalReasonError, or an empty string
// otherwise.
func (r EvaluationReason) GetErrorKind() EvalErrorKind { return r.errorKind }

// String returns a concise representation such as "OFF" or "ERROR(WRONG_TYPE)", for logging.
func (r EvaluationReason) String() string {
	switch r.kind {
	case EvalReasonRuleMatch:
		return fmt.Sprintf("%s(%d,%s)", r.kind, r.ruleIndex, r.ruleID)
	case EvalReasonPrerequisiteFailed:
		return fmt.Sprintf("%s(%s)", r.kind, r.prerequisiteKey)
	case EvalReasonError:
		return fmt.Sprintf("%s(%s)", r.kind, r.errorKind)
	default:
		return string(r.kind)
	}
}

// NewEvalReasonOff returns a reason whose Kind is EvalReasonOff.
func NewEvalReasonOff() EvaluationReason { return EvaluationReason{kind: EvalReasonOff} }

// NewEvalReasonFallthrough returns a reason whose Kind is EvalReasonFallthrough.
func NewEvalReasonFallthrough() EvaluationReason {
	return EvaluationReason{kind: EvalReasonFallthrough}
}

// NewEvalReasonFallthroughExperiment is like NewEvalReasonFallthrough but records whether the
// fallthrough rollout put the user in an experiment.
func NewEvalReasonFallthroughExperiment(inExperiment bool) EvaluationReason {
	return EvaluationReason{kind: EvalReasonFallthrough, inExperiment: inExperiment}
}

// NewEvalReasonTargetMatch returns a reason whose Kind is EvalReasonTargetMatch.
func NewEvalReasonTargetMatch() EvaluationReason {
	return EvaluationReason{kind: EvalReasonTargetMatch}
}

// NewEvalReasonRuleMatch returns a reason whose Kind is EvalReasonRuleMatch.
func NewEvalReasonRuleMatch(ruleIndex int, ruleID string) EvaluationReason {
	return EvaluationReason{kind: EvalReasonRuleMatch, ruleIndex: ruleIndex, hasRuleIndex: true, ruleID: ruleID}
}

// NewEvalReasonRuleMatchExperiment is like NewEvalReasonRuleMatch but records whether the rule's
// rollout put the user in an experiment.
func NewEvalReasonRuleMatchExperiment(ruleIndex int, ruleID string, inExperiment bool) EvaluationReason {
	return EvaluationReason{
		kind: EvalReasonRuleMatch, ruleIndex: ruleIndex, hasRuleIndex: true, ruleID: ruleID, inExperiment: inExperiment,
	}
}

// NewEvalReasonPrerequisiteFailed returns a reason whose Kind is EvalReasonPrerequisiteFailed.
func NewEvalReasonPrerequisiteFailed(prerequisiteKey string) EvaluationReason {
	return EvaluationReason{kind: EvalReasonPrerequisiteFailed, prerequisiteKey: prerequisiteKey}
}

// NewEvalReasonError returns a reason whose Kind is EvalReasonError.
func NewEvalReasonError(errorKind EvalErrorKind) EvaluationReason {
	return EvaluationReason{kind: EvalReasonError, errorKind: errorKind}
}

type reasonJSON struct {
	Kind            EvalReasonKind `json:"kind"`
	ErrorKind       *EvalErrorKind `json:"errorKind,omitempty"`
	RuleIndex       *int           `json:"ruleIndex,omitempty"`
	RuleID          string         `json:"ruleId,omitempty"`
	PrerequisiteKey string         `json:"prerequisiteKey,omitempty"`
	InExperiment    bool           `json:"inExperiment,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r EvaluationReason) MarshalJSON() ([]byte, error) {
	out := reasonJSON{Kind: r.kind, RuleID: r.ruleID, PrerequisiteKey: r.prerequisiteKey, InExperiment: r.inExperiment}
	if r.hasRuleIndex {
		idx := r.ruleIndex
		out.RuleIndex = &idx
	}
	if r.kind == EvalReasonError {
		ek := r.errorKind
		out.ErrorKind = &ek
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *EvaluationReason) UnmarshalJSON(data []byte) error {
	var in reasonJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := EvaluationReason{
		kind: in.Kind, ruleID: in.RuleID, prerequisiteKey: in.PrerequisiteKey, inExperiment: in.InExperiment,
	}
	if in.RuleIndex != nil {
		out.ruleIndex = *in.RuleIndex
		out.hasRuleIndex = true
	}
	if in.ErrorKind != nil {
		out.errorKind = *in.ErrorKind
	}
	*r = out
	return nil
}
