package ldreason

import "github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"

// EvaluationDetail combines the result of a flag evaluation with an explanation of how it was
// calculated.
type EvaluationDetail struct {
	// Value is the result of the flag evaluation: one of the flag's variations, or the default
	// value passed to the evaluation method.
	Value ldvalue.Value
	// VariationIndex is the index of the returned value within the flag's list of variations.
	// It is undefined if the default value was returned because of an error.
	VariationIndex ldvalue.OptionalInt
	// Reason explains the main factor that influenced the flag evaluation value.
	Reason EvaluationReason
}

// IsDefaultValue returns true if the evaluation result was the caller-supplied default value,
// that is, if VariationIndex is undefined. This happens when Reason.GetKind() is EvalReasonError,
// and also when the flag is off and has no off variation (Reason.GetKind() is EvalReasonOff).
func (d EvaluationDetail) IsDefaultValue() bool {
	return !d.VariationIndex.IsDefined()
}

// NewEvaluationDetail constructs an EvaluationDetail for a successful evaluation.
func NewEvaluationDetail(value ldvalue.Value, variationIndex int, reason EvaluationReason) EvaluationDetail {
	return EvaluationDetail{Value: value, VariationIndex: ldvalue.NewOptionalInt(variationIndex), Reason: reason}
}

// NewEvaluationError constructs an EvaluationDetail for a failed evaluation.
func NewEvaluationError(defaultValue ldvalue.Value, errorKind EvalErrorKind) EvaluationDetail {
	return EvaluationDetail{Value: defaultValue, Reason: NewEvalReasonError(errorKind)}
}
