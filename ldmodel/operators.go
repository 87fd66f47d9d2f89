package ldmodel

import (
	"regexp"
	"strings"
	"time"

	"github.com/launchdarkly/go-semver"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

// opFn is a binary predicate over a user's attribute value and a clause value.
type opFn func(userValue, clauseValue ldvalue.Value) bool

// operatorNone is the answer for an unregistered operator name: never a match, never an error.
func operatorNone(ldvalue.Value, ldvalue.Value) bool { return false }

var allOps = map[string]opFn{
	"in":                 operatorIn,
	"startsWith":         operatorStartsWith,
	"endsWith":           operatorEndsWith,
	"contains":           operatorContains,
	"lessThan":           operatorLessThan,
	"lessThanOrEqual":    operatorLessThanOrEqual,
	"greaterThan":        operatorGreaterThan,
	"greaterThanOrEqual": operatorGreaterThanOrEqual,
	"matches":            operatorMatches,
	"before":             operatorBefore,
	"after":              operatorAfter,
	"semVerEqual":        operatorSemVerEqual,
	"semVerLessThan":     operatorSemVerLessThan,
	"semVerGreaterThan":  operatorSemVerGreaterThan,
}

// operatorFn looks up an operator by name. An unregistered name yields a predicate that always
// reports a miss, never an error.
func operatorFn(name string) opFn {
	if op, ok := allOps[name]; ok {
		return op
	}
	return operatorNone
}

func operatorIn(u, c ldvalue.Value) bool {
	return u.Equal(c)
}

func operatorStartsWith(u, c ldvalue.Value) bool {
	return u.IsString() && c.IsString() && strings.HasPrefix(u.StringValue(), c.StringValue())
}

func operatorEndsWith(u, c ldvalue.Value) bool {
	return u.IsString() && c.IsString() && strings.HasSuffix(u.StringValue(), c.StringValue())
}

func operatorContains(u, c ldvalue.Value) bool {
	return u.IsString() && c.IsString() && strings.Contains(u.StringValue(), c.StringValue())
}

func operatorLessThan(u, c ldvalue.Value) bool {
	return u.IsNumber() && c.IsNumber() && u.Float64Value() < c.Float64Value()
}

func operatorLessThanOrEqual(u, c ldvalue.Value) bool {
	return u.IsNumber() && c.IsNumber() && u.Float64Value() <= c.Float64Value()
}

func operatorGreaterThan(u, c ldvalue.Value) bool {
	return u.IsNumber() && c.IsNumber() && u.Float64Value() > c.Float64Value()
}

func operatorGreaterThanOrEqual(u, c ldvalue.Value) bool {
	return u.IsNumber() && c.IsNumber() && u.Float64Value() >= c.Float64Value()
}

func operatorMatches(u, c ldvalue.Value) bool {
	if !u.IsString() || !c.IsString() {
		return false
	}
	re, err := regexp.Compile(c.StringValue())
	if err != nil {
		return false
	}
	return re.MatchString(u.StringValue())
}

func operatorBefore(u, c ldvalue.Value) bool {
	ut, ok1 := parseInstant(u)
	ct, ok2 := parseInstant(c)
	return ok1 && ok2 && ut.Before(ct)
}

func operatorAfter(u, c ldvalue.Value) bool {
	ut, ok1 := parseInstant(u)
	ct, ok2 := parseInstant(c)
	return ok1 && ok2 && ut.After(ct)
}

// parseInstant accepts a number (unix milliseconds) or an ISO-8601/RFC3339 timestamp string.
func parseInstant(v ldvalue.Value) (time.Time, bool) {
	if v.IsNumber() {
		ms := v.Float64Value()
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	if v.IsString() {
		t, err := time.Parse(time.RFC3339Nano, v.StringValue())
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

func operatorSemVerEqual(u, c ldvalue.Value) bool {
	uv, cv, ok := parseSemVerPair(u, c)
	return ok && uv.ComparePrecedence(cv) == 0
}

func operatorSemVerLessThan(u, c ldvalue.Value) bool {
	uv, cv, ok := parseSemVerPair(u, c)
	return ok && uv.ComparePrecedence(cv) < 0
}

func operatorSemVerGreaterThan(u, c ldvalue.Value) bool {
	uv, cv, ok := parseSemVerPair(u, c)
	return ok && uv.ComparePrecedence(cv) > 0
}

func parseSemVerPair(u, c ldvalue.Value) (semver.Version, semver.Version, bool) {
	if !u.IsString() || !c.IsString() {
		return semver.Version{}, semver.Version{}, false
	}
	uv, err := semver.ParseAs(u.StringValue(), semver.ParseModeAllowMissingMinorAndPatch)
	if err != nil {
		return semver.Version{}, semver.Version{}, false
	}
	cv, err := semver.ParseAs(c.StringValue(), semver.ParseModeAllowMissingMinorAndPatch)
	if err != nil {
		return semver.Version{}, semver.Version{}, false
	}
	return uv, cv, true
}

// matchAny implements the clause match rule: userValue matches clauseValues if the operator
// returns true for at least one of them.
func matchAny(op opFn, userValue ldvalue.Value, clauseValues []ldvalue.Value) bool {
	for _, cv := range clauseValues {
		if op(userValue, cv) {
			return true
		}
	}
	return false
}

// MatchClauseNoSegments evaluates a non-segmentMatch clause against a single resolved user
// attribute value, applying matchAny and the clause's negate flag. Callers that need a full
// clause (including segmentMatch, which needs a Segment lookup and a user) live in the eval
// package.
func MatchClauseNoSegments(clause Clause, userValue ldvalue.Value) bool {
	op := operatorFn(clause.Op)
	var matched bool
	if userValue.Type() == ldvalue.ArrayType {
		matched = false
		for _, element := range userValue.AsSlice() {
			if element.Type() == ldvalue.ArrayType || element.Type() == ldvalue.ObjectType {
				continue
			}
			if matchAny(op, element, clause.Values) {
				matched = true
				break
			}
		}
	} else {
		matched = matchAny(op, userValue, clause.Values)
	}
	if clause.Negate {
		return !matched
	}
	return matched
}
