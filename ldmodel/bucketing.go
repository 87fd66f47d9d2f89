package ldmodel

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

// bucketDivisor is 0xFFFFFFFFFFFFFFF (2^60 - 1), the denominator used to turn the first 15 hex
// characters of a SHA-1 digest into a fraction in [0, 1). This value, the hash algorithm, and the
// 15-character prefix length are a cross-SDK contract: user assignment to rollout buckets must
// agree across every LaunchDarkly SDK, so none of the three may change independently here.
const bucketDivisor = 1152921504606846975.0

// hashPrefixLength is the number of hex characters of the SHA-1 digest that are parsed as the
// bucket's integer numerator.
const hashPrefixLength = 15

// BucketUserValue resolves bucketByAttr (defaulting to "key") against the user's attributes,
// returning the string to bucket on and whether the attribute was bucketable. Only strings and
// numbers are bucketable; numbers are formatted with six fractional digits, matching every other
// LaunchDarkly SDK's bucketing contract.
func BucketUserValue(getAttr func(name string) (ldvalue.Value, bool), bucketByAttr string) (string, bool) {
	attr := bucketByAttr
	if attr == "" {
		attr = "key"
	}
	value, ok := getAttr(attr)
	if !ok {
		return "", false
	}
	switch value.Type() {
	case ldvalue.StringType:
		return value.StringValue(), true
	case ldvalue.NumberType:
		return strconv.FormatFloat(value.Float64Value(), 'f', 6, 64), true
	default:
		return "", false
	}
}

// Bucket computes the bucket fraction for a user within a flag or segment rollout. contextKey is
// the flag or segment key being evaluated, salt is its salt, bucketable is the resolved bucketBy
// value (see BucketUserValue), seed is an optional experiment seed (present for experiments, which
// bucket independently of contextKey and salt), and secondary is the user's optional secondary key.
//
// Returns a fraction in [0, 1). If bucketable is not bucketable (BucketUserValue's second return
// was false), callers should not call Bucket at all; they fall through to their own "not
// bucketable" handling instead (e.g. the rollout's last variation, or a segment rule miss).
func Bucket(contextKey, bucketable, salt string, seed ldvalue.OptionalInt, secondary string, hasSecondary bool) float64 {
	var input string
	if seed.IsDefined() {
		input = fmt.Sprintf("%d.%s", seed.IntValue(), bucketable)
	} else {
		input = fmt.Sprintf("%s.%s.%s", contextKey, salt, bucketable)
	}
	if hasSecondary && secondary != "" {
		input += "." + secondary
	}

	sum := sha1.Sum([]byte(input)) //nolint:gosec // cross-SDK bucketing contract requires SHA-1
	hexDigest := hex.EncodeToString(sum[:])
	prefix := hexDigest[:hashPrefixLength]

	numerator, err := strconv.ParseUint(prefix, 16, 64)
	if err != nil {
		return 0
	}
	return float64(numerator) / bucketDivisor
}
