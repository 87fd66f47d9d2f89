package ldtime

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixMillisFromTime(t *testing.T) {
	instant := time.Date(2021, 6, 15, 12, 30, 45, 500*int(time.Millisecond), time.UTC)
	assert.Equal(t, UnixMillisecondTime(1623760245500), UnixMillisFromTime(instant))
}

func TestUnixMillisNowIsCurrent(t *testing.T) {
	before := UnixMillisFromTime(time.Now())
	now := UnixMillisNow()
	after := UnixMillisFromTime(time.Now())
	assert.GreaterOrEqual(t, uint64(now), uint64(before))
	assert.GreaterOrEqual(t, uint64(after), uint64(now))
}

// The events service reports its clock in an RFC-1123 Date response header; parsing that header
// and converting to milliseconds must land within a second of the original instant, since the
// header format has only second resolution.
func TestHTTPDateHeaderRoundTrip(t *testing.T) {
	instant := time.Date(2021, 6, 15, 12, 30, 45, 0, time.UTC)
	header := instant.Format(http.TimeFormat)

	parsed, err := http.ParseTime(header)
	require.NoError(t, err)
	ms := UnixMillisFromTime(parsed)

	assert.InDelta(t, float64(UnixMillisFromTime(instant)), float64(ms), 1000)

	reformatted := time.UnixMilli(int64(ms)).UTC().Format(http.TimeFormat)
	assert.Equal(t, header, reformatted)
}
