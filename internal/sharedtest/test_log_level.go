package sharedtest

import "github.com/launchdarkly/go-server-sdk-evalcore/ldlog"

// NewTestLoggers returns a standardized logger instance used by unit tests. Log output is
// suppressed by default; change the SetMinLevel argument below to ldlog.Debug to see it when
// debugging a test.
func NewTestLoggers() ldlog.Loggers {
	ret := ldlog.Loggers{}
	ret.SetMinLevel(ldlog.None)
	return ret
}
