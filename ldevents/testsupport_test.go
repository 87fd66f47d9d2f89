package ldevents

import "github.com/launchdarkly/go-server-sdk-evalcore/ldlog"

// testLoggers returns a Loggers value configured to discard everything, for use in tests that
// don't want log noise but also don't want to depend on a particular test-only package.
func testLoggers() ldlog.Loggers {
	var loggers ldlog.Loggers
	loggers.SetMinLevel(ldlog.None)
	return loggers
}
