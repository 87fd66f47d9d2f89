package ldevents

import "fmt"

// describeUserForErrorLog renders a user identity for a log message, respecting the
// logUserKeyInErrors setting that controls whether raw user keys may appear in logs.
func describeUserForErrorLog(key string, logUserKeyInErrors bool) string {
	if !logUserKeyInErrors {
		return "a user (enable LogUserKeyInErrors to see the user key)"
	}
	return fmt.Sprintf("user '%s'", key)
}

// httpErrorMessage formats a log line for an HTTP error response from the events service,
// noting whether the SDK will retry or has given up for good.
func httpErrorMessage(statusCode int, context string, recoverableMessage string) string {
	statusDesc := ""
	if statusCode == 401 {
		statusDesc = " (invalid SDK key)"
	}
	outcome := recoverableMessage
	if !isHTTPErrorRecoverable(statusCode) {
		outcome = "giving up permanently"
	}
	return fmt.Sprintf("Received HTTP error %d%s for %s - %s", statusCode, statusDesc, context, outcome)
}

// isHTTPErrorRecoverable reports whether an HTTP error status from the events service is one
// worth retrying (any non-4xx status, plus 400, 408 for a timeout and 429 for a rate limit)
// versus one that will never succeed on retry (any other 4xx, such as 401 for an invalid SDK key
// or 403).
func isHTTPErrorRecoverable(statusCode int) bool {
	if statusCode < 400 || statusCode >= 500 {
		return true
	}
	switch statusCode {
	case 400, 408, 429:
		return true
	default:
		return false
	}
}
