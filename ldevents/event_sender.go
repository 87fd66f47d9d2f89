package ldevents

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldtime"
)

const (
	defaultEventsURI   = "https://events.launchdarkly.com"
	eventSchemaHeader  = "X-LaunchDarkly-Event-Schema"
	payloadIDHeader    = "X-LaunchDarkly-Payload-ID"
	currentEventSchema = "3"

	defaultRetryDelay = time.Second
)

type defaultEventSender struct {
	httpClient    *http.Client
	eventsURI     string
	diagnosticURI string
	baseHeaders   http.Header
	loggers       ldlog.Loggers
	retryDelay    time.Duration
}

// NewDefaultEventSender creates the default implementation of EventSender, posting already-formatted
// payloads to the given URIs.
func NewDefaultEventSender(
	httpClient *http.Client,
	eventsURI string,
	diagnosticURI string,
	headers http.Header,
	loggers ldlog.Loggers,
) EventSender {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &defaultEventSender{
		httpClient:    httpClient,
		eventsURI:     eventsURI,
		diagnosticURI: diagnosticURI,
		baseHeaders:   headers,
		loggers:       loggers,
	}
}

// NewServerSideEventSender creates the standard EventSender for a server-side SDK: it appends the
// usual "/bulk" and "/diagnostic" suffixes to eventsURI and sends the SDK key as an Authorization header.
func NewServerSideEventSender(
	httpClient *http.Client,
	sdkKey string,
	eventsURI string,
	headers http.Header,
	loggers ldlog.Loggers,
) EventSender {
	if eventsURI == "" {
		eventsURI = defaultEventsURI
	}
	base := strings.TrimRight(eventsURI, "/")
	withAuth := make(http.Header)
	for name, values := range headers {
		withAuth[name] = values
	}
	withAuth.Set("Authorization", sdkKey)
	sender := NewDefaultEventSender(httpClient, base+"/bulk", base+"/diagnostic", withAuth, loggers)
	return sender
}

func (s *defaultEventSender) SendEventData(kind EventDataKind, data []byte, eventCount int) EventSenderResult {
	uri, description := s.endpointFor(kind, eventCount)
	if uri == "" {
		return EventSenderResult{}
	}
	s.loggers.Debugf("Sending %s: %s", description, data)

	// At most one retry: a transient failure is worth a second attempt after a short pause, but
	// events are not worth queueing behind a dead endpoint beyond that.
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay
			if delay == 0 {
				delay = defaultRetryDelay
			}
			s.loggers.Warnf("Will retry posting events after %f second", delay/time.Second)
			time.Sleep(delay)
		}
		result, retryable := s.post(kind, uri, data, attempt == 1)
		if !retryable {
			return result
		}
	}
	return EventSenderResult{}
}

func (s *defaultEventSender) endpointFor(kind EventDataKind, eventCount int) (uri, description string) {
	switch kind {
	case AnalyticsEventDataKind:
		return s.eventsURI, fmt.Sprintf("%d events", eventCount)
	case DiagnosticEventDataKind:
		return s.diagnosticURI, "diagnostic event"
	}
	return "", ""
}

// post makes a single delivery attempt. retryable is true when the attempt failed in a way that
// another attempt might fix (connection error, 5xx); lastAttempt only changes the log wording.
func (s *defaultEventSender) post(kind EventDataKind, uri string, data []byte, lastAttempt bool) (result EventSenderResult, retryable bool) {
	req, err := http.NewRequest("POST", uri, bytes.NewReader(data))
	if err != nil {
		s.loggers.Errorf("Unexpected error while creating event request: %+v", err)
		return EventSenderResult{}, false
	}
	req.Header = s.requestHeaders(kind)

	resp, err := s.httpClient.Do(req)
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
	if err != nil {
		s.loggers.Warnf("Unexpected error while sending events: %+v", err)
		return EventSenderResult{}, true
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result = EventSenderResult{Success: true}
		// The response Date header, when parseable, is the server's clock reading; the event
		// processor uses it to gate debug events against server time.
		if serverTime, timeErr := http.ParseTime(resp.Header.Get("Date")); timeErr == nil {
			result.TimeFromServer = uint64(ldtime.UnixMillisFromTime(serverTime))
		}
		return result, false
	case isHTTPErrorRecoverable(resp.StatusCode):
		outcome := "will retry"
		if lastAttempt {
			outcome = "some events were dropped"
		}
		s.loggers.Warn(httpErrorMessage(resp.StatusCode, "sending events", outcome))
		return EventSenderResult{}, true
	default:
		// 401/403 and the like: the credential is bad, so no future request can succeed either.
		s.loggers.Warn(httpErrorMessage(resp.StatusCode, "sending events", ""))
		return EventSenderResult{MustShutDown: true}, false
	}
}

func (s *defaultEventSender) requestHeaders(kind EventDataKind) http.Header {
	headers := make(http.Header)
	for name, values := range s.baseHeaders {
		headers[name] = values
	}
	headers.Set("Content-Type", "application/json")
	if kind == AnalyticsEventDataKind {
		headers.Add(eventSchemaHeader, currentEventSchema)
		payloadID, _ := uuid.NewRandom()
		headers.Add(payloadIDHeader, payloadID.String())
	}
	return headers
}
