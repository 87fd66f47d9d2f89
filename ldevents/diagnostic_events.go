package ldevents

import (
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldtime"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

// diagnosticID identifies one client instance across its diagnostic-init and diagnostic-periodic
// events, so the events service can correlate them without the events themselves carrying a
// session token.
type diagnosticID struct {
	DiagnosticID string `json:"diagnosticId"`
	SDKKeySuffix string `json:"sdkKeySuffix,omitempty"`
}

type diagnosticPlatformData struct {
	Name      string `json:"name"`
	GoVersion string `json:"goVersion"`
	OSArch    string `json:"osArch"`
	OSName    string `json:"osName"`
}

type diagnosticBaseEvent struct {
	Kind         string       `json:"kind"`
	ID           diagnosticID `json:"id"`
	CreationDate uint64       `json:"creationDate"`
}

type diagnosticInitEvent struct {
	diagnosticBaseEvent
	SDK           ldvalue.Value          `json:"sdk"`
	Configuration ldvalue.Value          `json:"configuration"`
	Platform      diagnosticPlatformData `json:"platform"`
}

type diagnosticStreamInitInfo struct {
	Timestamp      uint64 `json:"timestamp"`
	Failed         bool   `json:"failed"`
	DurationMillis uint64 `json:"durationMillis"`
}

type diagnosticPeriodicEvent struct {
	diagnosticBaseEvent
	DataSinceDate     uint64                     `json:"dataSinceDate"`
	DroppedEvents     int                        `json:"droppedEvents"`
	DeduplicatedUsers int                        `json:"deduplicatedUsers"`
	EventsInLastBatch int                        `json:"eventsInLastBatch"`
	StreamInits       []diagnosticStreamInitInfo `json:"streamInits"`
}

// DiagnosticsManager accumulates the stream connection attempts reported to it and produces the
// init/periodic event payloads on demand. The dropped-event, deduplicated-user and last-batch
// counts in the periodic event are passed in by the caller (typically the event processor), which
// also owns the schedule; this type only owns the stream-init bookkeeping and serialization.
//
// Network delivery of these events, and the config-snapshot fields LaunchDarkly's other SDKs
// embed in the init event, are outside this repo's scope (see ldclient.Config's doc comment on
// why transport settings don't live there) - DESIGN.md records this as a deliberate trim rather
// than an oversight.
type DiagnosticsManager struct {
	id            diagnosticID
	sdkData       ldvalue.Value
	configData    ldvalue.Value
	startTime     uint64
	dataSinceTime uint64

	mu          sync.Mutex
	streamInits []diagnosticStreamInitInfo
	gate        <-chan struct{}
}

// NewDiagnosticID derives a diagnostic identity from an SDK key, keeping only its last six
// characters so the identity is stable without the full key appearing in event payloads.
func NewDiagnosticID(sdkKey string) diagnosticID {
	u, _ := uuid.NewRandom()
	suffix := sdkKey
	if len(sdkKey) > 6 {
		suffix = sdkKey[len(sdkKey)-6:]
	}
	return diagnosticID{DiagnosticID: u.String(), SDKKeySuffix: suffix}
}

// NewDiagnosticsManager creates a manager whose counters reset from startTime. gate is test
// instrumentation only (see CanSendStatsEvent) and should be nil in production use.
func NewDiagnosticsManager(
	id diagnosticID,
	configData ldvalue.Value,
	sdkData ldvalue.Value,
	startTime time.Time,
	gate <-chan struct{},
) *DiagnosticsManager {
	ts := uint64(ldtime.UnixMillisFromTime(startTime))
	return &DiagnosticsManager{
		id:            id,
		configData:    configData,
		sdkData:       sdkData,
		startTime:     ts,
		dataSinceTime: ts,
		gate:          gate,
	}
}

// RecordStreamInit notes the outcome of one attempt to establish a streaming connection, for
// inclusion in the next periodic event.
func (m *DiagnosticsManager) RecordStreamInit(timestamp uint64, failed bool, durationMillis uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamInits = append(m.streamInits, diagnosticStreamInitInfo{
		Timestamp:      timestamp,
		Failed:         failed,
		DurationMillis: durationMillis,
	})
}

// CreateInitEvent builds the one-time "diagnostic-init" event sent when the event processor
// starts up.
func (m *DiagnosticsManager) CreateInitEvent() diagnosticInitEvent {
	return diagnosticInitEvent{
		diagnosticBaseEvent: diagnosticBaseEvent{
			Kind:         "diagnostic-init",
			ID:           m.id,
			CreationDate: m.startTime,
		},
		SDK:           m.sdkData,
		Configuration: m.configData,
		Platform:      currentPlatformData(),
	}
}

// CanSendStatsEvent reports whether a periodic event is due. Outside tests, gate is nil and this
// always returns true; tests use gate to hold off the first periodic event until fixtures are set
// up, by sending on the channel once ready.
func (m *DiagnosticsManager) CanSendStatsEvent() bool {
	if m.gate == nil {
		return true
	}
	select {
	case <-m.gate:
		return true
	default:
		return false
	}
}

// CreateStatsEventAndReset builds the periodic "diagnostic" event from counters the caller
// maintains itself (droppedEvents, deduplicatedUsers, eventsInLastBatch) plus this manager's own
// accumulated stream-init history, then resets the window.
func (m *DiagnosticsManager) CreateStatsEventAndReset(
	droppedEvents, deduplicatedUsers, eventsInLastBatch int,
) diagnosticPeriodicEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := uint64(ldtime.UnixMillisNow())
	event := diagnosticPeriodicEvent{
		diagnosticBaseEvent: diagnosticBaseEvent{
			Kind:         "diagnostic",
			ID:           m.id,
			CreationDate: now,
		},
		DataSinceDate:     m.dataSinceTime,
		DroppedEvents:     droppedEvents,
		DeduplicatedUsers: deduplicatedUsers,
		EventsInLastBatch: eventsInLastBatch,
		StreamInits:       m.streamInits,
	}
	m.streamInits = nil
	m.dataSinceTime = now
	return event
}

// currentPlatformData describes the Go runtime the SDK is embedded in. GOARCH is fixed at compile
// time (unlike GOOS), and Go offers no portable way to read an OS version string, so that field is
// simply omitted rather than faked.
func currentPlatformData() diagnosticPlatformData {
	return diagnosticPlatformData{
		Name:      "Go",
		GoVersion: runtime.Version(),
		OSName:    normalizedOSName(runtime.GOOS),
		OSArch:    runtime.GOARCH,
	}
}

func normalizedOSName(goos string) string {
	switch goos {
	case "darwin":
		return "MacOS"
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	default:
		return goos
	}
}
