// Package ldclient wires the evaluator, data store, and event processor together into a single
// client that application code calls into: Variation methods, Identify/Track, AllFlagsState, and
// lifecycle management (Close/Flush).
package ldclient

import (
	"github.com/launchdarkly/go-server-sdk-evalcore/ldevents"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
	"github.com/launchdarkly/go-server-sdk-evalcore/subsystems"
)

// Config holds the components the client is assembled from. It deliberately carries no network
// transport settings (base URIs, polling intervals, streaming toggles): the data source and
// event delivery are external collaborators supplied ready-made by the caller.
type Config struct {
	// DataStore holds the flag/segment data synchronized by DataSource. If nil, an in-memory
	// store is created.
	DataStore subsystems.DataStore

	// DataSource delivers flag/segment data into DataStore. If nil, a no-op source that reports
	// itself as already initialized is used (offline/test mode).
	DataSource DataSource

	// EventProcessor receives analytics events produced by evaluations and by Identify/Track
	// calls. If nil, a no-op processor is used and no events are recorded.
	EventProcessor ldevents.EventProcessor

	// Loggers is the destination for the client's own log output.
	Loggers ldlog.Loggers

	// Offline, if true, makes every Variation call return the default value without touching the
	// data store, and suppresses all event generation.
	Offline bool

	// LogEvaluationErrors, if true, logs a warning for every evaluation that returns an error
	// reason (flag not found, malformed flag, wrong type, etc).
	LogEvaluationErrors bool
}
