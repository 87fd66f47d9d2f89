package subsystems

import "github.com/launchdarkly/go-server-sdk-evalcore/interfaces"

// DataStoreUpdateSink is an interface that a data store implementation can use to report information
// back to the SDK.
//
// Application code does not need to use this type. It is for data store implementations.
//
// NewPersistentDataStoreWrapper takes one of these as a constructor parameter and calls
// UpdateStatus whenever its view of the backend's availability changes.
type DataStoreUpdateSink interface {
	// UpdateStatus informs the SDK of a change in the data store's operational status.
	//
	// This is what makes the status monitoring mechanisms in DataStoreStatusProvider work.
	UpdateStatus(newStatus interfaces.DataStoreStatus)
}
