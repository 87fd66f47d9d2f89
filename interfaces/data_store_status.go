package interfaces

// DataStoreStatus contains information about the status of a data store, provided by
// DataStoreStatusProvider.
type DataStoreStatus struct {
	// Available is true if the SDK believes the data store is now available.
	//
	// This property is normally true. If the SDK receives an error while trying to query or
	// update the data store, then it sets this property to false (notifying listeners, if any)
	// and polls the store at intervals until a query succeeds. Once it succeeds, it sets the
	// property back to true (again notifying listeners).
	Available bool

	// NeedsRefresh is true if the store may be out of date due to a previous outage, so the SDK
	// should attempt to refresh all feature flag data and rewrite it to the store.
	NeedsRefresh bool
}

// DataStoreStatusProvider is an interface for querying the status of a persistent data store.
//
// An implementation of this interface is created by NewDataStoreStatusProvider in
// internal/datastore; LDClient has no method that returns one.
// Application code should not implement this interface.
type DataStoreStatusProvider interface {
	// GetStatus returns the current status of the store.
	//
	// This is only meaningful for persistent stores, or any other DataStore implementation that
	// makes use of the reporting mechanism provided by DataStoreUpdateSink. For the default
	// in-memory store, the status is always reported as available.
	GetStatus() DataStoreStatus

	// IsStatusMonitoringEnabled indicates whether the current data store implementation supports
	// status monitoring.
	//
	// This is normally true for all persistent data stores, and false for the default in-memory
	// store. A true value means that any listeners added with AddStatusListener() can expect to
	// be notified if there is an error in storing data, and then notified again when the error
	// condition is resolved. A false value means that the status is not meaningful and listeners
	// should not expect to be notified.
	IsStatusMonitoringEnabled() bool

	// AddStatusListener subscribes for notifications of status changes, returning a channel that
	// will receive a DataStoreStatus value each time the status changes.
	AddStatusListener() <-chan DataStoreStatus

	// RemoveStatusListener unsubscribes a channel that was previously returned by AddStatusListener.
	RemoveStatusListener(ch <-chan DataStoreStatus)
}
