// Package interfaces defines the data store status types: DataStoreStatus, which reports whether
// a data store is available and whether its data may need refreshing, and the
// DataStoreStatusProvider interface for querying that status and subscribing to changes.
//
// The DataStore and PersistentDataStore interfaces that a custom store implements live in the
// subsystems package, not here.
package interfaces
