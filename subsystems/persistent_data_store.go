package subsystems

import (
	"io"

	st "github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
)

// PersistentDataStore is an interface for a data store that holds feature flags and related data
// in a serialized form.
//
// This interface should be used for database integrations, or any other data store implementation
// that stores data in some external service. The SDK provides its own caching layer on top of the
// persistent data store (see PersistentDataStoreWrapper semantics in internal/datastore); the
// persistent data store implementation should not provide caching, but simply do every query or
// update that the SDK tells it to do.
//
// Implementations must be safe for concurrent access from multiple goroutines.
//
// Error handling is defined as follows: if any data store operation encounters a database error,
// or is otherwise unable to complete its task, it should return an error value. The SDK will log
// the error and will assume that the data store is now in a non-operational state; the SDK will
// then start polling IsStoreAvailable() to determine when the store has started working again.
type PersistentDataStore interface {
	io.Closer

	// Init overwrites the store's contents with a set of items for each collection.
	//
	// All previous data should be discarded, regardless of versioning.
	//
	// The update should be done atomically. If it cannot be done atomically, then the store must
	// first add or update each item in the same order that they are given in the input data, and
	// then delete any previously stored items that were not in the input data.
	Init(allData []st.SerializedCollection) error

	// Get retrieves an item from the specified collection, if available.
	//
	// If the specified key does not exist in the collection, it should return a
	// SerializedItemDescriptor whose Version is -1.
	//
	// If the item has been deleted and the store contains a placeholder, it should return that
	// placeholder rather than filtering it out.
	Get(kind st.DataKind, key string) (st.SerializedItemDescriptor, error)

	// GetAll retrieves all items from the specified collection.
	//
	// If the store contains placeholders for deleted items, it should include them in the
	// results, not filter them out.
	GetAll(kind st.DataKind) ([]st.KeyedSerializedItemDescriptor, error)

	// Upsert updates or inserts an item in the specified collection. For updates, the object is
	// only updated if the existing version is less than the new version.
	//
	// The method returns true if the update was applied, or false if the store already contained
	// an equal or higher version of the item.
	Upsert(kind st.DataKind, key string, item st.SerializedItemDescriptor) (bool, error)

	// IsInitialized returns true if the data store contains a data set, meaning that Init has
	// been called at least once.
	//
	// In a shared data store, it should be able to detect this even if Init was called in a
	// different process: that is, the test should be based on looking at what is in the data
	// store. Once this has been determined to be true, it can continue to return true without
	// having to check the store again.
	IsInitialized() bool

	// IsStoreAvailable tests whether the data store seems to be functioning normally.
	//
	// This should not be a detailed test of different kinds of operations, but just the smallest
	// possible operation to determine whether (for instance) we can reach the database.
	//
	// Whenever one of the store's other methods returns an error, the SDK assumes that it may
	// have become unavailable and calls IsStoreAvailable() at intervals until it returns true.
	IsStoreAvailable() bool
}
