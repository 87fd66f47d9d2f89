// Package redis provides a Redis-backed subsystems.PersistentDataStore implementation, the one
// concrete external backend wired into this repo (see subsystems.PersistentDataStore and
// internal/datastore's cache wrapper).
//
// Flags and segments are stored in one Redis hash per DataKind, keyed by item key within that
// hash; a sentinel key records whether Init has ever been called. Build a store with DataStore,
// configure it with the builder's methods, and call Build to get a subsystems.PersistentDataStore
// to hand to internal/datastore.NewPersistentDataStoreWrapper:
//
//	core, err := redis.DataStore().URL("redis://localhost:6379").Build(loggers)
//	store := datastore.NewPersistentDataStoreWrapper(core, updates, 30*time.Second, loggers)
package redis
