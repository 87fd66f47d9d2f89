// Package datastore implements the two subsystems.DataStore variants the evaluation core ships:
// the in-memory store and the write-through cache wrapping a persistent backend. Nothing here is
// exported outside the module.
//
// Specific backend integrations (Redis, DynamoDB, Consul, and the like) are not part of this
// package - they'd live alongside it as their own packages, implementing
// subsystems.PersistentDataStore and plugging into NewPersistentDataStoreWrapper.
package datastore
