// Package subsystems declares the abstractions the evaluation core is built on top of: DataStore,
// DataStoreUpdateSink, and the parameter types they pass around (ItemDescriptor and friends live
// in interfaces/ldstoretypes).
//
// The built-in store implementations in internal/datastore satisfy these same interfaces, so a
// custom implementation - a database-backed store, a test double - can be substituted for them
// without the rest of the evaluation core knowing the difference.
package subsystems
