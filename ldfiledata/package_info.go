// Package ldfiledata lets the evaluation core source its flag and segment data from one or more
// local files instead of a live data source, which is convenient for local development, tests,
// and demos.
//
// This is different from ldtestdata, which builds flag configurations programmatically rather
// than reading them from disk.
//
// To use it, build a data source with DataSource and wire it into ldclient.Config alongside the
// data store it should populate:
//
//     store := datastore.NewInMemoryDataStore(loggers)
//     fileSource, err := ldfiledata.DataSource().FilePaths("./testdata/flags.json").
//         CreateDataSource(store, loggers)
//     config := ldclient.Config{DataStore: store, DataSource: fileSource}
//     client, err := ldclient.NewClient(config, 5*time.Second)
//
// The files are not read until the client starts up. If any file cannot be found or parsed, the
// data source logs an error and reports itself as uninitialized (unless a Reloader is configured
// and a later attempt succeeds).
//
// Files may contain either JSON or YAML; if the first non-whitespace character is '{', the file
// is parsed as JSON, otherwise as YAML. Each file is an object with up to three properties:
//
// - "flags": full feature flag definitions, in the same format the evaluation core's data store
// uses internally.
//
// - "flagValues": a simplified form that maps a flag key directly to the value it should always
// return, for flags whose targeting rules don't matter in this environment.
//
// - "segments": user segment definitions.
//
// If the same flag or segment key appears in more than one file, the first file encountered (in
// the order the paths were given) wins, and the duplicate is logged at Warn level; loading
// continues rather than failing outright.
//
// Use Reloader with the ldfilewatch package to have the data source automatically reread its
// files when they change on disk:
//
//     ldfiledata.DataSource().FilePaths(paths...).Reloader(ldfilewatch.WatchFiles)
package ldfiledata
