// Package ldtestdata provides a mechanism for injecting dynamically updatable feature flag state
// into a data store for use in test scenarios, without going through any external data source.
//
// Unlike the file data source (in the ldfiledata package), this mechanism does not read from any
// external resource. It only provides the data that the application has pushed into it with
// Update or the preconfigured-object methods.
//
//	td := ldtestdata.DataSource()
//	td.Update(td.Flag("flag-key-1").BooleanFlag().VariationForAll(true))
//
//	dataSource, err := td.CreateDataSource(store, loggers)
//	config := ldclient.Config{DataStore: store, DataSource: dataSource}
//
//	// flags can be updated at any time, and the change propagates to every store this
//	// TestDataSource has been bound to:
//	td.Update(td.Flag("flag-key-2").
//		VariationForUser("some-user-key", true).
//		FallthroughVariation(false))
//
// The above example uses a simple boolean flag, but more complex configurations are possible
// using the methods of the FlagBuilder returned by Flag. FlagBuilder supports most of the ways a
// flag can be configured on the LaunchDarkly dashboard, but does not support percentage rollouts,
// or rule operators other than "in" and "not in" - build an ldmodel.FeatureFlag directly and pass
// it to UsePreconfiguredFlag for anything more elaborate.
package ldtestdata
