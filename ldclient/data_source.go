package ldclient

// DataSource represents the component that pushes flag/segment data into the client's data
// store. Transport-level data sources (HTTP polling, streaming, file watching) are external
// collaborators that implement this interface; the client only needs to start them, ask whether
// they have completed their first successful sync, and shut them down.
type DataSource interface {
	// Initialized reports whether the data source has received and applied an initial data set.
	Initialized() bool

	// Start begins synchronizing data into the store. It must close closeWhenReady once the
	// first synchronization attempt (successful or not) has completed.
	Start(closeWhenReady chan<- struct{})

	// Close shuts down the data source.
	Close() error
}

// nullDataSource is used when no DataSource is configured: it reports itself as already
// initialized and does nothing, so the client serves whatever the store already holds.
type nullDataSource struct{}

func (nullDataSource) Initialized() bool { return true }

func (nullDataSource) Close() error { return nil }

func (nullDataSource) Start(closeWhenReady chan<- struct{}) {
	close(closeWhenReady)
}
