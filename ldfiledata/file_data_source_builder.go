package ldfiledata

import (
	"github.com/launchdarkly/go-server-sdk-evalcore/ldclient"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
	"github.com/launchdarkly/go-server-sdk-evalcore/subsystems"
)

// ReloaderFactory is a function type used with DataSourceBuilder.Reloader, to specify a mechanism for
// detecting when data files should be reloaded. Its standard implementation is ldfilewatch.WatchFiles.
type ReloaderFactory func(paths []string, loggers ldlog.Loggers, reload func(), closeCh <-chan struct{}) error

// DataSourceBuilder is a builder for configuring the file-based data source.
//
// Obtain an instance of this type by calling DataSource(). After calling its methods to specify any
// desired custom settings, call CreateDataSource to build the ldclient.DataSource and store it in the
// client's Config.
//
// Builder calls can be chained, for example:
//
//     ldfiledata.DataSource().FilePaths("file1").FilePaths("file2")
type DataSourceBuilder struct {
	filePaths       []string
	reloaderFactory ReloaderFactory
}

// DataSource returns a configurable builder for a file-based data source.
func DataSource() *DataSourceBuilder {
	return &DataSourceBuilder{}
}

// FilePaths specifies the input data files. The paths may be any number of absolute or relative file paths.
func (b *DataSourceBuilder) FilePaths(paths ...string) *DataSourceBuilder {
	b.filePaths = append(b.filePaths, paths...)
	return b
}

// Reloader specifies a mechanism for reloading data files when they change on disk.
//
// It is normally used with the ldfilewatch package, as follows:
//
//     ldfiledata.DataSource().
//         FilePaths(filePaths...).
//         Reloader(ldfilewatch.WatchFiles)
func (b *DataSourceBuilder) Reloader(reloaderFactory ReloaderFactory) *DataSourceBuilder {
	b.reloaderFactory = reloaderFactory
	return b
}

// CreateDataSource builds the file data source. It will not read any files until its Start
// method is called, which happens automatically when the client that owns store starts up.
func (b *DataSourceBuilder) CreateDataSource(
	store subsystems.DataStore,
	loggers ldlog.Loggers,
) (ldclient.DataSource, error) {
	return newFileDataSource(store, loggers, b.filePaths, b.reloaderFactory)
}
