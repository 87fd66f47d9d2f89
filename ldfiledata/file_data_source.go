package ldfiledata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/launchdarkly/go-server-sdk-evalcore/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldclient"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldmodel"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
	"github.com/launchdarkly/go-server-sdk-evalcore/subsystems"
)

// FileDataSource reads flag and segment data from one or more files and writes it into a
// subsystems.DataStore. It implements ldclient.DataSource.
type FileDataSource struct {
	store           subsystems.DataStore
	loggers         ldlog.Loggers
	absFilePaths    []string
	reloaderFactory ReloaderFactory
	isInitialized   bool
	readyCh         chan<- struct{}
	readyOnce       sync.Once
	closeOnce       sync.Once
	closeReloaderCh chan struct{}
}

var _ ldclient.DataSource = (*FileDataSource)(nil)

func newFileDataSource(
	store subsystems.DataStore,
	loggers ldlog.Loggers,
	filePaths []string,
	reloaderFactory ReloaderFactory,
) (*FileDataSource, error) {
	abs, err := absFilePaths(filePaths)
	if err != nil {
		// COVERAGE: there's no reliable cross-platform way to simulate an invalid path in unit tests
		return nil, err
	}
	return &FileDataSource{
		store:           store,
		loggers:         loggers,
		absFilePaths:    abs,
		reloaderFactory: reloaderFactory,
	}, nil
}

// Initialized reports whether the data has been successfully loaded at least once.
func (fs *FileDataSource) Initialized() bool {
	return fs.isInitialized
}

// Start loads the configured files and, if a Reloader was configured, begins watching for
// changes to them.
func (fs *FileDataSource) Start(closeWhenReady chan<- struct{}) {
	fs.readyCh = closeWhenReady
	fs.reload()

	// If there is no reloader, signal readiness immediately regardless of whether the load
	// succeeded, since there is no mechanism that could make it succeed later.
	if fs.reloaderFactory == nil {
		fs.signalStartComplete(fs.isInitialized)
		return
	}

	// If there is a reloader and the initial load failed, readiness is signaled the first time
	// reload() succeeds.
	fs.closeReloaderCh = make(chan struct{})
	if err := fs.reloaderFactory(fs.absFilePaths, fs.loggers, fs.reload, fs.closeReloaderCh); err != nil {
		fs.loggers.Errorf("unable to start reloader: %s", err)
	}
}

// reload rereads every configured file and replaces the store's contents. If any file cannot be
// read or parsed, the previous store contents are left untouched.
func (fs *FileDataSource) reload() {
	filesData := make([]fileData, 0, len(fs.absFilePaths))
	for _, path := range fs.absFilePaths {
		data, err := readFile(path)
		if err != nil {
			fs.loggers.Errorf("unable to load flags: %s [%s]", err, path)
			return
		}
		filesData = append(filesData, data)
	}
	collections := mergeFileData(fs.loggers, filesData...)
	if err := fs.store.Init(collections); err != nil {
		fs.loggers.Errorf("unable to store flag data: %s", err)
		return
	}
	fs.signalStartComplete(true)
}

func (fs *FileDataSource) signalStartComplete(succeeded bool) {
	fs.readyOnce.Do(func() {
		fs.isInitialized = succeeded
		if fs.readyCh != nil {
			close(fs.readyCh)
		}
	})
}

// Close stops any active reloader. It is called automatically when the client is closed.
func (fs *FileDataSource) Close() error {
	fs.closeOnce.Do(func() {
		if fs.closeReloaderCh != nil {
			close(fs.closeReloaderCh)
		}
	})
	return nil
}

func absFilePaths(paths []string) ([]string, error) {
	absPaths := make([]string, 0, len(paths))
	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			// COVERAGE: there's no reliable cross-platform way to simulate an invalid path in unit tests
			return nil, fmt.Errorf("unable to determine absolute path for %q: %w", p, err)
		}
		absPaths = append(absPaths, absPath)
	}
	return absPaths, nil
}

// fileData is the top-level shape of a data file.
type fileData struct {
	Flags      *map[string]ldmodel.FeatureFlag `json:"flags"`
	FlagValues *map[string]ldvalue.Value       `json:"flagValues"`
	Segments   *map[string]ldmodel.Segment      `json:"segments"`
}

func readFile(path string) (fileData, error) {
	var data fileData
	rawData, err := os.ReadFile(path) // nolint:gosec // G304: ok to read file into variable
	if err != nil {
		return data, fmt.Errorf("unable to read file: %w", err)
	}

	jsonData := rawData
	if !detectJSON(rawData) {
		jsonData, err = yamlToJSON(rawData)
		if err != nil {
			return data, fmt.Errorf("error parsing file: %w", err)
		}
	}
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return data, fmt.Errorf("error parsing file: %w", err)
	}
	return data, nil
}

func detectJSON(rawData []byte) bool {
	// A valid JSON file for our purposes must be an object, i.e. it must start with '{'
	return strings.HasPrefix(strings.TrimLeftFunc(string(rawData), unicode.IsSpace), "{")
}

// yamlToJSON decodes the document as YAML and re-encodes it as JSON, so that the types with
// custom JSON unmarshalers (ldmodel.FeatureFlag, ldvalue.Value) still go through their normal
// JSON decoding path regardless of which format the file was written in.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// insertData adds an item to the in-progress collection, unless the key already has one. A
// duplicate key across files is not an error: the first definition encountered wins, and the
// duplicate is logged so the conflict doesn't pass unnoticed.
func insertData(
	loggers ldlog.Loggers,
	all map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor,
	kind ldstoretypes.DataKind,
	key string,
	data ldstoretypes.ItemDescriptor,
) {
	if _, exists := all[kind][key]; exists {
		loggers.Warnf("%s %q is specified by multiple files; keeping the first definition encountered",
			kind.GetName(), key)
		return
	}
	all[kind][key] = data
}

func mergeFileData(loggers ldlog.Loggers, allFileData ...fileData) []ldstoretypes.Collection {
	all := map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor{
		datakinds.Features: {},
		datakinds.Segments: {},
	}
	for _, d := range allFileData {
		if d.Flags != nil {
			for key, f := range *d.Flags {
				flag := f
				insertData(loggers, all, datakinds.Features, key,
					ldstoretypes.ItemDescriptor{Version: flag.Version, Item: &flag})
			}
		}
		if d.FlagValues != nil {
			for key, value := range *d.FlagValues {
				flag := makeFlagWithValue(key, value)
				insertData(loggers, all, datakinds.Features, key,
					ldstoretypes.ItemDescriptor{Version: flag.Version, Item: flag})
			}
		}
		if d.Segments != nil {
			for key, s := range *d.Segments {
				segment := s
				insertData(loggers, all, datakinds.Segments, key,
					ldstoretypes.ItemDescriptor{Version: segment.Version, Item: &segment})
			}
		}
	}

	collections := make([]ldstoretypes.Collection, 0, len(all))
	for kind, itemsMap := range all {
		items := make([]ldstoretypes.KeyedItemDescriptor, 0, len(itemsMap))
		for k, v := range itemsMap {
			items = append(items, ldstoretypes.KeyedItemDescriptor{Key: k, Item: v})
		}
		collections = append(collections, ldstoretypes.Collection{Kind: kind, Items: items})
	}
	return collections
}

// makeFlagWithValue builds the flag that the "flagValues" shorthand expands to: two constant
// variations, with the fallthrough (and every other path, since there are no rules or targets)
// always selecting index 0, the configured value.
func makeFlagWithValue(key string, v ldvalue.Value) *ldmodel.FeatureFlag {
	return &ldmodel.FeatureFlag{
		Key:         key,
		On:          true,
		Variations:  []ldvalue.Value{v, ldvalue.Null()},
		Fallthrough: ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(0)},
	}
}
