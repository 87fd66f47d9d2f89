package ldtestdata

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/launchdarkly/go-server-sdk-evalcore/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldclient"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldmodel"
	"github.com/launchdarkly/go-server-sdk-evalcore/subsystems"
)

// TestDataSource is a test fixture that provides dynamically updatable feature flag state in a
// simplified form, for use in test scenarios in place of a real data source.
//
// See the package description for more details and usage examples.
type TestDataSource struct {
	currentFlags    map[string]ldstoretypes.ItemDescriptor
	currentBuilders map[string]*FlagBuilder
	currentSegments map[string]ldstoretypes.ItemDescriptor
	instances       []*testDataSourceImpl
	lock            sync.Mutex
}

type testDataSourceImpl struct {
	owner *TestDataSource
	store subsystems.DataStore
}

// DataSource creates an instance of TestDataSource.
//
// Binding it to a store with CreateDataSource, and using the resulting ldclient.DataSource as
// ldclient.Config.DataSource, causes the client to use the test data. Any subsequent changes made
// with methods like Update propagate to every store this TestDataSource has been bound to.
func DataSource() *TestDataSource {
	return &TestDataSource{
		currentFlags:    make(map[string]ldstoretypes.ItemDescriptor),
		currentBuilders: make(map[string]*FlagBuilder),
		currentSegments: make(map[string]ldstoretypes.ItemDescriptor),
	}
}

// Flag creates or copies a FlagBuilder for building a test flag configuration.
//
// If this flag key has already been defined in this TestDataSource instance, the builder starts
// with the same configuration that was last provided for this flag.
//
// Otherwise, it starts with a new default configuration in which the flag has true and false
// variations, is true for all users when targeting is turned on and false otherwise, and
// currently has targeting turned on. Change any of those properties, and add more complex
// behavior, using the FlagBuilder methods.
//
// Once the desired configuration is set, pass the builder to Update.
func (t *TestDataSource) Flag(key string) *FlagBuilder {
	t.lock.Lock()
	defer t.lock.Unlock()
	existingBuilder := t.currentBuilders[key]
	if existingBuilder == nil {
		return newFlagBuilder(key).BooleanFlag()
	}
	return copyFlagBuilder(existingBuilder)
}

// Update updates the test data with the specified flag configuration.
//
// This has the same effect as if a flag were added or modified on the LaunchDarkly dashboard. It
// immediately propagates the flag change to every store this TestDataSource has been bound to via
// CreateDataSource. If no store has been bound yet, it simply adds this flag to the test data,
// which will be pushed to any store subsequently bound.
//
// Subsequent changes to this FlagBuilder instance do not affect the test data unless Update is
// called again.
func (t *TestDataSource) Update(flagBuilder *FlagBuilder) *TestDataSource {
	key := flagBuilder.key
	clonedBuilder := copyFlagBuilder(flagBuilder)
	t.updateInternal(key, flagBuilder.createFlag, clonedBuilder)
	return t
}

// UsePreconfiguredFlag copies a full feature flag data model object into the test data.
//
// It immediately propagates the flag change to every store this TestDataSource has been bound to.
// If no store has been bound yet, it simply adds this flag to the test data which will be pushed
// to any store subsequently bound.
//
// Use this method for flag configurations the simplified FlagBuilder API cannot express.
// Otherwise, prefer the regular Flag/Update mechanism, to avoid a dependency on the details of
// the flag data model. A flag added this way can only be replaced wholesale with another
// UsePreconfiguredFlag call; Flag/Update cannot make incremental changes to it.
func (t *TestDataSource) UsePreconfiguredFlag(flag ldmodel.FeatureFlag) *TestDataSource {
	t.updateInternal(
		flag.Key,
		func(version int) ldmodel.FeatureFlag {
			f := flag
			if f.Version < version {
				f.Version = version
			}
			return f
		},
		nil,
	)
	return t
}

// UsePreconfiguredSegment copies a full user segment data model object into the test data.
//
// It immediately propagates the change to every store this TestDataSource has been bound to. If
// no store has been bound yet, it simply adds this segment to the test data.
//
// This is currently the only way to inject segment data, since there is no builder API for
// segments; it is mainly intended for tests of segment-matching behavior, since tests that only
// need a desired evaluation outcome can usually do so more easily with flag values.
func (t *TestDataSource) UsePreconfiguredSegment(segment ldmodel.Segment) *TestDataSource {
	t.lock.Lock()
	oldItem := t.currentSegments[segment.Key]
	newSegment := segment
	newSegment.Version = oldItem.Version + 1
	newItem := ldstoretypes.ItemDescriptor{Version: newSegment.Version, Item: &newSegment}
	t.currentSegments[segment.Key] = newItem
	instances := slices.Clone(t.instances)
	t.lock.Unlock()

	for _, instance := range instances {
		_, _ = instance.store.Upsert(datakinds.Segments, segment.Key, newItem)
	}

	return t
}

func (t *TestDataSource) updateInternal(
	key string,
	makeFlag func(int) ldmodel.FeatureFlag,
	builder *FlagBuilder,
) {
	t.lock.Lock()
	oldItem := t.currentFlags[key]
	newVersion := oldItem.Version + 1
	newFlag := makeFlag(newVersion)
	newItem := ldstoretypes.ItemDescriptor{Version: newVersion, Item: &newFlag}
	t.currentFlags[key] = newItem
	t.currentBuilders[key] = builder
	instances := slices.Clone(t.instances)
	t.lock.Unlock()

	for _, instance := range instances {
		_, _ = instance.store.Upsert(datakinds.Features, key, newItem)
	}
}

// CreateDataSource binds this TestDataSource to a store and returns the ldclient.DataSource to
// use for it, mirroring ldfiledata.DataSourceBuilder.CreateDataSource. Every flag and segment
// currently known to this TestDataSource is pushed into the store as soon as Start is called;
// every subsequent Update, UsePreconfiguredFlag, or UsePreconfiguredSegment call then propagates
// to the store immediately.
func (t *TestDataSource) CreateDataSource(
	store subsystems.DataStore,
	_ ldlog.Loggers,
) (ldclient.DataSource, error) {
	instance := &testDataSourceImpl{owner: t, store: store}
	t.lock.Lock()
	t.instances = append(t.instances, instance)
	t.lock.Unlock()
	return instance, nil
}

func (t *TestDataSource) makeInitData() []ldstoretypes.Collection {
	t.lock.Lock()
	defer t.lock.Unlock()
	flags := make([]ldstoretypes.KeyedItemDescriptor, 0, len(t.currentFlags))
	segments := make([]ldstoretypes.KeyedItemDescriptor, 0, len(t.currentSegments))
	for key, item := range t.currentFlags {
		flags = append(flags, ldstoretypes.KeyedItemDescriptor{Key: key, Item: item})
	}
	for key, item := range t.currentSegments {
		segments = append(segments, ldstoretypes.KeyedItemDescriptor{Key: key, Item: item})
	}
	return []ldstoretypes.Collection{
		{Kind: datakinds.Features, Items: flags},
		{Kind: datakinds.Segments, Items: segments},
	}
}

func (t *TestDataSource) closedInstance(instance *testDataSourceImpl) {
	t.lock.Lock()
	defer t.lock.Unlock()
	for i, in := range t.instances {
		if in == instance {
			copy(t.instances[i:], t.instances[i+1:])
			t.instances[len(t.instances)-1] = nil
			t.instances = t.instances[:len(t.instances)-1]
			break
		}
	}
}

func (d *testDataSourceImpl) Close() error {
	d.owner.closedInstance(d)
	return nil
}

func (d *testDataSourceImpl) Initialized() bool {
	return true
}

func (d *testDataSourceImpl) Start(closeWhenReady chan<- struct{}) {
	_ = d.store.Init(d.owner.makeInitData())
	close(closeWhenReady)
}
