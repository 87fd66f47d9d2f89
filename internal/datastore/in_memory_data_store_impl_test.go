package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-server-sdk-evalcore/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
)

func TestInMemoryDataStoreGetMissingReturnsNotFound(t *testing.T) {
	store := NewInMemoryDataStore(ldlog.Loggers{})
	item, err := store.Get(datakinds.Features, "nope")
	require.NoError(t, err)
	assert.Equal(t, -1, item.Version)
	assert.Nil(t, item.Item)
}

func TestInMemoryDataStoreUpsertHigherVersionWins(t *testing.T) {
	store := NewInMemoryDataStore(ldlog.Loggers{})

	updated, err := store.Upsert(datakinds.Features, "x", ldstoretypes.ItemDescriptor{Version: 5, Item: "v5"})
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = store.Upsert(datakinds.Features, "x", ldstoretypes.ItemDescriptor{Version: 3, Item: "v3"})
	require.NoError(t, err)
	assert.False(t, updated)

	item, err := store.Get(datakinds.Features, "x")
	require.NoError(t, err)
	assert.Equal(t, 5, item.Version)
	assert.Equal(t, "v5", item.Item)
}

func TestInMemoryDataStoreInitReplacesAllData(t *testing.T) {
	store := NewInMemoryDataStore(ldlog.Loggers{})
	_, _ = store.Upsert(datakinds.Features, "old", ldstoretypes.ItemDescriptor{Version: 1, Item: "old"})

	err := store.Init([]ldstoretypes.Collection{
		{
			Kind: datakinds.Features,
			Items: []ldstoretypes.KeyedItemDescriptor{
				{Key: "new", Item: ldstoretypes.ItemDescriptor{Version: 1, Item: "new"}},
			},
		},
	})
	require.NoError(t, err)
	assert.True(t, store.IsInitialized())

	item, _ := store.Get(datakinds.Features, "old")
	assert.Nil(t, item.Item)

	item, _ = store.Get(datakinds.Features, "new")
	assert.Equal(t, "new", item.Item)
}

func TestInMemoryDataStoreGetAll(t *testing.T) {
	store := NewInMemoryDataStore(ldlog.Loggers{})
	_, _ = store.Upsert(datakinds.Features, "a", ldstoretypes.ItemDescriptor{Version: 1, Item: "a"})
	_, _ = store.Upsert(datakinds.Features, "b", ldstoretypes.ItemDescriptor{Version: 1, Item: "b"})

	items, err := store.GetAll(datakinds.Features)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestInMemoryDataStoreNotStatusMonitored(t *testing.T) {
	store := NewInMemoryDataStore(ldlog.Loggers{})
	assert.False(t, store.IsStatusMonitoringEnabled())
}
