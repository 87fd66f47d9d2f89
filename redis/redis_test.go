package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	r "github.com/garyburd/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
)

type mockKind struct{ name string }

func (k mockKind) GetName() string { return k.name }
func (k mockKind) Serialize(item ldstoretypes.ItemDescriptor) []byte {
	return nil
}
func (k mockKind) Deserialize(data []byte) (ldstoretypes.ItemDescriptor, error) {
	return ldstoretypes.ItemDescriptor{}, nil
}

var testKind = mockKind{name: "things"}

func withTestStore(t *testing.T, action func(subject *redisDataStoreImpl, url string)) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()
	store, err := DataStore().URL(url).Build(ldlog.Loggers{})
	require.NoError(t, err)
	defer store.Close() // nolint:errcheck
	action(store.(*redisDataStoreImpl), url)
}

func item(version int, data string) ldstoretypes.SerializedItemDescriptor {
	return ldstoretypes.SerializedItemDescriptor{Version: version, SerializedItem: []byte(data)}
}

func tombstone(version int) ldstoretypes.SerializedItemDescriptor {
	return ldstoretypes.SerializedItemDescriptor{Version: version, Deleted: true, SerializedItem: []byte(`{"deleted":true}`)}
}

func TestRedisGetMissingReturnsNotFound(t *testing.T) {
	withTestStore(t, func(subject *redisDataStoreImpl, _ string) {
		got, err := subject.Get(testKind, "nope")
		require.NoError(t, err)
		assert.Equal(t, -1, got.Version)
	})
}

func TestRedisInitThenGet(t *testing.T) {
	withTestStore(t, func(subject *redisDataStoreImpl, _ string) {
		err := subject.Init([]ldstoretypes.SerializedCollection{
			{
				Kind: testKind,
				Items: []ldstoretypes.KeyedSerializedItemDescriptor{
					{Key: "a", Item: item(1, `{"key":"a"}`)},
				},
			},
		})
		require.NoError(t, err)
		assert.True(t, subject.IsInitialized())

		got, err := subject.Get(testKind, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Version)
		assert.Equal(t, []byte(`{"key":"a"}`), got.SerializedItem)
	})
}

func TestRedisInitReplacesPriorData(t *testing.T) {
	withTestStore(t, func(subject *redisDataStoreImpl, _ string) {
		require.NoError(t, subject.Init([]ldstoretypes.SerializedCollection{
			{Kind: testKind, Items: []ldstoretypes.KeyedSerializedItemDescriptor{{Key: "old", Item: item(1, "old")}}},
		}))
		require.NoError(t, subject.Init([]ldstoretypes.SerializedCollection{
			{Kind: testKind, Items: []ldstoretypes.KeyedSerializedItemDescriptor{{Key: "new", Item: item(1, "new")}}},
		}))

		got, err := subject.Get(testKind, "old")
		require.NoError(t, err)
		assert.Equal(t, -1, got.Version)
	})
}

func TestRedisUpsertHigherVersionWins(t *testing.T) {
	withTestStore(t, func(subject *redisDataStoreImpl, _ string) {
		updated, err := subject.Upsert(testKind, "x", item(5, "v5"))
		require.NoError(t, err)
		assert.True(t, updated)

		updated, err = subject.Upsert(testKind, "x", item(3, "v3"))
		require.NoError(t, err)
		assert.False(t, updated)

		got, err := subject.Get(testKind, "x")
		require.NoError(t, err)
		assert.Equal(t, 5, got.Version)
		assert.Equal(t, []byte("v5"), got.SerializedItem)
	})
}

func TestRedisUpsertTombstoneIsRetained(t *testing.T) {
	withTestStore(t, func(subject *redisDataStoreImpl, _ string) {
		_, err := subject.Upsert(testKind, "x", item(1, "v1"))
		require.NoError(t, err)

		updated, err := subject.Upsert(testKind, "x", tombstone(2))
		require.NoError(t, err)
		assert.True(t, updated)

		got, err := subject.Get(testKind, "x")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.True(t, got.Deleted)
	})
}

func TestRedisGetAll(t *testing.T) {
	withTestStore(t, func(subject *redisDataStoreImpl, _ string) {
		_, _ = subject.Upsert(testKind, "a", item(1, "a"))
		_, _ = subject.Upsert(testKind, "b", item(1, "b"))

		all, err := subject.GetAll(testKind)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

// TestRedisWriteConflictAbandonsLowerVersion exercises the write-conflict path:
// an external client writes directly to the same hash field several times in between this
// writer's WATCH and EXEC (simulated via testTxHook), tripping the transaction and forcing a
// retry each time, until the external writer commits a version higher than the one this writer is
// trying to apply - at which point the retried read-compare-write correctly abandons the local
// upsert instead of clobbering the newer value.
func TestRedisWriteConflictAbandonsLowerVersion(t *testing.T) {
	withTestStore(t, func(subject *redisDataStoreImpl, url string) {
		_, err := subject.Upsert(testKind, "x", item(1, "v1"))
		require.NoError(t, err)

		otherClient, err := r.DialURL(url)
		require.NoError(t, err)
		defer otherClient.Close() // nolint:errcheck

		externalVersion := 0
		subject.testTxHook = func() {
			externalVersion += 2
			if externalVersion < 5 {
				data, encErr := encodeEnvelope(item(externalVersion, "from-elsewhere"))
				require.NoError(t, encErr)
				_, doErr := otherClient.Do("HSET", subject.featuresKey(testKind), "x", data)
				require.NoError(t, doErr)
			}
		}

		updated, err := subject.Upsert(testKind, "x", item(3, "mine"))
		require.NoError(t, err)
		assert.False(t, updated)

		got, err := subject.Get(testKind, "x")
		require.NoError(t, err)
		assert.Equal(t, 4, got.Version)
		assert.Equal(t, []byte("from-elsewhere"), got.SerializedItem)
	})
}

func TestRedisIsStoreAvailable(t *testing.T) {
	withTestStore(t, func(subject *redisDataStoreImpl, _ string) {
		assert.True(t, subject.IsStoreAvailable())
	})
}

func TestRedisPrefixDefaultsAndOverride(t *testing.T) {
	b := DataStore()
	assert.Equal(t, DefaultPrefix, b.prefix)
	b.Prefix("custom")
	assert.Equal(t, "custom", b.prefix)
	b.Prefix("")
	assert.Equal(t, DefaultPrefix, b.prefix)
}

func TestRedisHostAndPort(t *testing.T) {
	b := DataStore().HostAndPort("example.com", 1234)
	assert.Equal(t, "redis://example.com:1234", b.url)
}
