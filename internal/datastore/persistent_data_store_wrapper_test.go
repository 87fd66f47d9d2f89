package datastore

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	st "github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
	"github.com/launchdarkly/go-server-sdk-evalcore/internal"
	"github.com/launchdarkly/go-server-sdk-evalcore/internal/sharedtest"
	"github.com/launchdarkly/go-server-sdk-evalcore/subsystems"
)

// The wrapper behaves differently in three caching modes, so most tests run in all of them:
// no cache at all, a finite TTL, and the cache-forever mode used when the backend is treated
// as a write-behind mirror of the cache.
var cacheModes = []struct {
	name string
	ttl  time.Duration
}{
	{"uncached", 0},
	{"cached", 30 * time.Second},
	{"cached indefinitely", -1},
}

func isCachedMode(ttl time.Duration) bool   { return ttl != 0 }
func isInfiniteMode(ttl time.Duration) bool { return ttl < 0 }

type wrapperTestScope struct {
	t       *testing.T
	ttl     time.Duration
	backend *sharedtest.MockPersistentDataStore
	wrapper subsystems.DataStore
}

func inEachCacheMode(t *testing.T, run func(s wrapperTestScope)) {
	for _, mode := range cacheModes {
		t.Run(mode.name, func(t *testing.T) {
			backend := sharedtest.NewMockPersistentDataStore()
			wrapper := NewPersistentDataStoreWrapper(
				backend,
				NewStoreStatusSink(internal.NewDataStoreStatusBroadcaster()),
				mode.ttl,
				sharedtest.NewTestLoggers(),
			)
			defer wrapper.Close()
			run(wrapperTestScope{t: t, ttl: mode.ttl, backend: backend, wrapper: wrapper})
		})
	}
}

// requireGet fetches through the wrapper and fails the test on error.
func (s wrapperTestScope) requireGet(key string) st.ItemDescriptor {
	item, err := s.wrapper.Get(sharedtest.MockData, key)
	require.NoError(s.t, err)
	return item
}

func TestPersistentWrapperGet(t *testing.T) {
	t.Run("reads through to the backend, then serves the cached copy", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			v1 := sharedtest.MockDataItem{Key: "item", Version: 1}
			v2 := sharedtest.MockDataItem{Key: "item", Version: 2}

			s.backend.ForceSet(sharedtest.MockData, "item", v1.ToSerializedItemDescriptor())
			require.Equal(s.t, v1.ToItemDescriptor(), s.requireGet("item"))

			// Change the backend behind the wrapper's back; a cached wrapper must not notice
			// within the TTL, an uncached one must.
			s.backend.ForceSet(sharedtest.MockData, "item", v2.ToSerializedItemDescriptor())
			if isCachedMode(s.ttl) {
				require.Equal(s.t, v1.ToItemDescriptor(), s.requireGet("item"))
			} else {
				require.Equal(s.t, v2.ToItemDescriptor(), s.requireGet("item"))
			}
		})
	})

	t.Run("caches a not-found result", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			require.Equal(s.t, st.ItemDescriptor{}.NotFound(), s.requireGet("nope"))

			late := sharedtest.MockDataItem{Key: "nope", Version: 1}
			s.backend.ForceSet(sharedtest.MockData, "nope", late.ToSerializedItemDescriptor())
			if isCachedMode(s.ttl) {
				require.Equal(s.t, st.ItemDescriptor{}.NotFound(), s.requireGet("nope"))
			} else {
				require.Equal(s.t, late.ToItemDescriptor(), s.requireGet("nope"))
			}
		})
	})

	t.Run("a tombstone reads as a versioned deletion, and is cached like any item", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			tombstone := st.ItemDescriptor{Version: 1}
			s.backend.ForceSet(sharedtest.MockData, "gone", st.SerializedItemDescriptor{Version: 1, Deleted: true})
			assert.Equal(s.t, tombstone, s.requireGet("gone"))

			resurrected := sharedtest.MockDataItem{Key: "gone", Version: 2}
			s.backend.ForceSet(sharedtest.MockData, "gone", resurrected.ToSerializedItemDescriptor())
			if isCachedMode(s.ttl) {
				require.Equal(s.t, tombstone, s.requireGet("gone"))
			} else {
				require.Equal(s.t, resurrected.ToItemDescriptor(), s.requireGet("gone"))
			}
		})
	})

	t.Run("surfaces a deserialization failure as an error, not a miss", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			s.backend.ForceSet(sharedtest.MockData, "bad",
				st.SerializedItemDescriptor{Version: 1, SerializedItem: []byte("{garbage")})
			_, err := s.wrapper.Get(sharedtest.MockData, "bad")
			require.Error(s.t, err)
			assert.Contains(s.t, err.Error(), "not a valid MockDataItem")
		})
	})

	t.Run("prefers the backend's version counter over the one in the serialized body", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			item := sharedtest.MockDataItem{Key: "item", Version: 1}
			serialized := item.ToSerializedItemDescriptor()
			serialized.Version = 2
			s.backend.ForceSet(sharedtest.MockData, "item", serialized)

			want := item.ToItemDescriptor()
			want.Version = 2
			assert.Equal(s.t, want, s.requireGet("item"))
		})
	})

	t.Run("Init primes the point-read cache", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			if !isCachedMode(s.ttl) {
				s.t.SkipNow()
			}
			v1 := sharedtest.MockDataItem{Key: "item", Version: 1}
			v2 := sharedtest.MockDataItem{Key: "item", Version: 2}
			require.NoError(s.t, s.wrapper.Init(sharedtest.MakeMockDataSet(v1)))

			s.backend.ForceSet(sharedtest.MockData, "item", v2.ToSerializedItemDescriptor())
			require.Equal(s.t, v1.ToItemDescriptor(), s.requireGet("item"))
		})
	})

	t.Run("concurrent misses for one key produce a single backend query", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			if !isCachedMode(s.ttl) {
				s.t.SkipNow()
			}
			queryStarted := s.backend.EnableInstrumentedQueries(200 * time.Millisecond)
			item := sharedtest.MockDataItem{Key: "key", Version: 9}
			s.backend.ForceSet(sharedtest.MockData, "key", item.ToSerializedItemDescriptor())

			versions := make(chan int, 2)
			readIt := func() {
				result, _ := s.wrapper.Get(sharedtest.MockData, "key")
				versions <- result.Version
			}
			go readIt()
			// Once the first query has announced itself it is parked inside the backend, so a
			// second read started now overlaps it almost certainly (not provably, but the 200ms
			// hold makes the window enormous compared to goroutine startup).
			<-queryStarted
			go readIt()

			assert.Equal(s.t, item.Version, <-versions)
			assert.Equal(s.t, item.Version, <-versions)
			assert.Len(s.t, queryStarted, 0)
		})
	})
}

func TestPersistentWrapperGetAll(t *testing.T) {
	t.Run("returns only the requested kind", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			item1 := sharedtest.MockDataItem{Key: "item1", Version: 1}
			item2 := sharedtest.MockDataItem{Key: "item2", Version: 1}
			other := sharedtest.MockDataItem{Key: "item1", Version: 3, IsOtherKind: true}
			s.backend.ForceSet(sharedtest.MockData, item1.Key, item1.ToSerializedItemDescriptor())
			s.backend.ForceSet(sharedtest.MockData, item2.Key, item2.ToSerializedItemDescriptor())
			s.backend.ForceSet(sharedtest.MockOtherData, other.Key, other.ToSerializedItemDescriptor())

			items, err := s.wrapper.GetAll(sharedtest.MockData)
			require.NoError(s.t, err)
			sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
			assert.Equal(s.t, []st.KeyedItemDescriptor{
				item1.ToKeyedItemDescriptor(), item2.ToKeyedItemDescriptor(),
			}, items)

			otherItems, err := s.wrapper.GetAll(sharedtest.MockOtherData)
			require.NoError(s.t, err)
			assert.Equal(s.t, []st.KeyedItemDescriptor{other.ToKeyedItemDescriptor()}, otherItems)
		})
	})

	t.Run("one undeserializable item fails the whole query", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			good := sharedtest.MockDataItem{Key: "good", Version: 1}
			s.backend.ForceSet(sharedtest.MockData, good.Key, good.ToSerializedItemDescriptor())
			s.backend.ForceSet(sharedtest.MockData, "bad",
				st.SerializedItemDescriptor{Version: 1, SerializedItem: []byte("{garbage")})

			_, err := s.wrapper.GetAll(sharedtest.MockData)
			require.Error(s.t, err)
			assert.Contains(s.t, err.Error(), "not a valid MockDataItem")
		})
	})

	t.Run("Init primes the all-items cache", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			if !isCachedMode(s.ttl) {
				s.t.SkipNow()
			}
			item1 := sharedtest.MockDataItem{Key: "item1", Version: 1}
			item2 := sharedtest.MockDataItem{Key: "item2", Version: 1}
			require.NoError(s.t, s.wrapper.Init(sharedtest.MakeMockDataSet(item1, item2)))

			s.backend.ForceRemove(sharedtest.MockData, item2.Key)
			items, err := s.wrapper.GetAll(sharedtest.MockData)
			require.NoError(s.t, err)
			assert.Len(s.t, items, 2)
		})
	})

	t.Run("an Upsert through the wrapper invalidates the all-items cache", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			if !isCachedMode(s.ttl) {
				s.t.SkipNow()
			}
			item1v1 := sharedtest.MockDataItem{Key: "item1", Version: 1}
			item1v2 := sharedtest.MockDataItem{Key: "item1", Version: 2}
			item2v1 := sharedtest.MockDataItem{Key: "item2", Version: 1}
			item2v2 := sharedtest.MockDataItem{Key: "item2", Version: 2}
			require.NoError(s.t, s.wrapper.Init(sharedtest.MakeMockDataSet(item1v1, item2v1)))

			// One change through the wrapper, one sneaked into the backend directly. After the
			// wrapper-side change drops the all-items entry, the next GetAll re-reads the
			// backend and sees both.
			_, err := s.wrapper.Upsert(sharedtest.MockData, item1v2.Key, item1v2.ToItemDescriptor())
			require.NoError(s.t, err)
			s.backend.ForceSet(sharedtest.MockData, item2v2.Key, item2v2.ToSerializedItemDescriptor())

			items, err := s.wrapper.GetAll(sharedtest.MockData)
			require.NoError(s.t, err)
			sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
			require.Len(s.t, items, 2)
			if isInfiniteMode(s.ttl) {
				// Cached forever: the all-items entry is patched in place rather than dropped,
				// so the direct backend write stays invisible.
				assert.Equal(s.t, 1, items[1].Item.Version)
			} else {
				assert.Equal(s.t, 2, items[1].Item.Version)
			}
			assert.Equal(s.t, 2, items[0].Item.Version)
		})
	})

	t.Run("concurrent all-reads produce a single backend query", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			if !isCachedMode(s.ttl) {
				s.t.SkipNow()
			}
			queryStarted := s.backend.EnableInstrumentedQueries(200 * time.Millisecond)
			item := sharedtest.MockDataItem{Key: "key", Version: 9}
			s.backend.ForceSet(sharedtest.MockData, "key", item.ToSerializedItemDescriptor())

			counts := make(chan int, 2)
			readAll := func() {
				result, _ := s.wrapper.GetAll(sharedtest.MockData)
				counts <- len(result)
			}
			go readAll()
			<-queryStarted
			go readAll()

			assert.Equal(s.t, 1, <-counts)
			assert.Equal(s.t, 1, <-counts)
			assert.Len(s.t, queryStarted, 0)
		})
	})
}

func TestPersistentWrapperUpsert(t *testing.T) {
	t.Run("a newer version writes through and is cached", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			v1 := sharedtest.MockDataItem{Key: "item", Version: 1}
			v2 := sharedtest.MockDataItem{Key: "item", Version: 2}

			for _, item := range []sharedtest.MockDataItem{v1, v2} {
				updated, err := s.wrapper.Upsert(sharedtest.MockData, "item", item.ToItemDescriptor())
				require.NoError(s.t, err)
				assert.True(s.t, updated)
				require.Equal(s.t, item.ToSerializedItemDescriptor(), s.backend.ForceGet(sharedtest.MockData, "item"))
			}

			if isCachedMode(s.ttl) {
				// Prove the upsert populated the cache: a direct backend write stays invisible.
				v3 := sharedtest.MockDataItem{Key: "item", Version: 3}
				s.backend.ForceSet(sharedtest.MockData, "item", v3.ToSerializedItemDescriptor())
			}
			assert.Equal(s.t, v2.ToItemDescriptor(), s.requireGet("item"))
		})
	})

	t.Run("a stale version is abandoned and the cache re-reads the winner", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			v2 := sharedtest.MockDataItem{Key: "item", Version: 2}
			updated, err := s.wrapper.Upsert(sharedtest.MockData, "item", v2.ToItemDescriptor())
			require.NoError(s.t, err)
			require.True(s.t, updated)

			// A competing writer lands v3 directly in the backend, then our stale v1 arrives.
			v3 := sharedtest.MockDataItem{Key: "item", Version: 3}
			s.backend.ForceSet(sharedtest.MockData, "item", v3.ToSerializedItemDescriptor())
			v1 := sharedtest.MockDataItem{Key: "item", Version: 1}
			updated, err = s.wrapper.Upsert(sharedtest.MockData, "item", v1.ToItemDescriptor())
			require.NoError(s.t, err)
			assert.False(s.t, updated)

			// The failed upsert must leave the cache holding whatever actually won, not v1 or v2.
			assert.Equal(s.t, v3.ToItemDescriptor(), s.requireGet("item"))
		})
	})

	t.Run("a tombstone upserts like any other versioned item", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			v1 := sharedtest.MockDataItem{Key: "item", Version: 1}
			tombstoneV2 := st.ItemDescriptor{Version: 2}

			updated, err := s.wrapper.Upsert(sharedtest.MockData, "item", v1.ToItemDescriptor())
			require.NoError(s.t, err)
			require.True(s.t, updated)
			updated, err = s.wrapper.Upsert(sharedtest.MockData, "item", tombstoneV2)
			require.NoError(s.t, err)
			assert.True(s.t, updated)

			if isCachedMode(s.ttl) {
				v3 := sharedtest.MockDataItem{Key: "item", Version: 3}
				s.backend.ForceSet(sharedtest.MockData, "item", v3.ToSerializedItemDescriptor())
			}
			assert.Equal(s.t, tombstoneV2, s.requireGet("item"))
		})
	})

	t.Run("a stale tombstone cannot delete a newer item", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			v2 := sharedtest.MockDataItem{Key: "item", Version: 2}
			updated, err := s.wrapper.Upsert(sharedtest.MockData, "item", v2.ToItemDescriptor())
			require.NoError(s.t, err)
			require.True(s.t, updated)

			updated, err = s.wrapper.Upsert(sharedtest.MockData, "item", st.ItemDescriptor{Version: 1})
			require.NoError(s.t, err)
			assert.False(s.t, updated)
			assert.Equal(s.t, v2.ToItemDescriptor(), s.requireGet("item"))
		})
	})
}

func TestPersistentWrapperIsInitialized(t *testing.T) {
	t.Run("a completed Init short-circuits any further backend query", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			assert.False(s.t, s.wrapper.IsInitialized())
			assert.Equal(s.t, 1, s.backend.InitQueriedCount)

			require.NoError(s.t, s.wrapper.Init(sharedtest.MakeMockDataSet()))

			assert.True(s.t, s.wrapper.IsInitialized())
			assert.Equal(s.t, 1, s.backend.InitQueriedCount)
		})
	})

	t.Run("a true answer from the backend is remembered permanently", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			if !isCachedMode(s.ttl) {
				s.t.SkipNow()
			}
			s.backend.ForceSetInited(true)
			assert.True(s.t, s.wrapper.IsInitialized())
			assert.Equal(s.t, 1, s.backend.InitQueriedCount)

			s.backend.ForceSetInited(false)
			assert.True(s.t, s.wrapper.IsInitialized())
			assert.Equal(s.t, 1, s.backend.InitQueriedCount)
		})
	})

	t.Run("a false answer is held for one TTL window via the sentinel", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			if !isCachedMode(s.ttl) {
				s.t.SkipNow()
			}
			assert.False(s.t, s.wrapper.IsInitialized())
			assert.Equal(s.t, 1, s.backend.InitQueriedCount)

			s.backend.ForceSetInited(true)
			assert.False(s.t, s.wrapper.IsInitialized())
			assert.Equal(s.t, 1, s.backend.InitQueriedCount)
		})
	})
}

func TestPersistentWrapperBackendFailures(t *testing.T) {
	backendDown := errors.New("sorry")

	t.Run("finite TTL keeps cache and backend in lockstep", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			if !isCachedMode(s.ttl) || isInfiniteMode(s.ttl) {
				s.t.SkipNow()
			}
			v1 := sharedtest.MockDataItem{Key: "key", Version: 1}
			v2 := sharedtest.MockDataItem{Key: "key", Version: 2}
			require.NoError(s.t, s.wrapper.Init(sharedtest.MakeMockDataSet(v1)))

			s.backend.SetFakeError(backendDown)
			_, err := s.wrapper.Upsert(sharedtest.MockData, "key", v2.ToItemDescriptor())
			assert.Equal(s.t, backendDown, err)
			assert.Equal(s.t, v1.ToSerializedItemDescriptor(), s.backend.ForceGet(sharedtest.MockData, "key"))

			// The rejected write must not be visible in the cache either.
			s.backend.SetFakeError(nil)
			assert.Equal(s.t, v1.ToItemDescriptor(), s.requireGet("key"))
		})
	})

	t.Run("finite TTL discards the data set when Init fails", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			if !isCachedMode(s.ttl) || isInfiniteMode(s.ttl) {
				s.t.SkipNow()
			}
			s.backend.SetFakeError(backendDown)
			err := s.wrapper.Init(sharedtest.MakeMockDataSet(sharedtest.MockDataItem{Key: "key", Version: 1}))
			assert.Equal(s.t, backendDown, err)

			s.backend.SetFakeError(nil)
			items, err := s.wrapper.GetAll(sharedtest.MockData)
			require.NoError(s.t, err)
			assert.Len(s.t, items, 0)
		})
	})

	t.Run("infinite TTL lets the cache run ahead of a down backend", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			if !isInfiniteMode(s.ttl) {
				s.t.SkipNow()
			}
			v1 := sharedtest.MockDataItem{Key: "key", Version: 1}
			v2 := sharedtest.MockDataItem{Key: "key", Version: 2}
			require.NoError(s.t, s.wrapper.Init(sharedtest.MakeMockDataSet(v1)))

			s.backend.SetFakeError(backendDown)
			_, err := s.wrapper.Upsert(sharedtest.MockData, "key", v2.ToItemDescriptor())
			assert.Equal(s.t, backendDown, err)
			assert.Equal(s.t, v1.ToSerializedItemDescriptor(), s.backend.ForceGet(sharedtest.MockData, "key"))

			// The cache took the write anyway; it will be replayed into the backend on recovery.
			s.backend.SetFakeError(nil)
			assert.Equal(s.t, v2.ToItemDescriptor(), s.requireGet("key"))
		})
	})

	t.Run("infinite TTL keeps the data set when Init fails", func(t *testing.T) {
		inEachCacheMode(t, func(s wrapperTestScope) {
			if !isInfiniteMode(s.ttl) {
				s.t.SkipNow()
			}
			s.backend.SetFakeError(backendDown)
			err := s.wrapper.Init(sharedtest.MakeMockDataSet(sharedtest.MockDataItem{Key: "key", Version: 1}))
			assert.Equal(s.t, backendDown, err)
			assert.Equal(s.t, st.SerializedItemDescriptor{}.NotFound(), s.backend.ForceGet(sharedtest.MockData, "key"))

			s.backend.SetFakeError(nil)
			items, err := s.wrapper.GetAll(sharedtest.MockData)
			require.NoError(s.t, err)
			assert.Len(s.t, items, 1)
		})
	})
}

func TestPersistentWrapperStatusMonitoringIsAlwaysEnabled(t *testing.T) {
	inEachCacheMode(t, func(s wrapperTestScope) {
		assert.True(s.t, s.wrapper.IsStatusMonitoringEnabled())
	})
}
