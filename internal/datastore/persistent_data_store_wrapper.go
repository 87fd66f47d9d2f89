package datastore

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-server-sdk-evalcore/internal/datakinds"
	st "github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
	"github.com/launchdarkly/go-server-sdk-evalcore/subsystems"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/singleflight"
)

// sentinelInitCheckedKey remembers, for one TTL window, that a prior IsInitialized() call found
// the backend not yet initialized - so repeated readiness polling during startup doesn't hit the
// backend on every call. Removal of this entry (in IsInitialized below, and by the cache flush in
// Init) happens only under readyLock's write side, never the read side: deleting it under a shared lock can race with a
// concurrent writer doing the same and corrupt the cache under contention.
const sentinelInitCheckedKey = "$initChecked"

// persistentDataStoreWrapper adds a write-through, time-bounded cache in front of a
// subsystems.PersistentDataStore, giving any backend (redis, or another implementation of that
// interface) the same "higher-version-wins", tombstone-aware contract the store guarantees,
// whether or not the backend can offer that guarantee natively.
type persistentDataStoreWrapper struct {
	backend   subsystems.PersistentDataStore
	updates   subsystems.DataStoreUpdateSink
	poller    *availabilityMonitor
	itemCache *cache.Cache
	ttl       time.Duration
	dedup     singleflight.Group
	loggers   ldlog.Loggers

	ready     bool
	readyLock sync.RWMutex
}

// NewPersistentDataStoreWrapper wraps backend with a cache whose entries live for ttl (ttl < 0
// means entries never expire on their own; ttl == 0 disables caching entirely, so every call goes
// straight to backend). This is the constructor a PersistentDataStore implementation (such as
// the one built by redis.DataStore().Build) is combined with to produce a subsystems.DataStore.
func NewPersistentDataStoreWrapper(
	backend subsystems.PersistentDataStore,
	updates subsystems.DataStoreUpdateSink,
	ttl time.Duration,
	loggers ldlog.Loggers,
) subsystems.DataStore {
	var itemCache *cache.Cache
	if ttl != 0 {
		itemCache = cache.New(ttl, 5*time.Minute)
	}

	w := &persistentDataStoreWrapper{
		backend:   backend,
		updates:   updates,
		itemCache: itemCache,
		ttl:       ttl,
		loggers:   loggers,
	}

	w.poller = newAvailabilityMonitor(
		true,
		w.tryRecoverFromOutage,
		updates.UpdateStatus,
		itemCache == nil || ttl > 0, // needsRefresh unless caching forever
		loggers,
	)

	return w
}

func (w *persistentDataStoreWrapper) hasInfiniteCache() bool {
	return w.itemCache != nil && w.ttl < 0
}

func (w *persistentDataStoreWrapper) Close() error {
	w.poller.Close()
	return w.backend.Close()
}

func (w *persistentDataStoreWrapper) IsStatusMonitoringEnabled() bool {
	return true
}

// IsInitialized is cached for the same TTL as item reads via sentinelInitCheckedKey, so that a
// caller polling readiness at startup doesn't hammer the backend once per call.
func (w *persistentDataStoreWrapper) IsInitialized() bool {
	w.readyLock.RLock()
	alreadyKnownReady := w.ready
	w.readyLock.RUnlock()
	if alreadyKnownReady {
		return true
	}

	if w.itemCache != nil {
		if _, found := w.itemCache.Get(sentinelInitCheckedKey); found {
			return false
		}
	}

	backendReady := w.backend.IsInitialized()
	if backendReady {
		w.readyLock.Lock()
		w.ready = true
		if w.itemCache != nil {
			w.itemCache.Delete(sentinelInitCheckedKey)
		}
		w.readyLock.Unlock()
	} else if w.itemCache != nil {
		w.itemCache.Set(sentinelInitCheckedKey, "", cache.DefaultExpiration)
	}
	return backendReady
}

func (w *persistentDataStoreWrapper) Init(allData []st.Collection) error {
	err := w.initBackend(allData)
	if w.itemCache != nil {
		// Flushing also drops sentinelInitCheckedKey, so it takes readyLock's write side.
		w.readyLock.Lock()
		w.itemCache.Flush()
		w.readyLock.Unlock()
	}
	if err != nil && !w.hasInfiniteCache() {
		// Better to stay consistently on old data than to claim the new data briefly and then
		// fall back once the cache expires.
		return err
	}
	if w.itemCache != nil {
		for _, coll := range allData {
			w.primeCache(coll.Kind, coll.Items)
		}
	}
	w.readyLock.Lock()
	w.ready = true
	w.readyLock.Unlock()
	return err
}

// Get returns one item, consulting the cache first and falling through to the backend - via
// fetchCached, which also collapses concurrent misses for the same key into a single backend
// call - when the cache doesn't have it.
func (w *persistentDataStoreWrapper) Get(kind st.DataKind, key string) (st.ItemDescriptor, error) {
	if w.itemCache == nil {
		item, err := w.fetchItem(kind, key)
		w.noteResult(err)
		return item, err
	}
	return fetchCached(w, itemCacheKey(kind, key), func() (st.ItemDescriptor, error) {
		return w.fetchItem(kind, key)
	})
}

// GetAll returns every item of one kind, tombstones included, with the same cache-then-backend-then-singleflight
// path as Get.
func (w *persistentDataStoreWrapper) GetAll(kind st.DataKind) ([]st.KeyedItemDescriptor, error) {
	if w.itemCache == nil {
		items, err := w.fetchAllItems(kind)
		w.noteResult(err)
		return items, err
	}
	return fetchCached(w, allItemsCacheKey(kind), func() ([]st.KeyedItemDescriptor, error) {
		return w.fetchAllItems(kind)
	})
}

// fetchCached is shared by Get and GetAll: check the cache, and on a miss use singleflight so
// that however many goroutines are asking for the same cacheKey at once, only one of them
// actually reaches the backend.
func fetchCached[T any](w *persistentDataStoreWrapper, cacheKey string, fetch func() (T, error)) (T, error) {
	if cached, present := w.itemCache.Get(cacheKey); present {
		if value, ok := cached.(T); ok {
			return value, nil
		}
	}
	resultIntf, err, _ := w.dedup.Do(cacheKey, func() (interface{}, error) {
		value, err := fetch()
		w.noteResult(err)
		if err != nil {
			return nil, err
		}
		w.itemCache.Set(cacheKey, value, cache.DefaultExpiration)
		return value, nil
	})
	var zero T
	if err != nil {
		return zero, err
	}
	if resultIntf == nil {
		return zero, nil
	}
	if value, ok := resultIntf.(T); ok {
		return value, nil
	}
	w.loggers.Errorf("data store query returned unexpected type %T", resultIntf)
	// COVERAGE: unreachable in practice - fetch's own return type already matches T.
	return zero, nil
}

// Upsert writes through to the backend first; the cache is updated to reflect what the backend
// actually accepted. This is what keeps a reader's view consistent with "higher version wins" even
// when several writers race. The one exception is cache-forever mode: there a write the backend
// failed on is still recorded in the cache, so it can be replayed once the backend recovers.
func (w *persistentDataStoreWrapper) Upsert(kind st.DataKind, key string, newItem st.ItemDescriptor) (bool, error) {
	accepted, err := w.backend.Upsert(kind, key, w.toSerialized(kind, newItem))
	w.noteResult(err)
	if err != nil && !w.hasInfiniteCache() {
		return accepted, err
	}
	if w.itemCache == nil {
		return accepted, err
	}

	pointKey := itemCacheKey(kind, key)
	allKey := allItemsCacheKey(kind)

	switch {
	case err != nil:
		// Backend call failed but we're caching forever: keep our local view current in case we
		// need to replay it once the backend comes back.
		if w.hasInfiniteCache() {
			w.itemCache.Set(pointKey, newItem, cache.DefaultExpiration)
			w.itemCache.Set(allKey, withItemReplaced(w.cachedAllOrEmpty(allKey), key, newItem), cache.DefaultExpiration)
		}
	case accepted:
		w.itemCache.Set(pointKey, newItem, cache.DefaultExpiration)
		if w.hasInfiniteCache() {
			if items, ok := w.itemCache.Get(allKey); ok {
				if keyed, ok := items.([]st.KeyedItemDescriptor); ok {
					w.itemCache.Set(allKey, withItemReplaced(keyed, key, newItem), cache.DefaultExpiration)
				}
			}
		} else {
			// A finite TTL means GetAll must re-query on its next call rather than serve a
			// stale-minus-one-item view.
			w.itemCache.Delete(allKey)
		}
	default:
		// Someone else committed a higher version between our read and our write: our upsert was
		// correctly abandoned. Drop what we had cached and let the next read repopulate it from
		// whatever won the race.
		w.itemCache.Delete(pointKey)
		w.itemCache.Delete(allKey)
		_, _ = w.Get(kind, key)
	}
	return accepted, err
}

func (w *persistentDataStoreWrapper) cachedAllOrEmpty(allKey string) []st.KeyedItemDescriptor {
	if data, present := w.itemCache.Get(allKey); present {
		if items, ok := data.([]st.KeyedItemDescriptor); ok {
			return items
		}
	}
	return nil
}

// tryRecoverFromOutage is invoked by the status poller once the backend reports itself reachable
// again. In infinite-cache mode the cache is assumed to hold a complete, current data set (the
// data source kept running through the outage), so it is replayed into the backend to bring it
// back in sync.
func (w *persistentDataStoreWrapper) tryRecoverFromOutage() bool {
	if !w.backend.IsStoreAvailable() {
		return false
	}
	if w.hasInfiniteCache() {
		kinds := datakinds.AllDataKinds()
		replay := make([]st.Collection, 0, len(kinds))
		for _, kind := range kinds {
			if items := w.cachedAllOrEmpty(allItemsCacheKey(kind)); items != nil {
				replay = append(replay, st.Collection{Kind: kind, Items: items})
			}
		}
		if err := w.initBackend(replay); err != nil {
			w.loggers.Errorf("tried to replay cached data into the persistent store after an outage, but failed: %s", err)
		} else {
			w.loggers.Warn("persistent store resynchronized from cached data after an outage")
		}
	}
	return true
}

func (w *persistentDataStoreWrapper) noteResult(err error) {
	if err == nil {
		// Recovery is signaled by the status poller, not from here, to avoid taking a lock on
		// every successful call.
		return
	}
	w.loggers.Errorf("data store returned error: %s", err.Error())
	w.poller.SetAvailable(false)
}

func itemCacheKey(kind st.DataKind, key string) string {
	return kind.GetName() + ":" + key
}

func allItemsCacheKey(kind st.DataKind) string {
	return "all:" + kind.GetName()
}

func (w *persistentDataStoreWrapper) primeCache(kind st.DataKind, items []st.KeyedItemDescriptor) {
	if w.itemCache == nil {
		return
	}
	w.itemCache.Set(allItemsCacheKey(kind), slices.Clone(items), cache.DefaultExpiration)
	for _, item := range items {
		w.itemCache.Set(itemCacheKey(kind, item.Key), item.Item, cache.DefaultExpiration)
	}
}

func (w *persistentDataStoreWrapper) initBackend(allData []st.Collection) error {
	serialized := make([]st.SerializedCollection, 0, len(allData))
	for _, coll := range allData {
		serialized = append(serialized, st.SerializedCollection{
			Kind:  coll.Kind,
			Items: w.toSerializedAll(coll.Kind, coll.Items),
		})
	}
	err := w.backend.Init(serialized)
	w.noteResult(err)
	return err
}

func (w *persistentDataStoreWrapper) fetchItem(kind st.DataKind, key string) (st.ItemDescriptor, error) {
	serialized, err := w.backend.Get(kind, key)
	if err != nil {
		return st.ItemDescriptor{}.NotFound(), err
	}
	return w.fromSerialized(kind, serialized)
}

func (w *persistentDataStoreWrapper) fetchAllItems(kind st.DataKind) ([]st.KeyedItemDescriptor, error) {
	serializedItems, err := w.backend.GetAll(kind)
	if err != nil {
		return nil, err
	}
	items := make([]st.KeyedItemDescriptor, 0, len(serializedItems))
	for _, serializedItem := range serializedItems {
		item, err := w.fromSerialized(kind, serializedItem.Item)
		if err != nil {
			return nil, err
		}
		items = append(items, st.KeyedItemDescriptor{Key: serializedItem.Key, Item: item})
	}
	return items, nil
}

func (w *persistentDataStoreWrapper) toSerialized(kind st.DataKind, item st.ItemDescriptor) st.SerializedItemDescriptor {
	return st.SerializedItemDescriptor{
		Version:        item.Version,
		Deleted:        item.Item == nil,
		SerializedItem: kind.Serialize(item),
	}
}

func (w *persistentDataStoreWrapper) toSerializedAll(
	kind st.DataKind,
	items []st.KeyedItemDescriptor,
) []st.KeyedSerializedItemDescriptor {
	out := make([]st.KeyedSerializedItemDescriptor, 0, len(items))
	for _, item := range items {
		out = append(out, st.KeyedSerializedItemDescriptor{Key: item.Key, Item: w.toSerialized(kind, item.Item)})
	}
	return out
}

func (w *persistentDataStoreWrapper) fromSerialized(
	kind st.DataKind,
	serialized st.SerializedItemDescriptor,
) (st.ItemDescriptor, error) {
	if serialized.Deleted || serialized.SerializedItem == nil {
		return st.ItemDescriptor{Version: serialized.Version}, nil
	}
	deserialized, err := kind.Deserialize(serialized.SerializedItem)
	if err != nil {
		return st.ItemDescriptor{}.NotFound(), err
	}
	if serialized.Version == 0 || serialized.Version == deserialized.Version {
		return deserialized, nil
	}
	// The backend's own version counter disagrees with what was encoded in the item; the
	// backend's bookkeeping wins, since it's what Upsert's version comparisons are based on.
	return st.ItemDescriptor{Version: serialized.Version, Item: deserialized.Item}, nil
}

// withItemReplaced returns a copy of items with key's entry set to newItem, appending it if it
// wasn't already present.
func withItemReplaced(items []st.KeyedItemDescriptor, key string, newItem st.ItemDescriptor) []st.KeyedItemDescriptor {
	out := make([]st.KeyedItemDescriptor, 0, len(items)+1)
	replaced := false
	for _, item := range items {
		if item.Key == key {
			out = append(out, st.KeyedItemDescriptor{Key: key, Item: newItem})
			replaced = true
		} else {
			out = append(out, item)
		}
	}
	if !replaced {
		out = append(out, st.KeyedItemDescriptor{Key: key, Item: newItem})
	}
	return out
}
