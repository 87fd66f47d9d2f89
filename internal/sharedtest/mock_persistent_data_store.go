package sharedtest

import (
	"sync"
	"time"

	st "github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
)

// MockPersistentDataStore is an in-memory subsystems.PersistentDataStore for testing the cache
// wrapper. The Force* methods manipulate the stored data directly, bypassing the version checks
// that the real Upsert applies, so tests can simulate another process writing to the backend
// behind the wrapper's back. A settable error and availability flag simulate an outage.
type MockPersistentDataStore struct {
	data      map[st.DataKind]map[string]st.SerializedItemDescriptor
	fakeError error
	available bool
	inited    bool
	closed    bool

	// InitQueriedCount is how many times IsInitialized has been called on the backend itself,
	// which the wrapper's sentinel caching is supposed to minimize.
	InitQueriedCount int

	queryDelay     time.Duration
	queryStartedCh chan struct{}
	lock           sync.Mutex
}

// NewMockPersistentDataStore creates an empty, available, uninitialized mock backend.
func NewMockPersistentDataStore() *MockPersistentDataStore {
	return &MockPersistentDataStore{
		data: map[st.DataKind]map[string]st.SerializedItemDescriptor{
			MockData:      {},
			MockOtherData: {},
		},
		available: true,
	}
}

// EnableInstrumentedQueries makes every Get/GetAll announce itself on the returned channel and
// then sleep for queryDelay before answering. Tests use this to hold one query open long enough
// to prove that a concurrent query for the same key never reaches the backend at all.
func (m *MockPersistentDataStore) EnableInstrumentedQueries(queryDelay time.Duration) <-chan struct{} {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.queryDelay = queryDelay
	m.queryStartedCh = make(chan struct{}, 10)
	return m.queryStartedCh
}

// ForceGet reads an item as stored, with no version logic applied.
func (m *MockPersistentDataStore) ForceGet(kind st.DataKind, key string) st.SerializedItemDescriptor {
	m.lock.Lock()
	defer m.lock.Unlock()
	if item, ok := m.data[kind][key]; ok {
		return item
	}
	return st.SerializedItemDescriptor{}.NotFound()
}

// ForceSet writes an item unconditionally, with no version logic applied.
func (m *MockPersistentDataStore) ForceSet(kind st.DataKind, key string, item st.SerializedItemDescriptor) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.data[kind][key] = item
}

// ForceRemove erases an item entirely (as opposed to leaving a tombstone).
func (m *MockPersistentDataStore) ForceRemove(kind st.DataKind, key string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.data[kind], key)
}

// ForceSetInited overrides what IsInitialized will report.
func (m *MockPersistentDataStore) ForceSetInited(inited bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.inited = inited
}

// SetAvailable overrides what IsStoreAvailable will report.
func (m *MockPersistentDataStore) SetAvailable(available bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.available = available
}

// SetFakeError makes every subsequent store operation fail with err until called again with nil.
func (m *MockPersistentDataStore) SetFakeError(err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.fakeError = err
}

func (m *MockPersistentDataStore) Init(allData []st.SerializedCollection) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeError != nil {
		return m.fakeError
	}
	for kind := range m.data {
		m.data[kind] = map[string]st.SerializedItemDescriptor{}
	}
	for _, coll := range allData {
		bucket := m.data[coll.Kind]
		if bucket == nil {
			bucket = map[string]st.SerializedItemDescriptor{}
			m.data[coll.Kind] = bucket
		}
		for _, item := range coll.Items {
			bucket[item.Key] = normalizeTombstone(item.Item)
		}
	}
	m.inited = true
	return nil
}

func (m *MockPersistentDataStore) Get(kind st.DataKind, key string) (st.SerializedItemDescriptor, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeError != nil {
		return st.SerializedItemDescriptor{}.NotFound(), m.fakeError
	}
	m.announceQuery()
	if item, ok := m.data[kind][key]; ok {
		return item, nil
	}
	return st.SerializedItemDescriptor{}.NotFound(), nil
}

func (m *MockPersistentDataStore) GetAll(kind st.DataKind) ([]st.KeyedSerializedItemDescriptor, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeError != nil {
		return nil, m.fakeError
	}
	m.announceQuery()
	items := []st.KeyedSerializedItemDescriptor{}
	for key, item := range m.data[kind] {
		items = append(items, st.KeyedSerializedItemDescriptor{Key: key, Item: item})
	}
	return items, nil
}

func (m *MockPersistentDataStore) Upsert(kind st.DataKind, key string, newItem st.SerializedItemDescriptor) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeError != nil {
		return false, m.fakeError
	}
	if oldItem, ok := m.data[kind][key]; ok && oldItem.Version >= newItem.Version {
		return false, nil
	}
	m.data[kind][key] = normalizeTombstone(newItem)
	return true, nil
}

func (m *MockPersistentDataStore) IsInitialized() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.InitQueriedCount++
	return m.inited
}

func (m *MockPersistentDataStore) IsStoreAvailable() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.available
}

func (m *MockPersistentDataStore) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	return nil
}

// announceQuery is called with the lock held.
func (m *MockPersistentDataStore) announceQuery() {
	if m.queryStartedCh != nil {
		m.queryStartedCh <- struct{}{}
	}
	if m.queryDelay > 0 {
		<-time.After(m.queryDelay)
	}
}

// normalizeTombstone keeps only the version for a deleted item, the way a real backend stores a
// tombstone rather than the item's last serialized body.
func normalizeTombstone(item st.SerializedItemDescriptor) st.SerializedItemDescriptor {
	if item.Deleted {
		return st.SerializedItemDescriptor{Version: item.Version, Deleted: true}
	}
	return item
}
