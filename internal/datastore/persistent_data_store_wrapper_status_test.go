package datastore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-server-sdk-evalcore/interfaces"
	st "github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
	"github.com/launchdarkly/go-server-sdk-evalcore/internal"
	"github.com/launchdarkly/go-server-sdk-evalcore/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-evalcore/internal/sharedtest"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldmodel"
)

// statusWaitLimit is comfortably more than recoveryPollInterval, so a test never misses a
// status transition the monitor is guaranteed to publish within one poll.
const statusWaitLimit = time.Second

type statusTestScope struct {
	wrapperTestScope
	sink        *StoreStatusSink
	broadcaster *internal.DataStoreStatusBroadcaster
}

func inEachCacheModeWithStatus(t *testing.T, run func(s statusTestScope)) {
	for _, mode := range cacheModes {
		t.Run(mode.name, func(t *testing.T) {
			broadcaster := internal.NewDataStoreStatusBroadcaster()
			defer broadcaster.Close()
			sink := NewStoreStatusSink(broadcaster)
			backend := sharedtest.NewMockPersistentDataStore()
			wrapper := NewPersistentDataStoreWrapper(backend, sink, mode.ttl, sharedtest.NewTestLoggers())
			defer wrapper.Close()
			run(statusTestScope{
				wrapperTestScope: wrapperTestScope{t: t, ttl: mode.ttl, backend: backend, wrapper: wrapper},
				sink:             sink,
				broadcaster:      broadcaster,
			})
		})
	}
}

func nextStatus(t *testing.T, ch <-chan interfaces.DataStoreStatus) interfaces.DataStoreStatus {
	select {
	case status := <-ch:
		return status
	case <-time.After(statusWaitLimit):
		require.Fail(t, "timed out waiting for a status update")
		return interfaces.DataStoreStatus{}
	}
}

func TestPersistentWrapperStatusGoesUnavailableOnError(t *testing.T) {
	backendDown := errors.New("sorry")

	t.Run("from Get", func(t *testing.T) {
		inEachCacheModeWithStatus(t, func(s statusTestScope) {
			s.backend.SetFakeError(backendDown)
			_, err := s.wrapper.Get(datakinds.Features, "key")
			require.Equal(s.t, backendDown, err)
			assert.Equal(s.t, interfaces.DataStoreStatus{Available: false}, s.sink.currentStatus())
		})
	})

	t.Run("from GetAll", func(t *testing.T) {
		inEachCacheModeWithStatus(t, func(s statusTestScope) {
			s.backend.SetFakeError(backendDown)
			_, err := s.wrapper.GetAll(datakinds.Features)
			require.Equal(s.t, backendDown, err)
			assert.Equal(s.t, interfaces.DataStoreStatus{Available: false}, s.sink.currentStatus())
		})
	})
}

func TestPersistentWrapperStatusRecovery(t *testing.T) {
	backendDown := errors.New("sorry")

	t.Run("listener hears one outage notice and one recovery notice", func(t *testing.T) {
		inEachCacheModeWithStatus(t, func(s statusTestScope) {
			statusCh := s.broadcaster.AddListener()

			s.backend.SetFakeError(backendDown)
			s.backend.SetAvailable(false)
			_, err := s.wrapper.GetAll(datakinds.Features)
			require.Equal(s.t, backendDown, err)
			require.Equal(s.t, interfaces.DataStoreStatus{Available: false}, nextStatus(s.t, statusCh))

			// A second failure while already down is not news.
			_, err = s.wrapper.GetAll(datakinds.Features)
			require.Equal(s.t, backendDown, err)
			assert.Len(s.t, statusCh, 0)

			// Let at least one probe observe the outage, then lift it. Unless the cache holds
			// data forever, recovery also tells the subscriber to refresh, since cached state may
			// have expired during the outage.
			<-time.After(recoveryPollInterval + 100*time.Millisecond)
			s.backend.SetAvailable(true)
			assert.Equal(s.t, interfaces.DataStoreStatus{
				Available:    true,
				NeedsRefresh: !isInfiniteMode(s.ttl),
			}, nextStatus(s.t, statusCh))
		})
	})

	t.Run("infinite TTL replays cached writes into the recovered backend", func(t *testing.T) {
		inEachCacheModeWithStatus(t, func(s statusTestScope) {
			if !isInfiniteMode(s.ttl) {
				s.t.SkipNow()
			}
			statusCh := s.broadcaster.AddListener()

			s.backend.SetFakeError(backendDown)
			s.backend.SetAvailable(false)
			_, err := s.wrapper.GetAll(datakinds.Features)
			require.Equal(s.t, backendDown, err)
			require.Equal(s.t, interfaces.DataStoreStatus{Available: false}, nextStatus(s.t, statusCh))

			// An upsert during the outage lands in the cache only.
			flag := ldmodel.FeatureFlag{Key: "flag", Version: 1}
			_, err = s.wrapper.Upsert(datakinds.Features, flag.Key, st.ItemDescriptor{Version: flag.Version, Item: &flag})
			assert.Equal(s.t, backendDown, err)
			cached, err := s.wrapper.Get(datakinds.Features, flag.Key)
			assert.NoError(s.t, err)
			assert.Equal(s.t, &flag, cached.Item)
			assert.Equal(s.t, st.SerializedItemDescriptor{}.NotFound(), s.backend.ForceGet(datakinds.Features, flag.Key))

			// On recovery the monitor pushes the cached data set back into the backend.
			s.backend.SetFakeError(nil)
			s.backend.SetAvailable(true)
			assert.Equal(s.t, interfaces.DataStoreStatus{Available: true}, nextStatus(s.t, statusCh))
			assert.Equal(s.t, flag.Version, s.backend.ForceGet(datakinds.Features, flag.Key).Version)
		})
	})
}
