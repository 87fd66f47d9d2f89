package datastore

import (
	"sync"

	"github.com/launchdarkly/go-server-sdk-evalcore/internal"
	"github.com/launchdarkly/go-server-sdk-evalcore/interfaces"
)

// StoreStatusSink is the internal implementation of subsystems.DataStoreUpdateSink. It is
// exported because a *StoreStatusSink, not just the interface, is what
// NewDataStoreStatusProvider needs: the status provider reads the last-reported status directly
// off this type rather than through UpdateStatus.
type StoreStatusSink struct {
	mu          sync.Mutex
	lastStatus  interfaces.DataStoreStatus
	broadcaster *internal.DataStoreStatusBroadcaster
}

// NewStoreStatusSink creates a sink that starts in the "available" state and fans every status
// change it observes out through broadcaster.
func NewStoreStatusSink(broadcaster *internal.DataStoreStatusBroadcaster) *StoreStatusSink {
	return &StoreStatusSink{
		lastStatus:  interfaces.DataStoreStatus{Available: true},
		broadcaster: broadcaster,
	}
}

func (s *StoreStatusSink) currentStatus() interfaces.DataStoreStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}

func (s *StoreStatusSink) listeners() *internal.DataStoreStatusBroadcaster {
	return s.broadcaster
}

// UpdateStatus implements subsystems.DataStoreUpdateSink. A call that doesn't actually change the
// status (the store reporting "available" twice in a row, say) is silently absorbed - only a real
// transition reaches the broadcaster.
func (s *StoreStatusSink) UpdateStatus(newStatus interfaces.DataStoreStatus) {
	s.mu.Lock()
	changed := newStatus != s.lastStatus
	if changed {
		s.lastStatus = newStatus
	}
	s.mu.Unlock()

	if changed {
		s.broadcaster.Broadcast(newStatus)
	}
}
