package datastore

import (
	"github.com/launchdarkly/go-server-sdk-evalcore/interfaces"
	"github.com/launchdarkly/go-server-sdk-evalcore/subsystems"
)

// storeStatusProvider is the internal implementation of interfaces.DataStoreStatusProvider.
// Unexported because application code is only ever handed the interface.
type storeStatusProvider struct {
	store subsystems.DataStore
	sink  *StoreStatusSink
}

// NewDataStoreStatusProvider wires store's reported status (via sink) up to the public
// interfaces.DataStoreStatusProvider that ldclient exposes to applications.
func NewDataStoreStatusProvider(
	store subsystems.DataStore,
	sink *StoreStatusSink,
) interfaces.DataStoreStatusProvider {
	return &storeStatusProvider{store: store, sink: sink}
}

func (p *storeStatusProvider) GetStatus() interfaces.DataStoreStatus {
	return p.sink.currentStatus()
}

func (p *storeStatusProvider) IsStatusMonitoringEnabled() bool {
	return p.store.IsStatusMonitoringEnabled()
}

func (p *storeStatusProvider) AddStatusListener() <-chan interfaces.DataStoreStatus {
	return p.sink.listeners().AddListener()
}

func (p *storeStatusProvider) RemoveStatusListener(ch <-chan interfaces.DataStoreStatus) {
	p.sink.listeners().RemoveListener(ch)
}
