package datastore

import (
	"github.com/launchdarkly/go-server-sdk-evalcore/eval"
	"github.com/launchdarkly/go-server-sdk-evalcore/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldmodel"
	"github.com/launchdarkly/go-server-sdk-evalcore/subsystems"
)

// dataStoreEvaluatorDataProviderImpl adapts a DataStore to the eval.DataProvider interface that
// the Evaluator uses to resolve prerequisites and segment references.
type dataStoreEvaluatorDataProviderImpl struct {
	store   subsystems.DataStore
	loggers ldlog.Loggers
}

// NewDataStoreEvaluatorDataProviderImpl creates the internal implementation of the adapter that
// connects the Evaluator with the data store.
func NewDataStoreEvaluatorDataProviderImpl(store subsystems.DataStore, loggers ldlog.Loggers) eval.DataProvider {
	return dataStoreEvaluatorDataProviderImpl{store, loggers}
}

func (d dataStoreEvaluatorDataProviderImpl) GetFlag(key string) (ldmodel.FeatureFlag, bool) {
	item, err := d.store.Get(datakinds.Features, key)
	if err != nil || item.Item == nil {
		return ldmodel.FeatureFlag{}, false
	}
	if flag, ok := item.Item.(*ldmodel.FeatureFlag); ok {
		return *flag, true
	}
	d.loggers.Errorf("unexpected data type (%T) found in store for feature key: %s", item.Item, key)
	return ldmodel.FeatureFlag{}, false
}

func (d dataStoreEvaluatorDataProviderImpl) GetSegment(key string) (ldmodel.Segment, bool) {
	item, err := d.store.Get(datakinds.Segments, key)
	if err != nil || item.Item == nil {
		return ldmodel.Segment{}, false
	}
	if segment, ok := item.Item.(*ldmodel.Segment); ok {
		return *segment, true
	}
	d.loggers.Errorf("unexpected data type (%T) found in store for segment key: %s", item.Item, key)
	return ldmodel.Segment{}, false
}
