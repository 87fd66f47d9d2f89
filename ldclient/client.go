package ldclient

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/launchdarkly/go-server-sdk-evalcore/eval"
	"github.com/launchdarkly/go-server-sdk-evalcore/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-evalcore/internal/datastore"
	"github.com/launchdarkly/go-server-sdk-evalcore/interfaces/flagstate"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldevents"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldmodel"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldreason"
	"github.com/launchdarkly/go-server-sdk-evalcore/lduser"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
	"github.com/launchdarkly/go-server-sdk-evalcore/subsystems"
)

// Initialization errors.
var (
	ErrInitializationTimeout = errors.New("timeout encountered waiting for client initialization")
	ErrInitializationFailed  = errors.New("client initialization failed")
	ErrClientNotInitialized  = errors.New("feature flag evaluation called before client initialization completed")
)

// LDClient wires an evaluator, a data store, and an event processor together into the single
// object application code calls into: Variation methods, Identify/Track, AllFlagsState, and
// lifecycle management (Close/Flush).
//
// Client instances are safe for concurrent use by many goroutines; applications should construct
// a single instance for the lifetime of the process.
type LDClient struct {
	config         Config
	eventProcessor ldevents.EventProcessor
	dataSource     DataSource
	store          subsystems.DataStore
	dataProvider   eval.DataProvider
}

// NewClient creates a client instance from config. The optional waitFor duration allows the
// caller to block until the data source has completed its first synchronization attempt; pass
// zero to return immediately without waiting.
func NewClient(config Config, waitFor time.Duration) (*LDClient, error) {
	config.Loggers.Init()
	config.Loggers.Info("Starting client")

	if config.DataStore == nil {
		config.DataStore = datastore.NewInMemoryDataStore(config.Loggers)
	}
	if config.EventProcessor == nil || config.Offline {
		config.EventProcessor = ldevents.NewNullEventProcessor()
	}
	if config.DataSource == nil {
		config.DataSource = nullDataSource{}
	}

	client := &LDClient{
		config:         config,
		eventProcessor: config.EventProcessor,
		dataSource:     config.DataSource,
		store:          config.DataStore,
		dataProvider:   datastore.NewDataStoreEvaluatorDataProviderImpl(config.DataStore, config.Loggers),
	}

	closeWhenReady := make(chan struct{})
	client.dataSource.Start(closeWhenReady)

	if waitFor > 0 && !config.Offline {
		config.Loggers.Infof("Waiting up to %d milliseconds for client to start...", waitFor/time.Millisecond)
	}
	timeout := time.After(waitFor)
	for {
		select {
		case <-closeWhenReady:
			if !client.dataSource.Initialized() {
				config.Loggers.Warn("client initialization failed")
				return client, ErrInitializationFailed
			}
			config.Loggers.Info("Successfully initialized client")
			return client, nil
		case <-timeout:
			if waitFor > 0 {
				config.Loggers.Warn("Timeout encountered waiting for client initialization")
				return client, ErrInitializationTimeout
			}
			go func() { <-closeWhenReady }() // don't block the data source when not waiting
			return client, nil
		}
	}
}

// Identify reports details about a user.
func (c *LDClient) Identify(user lduser.User) error {
	if user.Key() == "" {
		c.config.Loggers.Warn("Identify called with empty user key!")
		return nil
	}
	factory := ldevents.NewEventFactory(false, nil)
	c.eventProcessor.SendEvent(factory.NewIdentifyEvent(user))
	return nil
}

// TrackEvent reports that a user has performed an event.
func (c *LDClient) TrackEvent(eventName string, user lduser.User) error {
	return c.TrackData(eventName, user, ldvalue.Null())
}

// TrackData reports that a user has performed an event, and associates it with custom data.
func (c *LDClient) TrackData(eventName string, user lduser.User, data ldvalue.Value) error {
	if user.Key() == "" {
		c.config.Loggers.Warn("Track called with empty user key!")
		return nil
	}
	factory := ldevents.NewEventFactory(false, nil)
	c.eventProcessor.SendEvent(factory.NewCustomEvent(eventName, user, data, false, 0))
	return nil
}

// TrackMetric reports that a user has performed an event, and associates it with a numeric value
// used by numeric custom metrics.
func (c *LDClient) TrackMetric(eventName string, user lduser.User, metricValue float64, data ldvalue.Value) error {
	if user.Key() == "" {
		c.config.Loggers.Warn("Track called with empty user key!")
		return nil
	}
	factory := ldevents.NewEventFactory(false, nil)
	c.eventProcessor.SendEvent(factory.NewCustomEvent(eventName, user, data, true, metricValue))
	return nil
}

// Alias associates two users so downstream analytics treat them as the same person, typically
// called when a previously anonymous user logs in.
func (c *LDClient) Alias(currentUser, previousUser lduser.User) error {
	if currentUser.Key() == "" || previousUser.Key() == "" {
		c.config.Loggers.Warn("Alias called with empty user key!")
		return nil
	}
	factory := ldevents.NewEventFactory(false, nil)
	c.eventProcessor.SendEvent(factory.NewAliasEvent(
		currentUser.Key(), aliasContextKind(currentUser),
		previousUser.Key(), aliasContextKind(previousUser),
	))
	return nil
}

// aliasContextKind distinguishes anonymous users in alias events.
func aliasContextKind(user lduser.User) string {
	if user.Anonymous() {
		return "anonymousUser"
	}
	return "user"
}

// IsOffline returns whether the client is in offline mode.
func (c *LDClient) IsOffline() bool {
	return c.config.Offline
}

// Initialized returns whether the client has completed its initial data synchronization.
func (c *LDClient) Initialized() bool {
	return c.IsOffline() || c.dataSource.Initialized()
}

// Close shuts down the client. After calling this, the client should no longer be used. The
// method blocks until all pending analytics events (if any) have been sent.
func (c *LDClient) Close() error {
	c.config.Loggers.Info("Closing client")
	if c.IsOffline() {
		return nil
	}
	_ = c.eventProcessor.Close()
	_ = c.dataSource.Close()
	if closer, ok := c.store.(io.Closer); ok {
		_ = closer.Close()
	}
	return nil
}

// Flush tells the client that all pending analytics events (if any) should be delivered as soon
// as possible. Flushing is asynchronous, so this method returns before delivery is complete.
func (c *LDClient) Flush() {
	c.eventProcessor.Flush()
}

// AllFlagsState returns a snapshot of the state of every feature flag for the given user,
// including flag values and metadata usable on a front end. Pass ClientSideOnly, WithReasons,
// and/or DetailsOnlyForTrackedFlags to control what is included.
func (c *LDClient) AllFlagsState(user lduser.User, options ...flagstate.Option) flagstate.AllFlags {
	valid := true
	if c.IsOffline() {
		c.config.Loggers.Warn("Called AllFlagsState in offline mode. Returning empty state")
		valid = false
	} else if !c.Initialized() {
		if c.store.IsInitialized() {
			c.config.Loggers.Warn("Called AllFlagsState before client initialization; using last known values from data store")
		} else {
			c.config.Loggers.Warn("Called AllFlagsState before client initialization. Data store not available; returning empty state")
			valid = false
		}
	}

	if !valid {
		return flagstate.AllFlags{}
	}

	items, err := c.store.GetAll(datakinds.Features)
	if err != nil {
		c.config.Loggers.Warn("Unable to fetch flags from data store. Returning empty state. Error: " + err.Error())
		return flagstate.AllFlags{}
	}

	builder := flagstate.NewAllFlagsBuilder(options...)
	clientSideOnly := hasOption(options, flagstate.OptionClientSideOnly())
	for _, item := range items {
		flag, ok := item.Item.Item.(*ldmodel.FeatureFlag)
		if !ok {
			continue
		}
		if clientSideOnly && !flag.ClientSide.UsingEnvironmentID {
			continue
		}
		result := eval.Evaluate(*flag, user, c.dataProvider, ldvalue.Null())
		builder.AddFlag(flag.Key, flagstate.FlagState{
			Value:                result.Detail.Value,
			Variation:            result.Detail.VariationIndex,
			Version:              flag.Version,
			Reason:               result.Detail.Reason,
			TrackEvents:          flag.TrackEvents,
			TrackReason:          ldmodel.FlagEventProperties(*flag).IsExperimentationEnabled(result.Detail.Reason),
			DebugEventsUntilDate: ldmodel.FlagEventProperties(*flag).GetDebugEventsUntilDate(),
		})
	}

	return builder.Build()
}

func hasOption(options []flagstate.Option, target flagstate.Option) bool {
	for _, o := range options {
		if o.String() == target.String() {
			return true
		}
	}
	return false
}

// BoolVariation returns the value of a boolean feature flag for a given user.
func (c *LDClient) BoolVariation(key string, user lduser.User, defaultVal bool) (bool, error) {
	detail, err := c.variation(key, user, ldvalue.Bool(defaultVal), true, false)
	return detail.Value.BoolValue(), err
}

// BoolVariationDetail is the same as BoolVariation, but also returns further information about
// how the value was calculated. The reason is also included in analytics events.
func (c *LDClient) BoolVariationDetail(key string, user lduser.User, defaultVal bool) (bool, ldreason.EvaluationDetail, error) {
	detail, err := c.variation(key, user, ldvalue.Bool(defaultVal), true, true)
	return detail.Value.BoolValue(), detail, err
}

// IntVariation returns the value of a feature flag (whose variations are integers) for the user.
func (c *LDClient) IntVariation(key string, user lduser.User, defaultVal int) (int, error) {
	detail, err := c.variation(key, user, ldvalue.Int(defaultVal), true, false)
	return detail.Value.IntValue(), err
}

// IntVariationDetail is the same as IntVariation, but also returns further information about how
// the value was calculated.
func (c *LDClient) IntVariationDetail(key string, user lduser.User, defaultVal int) (int, ldreason.EvaluationDetail, error) {
	detail, err := c.variation(key, user, ldvalue.Int(defaultVal), true, true)
	return detail.Value.IntValue(), detail, err
}

// Float64Variation returns the value of a feature flag (whose variations are floats) for the user.
func (c *LDClient) Float64Variation(key string, user lduser.User, defaultVal float64) (float64, error) {
	detail, err := c.variation(key, user, ldvalue.Float64(defaultVal), true, false)
	return detail.Value.Float64Value(), err
}

// Float64VariationDetail is the same as Float64Variation, but also returns further information
// about how the value was calculated.
func (c *LDClient) Float64VariationDetail(key string, user lduser.User, defaultVal float64) (float64, ldreason.EvaluationDetail, error) {
	detail, err := c.variation(key, user, ldvalue.Float64(defaultVal), true, true)
	return detail.Value.Float64Value(), detail, err
}

// StringVariation returns the value of a feature flag (whose variations are strings) for the user.
func (c *LDClient) StringVariation(key string, user lduser.User, defaultVal string) (string, error) {
	detail, err := c.variation(key, user, ldvalue.String(defaultVal), true, false)
	return detail.Value.StringValue(), err
}

// StringVariationDetail is the same as StringVariation, but also returns further information
// about how the value was calculated.
func (c *LDClient) StringVariationDetail(key string, user lduser.User, defaultVal string) (string, ldreason.EvaluationDetail, error) {
	detail, err := c.variation(key, user, ldvalue.String(defaultVal), true, true)
	return detail.Value.StringValue(), detail, err
}

// JSONVariation returns the value of a feature flag for the user, allowing the value to be of any
// JSON type.
func (c *LDClient) JSONVariation(key string, user lduser.User, defaultVal ldvalue.Value) (ldvalue.Value, error) {
	detail, err := c.variation(key, user, defaultVal, false, false)
	return detail.Value, err
}

// JSONVariationDetail is the same as JSONVariation, but also returns further information about
// how the value was calculated.
func (c *LDClient) JSONVariationDetail(key string, user lduser.User, defaultVal ldvalue.Value) (ldvalue.Value, ldreason.EvaluationDetail, error) {
	detail, err := c.variation(key, user, defaultVal, false, true)
	return detail.Value, detail, err
}

// variation is the shared implementation behind all the typed Variation/VariationDetail methods.
func (c *LDClient) variation(
	key string,
	user lduser.User,
	defaultVal ldvalue.Value,
	checkType bool,
	sendReasonsInEvents bool,
) (ldreason.EvaluationDetail, error) {
	if c.IsOffline() {
		return ldreason.NewEvaluationError(defaultVal, ldreason.EvalErrorClientNotReady), nil
	}

	detail, flag, err := c.evaluateInternal(key, user, defaultVal, sendReasonsInEvents)
	if err != nil {
		detail.Value = defaultVal
		detail.VariationIndex = ldvalue.OptionalInt{}
	} else if checkType && defaultVal.Type() != ldvalue.NullType && detail.Value.Type() != defaultVal.Type() {
		detail = ldreason.NewEvaluationError(defaultVal, ldreason.EvalErrorWrongType)
	}

	factory := ldevents.NewEventFactory(sendReasonsInEvents, nil)
	var evt ldevents.FeatureRequestEvent
	if flag == nil {
		evt = factory.NewUnknownFlagEvent(key, user, defaultVal, detail.Reason)
	} else {
		evt = factory.NewEvalEvent(ldmodel.FlagEventProperties(*flag), user, detail, defaultVal, "")
	}
	c.eventProcessor.SendEvent(evt)

	return detail, err
}

// evaluateInternal performs every step of evaluation except sending the main feature request
// event (events for prerequisites are sent here, since their results are never returned to the
// caller).
func (c *LDClient) evaluateInternal(
	key string,
	user lduser.User,
	defaultVal ldvalue.Value,
	sendReasonsInEvents bool,
) (ldreason.EvaluationDetail, *ldmodel.FeatureFlag, error) {
	if user.Key() == "" {
		c.config.Loggers.Warnf(
			"User.Key is blank when evaluating flag: %s. Flag evaluation will proceed, but the user will not be stored.",
			key)
	}

	evalErrorResult := func(errKind ldreason.EvalErrorKind, err error) (ldreason.EvaluationDetail, *ldmodel.FeatureFlag, error) {
		if c.config.LogEvaluationErrors {
			c.config.Loggers.Warn(err)
		}
		return ldreason.NewEvaluationError(defaultVal, errKind), nil, err
	}

	if !c.Initialized() {
		if c.store.IsInitialized() {
			c.config.Loggers.Warn("Feature flag evaluation called before client initialization completed; using last known values from data store")
		} else {
			return evalErrorResult(ldreason.EvalErrorClientNotReady, ErrClientNotInitialized)
		}
	}

	item, storeErr := c.store.Get(datakinds.Features, key)
	if storeErr != nil {
		c.config.Loggers.Errorf("Encountered error fetching feature from store: %+v", storeErr)
		return ldreason.NewEvaluationError(defaultVal, ldreason.EvalErrorException), nil, storeErr
	}
	if item.Item == nil {
		return evalErrorResult(ldreason.EvalErrorFlagNotFound,
			fmt.Errorf("unknown feature key: %s. Verify that this feature key exists. Returning default value", key))
	}
	flag, ok := item.Item.(*ldmodel.FeatureFlag)
	if !ok {
		return evalErrorResult(ldreason.EvalErrorException,
			fmt.Errorf("unexpected data type (%T) found in store for feature key: %s. Returning default value", item.Item, key))
	}

	result := eval.Evaluate(*flag, user, c.dataProvider, defaultVal)
	detail := result.Detail
	if detail.Reason.GetKind() == ldreason.EvalReasonError && c.config.LogEvaluationErrors {
		c.config.Loggers.Warnf("flag evaluation for %s failed with error %s, default value was returned",
			key, detail.Reason.GetErrorKind())
	}

	factory := ldevents.NewEventFactory(sendReasonsInEvents, nil)
	for _, pe := range result.PrerequisiteEvents {
		prereqFlag, found := c.dataProvider.GetFlag(pe.FlagKey)
		if !found {
			continue
		}
		evt := factory.NewEvalEvent(ldmodel.FlagEventProperties(prereqFlag), pe.User, pe.Detail, ldvalue.Null(), pe.PrerequisiteOf)
		c.eventProcessor.SendEvent(evt)
	}

	return detail, flag, nil
}
