package ldevents

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
	"github.com/launchdarkly/go-server-sdk-evalcore/lduser"
)

// deliveryWorkerCount bounds how many payloads can be in flight at once.
const deliveryWorkerCount = 5

// defaultEventProcessor is the public handle for the events engine. It only posts messages into
// the dispatcher's inbox; all state lives in the dispatcher goroutine, so none of these methods
// ever block on event processing.
type defaultEventProcessor struct {
	inbox         chan inboxMessage
	inboxFullOnce sync.Once
	closeOnce     sync.Once
	loggers       ldlog.Loggers
}

// inboxMessage is anything postable to the dispatcher: an event, a flush request, or shutdown.
type inboxMessage interface{}

type enqueueEventMsg struct {
	event Event
}

type flushNowMsg struct{}

type shutdownMsg struct {
	done chan struct{}
}

// NewDefaultEventProcessor creates an instance of the default implementation of analytics event processing.
// config.EventSender must be set; there is no default transport.
func NewDefaultEventProcessor(config EventsConfiguration) EventProcessor {
	inbox := make(chan inboxMessage, config.Capacity)
	newDispatcher(config).start(inbox)
	return &defaultEventProcessor{
		inbox:   inbox,
		loggers: config.Loggers,
	}
}

func (ep *defaultEventProcessor) SendEvent(e Event) {
	ep.post(enqueueEventMsg{event: e})
}

func (ep *defaultEventProcessor) Flush() {
	ep.post(flushNowMsg{})
}

func (ep *defaultEventProcessor) Close() error {
	ep.closeOnce.Do(func() {
		// Unlike post, these sends deliberately block until there is room: a flush followed by
		// shutdown must not be dropped, and we then wait for the dispatcher to confirm it has
		// drained everything.
		ep.inbox <- flushNowMsg{}
		m := shutdownMsg{done: make(chan struct{})}
		ep.inbox <- m
		<-m.done
	})
	return nil
}

// post delivers a message if the inbox has room, and otherwise drops it. A full inbox means the
// dispatcher is far behind the rate of evaluations; blocking here would stall every goroutine in
// the application that touches a flag, which is a much worse outcome than losing events.
func (ep *defaultEventProcessor) post(m inboxMessage) {
	select {
	case ep.inbox <- m:
	default:
		ep.inboxFullOnce.Do(func() {
			ep.loggers.Warn("Events are being produced faster than they can be processed; some events will be dropped")
		})
	}
}

// dispatcher owns all event state (outbox, summary counters, user-key dedup set) and runs it
// from a single goroutine, so none of that state needs locking. The one exception is the small
// amount of state shared with delivery workers (serverTimeFloor, shutDown), guarded by mu.
type dispatcher struct {
	config        EventsConfiguration
	flushInterval time.Duration
	userKeysReset time.Duration

	mu              sync.Mutex
	serverTimeFloor uint64 // most recent server clock reading, for debug-event cutoff
	shutDown        bool   // set when the sender reports an unrecoverable error

	// Diagnostic counters, all owned by the dispatcher goroutine.
	dedupedUsers  int
	lastBatchSize int
}

func newDispatcher(config EventsConfiguration) *dispatcher {
	d := &dispatcher{
		config:        config,
		flushInterval: config.FlushInterval,
		userKeysReset: config.UserKeysFlushInterval,
	}
	if d.flushInterval <= 0 {
		d.flushInterval = DefaultFlushInterval
	}
	if d.userKeysReset <= 0 {
		d.userKeysReset = DefaultUserKeysFlushInterval
	}
	return d
}

func (d *dispatcher) start(inbox <-chan inboxMessage) {
	jobs := make(chan *deliveryJob, 1)
	var inFlight sync.WaitGroup
	for i := 0; i < deliveryWorkerCount; i++ {
		w := &deliveryWorker{
			sender:    d.config.EventSender,
			loggers:   d.config.Loggers,
			formatter: eventOutputFormatter{userFilter: newUserFilter(d.config), config: d.config},
			onResult:  d.noteSendResult,
		}
		go w.run(jobs, &inFlight)
	}
	if d.config.DiagnosticsManager != nil {
		d.offerDiagnosticJob(d.config.DiagnosticsManager.CreateInitEvent(), jobs, &inFlight)
	}
	go d.run(inbox, jobs, &inFlight)
}

func (d *dispatcher) run(inbox <-chan inboxMessage, jobs chan *deliveryJob, inFlight *sync.WaitGroup) {
	defer func() {
		if err := recover(); err != nil {
			d.config.Loggers.Errorf("Unexpected panic in event processing thread: %+v", err)
		}
	}()

	outbox := newEventsOutbox(d.config.Capacity, d.config.Loggers)
	userKeys := newLruCache(d.config.UserKeysCapacity)

	flushTicker := time.NewTicker(d.flushInterval)
	defer flushTicker.Stop()
	userKeysTicker := time.NewTicker(d.userKeysReset)
	defer userKeysTicker.Stop()

	// The diagnostics ticker only exists when there is a manager to feed; a nil channel
	// otherwise makes its select arm permanently silent.
	var diagnosticsTickerCh <-chan time.Time
	if d.config.DiagnosticsManager != nil {
		interval := d.config.DiagnosticRecordingInterval
		if interval <= 0 {
			interval = DefaultDiagnosticRecordingInterval
		}
		diagnosticsTicker := time.NewTicker(interval)
		defer diagnosticsTicker.Stop()
		diagnosticsTickerCh = diagnosticsTicker.C
	}

	for {
		select {
		case message := <-inbox:
			switch m := message.(type) {
			case enqueueEventMsg:
				d.takeEvent(m.event, outbox, &userKeys)
			case flushNowMsg:
				d.offerFlushJob(outbox, jobs, inFlight)
			case shutdownMsg:
				inFlight.Wait() // wait for every in-progress delivery
				close(jobs)     // lets the idle workers exit
				close(m.done)
				return
			}
		case <-flushTicker.C:
			d.offerFlushJob(outbox, jobs, inFlight)
		case <-userKeysTicker.C:
			userKeys.clear()
		case <-diagnosticsTickerCh:
			dm := d.config.DiagnosticsManager
			if !dm.CanSendStatsEvent() {
				break
			}
			event := dm.CreateStatsEventAndReset(outbox.droppedEvents, d.dedupedUsers, d.lastBatchSize)
			outbox.droppedEvents = 0
			d.dedupedUsers = 0
			d.lastBatchSize = 0
			d.offerDiagnosticJob(event, jobs, inFlight)
		}
	}
}

// takeEvent folds one event into the summary counters and decides which concrete event records
// go into the outbox: possibly an index event for a first-seen user, the event itself if it is
// tracked, and a debug copy while debugging is active for its flag.
func (d *dispatcher) takeEvent(evt Event, outbox *eventsOutbox, userKeys *lruCache) {
	outbox.addToSummary(evt)

	if _, ok := evt.(AliasEvent); ok {
		// Alias events carry no user and never need an index event.
		outbox.addEvent(evt)
		return
	}

	sendFullEvent := true
	var debugCopy Event
	if fe, ok := evt.(FeatureRequestEvent); ok {
		sendFullEvent = fe.TrackEvents
		if d.debuggingActiveFor(fe) {
			withDebug := fe
			withDebug.Debug = true
			debugCopy = withDebug
		}
	}

	// A user the LRU set hasn't seen in this window gets one index event carrying their full
	// attributes, so every later event can carry just the key. Inline-user mode makes the index
	// event redundant whenever the full event is being sent anyway, and an identify event is
	// itself the full user record.
	if !(sendFullEvent && d.config.InlineUsersInEvents) {
		user := evt.GetBase().User
		if knownUser(userKeys, user) {
			d.dedupedUsers++
		} else if _, isIdentify := evt.(IdentifyEvent); !isIdentify {
			outbox.addEvent(IndexEvent{BaseEvent{CreationDate: evt.GetBase().CreationDate, User: user}})
		}
	}

	if sendFullEvent {
		outbox.addEvent(evt)
	}
	if debugCopy != nil {
		outbox.addEvent(debugCopy)
	}
}

// knownUser records the user's key in the recency set, reporting whether it was already there.
// A user with no key is treated as already known, since there is nothing to index.
func knownUser(userKeys *lruCache, user lduser.User) bool {
	if user.Key() == "" {
		return true
	}
	return userKeys.add(user.Key())
}

// debuggingActiveFor reports whether a debug copy of this feature event should be sent. The
// cutoff is checked against both the local clock and the server's clock as last reported on a
// delivery response; if the local clock is wrong, the server reading still ends debugging no
// later than the service would accept it.
func (d *dispatcher) debuggingActiveFor(evt FeatureRequestEvent) bool {
	if evt.DebugEventsUntilDate == 0 {
		return false
	}
	d.mu.Lock()
	floor := d.serverTimeFloor
	d.mu.Unlock()
	return uint64(evt.DebugEventsUntilDate) > floor &&
		uint64(evt.DebugEventsUntilDate) > uint64(d.config.now())
}

// offerFlushJob swaps out the outbox contents and hands them to a delivery worker, unless all
// workers are busy, in which case the outbox is left intact for the next flush.
func (d *dispatcher) offerFlushJob(outbox *eventsOutbox, jobs chan<- *deliveryJob, inFlight *sync.WaitGroup) {
	if d.isShutDown() {
		outbox.clear()
		return
	}
	job := deliveryJob{events: outbox.pendingEvents(), summary: outbox.pendingSummary()}
	size := len(job.events)
	if len(job.summary.flags) > 0 {
		size++
	}
	if size == 0 {
		d.lastBatchSize = 0
		return
	}
	inFlight.Add(1)
	select {
	case jobs <- &job:
		d.lastBatchSize = size
		outbox.clear()
	default:
		inFlight.Done()
	}
}

// offerDiagnosticJob hands a diagnostic event to a delivery worker if one is free; diagnostic
// data is nonessential, so when all workers are busy it is discarded rather than queued.
func (d *dispatcher) offerDiagnosticJob(event interface{}, jobs chan<- *deliveryJob, inFlight *sync.WaitGroup) {
	inFlight.Add(1)
	select {
	case jobs <- &deliveryJob{diagnostic: event}:
	default:
		inFlight.Done()
	}
}

func (d *dispatcher) isShutDown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutDown
}

// noteSendResult is called from delivery worker goroutines.
func (d *dispatcher) noteSendResult(result EventSenderResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if result.MustShutDown {
		d.shutDown = true
	} else if result.TimeFromServer != 0 {
		d.serverTimeFloor = result.TimeFromServer
	}
}

// deliveryJob is one unit of work for a delivery worker: either a batch of analytics events
// plus the accompanying summary, or a single diagnostic event.
type deliveryJob struct {
	events     []Event
	summary    eventSummary
	diagnostic interface{}
}

type deliveryWorker struct {
	sender    EventSender
	loggers   ldlog.Loggers
	formatter eventOutputFormatter
	onResult  func(EventSenderResult)
}

func (w *deliveryWorker) run(jobs <-chan *deliveryJob, inFlight *sync.WaitGroup) {
	for job := range jobs {
		if job.diagnostic != nil {
			w.deliver(DiagnosticEventDataKind, job.diagnostic, 1)
		} else if output := w.formatter.makeOutputEvents(job.events, job.summary); len(output) > 0 {
			w.deliver(AnalyticsEventDataKind, output, len(output))
		}
		inFlight.Done()
	}
}

func (w *deliveryWorker) deliver(kind EventDataKind, outputData interface{}, eventCount int) {
	data, err := json.Marshal(outputData)
	if err != nil {
		w.loggers.Errorf("Unexpected error marshalling event json: %+v", err)
		return
	}
	w.onResult(w.sender.SendEventData(kind, data, eventCount))
}
