package datastore

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-server-sdk-evalcore/interfaces"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
)

// recoveryPollInterval is how often an outaged backend is probed to see whether it has come
// back.
const recoveryPollInterval = time.Millisecond * 500

// availabilityMonitor tracks whether persistentDataStoreWrapper's backend is currently reachable
// and, while it isn't, runs a background probe loop watching for recovery. It exists so that the
// wrapper itself never has to know about tickers or goroutines: it just calls SetAvailable
// whenever an operation against the backend succeeds or fails.
type availabilityMonitor struct {
	notify    func(interfaces.DataStoreStatus)
	probe     func() bool
	onRecover bool
	loggers   ldlog.Loggers

	mu        sync.Mutex
	available bool
	stopProbe chan struct{}
	stopOnce  sync.Once
}

// newAvailabilityMonitor builds a monitor that starts in the given state. probe is called
// repeatedly during an outage and should report true once the backend is reachable again.
// notify is called with the new DataStoreStatus every time availability actually changes.
func newAvailabilityMonitor(
	availableNow bool,
	probe func() bool,
	notify func(interfaces.DataStoreStatus),
	onRecover bool,
	loggers ldlog.Loggers,
) *availabilityMonitor {
	return &availabilityMonitor{
		available: availableNow,
		probe:     probe,
		notify:    notify,
		onRecover: onRecover,
		loggers:   loggers,
	}
}

// SetAvailable records an observed change in backend reachability. A no-op call (the state
// didn't actually change) produces no notification and starts no new probe loop.
func (m *availabilityMonitor) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if available == m.available {
		return
	}
	m.available = available

	status := interfaces.DataStoreStatus{Available: available}
	if available {
		m.loggers.Warn("Persistent store is available again")
		status.NeedsRefresh = m.onRecover
	} else {
		m.loggers.Warn("Detected persistent store unavailability; updates will be cached until it recovers")
	}
	m.notify(status)

	if !available {
		m.stopProbe = m.startProbing()
	}
}

// Close stops any in-flight probe loop. Safe to call more than once.
func (m *availabilityMonitor) Close() {
	m.stopOnce.Do(func() {
		if m.stopProbe != nil {
			close(m.stopProbe)
			m.stopProbe = nil
		}
	})
}

func (m *availabilityMonitor) startProbing() chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(recoveryPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.probe() {
					m.SetAvailable(true)
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return stop
}
