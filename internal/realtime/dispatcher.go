package realtime

import (
	"errors"
	"fmt"
	"sync"

	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/metrics"
	"fleet_monitor/internal/models"
)

// Listener receives validated events. A returned error or a panic is
// recorded as a fault of that listener only.
type Listener func(models.Event) error

// Subscription identifies a registered listener.
type Subscription uint64

// ListenerError is one isolated listener fault.
type ListenerError struct {
	Listener string
	Err      error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %q: %v", e.Listener, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

type subscriber struct {
	id   Subscription
	name string
	fn   Listener
}

// Dispatcher fans validated events out to listeners in registration order.
// Publish calls are serialized; a listener must not call Publish.
type Dispatcher struct {
	log     *logger.Logger
	metrics *metrics.Metrics

	publishMu sync.Mutex

	mu          sync.RWMutex
	nextID      Subscription
	subscribers []subscriber
}

func NewDispatcher(log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Dispatcher{log: log, metrics: m}
}

// Subscribe registers fn under name (used in logs and metrics).
func (d *Dispatcher) Subscribe(name string, fn Listener) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.subscribers = append(d.subscribers, subscriber{id: d.nextID, name: name, fn: fn})
	return d.nextID
}

// Unsubscribe removes the listener. Unknown or already removed handles are ignored.
func (d *Dispatcher) Unsubscribe(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.subscribers {
		if s.id == sub {
			d.subscribers = append(d.subscribers[:i:i], d.subscribers[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// Publish delivers ev to every listener registered at call time, once each.
// Faults are logged and joined into the returned error; delivery continues.
func (d *Dispatcher) Publish(ev models.Event) error {
	d.publishMu.Lock()
	defer d.publishMu.Unlock()

	d.mu.RLock()
	snapshot := make([]subscriber, len(d.subscribers))
	copy(snapshot, d.subscribers)
	d.mu.RUnlock()

	d.metrics.EventsDispatched.WithLabelValues(string(ev.Type())).Inc()

	var faults []error
	for _, s := range snapshot {
		if err := d.deliver(s, ev); err != nil {
			d.metrics.ListenerFaults.WithLabelValues(s.name).Inc()
			d.log.Errorw("listener_fault", "listener", s.name, "event", ev.Type(), "err", err)
			faults = append(faults, &ListenerError{Listener: s.name, Err: err})
		}
	}
	return errors.Join(faults...)
}

func (d *Dispatcher) deliver(s subscriber, ev models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(ev)
}
