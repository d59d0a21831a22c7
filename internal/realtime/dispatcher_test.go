package realtime

import (
	"errors"
	"testing"

	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/metrics"
	"fleet_monitor/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher() (*Dispatcher, *metrics.Metrics) {
	m := metrics.Discard()
	return NewDispatcher(logger.Nop(), m), m
}

var sampleEvent = models.DataEvent{MachineID: "1", Status: models.StatusRunning}

func TestDispatcher_DeliversInRegistrationOrder(t *testing.T) {
	d, _ := newTestDispatcher()
	var order []string
	d.Subscribe("a", func(models.Event) error { order = append(order, "a"); return nil })
	d.Subscribe("b", func(models.Event) error { order = append(order, "b"); return nil })
	d.Subscribe("c", func(models.Event) error { order = append(order, "c"); return nil })

	require.NoError(t, d.Publish(sampleEvent))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestDispatcher_IsolatesFailingListener(t *testing.T) {
	d, m := newTestDispatcher()
	var got []models.Event
	d.Subscribe("fails", func(models.Event) error { return errors.New("boom") })
	d.Subscribe("panics", func(models.Event) error { panic("kaboom") })
	d.Subscribe("ok", func(ev models.Event) error { got = append(got, ev); return nil })

	err := d.Publish(sampleEvent)
	require.Error(t, err)
	assert.Equal(t, []models.Event{sampleEvent}, got)

	var le *ListenerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "fails", le.Listener)
	assert.Contains(t, err.Error(), "kaboom")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListenerFaults.WithLabelValues("fails")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListenerFaults.WithLabelValues("panics")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDispatched.WithLabelValues("event")))
}

func TestDispatcher_UnsubscribeIsIdempotent(t *testing.T) {
	d, _ := newTestDispatcher()
	calls := 0
	sub := d.Subscribe("x", func(models.Event) error { calls++; return nil })

	d.Unsubscribe(sub)
	d.Unsubscribe(sub)
	d.Unsubscribe(Subscription(999))

	require.NoError(t, d.Publish(sampleEvent))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, d.Len())
}

func TestDispatcher_SubscribeDuringPublishSeesOnlyLaterEvents(t *testing.T) {
	d, _ := newTestDispatcher()
	lateCalls := 0
	subscribed := false
	d.Subscribe("registrar", func(models.Event) error {
		if !subscribed {
			subscribed = true
			d.Subscribe("late", func(models.Event) error { lateCalls++; return nil })
		}
		return nil
	})

	require.NoError(t, d.Publish(sampleEvent))
	assert.Equal(t, 0, lateCalls, "listener added mid-publish must not get the in-flight event")

	require.NoError(t, d.Publish(sampleEvent))
	assert.Equal(t, 1, lateCalls)
}

func TestDispatcher_EachListenerOncePerPublish(t *testing.T) {
	d, _ := newTestDispatcher()
	calls := 0
	fn := func(models.Event) error { calls++; return nil }
	d.Subscribe("x", fn)

	require.NoError(t, d.Publish(models.KeepAlive{}))
	assert.Equal(t, 1, calls)
}
