// Package metrics holds the Prometheus collectors of the sync client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fleet"

// Merge outcomes used as the "result" label of MergesTotal.
const (
	MergeApplied   = "applied"
	MergeUnchanged = "unchanged"
	MergeUnknown   = "unknown"
	MergeStale     = "stale"
)

// Metrics groups every collector. Construct one per registry.
type Metrics struct {
	ConnectionState   prometheus.Gauge // numeric models.ConnectionState
	ReconnectAttempts prometheus.Counter
	FramesReceived    prometheus.Counter
	FramesRejected    *prometheus.CounterVec // reason
	EventsDispatched  *prometheus.CounterVec // type
	ListenerFaults    *prometheus.CounterVec // listener
	MergesTotal       *prometheus.CounterVec // result
	Notifications     prometheus.Gauge
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "connection_state",
			Help:      "Push connection state (0=disconnected, 1=connecting, 2=open, 3=reconnecting, 4=failed)",
		}),
		ReconnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnects scheduled after a transport fault",
		}),
		FramesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "frames_received_total",
			Help:      "Raw frames read from the push connection",
		}),
		FramesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "frames_rejected_total",
			Help:      "Frames dropped by validation",
		}, []string{"reason"}),
		EventsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Validated events published to listeners",
		}, []string{"type"}),
		ListenerFaults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "listener_faults_total",
			Help:      "Listener errors and panics isolated by the dispatcher",
		}, []string{"listener"}),
		MergesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "merges_total",
			Help:      "Data events applied to the machine cache, by outcome",
		}, []string{"result"}),
		Notifications: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "active",
			Help:      "Notifications currently held in the log",
		}),
	}
}

// NewRegistry returns a registry preloaded with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Discard returns collectors bound to a throwaway registry.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
