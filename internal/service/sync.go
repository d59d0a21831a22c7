package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"fleet_monitor/internal/clock"
	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/metrics"
	"fleet_monitor/internal/models"
)

// SyncService is the dispatcher listener that keeps the cache and the
// notification log in step with the push feed.
type SyncService struct {
	cache         *MachineCache
	notifications *NotificationLog
	clock         clock.Clock
	log           *logger.Logger
	metrics       *metrics.Metrics

	mu         sync.Mutex
	lastSignal time.Time
}

func NewSyncService(cache *MachineCache, notifications *NotificationLog, clk clock.Clock, log *logger.Logger, m *metrics.Metrics) *SyncService {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &SyncService{cache: cache, notifications: notifications, clock: clk, log: log, metrics: m}
}

// HandleEvent merges a DataEvent and records a notification when the machine
// changed. Unknown and stale events are dropped without error.
func (s *SyncService) HandleEvent(ev models.Event) error {
	switch e := ev.(type) {
	case models.DataEvent:
		s.touch()
		return s.apply(e)
	case models.KeepAlive:
		s.touch()
		return nil
	default:
		return fmt.Errorf("sync: unexpected event type %q", ev.Type())
	}
}

func (s *SyncService) apply(ev models.DataEvent) error {
	res, err := s.cache.Merge(ev)
	switch {
	case errors.Is(err, ErrUnknownMachine):
		s.metrics.MergesTotal.WithLabelValues(metrics.MergeUnknown).Inc()
		s.log.Debugw("merge_unknown_machine", "machine_id", ev.MachineID)
		return nil
	case errors.Is(err, ErrStaleEvent):
		s.metrics.MergesTotal.WithLabelValues(metrics.MergeStale).Inc()
		s.log.Debugw("merge_stale_event", "machine_id", ev.MachineID, "err", err)
		return nil
	case err != nil:
		return err
	}

	if !res.Changed() {
		s.metrics.MergesTotal.WithLabelValues(metrics.MergeUnchanged).Inc()
		return nil
	}
	s.metrics.MergesTotal.WithLabelValues(metrics.MergeApplied).Inc()

	if n, ok := s.notifications.Record(res); ok {
		s.log.Infow("machine_updated", "machine_id", n.MachineID, "change", n.Change)
	}
	return nil
}

func (s *SyncService) touch() {
	now := s.clock.Now()
	s.mu.Lock()
	s.lastSignal = now
	s.mu.Unlock()
}

// LastSignal returns when the last DataEvent or KeepAlive arrived; zero if none.
func (s *SyncService) LastSignal() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSignal
}
