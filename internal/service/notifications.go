package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleet_monitor/internal/clock"
	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/metrics"
	"fleet_monitor/internal/models"

	"github.com/google/uuid"
)

const DefaultNotificationCapacity = 10

// notificationSpace namespaces the name-based notification ids.
var notificationSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:fleet-monitor:notification"))

// NotificationLog keeps the most recent change notifications, newest first.
type NotificationLog struct {
	clock    clock.Clock
	capacity int
	ttl      time.Duration
	log      *logger.Logger
	metrics  *metrics.Metrics

	mu    sync.RWMutex
	items []models.Notification
}

// NewNotificationLog returns a log holding at most capacity entries. A
// positive ttl makes Expire drop entries older than it.
func NewNotificationLog(clk clock.Clock, capacity int, ttl time.Duration, log *logger.Logger, m *metrics.Metrics) *NotificationLog {
	if capacity <= 0 {
		capacity = DefaultNotificationCapacity
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &NotificationLog{clock: clk, capacity: capacity, ttl: ttl, log: log, metrics: m}
}

// NotificationID derives the id of the notification for an applied merge.
// The same machine, status and event time always yield the same id.
func NotificationID(r MergeResult) string {
	ts := r.AppliedAt
	if r.Event.HasTimestamp() {
		ts = r.Event.Timestamp
	}
	name := r.Updated.ID + "|" + string(r.Updated.Status) + "|" + ts.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(notificationSpace, []byte(name)).String()
}

// Record prepends a notification for r. It returns false when a notification
// with the same id is already retained.
func (l *NotificationLog) Record(r MergeResult) (models.Notification, bool) {
	prev := string(r.Previous.Status)
	if prev == "" {
		prev = "unknown"
	}
	n := models.Notification{
		ID:        NotificationID(r),
		MachineID: r.Updated.ID,
		Message:   fmt.Sprintf("Machine %s updated", r.Updated.DisplayName()),
		Change:    fmt.Sprintf("status: %s → %s", prev, r.Updated.Status),
		CreatedAt: l.clock.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.items {
		if existing.ID == n.ID {
			return existing, false
		}
	}

	items := make([]models.Notification, 0, min(len(l.items)+1, l.capacity))
	items = append(items, n)
	for _, existing := range l.items {
		if len(items) == l.capacity {
			break
		}
		items = append(items, existing)
	}
	l.items = items
	l.metrics.Notifications.Set(float64(len(l.items)))
	return n, true
}

// Dismiss removes the notification with the given id and reports whether it
// was present.
func (l *NotificationLog) Dismiss(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, n := range l.items {
		if n.ID == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			l.metrics.Notifications.Set(float64(len(l.items)))
			return true
		}
	}
	return false
}

// List returns a copy of the retained notifications, newest first.
func (l *NotificationLog) List() []models.Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Notification, len(l.items))
	copy(out, l.items)
	return out
}

func (l *NotificationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Expire drops entries created more than ttl before now and returns how many
// were removed. It is a no-op when ttl is not positive.
func (l *NotificationLog) Expire(now time.Time) int {
	if l.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-l.ttl)

	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.items[:0:0]
	for _, n := range l.items {
		if n.CreatedAt.After(cutoff) {
			kept = append(kept, n)
		}
	}
	removed := len(l.items) - len(kept)
	if removed > 0 {
		l.items = kept
		l.metrics.Notifications.Set(float64(len(l.items)))
	}
	return removed
}

// Run sweeps expired notifications every interval until ctx is canceled.
func (l *NotificationLog) Run(ctx context.Context, interval time.Duration) {
	if l.ttl <= 0 || interval <= 0 {
		return
	}
	t := l.clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C():
			if n := l.Expire(now); n > 0 {
				l.log.Debugw("notifications_expired", "count", n)
			}
		}
	}
}
