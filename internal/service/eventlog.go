package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet_monitor/internal/clock"
	"fleet_monitor/internal/models"
	"fleet_monitor/internal/repository"

	"github.com/google/uuid"
)

const (
	DefaultEventLimit = 100
	MaxEventLimit     = 1000

	journalWriteTimeout = 5 * time.Second
)

// LogFilter narrows journal listings. Zero values mean no bound.
type LogFilter struct {
	From      time.Time // inclusive
	To        time.Time // inclusive
	MachineID string
	Limit     int
}

type EventLogService struct {
	eventRepo repository.EventRepo
	clock     clock.Clock
}

func NewEventLogService(eventRepo repository.EventRepo, clk clock.Clock) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, clock: clk}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
)

// HandleEvent journals every DataEvent as received, including ones the cache
// later drops as unknown or stale.
func (s *EventLogService) HandleEvent(ev models.Event) error {
	data, ok := ev.(models.DataEvent)
	if !ok {
		return nil
	}

	rec := models.MachineEvent{
		EventID:    uuid.NewString(),
		MachineID:  data.MachineID,
		Status:     data.Status,
		ReceivedAt: s.clock.Now().UTC(),
	}
	if data.HasTimestamp() {
		ts := data.Timestamp.UTC()
		rec.Timestamp = &ts
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := s.eventRepo.Append(ctx, rec); err != nil {
		return fmt.Errorf("journal append %q: %w", data.MachineID, err)
	}
	return nil
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func normalizeLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultEventLimit
	case n > MaxEventLimit:
		return MaxEventLimit
	default:
		return n
	}
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (LogFilter, error) {
	out := LogFilter{
		From:      normalizeToUTC(f.From),
		To:        normalizeToUTC(f.To),
		MachineID: strings.TrimSpace(f.MachineID),
		Limit:     normalizeLimit(f.Limit),
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return LogFilter{}, errInvalidTimeRange
	}
	return out, nil
}

// List returns journal entries, newest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.MachineEvent, error) {
	nf, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, nf.From, nf.To, nf.MachineID, nf.Limit)
}
