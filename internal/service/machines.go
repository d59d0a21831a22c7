package service

import (
	"context"
	"errors"
	"time"

	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/models"
	"fleet_monitor/internal/repository"
)

var ErrMachineNotFound = errors.New("machine not found")

// recentEventsLimit bounds last_events in the offline details fallback.
const recentEventsLimit = 10

type MachinesService struct {
	cache   *MachineCache
	api     repository.MachineAPI
	journal repository.EventRepo
	log     *logger.Logger
}

func NewMachinesService(cache *MachineCache, api repository.MachineAPI, journal repository.EventRepo, log *logger.Logger) *MachinesService {
	if log == nil {
		log = logger.Nop()
	}
	return &MachinesService{cache: cache, api: api, journal: journal, log: log}
}

// Seed fills the cache from the upstream list. A failed fetch seeds an empty
// fleet; the push feed cannot add machines later.
func (s *MachinesService) Seed(ctx context.Context) int {
	machines := s.api.FetchMachines(ctx)
	n := s.cache.Seed(machines)

	located := 0
	for _, m := range s.cache.List() {
		if m.HasLocation() {
			located++
		}
	}
	s.log.Infow("machines_seeded", "count", n, "with_location", located, "fetched", len(machines))
	return n
}

func (s *MachinesService) List() []models.Machine {
	return s.cache.List()
}

func (s *MachinesService) Get(id string) (models.Machine, error) {
	m, ok := s.cache.Get(id)
	if !ok {
		return models.Machine{}, ErrMachineNotFound
	}
	return m, nil
}

// Details asks upstream first. When upstream is unreachable it answers from
// the cache, using the journal for last_events.
func (s *MachinesService) Details(ctx context.Context, id string) (models.MachineDetails, error) {
	d, err := s.api.FetchMachine(ctx, id)
	if err == nil {
		return d, nil
	}
	s.log.Warnw("machine_details_upstream_failed", "machine_id", id, "err", err)

	m, ok := s.cache.Get(id)
	if !ok {
		return models.MachineDetails{}, ErrMachineNotFound
	}
	out := models.MachineDetails{Machine: m, LastEvents: []models.StatusEvent{}}

	events, err := s.journal.List(ctx, time.Time{}, time.Time{}, id, recentEventsLimit)
	if err != nil {
		s.log.Warnw("machine_details_journal_failed", "machine_id", id, "err", err)
		return out, nil
	}
	for _, e := range events {
		out.LastEvents = append(out.LastEvents, e.StatusEvent())
	}
	return out, nil
}

// MachineFilter narrows fleet listings. Zero values match every machine.
type MachineFilter struct {
	Status models.MachineStatus
	Floor  *int
}

// Match reports whether m passes the filter. A floor filter never matches
// a machine without a floor.
func (f MachineFilter) Match(m models.Machine) bool {
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if f.Floor != nil && (m.Floor == nil || *m.Floor != *f.Floor) {
		return false
	}
	return true
}

// FilterMachines returns the machines matching f, keeping their order.
func FilterMachines(machines []models.Machine, f MachineFilter) []models.Machine {
	if f == (MachineFilter{}) {
		return machines
	}
	out := make([]models.Machine, 0, len(machines))
	for _, m := range machines {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out
}
