package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"fleet_monitor/internal/clock"
	"fleet_monitor/internal/models"
)

// Merge outcomes that leave the cache untouched.
var (
	ErrUnknownMachine = errors.New("unknown machine")
	ErrStaleEvent     = errors.New("stale event")
)

// MergeResult describes one applied DataEvent.
type MergeResult struct {
	Previous  models.Machine
	Updated   models.Machine
	Event     models.DataEvent
	AppliedAt time.Time
}

// Changed reports whether status or last_update moved.
func (r MergeResult) Changed() bool {
	if r.Previous.Status != r.Updated.Status {
		return true
	}
	prev, next := r.Previous.LastUpdate, r.Updated.LastUpdate
	if prev == nil || next == nil {
		return prev != next
	}
	return !prev.Equal(*next)
}

// MachineCache is the authoritative in-memory view of the fleet. The set of
// machines is fixed by Seed; Merge only updates status and last_update.
type MachineCache struct {
	clock clock.Clock

	mu    sync.RWMutex
	order []string
	byID  map[string]*models.Machine
}

func NewMachineCache(clk clock.Clock) *MachineCache {
	return &MachineCache{clock: clk, byID: map[string]*models.Machine{}}
}

// Seed replaces the cache contents and returns the number of machines kept.
// Entries without an id are skipped; the first occurrence of an id wins.
func (c *MachineCache) Seed(machines []models.Machine) int {
	order := make([]string, 0, len(machines))
	byID := make(map[string]*models.Machine, len(machines))
	for _, m := range machines {
		if m.ID == "" {
			continue
		}
		if _, dup := byID[m.ID]; dup {
			continue
		}
		cp := m.Clone()
		if cp.LastUpdate != nil {
			ts := cp.LastUpdate.UTC()
			cp.LastUpdate = &ts
		}
		byID[m.ID] = &cp
		order = append(order, m.ID)
	}

	c.mu.Lock()
	c.order, c.byID = order, byID
	c.mu.Unlock()
	return len(order)
}

// Merge applies ev to the machine it names. It never inserts: an unknown id
// yields ErrUnknownMachine, and an event older than the machine's
// last_update yields ErrStaleEvent.
func (c *MachineCache) Merge(ev models.DataEvent) (MergeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.byID[ev.MachineID]
	if !ok {
		return MergeResult{}, fmt.Errorf("%w: %q", ErrUnknownMachine, ev.MachineID)
	}

	now := c.clock.Now().UTC()
	res := MergeResult{Previous: m.Clone(), Event: ev, AppliedAt: now}

	ts := now
	if ev.HasTimestamp() {
		ts = ev.Timestamp.UTC()
		if m.LastUpdate != nil && ts.Before(*m.LastUpdate) {
			return res, fmt.Errorf("%w: %q at %s, have %s", ErrStaleEvent, ev.MachineID,
				ts.Format(time.RFC3339Nano), m.LastUpdate.Format(time.RFC3339Nano))
		}
	} else if m.LastUpdate != nil && ts.Before(*m.LastUpdate) {
		ts = *m.LastUpdate
	}

	m.Status = ev.Status
	m.LastUpdate = &ts
	res.Updated = m.Clone()
	return res, nil
}

// Get returns a copy of the machine with the given id.
func (c *MachineCache) Get(id string) (models.Machine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byID[id]
	if !ok {
		return models.Machine{}, false
	}
	return m.Clone(), true
}

// List returns copies of all machines in seed order.
func (c *MachineCache) List() []models.Machine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Machine, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Clone())
	}
	return out
}

func (c *MachineCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
