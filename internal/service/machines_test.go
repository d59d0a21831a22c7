package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet_monitor/internal/clock"
	"fleet_monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMachineAPI struct {
	machines []models.Machine
	details  models.MachineDetails
	err      error
}

func (f *fakeMachineAPI) FetchMachines(ctx context.Context) []models.Machine {
	return f.machines
}

func (f *fakeMachineAPI) FetchMachine(ctx context.Context, id string) (models.MachineDetails, error) {
	if f.err != nil {
		return models.MachineDetails{}, f.err
	}
	return f.details, nil
}

func TestMachinesService_SeedFillsCache(t *testing.T) {
	cache := NewMachineCache(clock.Fake(t0))
	api := &fakeMachineAPI{machines: []models.Machine{
		{ID: "1", Location: &models.Location{Latitude: ptr(1.0), Longitude: ptr(2.0)}},
		{ID: "2"},
		{ID: "2"},
	}}
	svc := NewMachinesService(cache, api, &fakeEventRepo{}, nil)

	assert.Equal(t, 2, svc.Seed(context.Background()))
	assert.Len(t, svc.List(), 2)
}

func TestMachinesService_SeedEmptyOnUpstreamFailure(t *testing.T) {
	cache := seededCache(clock.Fake(t0))
	svc := NewMachinesService(cache, &fakeMachineAPI{}, &fakeEventRepo{}, nil)

	assert.Equal(t, 0, svc.Seed(context.Background()))
	assert.Empty(t, svc.List())
}

func TestMachinesService_Get(t *testing.T) {
	svc := NewMachinesService(seededCache(clock.Fake(t0)), &fakeMachineAPI{}, &fakeEventRepo{}, nil)

	m, err := svc.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Press 1", m.Name)

	_, err = svc.Get("nope")
	assert.ErrorIs(t, err, ErrMachineNotFound)
}

func TestMachinesService_DetailsFromUpstream(t *testing.T) {
	want := models.MachineDetails{
		Machine:    models.Machine{ID: "1", Name: "Upstream"},
		LastEvents: []models.StatusEvent{{MachineID: "1", Status: models.StatusIdle, Timestamp: "2025-03-01T10:00:00Z"}},
	}
	journal := &fakeEventRepo{}
	svc := NewMachinesService(seededCache(clock.Fake(t0)), &fakeMachineAPI{details: want}, journal, nil)

	got, err := svc.Details(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Zero(t, journal.calls)
}

func TestMachinesService_DetailsFallsBackToCacheAndJournal(t *testing.T) {
	ts := t0.Add(time.Minute)
	journal := &fakeEventRepo{events: []models.MachineEvent{
		{EventID: "e2", MachineID: "1", Status: models.StatusRunning, Timestamp: &ts, ReceivedAt: ts},
		{EventID: "e1", MachineID: "1", Status: models.StatusIdle, ReceivedAt: t0},
	}}
	svc := NewMachinesService(seededCache(clock.Fake(t0)), &fakeMachineAPI{err: errors.New("upstream down")}, journal, nil)

	got, err := svc.Details(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Press 1", got.Name)
	assert.Equal(t, []models.StatusEvent{
		{MachineID: "1", Status: models.StatusRunning, Timestamp: "2025-03-01T10:01:00Z"},
		{MachineID: "1", Status: models.StatusIdle, Timestamp: "2025-03-01T10:00:00Z"},
	}, got.LastEvents)
	assert.Equal(t, "1", journal.gotMachineID)
	assert.Equal(t, recentEventsLimit, journal.gotLimit)
}

func TestMachinesService_DetailsJournalFailureStillAnswers(t *testing.T) {
	journal := &fakeEventRepo{err: errors.New("db locked")}
	svc := NewMachinesService(seededCache(clock.Fake(t0)), &fakeMachineAPI{err: errors.New("down")}, journal, nil)

	got, err := svc.Details(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "2", got.ID)
	assert.Empty(t, got.LastEvents)
}

func TestMachinesService_DetailsUnknownEverywhere(t *testing.T) {
	svc := NewMachinesService(seededCache(clock.Fake(t0)), &fakeMachineAPI{err: errors.New("404")}, &fakeEventRepo{}, nil)

	_, err := svc.Details(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrMachineNotFound)
}

func TestFilterMachines(t *testing.T) {
	one, two := 1, 2
	fleet := []models.Machine{
		{ID: "a", Status: models.StatusRunning, Floor: &one},
		{ID: "b", Status: models.StatusFailed, Floor: &one},
		{ID: "c", Status: models.StatusRunning, Floor: &two},
		{ID: "d", Status: models.StatusRunning},
	}
	ids := func(ms []models.Machine) []string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.ID)
		}
		return out
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(FilterMachines(fleet, MachineFilter{})))
	assert.Equal(t, []string{"a", "c", "d"}, ids(FilterMachines(fleet, MachineFilter{Status: models.StatusRunning})))
	assert.Equal(t, []string{"a", "b"}, ids(FilterMachines(fleet, MachineFilter{Floor: &one})))
	assert.Equal(t, []string{"c"}, ids(FilterMachines(fleet, MachineFilter{Status: models.StatusRunning, Floor: &two})))
	assert.Empty(t, FilterMachines(fleet, MachineFilter{Status: models.StatusIdle}))
}
