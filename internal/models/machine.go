package models

import "time"

// MachineStatus is the last reported operating status of a machine.
type MachineStatus string

const (
	StatusRunning  MachineStatus = "running"
	StatusFailed   MachineStatus = "failed"
	StatusFinished MachineStatus = "finished"
	StatusIdle     MachineStatus = "idle"
)

// MachineStatuses lists every status accepted on the wire.
var MachineStatuses = []MachineStatus{StatusRunning, StatusFailed, StatusFinished, StatusIdle}

// Valid reports whether s is one of the known statuses.
func (s MachineStatus) Valid() bool {
	for _, known := range MachineStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Machine is one monitored machine as served by GET /machines.
type Machine struct {
	ID              string        `json:"id"`
	Name            string        `json:"name,omitempty"`
	Type            string        `json:"machine_type,omitempty"`
	Status          MachineStatus `json:"status,omitempty"`
	Location        *Location     `json:"location,omitempty"`
	Floor           *int          `json:"floor,omitempty"`
	InstallDate     string        `json:"install_date,omitempty"`
	LastMaintenance string        `json:"last_maintenance,omitempty"`
	LastUpdate      *time.Time    `json:"last_update,omitempty"`
}

// HasLocation reports whether both coordinates are present.
func (m Machine) HasLocation() bool {
	return m.Location != nil && m.Location.Latitude != nil && m.Location.Longitude != nil
}

// DisplayName falls back to the id when the machine has no name.
func (m Machine) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Clone returns a copy that shares no pointers with m.
func (m Machine) Clone() Machine {
	out := m
	if m.Location != nil {
		loc := Location{}
		if m.Location.Latitude != nil {
			v := *m.Location.Latitude
			loc.Latitude = &v
		}
		if m.Location.Longitude != nil {
			v := *m.Location.Longitude
			loc.Longitude = &v
		}
		out.Location = &loc
	}
	if m.Floor != nil {
		v := *m.Floor
		out.Floor = &v
	}
	if m.LastUpdate != nil {
		v := *m.LastUpdate
		out.LastUpdate = &v
	}
	return out
}

// StatusEvent is one entry of a machine's recent history as reported upstream.
type StatusEvent struct {
	MachineID string        `json:"machineId"`
	Status    MachineStatus `json:"status"`
	Timestamp string        `json:"timestamp"`
}

// MachineDetails is served by GET /machines/:id.
type MachineDetails struct {
	Machine
	LastEvents []StatusEvent `json:"last_events"`
}
