package models

import "time"

// MachineEvent is a journal entry for one inbound DataEvent.
type MachineEvent struct {
	EventID    string        `json:"event_id"`
	MachineID  string        `json:"machine_id"`
	Status     MachineStatus `json:"status"`
	Timestamp  *time.Time    `json:"timestamp,omitempty"` // as carried by the frame
	ReceivedAt time.Time     `json:"received_at"`
}

// StatusEvent converts the entry to the upstream last_events shape.
func (e MachineEvent) StatusEvent() StatusEvent {
	ts := e.ReceivedAt
	if e.Timestamp != nil {
		ts = *e.Timestamp
	}
	return StatusEvent{
		MachineID: e.MachineID,
		Status:    e.Status,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
	}
}
