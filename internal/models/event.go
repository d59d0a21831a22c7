package models

import "time"

// EventType is the "type" discriminator of a push frame.
type EventType string

const (
	EventTypeData      EventType = "event"
	EventTypeKeepAlive EventType = "keep-alive"
	EventTypeInit      EventType = "init" // outbound only
)

// Event is a validated push message. The set of implementations is closed:
// DataEvent, KeepAlive and Init.
type Event interface {
	Type() EventType
	sealed()
}

// DataEvent reports a status change of one machine.
// A zero Timestamp means the frame carried none.
type DataEvent struct {
	MachineID string
	Status    MachineStatus
	Timestamp time.Time
}

func (DataEvent) Type() EventType { return EventTypeData }
func (DataEvent) sealed()         {}

// HasTimestamp reports whether the frame carried a timestamp.
func (e DataEvent) HasTimestamp() bool { return !e.Timestamp.IsZero() }

// KeepAlive is a liveness signal with no payload.
type KeepAlive struct{}

func (KeepAlive) Type() EventType { return EventTypeKeepAlive }
func (KeepAlive) sealed()         {}

// Init is the handshake sent once per opened connection.
type Init struct{}

func (Init) Type() EventType { return EventTypeInit }
func (Init) sealed()         {}

// InitFrame is the wire form of Init.
type InitFrame struct {
	Type EventType `json:"type"`
}

// NewInitFrame returns {"type":"init"}.
func NewInitFrame() InitFrame { return InitFrame{Type: EventTypeInit} }
