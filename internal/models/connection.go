package models

import "time"

// ConnectionState is the lifecycle state of the push connection.
type ConnectionState int

const (
	ConnDisconnected ConnectionState = iota
	ConnConnecting
	ConnOpen
	ConnReconnecting
	ConnFailed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnReconnecting:
		return "reconnecting"
	case ConnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var connectionEdges = map[ConnectionState][]ConnectionState{
	ConnDisconnected: {ConnConnecting},
	ConnConnecting:   {ConnOpen, ConnReconnecting, ConnDisconnected},
	ConnOpen:         {ConnReconnecting, ConnDisconnected},
	ConnReconnecting: {ConnConnecting, ConnFailed, ConnDisconnected},
	ConnFailed:       {ConnConnecting, ConnDisconnected},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s ConnectionState) CanTransition(next ConnectionState) bool {
	for _, to := range connectionEdges[s] {
		if to == next {
			return true
		}
	}
	return false
}

// ConnectionStatus is the read-only view of the push connection.
type ConnectionStatus struct {
	State    ConnectionState `json:"state"`
	Attempts int             `json:"attempts"`
	URL      string          `json:"url"`
	// LastSignal is when the last event or keep-alive arrived; nil before the first.
	LastSignal *time.Time `json:"last_signal,omitempty"`
}
