package models

import "time"

// Notification is a human-readable record of an observed machine change.
type Notification struct {
	ID        string    `json:"id"`
	MachineID string    `json:"machine_id"`
	Message   string    `json:"message"` // e.g. "Machine Press 4 updated"
	Change    string    `json:"change"`  // e.g. "status: idle → running"
	CreatedAt time.Time `json:"created_at"`
}
