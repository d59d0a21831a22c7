package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"fleet_monitor/internal/models"

	"github.com/google/uuid"
)

const (
	insertMachineEventSQL = `INSERT INTO machine_events (id, machine_id, status, event_ts, received_at) VALUES (?, ?, ?, ?, ?)`
	selectMachineEventSQL = `SELECT id, machine_id, status, event_ts, received_at FROM machine_events`
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

// Append inserts a journal entry. If EventID or ReceivedAt are empty, they're set.
func (r *EventSQLite) Append(ctx context.Context, e models.MachineEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	} else {
		e.ReceivedAt = e.ReceivedAt.UTC()
	}

	var eventTS any
	if e.Timestamp != nil {
		eventTS = e.Timestamp.UTC()
	}

	_, err := r.db.ExecContext(ctx, insertMachineEventSQL,
		e.EventID,
		strings.TrimSpace(e.MachineID),
		string(e.Status),
		eventTS,
		e.ReceivedAt,
	)
	return err
}

// List returns entries filtered by [from, to] on received_at (inclusive)
// and/or machine id, newest first. A non-positive limit means no limit.
func (r *EventSQLite) List(ctx context.Context, from, to time.Time, machineID string, limit int) ([]models.MachineEvent, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "received_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "received_at <= ?")
		args = append(args, to.UTC())
	}
	if machineID = strings.TrimSpace(machineID); machineID != "" {
		conds = append(conds, "machine_id = ?")
		args = append(args, machineID)
	}

	q := selectMachineEventSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY received_at DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.MachineEvent, 0, 64)
	for rows.Next() {
		var (
			ev      models.MachineEvent
			status  string
			eventTS sql.NullTime
		)
		if err := rows.Scan(&ev.EventID, &ev.MachineID, &status, &eventTS, &ev.ReceivedAt); err != nil {
			return nil, err
		}
		ev.Status = models.MachineStatus(status)
		ev.ReceivedAt = ev.ReceivedAt.UTC()
		if eventTS.Valid {
			ts := eventTS.Time.UTC()
			ev.Timestamp = &ts
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
