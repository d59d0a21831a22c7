package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// pragmas run on every open, in order. One connection only, so they stick.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

type schemaStep struct {
	name string
	sql  string
}

var schema = []schemaStep{
	{"machine_events", `
CREATE TABLE IF NOT EXISTS machine_events (
    id          TEXT PRIMARY KEY,
    machine_id  TEXT NOT NULL,
    status      TEXT NOT NULL,
    event_ts    TIMESTAMP,
    received_at TIMESTAMP NOT NULL
)`},
	{"idx_machine_events_machine_received", `
CREATE INDEX IF NOT EXISTS idx_machine_events_machine_received
    ON machine_events (machine_id, received_at)`},
	{"idx_machine_events_received", `
CREATE INDEX IF NOT EXISTS idx_machine_events_received
    ON machine_events (received_at)`},
	{"operators", `
CREATE TABLE IF NOT EXISTS operators (
    username      TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL
)`},
}

// InitDB opens or creates the SQLite journal at path and applies the schema.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// the journal has a single writer: the dispatcher's journal listener
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := setup(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func setup(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := ensureSchema(db); err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, step := range schema {
		if _, err := tx.Exec(step.sql); err != nil {
			return fmt.Errorf("apply schema %s: %w", step.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
