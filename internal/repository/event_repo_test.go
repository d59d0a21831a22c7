package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"fleet_monitor/internal/models"
	"fleet_monitor/internal/repository/db"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("mock expectations: %v", err)
		}
		_ = conn.Close()
	})
	return conn, mock
}

func TestAppend_Success_WithDefaults(t *testing.T) {
	t.Parallel()

	conn, mock := newMockDB(t)
	repo := NewEventSQLite(conn)

	// generated id and receive time are unknown; match the rest.
	mock.ExpectExec(regexp.QuoteMeta(insertMachineEventSQL)).
		WithArgs(sqlmock.AnyArg(), "7", "running", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.MachineEvent{
		MachineID: " 7 ",
		Status:    models.StatusRunning,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestAppend_TimesStoredInUTC(t *testing.T) {
	t.Parallel()

	conn, mock := newMockDB(t)
	repo := NewEventSQLite(conn)

	zone := time.FixedZone("UTC+2", 2*3600)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, zone)
	received := time.Date(2025, 3, 1, 12, 0, 1, 0, zone)

	mock.ExpectExec(regexp.QuoteMeta(insertMachineEventSQL)).
		WithArgs("ev-1", "3", "failed", ts.UTC(), received.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.MachineEvent{
		EventID:    "ev-1",
		MachineID:  "3",
		Status:     models.StatusFailed,
		Timestamp:  &ts,
		ReceivedAt: received,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestAppend_DBError(t *testing.T) {
	t.Parallel()

	conn, mock := newMockDB(t)
	repo := NewEventSQLite(conn)

	mock.ExpectExec("INSERT INTO machine_events").
		WillReturnError(errors.New("down"))

	err := repo.Append(ctx(t), models.MachineEvent{MachineID: "1", Status: models.StatusIdle})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestList_NoFilters(t *testing.T) {
	t.Parallel()

	conn, mock := newMockDB(t)
	repo := NewEventSQLite(conn)

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "machine_id", "status", "event_ts", "received_at"}).
		AddRow("2", "1", "running", now, now.Add(time.Second)).
		AddRow("1", "1", "idle", nil, now)

	mock.ExpectQuery(regexp.QuoteMeta(selectMachineEventSQL + ` ORDER BY received_at DESC`)).
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), time.Time{}, time.Time{}, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2, got %d", len(got))
	}
	if got[0].EventID != "2" || got[0].Status != models.StatusRunning {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if got[0].Timestamp == nil || !got[0].Timestamp.Equal(now) {
		t.Fatalf("event_ts not scanned: %v", got[0].Timestamp)
	}
	// NULL event_ts stays nil
	if got[1].Timestamp != nil {
		t.Fatalf("expected nil timestamp, got %v", got[1].Timestamp)
	}
}

func TestList_WithFilters_OrderAndArgs(t *testing.T) {
	t.Parallel()

	conn, mock := newMockDB(t)
	repo := NewEventSQLite(conn)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	query := selectMachineEventSQL + ` WHERE received_at >= ? AND received_at <= ? AND machine_id = ? ORDER BY received_at DESC LIMIT ?`

	rows := sqlmock.NewRows([]string{"id", "machine_id", "status", "event_ts", "received_at"}).
		AddRow("3", "42", "failed", nil, to).
		AddRow("2", "42", "idle", nil, from)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(from, to, "42", 10).
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), from, to, " 42 ", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "3" || got[1].EventID != "2" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestList_ScanError(t *testing.T) {
	t.Parallel()

	conn, mock := newMockDB(t)
	repo := NewEventSQLite(conn)

	rows := sqlmock.NewRows([]string{"id", "machine_id", "status", "event_ts", "received_at"}).
		AddRow("1", "1", "idle", nil, "not-a-time")
	mock.ExpectQuery("SELECT id, machine_id").WillReturnRows(rows)

	if _, err := repo.List(ctx(t), time.Time{}, time.Time{}, "", 0); err == nil {
		t.Fatalf("expected scan error")
	}
}

func TestList_QueryError(t *testing.T) {
	t.Parallel()

	conn, mock := newMockDB(t)
	repo := NewEventSQLite(conn)

	mock.ExpectQuery("SELECT id, machine_id").WillReturnError(errors.New("locked"))

	if _, err := repo.List(ctx(t), time.Time{}, time.Time{}, "", 0); err == nil {
		t.Fatalf("expected query error")
	}
}

// Round trip through the real SQLite driver.
func TestEventSQLite_RoundTrip(t *testing.T) {
	conn, err := db.InitDB(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer conn.Close()

	repo := NewEventSQLite(conn)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ts := base.Add(-time.Minute)

	for i, ev := range []models.MachineEvent{
		{EventID: "a", MachineID: "1", Status: models.StatusIdle, ReceivedAt: base},
		{EventID: "b", MachineID: "2", Status: models.StatusFailed, Timestamp: &ts, ReceivedAt: base.Add(time.Second)},
		{EventID: "c", MachineID: "1", Status: models.StatusRunning, ReceivedAt: base.Add(2 * time.Second)},
	} {
		if err := repo.Append(ctx(t), ev); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	all, err := repo.List(ctx(t), time.Time{}, time.Time{}, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].EventID != "c" || all[2].EventID != "a" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[1].Timestamp == nil || !all[1].Timestamp.Equal(ts) {
		t.Fatalf("event_ts lost: %v", all[1].Timestamp)
	}

	one, err := repo.List(ctx(t), base.Add(time.Second), time.Time{}, "1", 5)
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(one) != 1 || one[0].EventID != "c" || !one[0].ReceivedAt.Equal(base.Add(2*time.Second)) {
		t.Fatalf("unexpected filtered result: %+v", one)
	}
}
