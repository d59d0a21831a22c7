package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleet_monitor/internal/models"
	"fleet_monitor/internal/service"
)

func TestEventsHandler_ListAndValidation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.MachineEvent{
		{EventID: "e2", MachineID: "m1", Status: models.StatusFailed, ReceivedAt: now.Add(time.Second)},
		{EventID: "e1", MachineID: "m1", Status: models.StatusRunning, ReceivedAt: now},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: &mockAuth{parseOperator: "op"},
		EventLog:      logs,
	}
	r := newTestRouter(s)

	bad := []string{
		"/api/v1/events?from=notatime",
		"/api/v1/events?to=notatime",
		"/api/v1/events?from=2025-08-02&to=2025-08-01",
		"/api/v1/events?limit=zero",
		"/api/v1/events?limit=-5",
	}
	for _, u := range bad {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, withHeader(httptest.NewRequest(http.MethodGet, u, nil), authHeader("valid")))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", u, w.Code)
		}
	}

	w := httptest.NewRecorder()
	q := "/api/v1/events?from=" + now.Format(time.RFC3339) + "&to=2099-01-01&machine=%20m1%20&limit=5"
	r.ServeHTTP(w, withHeader(httptest.NewRequest(http.MethodGet, q, nil), authHeader("valid")))
	if w.Code != http.StatusOK {
		t.Fatalf("events status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                   `json:"count"`
		Events []models.MachineEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 || out.Events[0].EventID != "e2" {
		t.Fatalf("unexpected response: %+v", out)
	}

	f := logs.lastFilter
	if f.MachineID != "m1" || f.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if !f.From.Equal(now) {
		t.Fatalf("from: got %v want %v", f.From, now)
	}
	wantTo := time.Date(2099, 1, 1, 23, 59, 59, 999999999, time.UTC)
	if !f.To.Equal(wantTo) {
		t.Fatalf("date-only to should be end of day: got %v", f.To)
	}
}

func TestEventsHandler_ServiceError(t *testing.T) {
	s := &service.Service{
		Authorization: &mockAuth{parseOperator: "op"},
		EventLog:      &mockEventLog{err: errors.New("db locked")},
	}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, withHeader(httptest.NewRequest(http.MethodGet, "/api/v1/events", nil), authHeader("valid")))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestParseQueryTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-08-27T15:04:05Z", time.Date(2025, 8, 27, 15, 4, 5, 0, time.UTC), true},
		{"2025-08-27T17:04:05+02:00", time.Date(2025, 8, 27, 15, 4, 5, 0, time.UTC), true},
		{"2025-08-27 15:04:05", time.Date(2025, 8, 27, 15, 4, 5, 0, time.UTC), true},
		{"2025-08-27", time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC), true},
		{"27/08/2025", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := parseQueryTime(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("%q: err=%v, want ok=%v", tc.in, err, tc.ok)
		}
		if tc.ok && !got.Equal(tc.want) {
			t.Fatalf("%q: got %v want %v", tc.in, got, tc.want)
		}
	}
	if !isDateOnly("2025-08-27") || isDateOnly("2025-08-27 10:00:00") || isDateOnly("2025-08-27T10:00:00Z") {
		t.Fatal("isDateOnly misclassified input")
	}
}
