package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleet_monitor/internal/models"
	"fleet_monitor/internal/service"
)

func TestNotificationsHandlers_ListAndDismiss(t *testing.T) {
	now := time.Now().UTC()
	notes := &mockNotifications{items: []models.Notification{
		{ID: "n2", MachineID: "m1", Message: "Machine Press 1 updated", Change: "status: idle → running", CreatedAt: now},
		{ID: "n1", MachineID: "m2", Message: "Machine Lathe updated", Change: "status: running → failed", CreatedAt: now.Add(-time.Second)},
	}}
	s := &service.Service{Authorization: &mockAuth{parseOperator: "op"}, Notifications: notes}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, withHeader(httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil), authHeader("valid")))
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count         int                   `json:"count"`
		Notifications []models.Notification `json:"notifications"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || out.Notifications[0].ID != "n2" {
		t.Fatalf("unexpected list: %+v", out)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, withHeader(httptest.NewRequest(http.MethodDelete, "/api/v1/notifications/n2", nil), authHeader("valid")))
	if w.Code != http.StatusNoContent {
		t.Fatalf("dismiss status=%d", w.Code)
	}
	if len(notes.dismissed) != 1 || notes.dismissed[0] != "n2" {
		t.Fatalf("dismissed: %v", notes.dismissed)
	}

	// second dismiss of the same id → 404
	w = httptest.NewRecorder()
	r.ServeHTTP(w, withHeader(httptest.NewRequest(http.MethodDelete, "/api/v1/notifications/n2", nil), authHeader("valid")))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat dismiss, got %d", w.Code)
	}
}
