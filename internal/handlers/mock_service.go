package handlers

import (
	"context"
	"net/http"

	"fleet_monitor/internal/models"
	"fleet_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	genTokenToken string
	genTokenErr   error
	parseOperator string
	parseErr      error

	lastGenUsername string
	lastGenPassword string
	lastParseToken  string
}

func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (string, error) {
	m.lastParseToken = token
	return m.parseOperator, m.parseErr
}

type mockMachines struct {
	machines   []models.Machine
	details    models.MachineDetails
	detailsErr error
	lastID     string
}

func (m *mockMachines) Seed(ctx context.Context) int { return len(m.machines) }
func (m *mockMachines) List() []models.Machine       { return m.machines }
func (m *mockMachines) Get(id string) (models.Machine, error) {
	m.lastID = id
	for _, mc := range m.machines {
		if mc.ID == id {
			return mc, nil
		}
	}
	return models.Machine{}, service.ErrMachineNotFound
}
func (m *mockMachines) Details(ctx context.Context, id string) (models.MachineDetails, error) {
	m.lastID = id
	return m.details, m.detailsErr
}

type mockNotifications struct {
	items     []models.Notification
	dismissed []string
}

func (m *mockNotifications) List() []models.Notification { return m.items }
func (m *mockNotifications) Dismiss(id string) bool {
	for i, n := range m.items {
		if n.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			m.dismissed = append(m.dismissed, id)
			return true
		}
	}
	return false
}

type mockEventLog struct {
	resp       []models.MachineEvent
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) HandleEvent(ev models.Event) error { return nil }
func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.MachineEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

type mockConnection struct {
	status          models.ConnectionStatus
	connectCalls    int
	disconnectCalls int
}

func (m *mockConnection) Connect() {
	m.connectCalls++
	m.status.State = models.ConnConnecting
}
func (m *mockConnection) Disconnect() {
	m.disconnectCalls++
	m.status.State = models.ConnDisconnected
}
func (m *mockConnection) Status() models.ConnectionStatus { return m.status }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, opts ...Option) *gin.Engine {
	h := NewHandler(s, nil, opts...)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func withHeader(req *http.Request, hdr http.Header) *http.Request {
	for k, vv := range hdr {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
