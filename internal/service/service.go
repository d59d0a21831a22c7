package service

import (
	"context"
	"time"

	"fleet_monitor/internal/clock"
	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/models"
	"fleet_monitor/internal/repository"
)

type Authorization interface {
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (string, error)
}

// Machines exposes the cached fleet and upstream details.
type Machines interface {
	Seed(ctx context.Context) int
	List() []models.Machine
	Get(id string) (models.Machine, error)
	Details(ctx context.Context, id string) (models.MachineDetails, error)
}

type Notifications interface {
	List() []models.Notification
	Dismiss(id string) bool
}

// EventLog is the journal of inbound machine events.
type EventLog interface {
	HandleEvent(ev models.Event) error
	List(ctx context.Context, f LogFilter) ([]models.MachineEvent, error)
}

// Connection controls the push connection.
type Connection interface {
	Connect()
	Disconnect()
	Status() models.ConnectionStatus
}

// Liveness reports when the push feed last delivered anything.
type Liveness interface {
	LastSignal() time.Time
}

// liveConnection adds the feed's last signal to the connection status.
type liveConnection struct {
	Connection
	liveness Liveness
}

func (c liveConnection) Status() models.ConnectionStatus {
	st := c.Connection.Status()
	if at := c.liveness.LastSignal(); !at.IsZero() {
		st.LastSignal = &at
	}
	return st
}

// Service aggregates all sub-services.
type Service struct {
	Machines
	Notifications
	EventLog
	Connection
	Authorization
}

// Deps carries the shared single instances built by the composition root.
type Deps struct {
	Repos         *repository.Repository
	Cache         *MachineCache
	Notifications *NotificationLog
	Connection    Connection
	Liveness      Liveness
	Auth          AuthConfig
	Clock         clock.Clock
	Log           *logger.Logger
}

func NewService(d Deps) *Service {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	conn := d.Connection
	if d.Liveness != nil {
		conn = liveConnection{Connection: conn, liveness: d.Liveness}
	}
	return &Service{
		Machines:      NewMachinesService(d.Cache, d.Repos.MachineAPI, d.Repos.EventRepo, d.Log.Named("machines")),
		Notifications: d.Notifications,
		EventLog:      NewEventLogService(d.Repos.EventRepo, d.Clock),
		Connection:    conn,
		Authorization: NewAuthService(d.Repos.Auth, d.Auth, d.Clock),
	}
}
