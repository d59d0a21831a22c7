package repository

import (
	"context"
	"database/sql"
	"time"

	"fleet_monitor/internal/models"
)

// Operators stores the accounts allowed to sign in.
type Operators interface {
	ReplaceAll(ops []models.Operator) error
	GetByUsername(username string) (*models.Operator, error)
}

// EventRepo is the journal of inbound machine events.
type EventRepo interface {
	Append(ctx context.Context, e models.MachineEvent) error
	List(ctx context.Context, from, to time.Time, machineID string, limit int) ([]models.MachineEvent, error)
}

// MachineAPI reads the upstream machine endpoints.
type MachineAPI interface {
	FetchMachines(ctx context.Context) []models.Machine
	FetchMachine(ctx context.Context, id string) (models.MachineDetails, error)
}

type Repository struct {
	EventRepo  EventRepo
	Auth       Operators
	MachineAPI MachineAPI
}

func NewRepository(db *sql.DB, api MachineAPI) *Repository {
	return &Repository{
		EventRepo:  NewEventSQLite(db),
		Auth:       NewOperatorRepository(db),
		MachineAPI: api,
	}
}
