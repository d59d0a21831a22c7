package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"fleet_monitor/internal/models"
)

// OperatorRepository mirrors the configured operators into SQLite.
type OperatorRepository struct {
	db *sql.DB
}

func NewOperatorRepository(db *sql.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// Ensure implementation of Operators interface at compile time.
var _ Operators = (*OperatorRepository)(nil)

const (
	deleteOperatorsSQL          = `DELETE FROM operators`
	insertOperatorSQL           = `INSERT INTO operators (username, password_hash) VALUES (?, ?)`
	selectOperatorByUsernameSQL = `SELECT username, password_hash FROM operators WHERE username = ?`
)

// ReplaceAll makes ops the complete operator set, so accounts removed from
// the configuration can no longer sign in.
func (r *OperatorRepository) ReplaceAll(ops []models.Operator) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin operators transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(deleteOperatorsSQL); err != nil {
		return fmt.Errorf("clear operators: %w", err)
	}
	for _, op := range ops {
		if _, err := tx.Exec(insertOperatorSQL, op.Username, op.PasswordHash); err != nil {
			return fmt.Errorf("insert operator %q: %w", op.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit operators transaction: %w", err)
	}
	return nil
}

// GetByUsername fetches an operator by username. Returns (nil, nil) if not found.
func (r *OperatorRepository) GetByUsername(username string) (*models.Operator, error) {
	var op models.Operator
	err := r.db.QueryRow(selectOperatorByUsernameSQL, username).Scan(&op.Username, &op.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select operator %q: %w", username, err)
	}
	return &op, nil
}
