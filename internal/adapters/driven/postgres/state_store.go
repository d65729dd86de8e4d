package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StateStore = (*StateStore)(nil)

// StateStore implements driven.StateStore with one JSONB row per contract.
type StateStore struct {
	db *DB
}

// NewStateStore creates a new StateStore
func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

// SaveSchedules stores the scheduling state for a contract
func (s *StateStore) SaveSchedules(ctx context.Context, contractID string, schedules *domain.Schedules) error {
	if schedules == nil {
		return fmt.Errorf("%w: nil schedules", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(schedules)
	if err != nil {
		return fmt.Errorf("failed to marshal schedules: %w", err)
	}

	query := `
		INSERT INTO coordinator_state (contract_id, schedules, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (contract_id) DO UPDATE SET
			schedules = EXCLUDED.schedules,
			updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, contractID, data); err != nil {
		return fmt.Errorf("failed to save schedules: %w", err)
	}
	return nil
}

// GetSchedules retrieves the scheduling state for a contract
func (s *StateStore) GetSchedules(ctx context.Context, contractID string) (*domain.Schedules, error) {
	var schedules domain.Schedules
	if err := s.loadJSON(ctx, "schedules", contractID, &schedules); err != nil {
		return nil, err
	}
	return &schedules, nil
}

// SaveSnapshot stores the latest snapshot. Older sequences are rejected
// with domain.ErrStaleSnapshot.
func (s *StateStore) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil || snapshot.Contract.ID == "" {
		return fmt.Errorf("%w: snapshot without contract", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO coordinator_state (contract_id, snapshot, sequence, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (contract_id) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			sequence = EXCLUDED.sequence,
			updated_at = NOW()
		WHERE coordinator_state.snapshot IS NULL
		   OR coordinator_state.sequence <= EXCLUDED.sequence
	`
	res, err := s.db.ExecContext(ctx, query, snapshot.Contract.ID, data, int64(snapshot.Sequence))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: sequence %d for %s", domain.ErrStaleSnapshot, snapshot.Sequence, snapshot.Contract.ID)
	}
	return nil
}

// GetSnapshot retrieves the latest snapshot for a contract
func (s *StateStore) GetSnapshot(ctx context.Context, contractID string) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	if err := s.loadJSON(ctx, "snapshot", contractID, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Ping checks if the database is reachable
func (s *StateStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// loadJSON reads one JSONB column. column is never user input.
func (s *StateStore) loadJSON(ctx context.Context, column, contractID string, v any) error {
	query := fmt.Sprintf(`SELECT %s FROM coordinator_state WHERE contract_id = $1`, column)

	var data []byte
	err := s.db.QueryRowContext(ctx, query, contractID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && data == nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", column, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", column, err)
	}
	return nil
}
