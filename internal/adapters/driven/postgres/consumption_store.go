package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConsumptionStore = (*ConsumptionStore)(nil)

// ConsumptionStore implements driven.ConsumptionStore using PostgreSQL
type ConsumptionStore struct {
	db *DB
}

// NewConsumptionStore creates a new ConsumptionStore
func NewConsumptionStore(db *DB) *ConsumptionStore {
	return &ConsumptionStore{db: db}
}

// LatestHour returns the most recent stored hour for a contract
func (s *ConsumptionStore) LatestHour(ctx context.Context, contractID string) (time.Time, error) {
	var latest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(hour_start) FROM consumption_hourly WHERE contract_id = $1`, contractID,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest hour: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, domain.ErrNotFound
	}
	return latest.Time, nil
}

// Save upserts records keyed by contract and hour
func (s *ConsumptionStore) Save(ctx context.Context, records []domain.ConsumptionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO consumption_hourly (contract_id, hour_start, kwh, temperature)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (contract_id, hour_start) DO UPDATE SET
			kwh = EXCLUDED.kwh,
			temperature = EXCLUDED.temperature
	`

	written := 0
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if r.ContractID == "" {
				return fmt.Errorf("%w: record at %s has no contract", domain.ErrInvalidInput, r.HourStart)
			}
			if _, err := stmt.ExecContext(ctx, r.ContractID, r.HourStart, r.KWh, NullFloat(r.Temperature)); err != nil {
				return fmt.Errorf("failed to save consumption at %s: %w", r.HourStart, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Range returns records in [from, to) ordered by hour
func (s *ConsumptionStore) Range(ctx context.Context, contractID string, from, to time.Time) ([]domain.ConsumptionRecord, error) {
	query := `
		SELECT contract_id, hour_start, kwh, temperature
		FROM consumption_hourly
		WHERE contract_id = $1 AND hour_start >= $2 AND hour_start < $3
		ORDER BY hour_start ASC
	`

	rows, err := s.db.QueryContext(ctx, query, contractID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query consumption: %w", err)
	}
	defer rows.Close()

	var records []domain.ConsumptionRecord
	for rows.Next() {
		var r domain.ConsumptionRecord
		var temp sql.NullFloat64
		if err := rows.Scan(&r.ContractID, &r.HourStart, &r.KWh, &temp); err != nil {
			return nil, fmt.Errorf("failed to scan consumption: %w", err)
		}
		r.Temperature = FloatPtr(temp)
		records = append(records, r)
	}
	return records, rows.Err()
}
