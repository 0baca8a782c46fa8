package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// FireRepository is the durable idempotency ledger for scan-based trigger
// fires. The unique index on (workflow_id, entity_id, period) is what makes
// the claim race-safe across scanner instances.
type FireRepository struct {
	db *sql.DB
}

// NewFireRepository creates a new fire repository
func NewFireRepository(db *sql.DB) *FireRepository {
	return &FireRepository{db: db}
}

// Claim records a trigger fire and reports whether this caller won the
// insert. Returns false when the (workflow, entity, period) key already fired.
func (r *FireRepository) Claim(ctx context.Context, workflowID, entityID uuid.UUID, period string) (bool, error) {
	query := `
		INSERT INTO trigger_fires (id, workflow_id, entity_id, period, fired_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (workflow_id, entity_id, period) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, uuid.New(), workflowID, entityID, period)
	if err != nil {
		return false, fmt.Errorf("failed to claim trigger fire: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// Release deletes a claim whose fire queued no jobs, so a later scan of the
// same period can try again.
func (r *FireRepository) Release(ctx context.Context, workflowID, entityID uuid.UUID, period string) error {
	query := `DELETE FROM trigger_fires WHERE workflow_id = $1 AND entity_id = $2 AND period = $3`

	if _, err := r.db.ExecContext(ctx, query, workflowID, entityID, period); err != nil {
		return fmt.Errorf("failed to release trigger fire: %w", err)
	}

	return nil
}
