package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/engine"
	"github.com/glowdesk/automations/internal/models"
)

// WorkflowRepository handles workflow database operations
type WorkflowRepository struct {
	db *sql.DB
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

const workflowColumns = `id, business_id, name, description, is_active, trigger, actions, created_at, updated_at`

func scanWorkflow(row interface{ Scan(...interface{}) error }) (*models.Workflow, error) {
	workflow := &models.Workflow{}
	err := row.Scan(
		&workflow.ID, &workflow.BusinessID, &workflow.Name, &workflow.Description,
		&workflow.IsActive, &workflow.Trigger, &workflow.Actions,
		&workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return workflow, nil
}

// Create creates a new workflow
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == uuid.Nil {
		workflow.ID = uuid.New()
	}
	workflow.CreatedAt = time.Now()
	workflow.UpdatedAt = workflow.CreatedAt

	query := `
		INSERT INTO workflows (id, business_id, name, description, is_active, trigger, actions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(
		ctx, query,
		workflow.ID, workflow.BusinessID, workflow.Name, workflow.Description,
		workflow.IsActive, workflow.Trigger, workflow.Actions,
		workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	return nil
}

// GetByID retrieves a workflow by ID
func (r *WorkflowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	return workflow, nil
}

// List retrieves all workflows for a business, newest first
func (r *WorkflowRepository) List(ctx context.Context, businessID uuid.UUID) ([]models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE business_id = $1 ORDER BY created_at DESC`

	return r.queryWorkflows(ctx, query, businessID)
}

// ListActive retrieves all active workflows for a business
func (r *WorkflowRepository) ListActive(ctx context.Context, businessID uuid.UUID) ([]models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE business_id = $1 AND is_active = true ORDER BY created_at`

	return r.queryWorkflows(ctx, query, businessID)
}

// ListActiveScanBased retrieves active workflows with scan-based triggers
// across all businesses, for the periodic scanner.
func (r *WorkflowRepository) ListActiveScanBased(ctx context.Context) ([]models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE is_active = true
		  AND trigger->>'kind' IN ('client_birthday', 'inactive_client', 'no_show')
		ORDER BY business_id, created_at`

	return r.queryWorkflows(ctx, query)
}

// Update replaces the whole workflow definition
func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	query := `
		UPDATE workflows
		SET name = $2, description = $3, is_active = $4, trigger = $5, actions = $6, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(
		ctx, query,
		workflow.ID, workflow.Name, workflow.Description,
		workflow.IsActive, workflow.Trigger, workflow.Actions,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("workflow %s: %w", workflow.ID, engine.ErrNotFound)
	}

	return nil
}

// SetActive flips a workflow's active flag
func (r *WorkflowRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE workflows SET is_active = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("workflow %s: %w", id, engine.ErrNotFound)
	}

	return nil
}

// Delete deletes a workflow
func (r *WorkflowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("workflow %s: %w", id, engine.ErrNotFound)
	}

	return nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...interface{}) ([]models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []models.Workflow
	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, *workflow)
	}

	return workflows, rows.Err()
}
