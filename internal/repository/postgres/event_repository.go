package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/models"
)

// EventRepository handles the event audit log
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// CreateEvent persists a received event
func (r *EventRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	query := `
		INSERT INTO events (id, business_id, kind, payload, occurred_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(
		ctx, query,
		event.ID, event.BusinessID, event.Kind, event.Payload,
		event.OccurredAt, event.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// List retrieves recent events for a business, newest first
func (r *EventRepository) List(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, business_id, kind, payload, occurred_at, received_at
		FROM events
		WHERE business_id = $1
		ORDER BY received_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, businessID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(
			&event.ID, &event.BusinessID, &event.Kind, &event.Payload,
			&event.OccurredAt, &event.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
