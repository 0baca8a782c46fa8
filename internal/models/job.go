package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus enumerates scheduled job lifecycle states
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusDispatched JobStatus = "dispatched"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state
func (s JobStatus) Terminal() bool {
	return s == JobStatusDispatched || s == JobStatusFailed || s == JobStatusCancelled
}

// ScheduledJob is the runtime unit produced by the action scheduler and
// consumed by the dispatcher. Context is snapshotted at match time; later
// mutations to source entities never change a queued job.
type ScheduledJob struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	BusinessID   uuid.UUID       `json:"business_id" db:"business_id"`
	WorkflowID   uuid.UUID       `json:"workflow_id" db:"workflow_id"`
	ActionIndex  int             `json:"action_index" db:"action_index"`
	ActionKind   ActionKind      `json:"action_kind" db:"action_kind"`
	Action       ActionSpec      `json:"action" db:"action"`
	Context      TemplateContext `json:"context" db:"context"`
	DueAt        time.Time       `json:"due_at" db:"due_at"`
	Status       JobStatus       `json:"status" db:"status"`
	Attempts     int             `json:"attempts" db:"attempts"`
	LastError    *string         `json:"last_error,omitempty" db:"last_error"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
	DispatchedAt *time.Time      `json:"dispatched_at,omitempty" db:"dispatched_at"`
}

// TriggerFire is the durable idempotency record for scan-based triggers.
// Key = workflow + entity + period; a row existing means that transition
// already fired.
type TriggerFire struct {
	ID         uuid.UUID `json:"id" db:"id"`
	WorkflowID uuid.UUID `json:"workflow_id" db:"workflow_id"`
	EntityID   uuid.UUID `json:"entity_id" db:"entity_id"`
	Period     string    `json:"period" db:"period"`
	FiredAt    time.Time `json:"fired_at" db:"fired_at"`
}

// JSONB scanning for ActionSpec

func (a *ActionSpec) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, a)
}

func (a ActionSpec) Value() (driver.Value, error) {
	return json.Marshal(a)
}
