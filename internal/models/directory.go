package models

import (
	"time"

	"github.com/google/uuid"
)

// Client is the read-side view of a CRM client, owned by the core app.
// The engine only reads these rows: for template snapshots and for the
// birthday/inactivity scans.
type Client struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	BusinessID  uuid.UUID  `json:"business_id" db:"business_id"`
	FirstName   string     `json:"first_name" db:"first_name"`
	LastName    string     `json:"last_name" db:"last_name"`
	Email       string     `json:"email" db:"email"`
	Phone       string     `json:"phone" db:"phone"`
	Birthday    *time.Time `json:"birthday,omitempty" db:"birthday"`
	LastVisitAt *time.Time `json:"last_visit_at,omitempty" db:"last_visit_at"`
}

// Appointment is the read-side view of an appointment, owned by the core app
type Appointment struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	BusinessID      uuid.UUID  `json:"business_id" db:"business_id"`
	ClientID        uuid.UUID  `json:"client_id" db:"client_id"`
	StaffID         *uuid.UUID `json:"staff_id,omitempty" db:"staff_id"`
	ServiceName     string     `json:"service_name" db:"service_name"`
	ServiceCategory string     `json:"service_category" db:"service_category"`
	ScheduledStart  time.Time  `json:"scheduled_start" db:"scheduled_start"`
	CheckedInAt     *time.Time `json:"checked_in_at,omitempty" db:"checked_in_at"`
}

// Staff is the read-side view of a staff member, owned by the core app
type Staff struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BusinessID uuid.UUID `json:"business_id" db:"business_id"`
	Name       string    `json:"name" db:"name"`
}
