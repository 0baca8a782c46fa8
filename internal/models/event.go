package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a business event emitted by the surrounding application
type EventKind string

const (
	EventAppointmentBooked    EventKind = "appointment_booked"
	EventAppointmentCompleted EventKind = "appointment_completed"
	EventAppointmentCancelled EventKind = "appointment_cancelled"
	EventNewClient            EventKind = "new_client"
	EventReviewReceived       EventKind = "review_received"
	EventPaymentReceived      EventKind = "payment_received"
)

// Valid reports whether the kind is one of the known event kinds
func (k EventKind) Valid() bool {
	switch k {
	case EventAppointmentBooked, EventAppointmentCompleted, EventAppointmentCancelled,
		EventNewClient, EventReviewReceived, EventPaymentReceived:
		return true
	}
	return false
}

// EventPayload carries the entity references and facts producers stamp on
// an event. Producers know at emission time whether the client has visited
// before, so the matcher never has to look it up.
type EventPayload struct {
	ClientID        uuid.UUID  `json:"client_id"`
	AppointmentID   *uuid.UUID `json:"appointment_id,omitempty"`
	StaffID         *uuid.UUID `json:"staff_id,omitempty"`
	ServiceCategory string     `json:"service_category,omitempty"`
	PriorVisits     int        `json:"prior_visits,omitempty"`
	Amount          *float64   `json:"amount,omitempty"`
	Rating          *int       `json:"rating,omitempty"`
	ReviewText      string     `json:"review_text,omitempty"`
}

// Event is an immutable fact describing something that happened. Events are
// the only input to the event-driven trigger path.
type Event struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	BusinessID uuid.UUID    `json:"business_id" db:"business_id"`
	Kind       EventKind    `json:"kind" db:"kind"`
	Payload    EventPayload `json:"payload" db:"payload"`
	OccurredAt time.Time    `json:"occurred_at" db:"occurred_at"`
	ReceivedAt time.Time    `json:"received_at" db:"received_at"`
}

// PublishEventRequest represents the request producers POST to the events endpoint
type PublishEventRequest struct {
	Kind       EventKind    `json:"kind" validate:"required"`
	Payload    EventPayload `json:"payload" validate:"required"`
	OccurredAt *time.Time   `json:"occurred_at,omitempty"`
}

// JSONB scanning for EventPayload

func (p *EventPayload) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, p)
}

func (p EventPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}
