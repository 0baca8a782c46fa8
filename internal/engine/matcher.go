package engine

import (
	"fmt"

	"github.com/glowdesk/automations/internal/models"
)

// MatchTrigger decides whether an event satisfies a workflow's trigger.
// It is a pure predicate: everything it needs is on the spec and the event
// payload. Scan-based trigger kinds (birthday, inactivity, no-show) never
// match on the event path; the periodic scanner owns those.
func MatchTrigger(spec models.TriggerSpec, event *models.Event) (bool, error) {
	if !spec.Kind.Valid() {
		return false, fmt.Errorf("unrecognized trigger kind: %q", spec.Kind)
	}

	if spec.Kind.ScanBased() {
		return false, nil
	}

	switch spec.Kind {
	case models.TriggerAppointmentBooked:
		return matchAppointment(spec.Appointment, event, models.EventAppointmentBooked), nil

	case models.TriggerAppointmentCompleted:
		return matchAppointment(spec.Appointment, event, models.EventAppointmentCompleted), nil

	case models.TriggerAppointmentCancelled:
		return matchAppointment(spec.Appointment, event, models.EventAppointmentCancelled), nil

	case models.TriggerNewClient:
		return event.Kind == models.EventNewClient, nil

	case models.TriggerReviewReceived:
		return matchReview(spec.Review, event), nil

	case models.TriggerPaymentReceived:
		return matchPayment(spec, event), nil
	}

	return false, nil
}

func matchAppointment(filter *models.AppointmentFilter, event *models.Event, want models.EventKind) bool {
	if event.Kind != want {
		return false
	}

	if filter == nil {
		return true
	}

	if filter.ServiceFilter != "" && filter.ServiceFilter != models.FilterAll {
		if event.Payload.ServiceCategory != filter.ServiceFilter {
			return false
		}
	}

	switch filter.ClientFilter {
	case models.ClientFilterNew:
		if event.Payload.PriorVisits > 0 {
			return false
		}
	case models.ClientFilterRet:
		if event.Payload.PriorVisits == 0 {
			return false
		}
	}

	return true
}

func matchReview(filter *models.ReviewFilter, event *models.Event) bool {
	if event.Kind != models.EventReviewReceived {
		return false
	}

	if filter == nil || filter.RatingFilter == "" || filter.RatingFilter == models.FilterAll {
		return true
	}

	if event.Payload.Rating == nil {
		return false
	}
	rating := *event.Payload.Rating

	switch filter.RatingFilter {
	case models.RatingFilterPositive:
		return rating >= 4
	case models.RatingFilterNegative:
		return rating >= 1 && rating <= 3
	}

	return false
}

func matchPayment(spec models.TriggerSpec, event *models.Event) bool {
	if event.Kind != models.EventPaymentReceived {
		return false
	}

	if event.Payload.Amount == nil {
		return spec.MinAmount() <= 0
	}

	return *event.Payload.Amount >= spec.MinAmount()
}
