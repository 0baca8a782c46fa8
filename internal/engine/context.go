package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/models"
)

// Directory is the read-side lookup over entities owned by the core app,
// used to snapshot template contexts at match time.
type Directory interface {
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	GetStaff(ctx context.Context, id uuid.UUID) (*models.Staff, error)
	GetBusinessName(ctx context.Context, businessID uuid.UUID) (string, error)
}

// ContextBuilder resolves entity references into template context snapshots
type ContextBuilder struct {
	directory Directory
}

// NewContextBuilder creates a new context builder
func NewContextBuilder(directory Directory) *ContextBuilder {
	return &ContextBuilder{directory: directory}
}

// FromEvent snapshots the entities referenced by an event payload. The
// snapshot is taken once, here; queued jobs carry it unchanged no matter
// what happens to the source rows afterwards.
func (b *ContextBuilder) FromEvent(ctx context.Context, event *models.Event) (models.TemplateContext, error) {
	return b.build(ctx, event.BusinessID, event.Payload.ClientID, event.Payload.AppointmentID)
}

// FromEntities snapshots a (client, optional appointment) pair found by the
// periodic scanner.
func (b *ContextBuilder) FromEntities(ctx context.Context, businessID, clientID uuid.UUID, appointmentID *uuid.UUID) (models.TemplateContext, error) {
	return b.build(ctx, businessID, clientID, appointmentID)
}

func (b *ContextBuilder) build(ctx context.Context, businessID, clientID uuid.UUID, appointmentID *uuid.UUID) (models.TemplateContext, error) {
	var tctx models.TemplateContext

	client, err := b.directory.GetClient(ctx, clientID)
	if err != nil {
		return tctx, fmt.Errorf("failed to load client %s: %w", clientID, err)
	}

	tctx.ClientID = client.ID
	tctx.Client = models.ClientContext{
		FirstName: client.FirstName,
		LastName:  client.LastName,
		Email:     client.Email,
		Phone:     client.Phone,
	}

	businessName, err := b.directory.GetBusinessName(ctx, businessID)
	if err != nil {
		return tctx, fmt.Errorf("failed to load business %s: %w", businessID, err)
	}
	tctx.Business = models.BusinessContext{Name: businessName}

	if appointmentID != nil {
		appointment, err := b.directory.GetAppointment(ctx, *appointmentID)
		if err != nil {
			return tctx, fmt.Errorf("failed to load appointment %s: %w", *appointmentID, err)
		}

		tctx.Appointment = &models.AppointmentContext{
			Date:    appointment.ScheduledStart.Format("Monday, January 2"),
			Time:    appointment.ScheduledStart.Format("3:04 PM"),
			Service: appointment.ServiceName,
		}

		if appointment.StaffID != nil {
			staff, err := b.directory.GetStaff(ctx, *appointment.StaffID)
			if err == nil {
				tctx.StaffID = appointment.StaffID
				tctx.Staff = &models.StaffContext{Name: staff.Name}
			}
		}
	}

	return tctx, nil
}
