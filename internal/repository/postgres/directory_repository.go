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

// DirectoryRepository reads the client, appointment, staff and business
// tables owned by the core application. Strictly read-only from here.
type DirectoryRepository struct {
	db *sql.DB
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

const clientColumns = `id, business_id, first_name, last_name, email, phone, birthday, last_visit_at`

func scanClient(row interface{ Scan(...interface{}) error }) (*models.Client, error) {
	client := &models.Client{}
	err := row.Scan(
		&client.ID, &client.BusinessID, &client.FirstName, &client.LastName,
		&client.Email, &client.Phone, &client.Birthday, &client.LastVisitAt,
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GetClient retrieves a client by ID
func (r *DirectoryRepository) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	client, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return client, nil
}

// GetAppointment retrieves an appointment by ID
func (r *DirectoryRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	query := `
		SELECT id, business_id, client_id, staff_id, service_name, service_category, scheduled_start, checked_in_at
		FROM appointments
		WHERE id = $1`

	appointment := &models.Appointment{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&appointment.ID, &appointment.BusinessID, &appointment.ClientID, &appointment.StaffID,
		&appointment.ServiceName, &appointment.ServiceCategory,
		&appointment.ScheduledStart, &appointment.CheckedInAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("appointment %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return appointment, nil
}

// GetStaff retrieves a staff member by ID
func (r *DirectoryRepository) GetStaff(ctx context.Context, id uuid.UUID) (*models.Staff, error) {
	query := `SELECT id, business_id, name FROM staff WHERE id = $1`

	staff := &models.Staff{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&staff.ID, &staff.BusinessID, &staff.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("staff %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}

	return staff, nil
}

// GetBusinessName retrieves a business's display name
func (r *DirectoryRepository) GetBusinessName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT name FROM businesses WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("business %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get business: %w", err)
	}

	return name, nil
}

// ListClientsWithBirthdayOn returns clients whose birthday falls on the given
// calendar day, any year. Clients born on Feb 29 are matched on Feb 28 in
// years without a leap day, so they are not skipped three years out of four.
func (r *DirectoryRepository) ListClientsWithBirthdayOn(ctx context.Context, businessID uuid.UUID, day time.Time) ([]models.Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE business_id = $1
		  AND birthday IS NOT NULL
		  AND EXTRACT(MONTH FROM birthday) = $2
		  AND EXTRACT(DAY FROM birthday) = $3`

	if coversLeapBirthdays(day) {
		query += `
		UNION
		SELECT ` + clientColumns + `
		FROM clients
		WHERE business_id = $1
		  AND birthday IS NOT NULL
		  AND EXTRACT(MONTH FROM birthday) = 2
		  AND EXTRACT(DAY FROM birthday) = 29`
	}

	return r.queryClients(ctx, query, businessID, int(day.Month()), day.Day())
}

// coversLeapBirthdays reports whether the day stands in for Feb 29: it is
// Feb 28 of a year whose calendar has no leap day.
func coversLeapBirthdays(day time.Time) bool {
	return day.Month() == time.February && day.Day() == 28 && !isLeapYear(day.Year())
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// ListInactiveClients returns clients whose last visit is at or before the
// cutoff. Clients who never visited are excluded.
func (r *DirectoryRepository) ListInactiveClients(ctx context.Context, businessID uuid.UUID, cutoff time.Time) ([]models.Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE business_id = $1
		  AND last_visit_at IS NOT NULL
		  AND last_visit_at <= $2`

	return r.queryClients(ctx, query, businessID, cutoff)
}

// ListNoShowAppointments returns appointments whose scheduled start plus the
// grace period has passed with no check-in recorded.
func (r *DirectoryRepository) ListNoShowAppointments(ctx context.Context, businessID uuid.UUID, grace time.Duration, now time.Time) ([]models.Appointment, error) {
	query := `
		SELECT id, business_id, client_id, staff_id, service_name, service_category, scheduled_start, checked_in_at
		FROM appointments
		WHERE business_id = $1
		  AND checked_in_at IS NULL
		  AND status NOT IN ('cancelled', 'completed')
		  AND scheduled_start <= $2`

	rows, err := r.db.QueryContext(ctx, query, businessID, now.Add(-grace))
	if err != nil {
		return nil, fmt.Errorf("failed to list no-show appointments: %w", err)
	}
	defer rows.Close()

	var appointments []models.Appointment
	for rows.Next() {
		var appointment models.Appointment
		if err := rows.Scan(
			&appointment.ID, &appointment.BusinessID, &appointment.ClientID, &appointment.StaffID,
			&appointment.ServiceName, &appointment.ServiceCategory,
			&appointment.ScheduledStart, &appointment.CheckedInAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, appointment)
	}

	return appointments, rows.Err()
}

func (r *DirectoryRepository) queryClients(ctx context.Context, query string, args ...interface{}) ([]models.Client, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, *client)
	}

	return clients, rows.Err()
}
