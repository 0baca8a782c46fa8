package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/pkg/logger"
)

type mockScanWorkflowStore struct {
	workflows []models.Workflow
}

func (m *mockScanWorkflowStore) ListActiveScanBased(ctx context.Context) ([]models.Workflow, error) {
	return m.workflows, nil
}

type mockScanDirectory struct {
	birthdayClients []models.Client
	inactiveClients []models.Client
	noShows         []models.Appointment
}

func (m *mockScanDirectory) ListClientsWithBirthdayOn(ctx context.Context, businessID uuid.UUID, day time.Time) ([]models.Client, error) {
	return m.birthdayClients, nil
}

func (m *mockScanDirectory) ListInactiveClients(ctx context.Context, businessID uuid.UUID, cutoff time.Time) ([]models.Client, error) {
	return m.inactiveClients, nil
}

func (m *mockScanDirectory) ListNoShowAppointments(ctx context.Context, businessID uuid.UUID, grace time.Duration, now time.Time) ([]models.Appointment, error) {
	return m.noShows, nil
}

// mapFireStore mirrors the database claim: first caller per key wins.
type mapFireStore struct {
	claims map[string]bool
}

func newMapFireStore() *mapFireStore {
	return &mapFireStore{claims: make(map[string]bool)}
}

func (m *mapFireStore) Claim(ctx context.Context, workflowID, entityID uuid.UUID, period string) (bool, error) {
	key := workflowID.String() + "|" + entityID.String() + "|" + period
	if m.claims[key] {
		return false, nil
	}
	m.claims[key] = true
	return true, nil
}

func (m *mapFireStore) Release(ctx context.Context, workflowID, entityID uuid.UUID, period string) error {
	delete(m.claims, workflowID.String()+"|"+entityID.String()+"|"+period)
	return nil
}

type denyingGuard struct{}

func (denyingGuard) TryAcquire(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (denyingGuard) Release(ctx context.Context, key string) error {
	return nil
}

// recordingGuard grants every acquire and remembers which keys were released.
type recordingGuard struct {
	released []string
}

func (g *recordingGuard) TryAcquire(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (g *recordingGuard) Release(ctx context.Context, key string) error {
	g.released = append(g.released, key)
	return nil
}

// failingFireStore errors on Claim to simulate a database outage.
type failingFireStore struct{}

func (failingFireStore) Claim(ctx context.Context, workflowID, entityID uuid.UUID, period string) (bool, error) {
	return false, context.DeadlineExceeded
}

func (failingFireStore) Release(ctx context.Context, workflowID, entityID uuid.UUID, period string) error {
	return nil
}

func scanWorkflow(kind models.TriggerKind, trigger models.TriggerSpec) models.Workflow {
	trigger.Kind = kind
	return models.Workflow{
		ID:         uuid.New(),
		BusinessID: uuid.New(),
		Name:       string(kind) + " workflow",
		IsActive:   true,
		Trigger:    trigger,
		Actions: models.ActionList{
			{Kind: models.ActionSendSMS, SMS: &models.SMSAction{Message: "hi"}},
		},
	}
}

func newTestScanner(workflows []models.Workflow, scanDir *mockScanDirectory, fires FireStore, guard ScanGuard, store *mockJobStore) *TriggerScanner {
	log := logger.NewForTesting()
	return NewTriggerScanner(
		&mockScanWorkflowStore{workflows: workflows},
		scanDir,
		fires,
		guard,
		NewContextBuilder(&mockDirectory{}),
		NewActionScheduler(store, nil, log),
		nil,
		log,
	)
}

func TestScanBirthdayFiresOncePerDay(t *testing.T) {
	workflow := scanWorkflow(models.TriggerClientBirthday, models.TriggerSpec{})
	client := models.Client{ID: uuid.New(), FirstName: "Jane"}

	store := &mockJobStore{}
	scanner := newTestScanner(
		[]models.Workflow{workflow},
		&mockScanDirectory{birthdayClients: []models.Client{client}},
		newMapFireStore(),
		nil,
		store,
	)

	now := time.Date(2026, 5, 20, 6, 0, 0, 0, time.UTC)

	// The same day gets scanned repeatedly; only the first pass fires.
	for i := 0; i < 3; i++ {
		if err := scanner.Scan(context.Background(), now.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}

	if len(store.created) != 1 {
		t.Errorf("queued %d jobs across repeated scans, want 1", len(store.created))
	}
}

func TestScanBirthdayFiresAgainNextYear(t *testing.T) {
	workflow := scanWorkflow(models.TriggerClientBirthday, models.TriggerSpec{})
	client := models.Client{ID: uuid.New(), FirstName: "Jane"}

	store := &mockJobStore{}
	scanner := newTestScanner(
		[]models.Workflow{workflow},
		&mockScanDirectory{birthdayClients: []models.Client{client}},
		newMapFireStore(),
		nil,
		store,
	)

	thisYear := time.Date(2026, 5, 20, 6, 0, 0, 0, time.UTC)
	nextYear := time.Date(2027, 5, 20, 6, 0, 0, 0, time.UTC)

	if err := scanner.Scan(context.Background(), thisYear); err != nil {
		t.Fatal(err)
	}
	if err := scanner.Scan(context.Background(), nextYear); err != nil {
		t.Fatal(err)
	}

	if len(store.created) != 2 {
		t.Errorf("queued %d jobs across two years, want 2", len(store.created))
	}
}

func TestScanInactiveSkipsClientsWithNoVisits(t *testing.T) {
	workflow := scanWorkflow(models.TriggerInactiveClient, models.TriggerSpec{})

	lastVisit := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	visited := models.Client{ID: uuid.New(), LastVisitAt: &lastVisit}
	neverVisited := models.Client{ID: uuid.New()}

	store := &mockJobStore{}
	scanner := newTestScanner(
		[]models.Workflow{workflow},
		&mockScanDirectory{inactiveClients: []models.Client{visited, neverVisited}},
		newMapFireStore(),
		nil,
		store,
	)

	if err := scanner.Scan(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}

	if len(store.created) != 1 {
		t.Fatalf("queued %d jobs, want 1 for the client with a visit history", len(store.created))
	}
}

func TestScanInactiveRearmsAfterNewVisit(t *testing.T) {
	workflow := scanWorkflow(models.TriggerInactiveClient, models.TriggerSpec{})

	firstVisit := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	client := models.Client{ID: uuid.New(), LastVisitAt: &firstVisit}

	directory := &mockScanDirectory{inactiveClients: []models.Client{client}}
	store := &mockJobStore{}
	scanner := newTestScanner([]models.Workflow{workflow}, directory, newMapFireStore(), nil, store)

	if err := scanner.Scan(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := scanner.Scan(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if len(store.created) != 1 {
		t.Fatalf("same inactivity stretch fired %d times, want 1", len(store.created))
	}

	// A new visit moves the last visit date, which is a fresh period.
	laterVisit := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	directory.inactiveClients[0].LastVisitAt = &laterVisit

	if err := scanner.Scan(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if len(store.created) != 2 {
		t.Errorf("queued %d jobs after a new inactivity stretch, want 2", len(store.created))
	}
}

func TestScanNoShowFiresPerAppointment(t *testing.T) {
	workflow := scanWorkflow(models.TriggerNoShow, models.TriggerSpec{})

	clientID := uuid.New()
	appointments := []models.Appointment{
		{ID: uuid.New(), ClientID: clientID, ServiceName: "Cut", ScheduledStart: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), ClientID: clientID, ServiceName: "Color", ScheduledStart: time.Date(2026, 8, 1, 15, 0, 0, 0, time.UTC)},
	}

	store := &mockJobStore{}
	scanner := newTestScanner(
		[]models.Workflow{workflow},
		&mockScanDirectory{noShows: appointments},
		newMapFireStore(),
		nil,
		store,
	)

	if err := scanner.Scan(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}

	// Same client, same day, two missed appointments: both fire because the
	// idempotency key is the appointment, not the client.
	if len(store.created) != 2 {
		t.Fatalf("queued %d jobs, want 2", len(store.created))
	}

	if err := scanner.Scan(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if len(store.created) != 2 {
		t.Errorf("rescan queued extra jobs, total %d, want 2", len(store.created))
	}
}

func TestScanRetriesFireAfterScheduleFailure(t *testing.T) {
	workflow := scanWorkflow(models.TriggerClientBirthday, models.TriggerSpec{})
	client := models.Client{ID: uuid.New(), FirstName: "Jane"}

	// First enqueue fails as if the queue was briefly down, later ones land.
	calls := 0
	store := &mockJobStore{
		createJobFunc: func(ctx context.Context, job *models.ScheduledJob) error {
			calls++
			if calls == 1 {
				return context.DeadlineExceeded
			}
			return nil
		},
	}

	fires := newMapFireStore()
	guard := &recordingGuard{}
	scanner := newTestScanner(
		[]models.Workflow{workflow},
		&mockScanDirectory{birthdayClients: []models.Client{client}},
		fires,
		guard,
		store,
	)

	now := time.Date(2026, 5, 20, 6, 0, 0, 0, time.UTC)

	// The failed fire must release its claim so a rescan of the same day
	// picks the client up again instead of losing the birthday for good.
	for i := 0; i < 3; i++ {
		if err := scanner.Scan(context.Background(), now.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}

	if len(store.created) != 1 {
		t.Fatalf("queued %d jobs, want exactly 1 after the retry", len(store.created))
	}
	if len(fires.claims) != 1 {
		t.Errorf("durable claims: %d, want 1 held by the successful fire", len(fires.claims))
	}
	if len(guard.released) != 1 {
		t.Errorf("guard releases: %d, want 1 from the failed fire", len(guard.released))
	}
}

func TestScanClaimErrorReleasesGuard(t *testing.T) {
	workflow := scanWorkflow(models.TriggerClientBirthday, models.TriggerSpec{})
	client := models.Client{ID: uuid.New()}

	store := &mockJobStore{}
	guard := &recordingGuard{}
	scanner := newTestScanner(
		[]models.Workflow{workflow},
		&mockScanDirectory{birthdayClients: []models.Client{client}},
		failingFireStore{},
		guard,
		store,
	)

	if err := scanner.Scan(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}

	if len(store.created) != 0 {
		t.Error("claim error must not queue jobs")
	}
	// A held guard would block retries until its TTL expired.
	if len(guard.released) != 1 {
		t.Errorf("guard releases: %d, want 1", len(guard.released))
	}
}

func TestScanGuardDeniedSkipsWithoutClaiming(t *testing.T) {
	workflow := scanWorkflow(models.TriggerClientBirthday, models.TriggerSpec{})
	client := models.Client{ID: uuid.New()}

	fires := newMapFireStore()
	store := &mockJobStore{}
	scanner := newTestScanner(
		[]models.Workflow{workflow},
		&mockScanDirectory{birthdayClients: []models.Client{client}},
		fires,
		denyingGuard{},
		store,
	)

	if err := scanner.Scan(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}

	if len(store.created) != 0 {
		t.Error("guard denial must skip the fire")
	}
	if len(fires.claims) != 0 {
		t.Error("guard denial must not consume the durable claim")
	}
}
