package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/internal/repository/postgres"
)

var (
	dbHost     = getEnv("DB_HOST", "localhost")
	dbPort     = getEnv("DB_PORT", "5432")
	dbUser     = getEnv("DB_USER", "postgres")
	dbPassword = getEnv("DB_PASSWORD", "postgres")
	dbName     = getEnv("DB_NAME", "automations")
	dbSSLMode  = getEnv("DB_SSL_MODE", "disable")
)

func main() {
	businessFlag := flag.String("business", "", "Business ID to seed workflows for (required)")
	flag.Parse()

	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[Seed] ")

	businessID, err := uuid.Parse(*businessFlag)
	if err != nil {
		log.Fatalf("A valid -business UUID is required: %v", err)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbHost, dbPort, dbUser, dbPassword, dbName, dbSSLMode)

	log.Println("Connecting to database...")
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("Failed to open database connection: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Database connection established")

	repo := postgres.NewWorkflowRepository(db)

	for _, workflow := range demoWorkflows(businessID) {
		if err := repo.Create(ctx, &workflow); err != nil {
			log.Fatalf("Failed to create workflow %q: %v", workflow.Name, err)
		}
		log.Printf("Created workflow %q (%s)", workflow.Name, workflow.ID)
	}

	log.Println("Seeding complete")
}

// demoWorkflows returns the starter automations every new business gets
func demoWorkflows(businessID uuid.UUID) []models.Workflow {
	description := func(s string) *string { return &s }

	return []models.Workflow{
		{
			BusinessID:  businessID,
			Name:        "Thank you after visit",
			Description: description("Sends a thank-you text two hours after a completed appointment"),
			IsActive:    true,
			Trigger: models.TriggerSpec{
				Kind:        models.TriggerAppointmentCompleted,
				Appointment: &models.AppointmentFilter{ServiceFilter: models.FilterAll, ClientFilter: models.FilterAll},
			},
			Actions: models.ActionList{
				{
					Kind:  models.ActionSendSMS,
					Delay: models.Delay{Value: 2, Unit: models.DelayHours},
					SMS: &models.SMSAction{
						Message: "Hi {{client.firstName}}, thanks for visiting {{business.name}} today! We hope you loved your {{appointment.service}}.",
					},
				},
			},
		},
		{
			BusinessID:  businessID,
			Name:        "Birthday treat",
			Description: description("Gives clients a discount a week before their birthday"),
			IsActive:    true,
			Trigger: models.TriggerSpec{
				Kind:     models.TriggerClientBirthday,
				Birthday: &models.BirthdayConfig{DaysBefore: 7},
			},
			Actions: models.ActionList{
				{
					Kind: models.ActionApplyDiscount,
					Discount: &models.DiscountAction{
						DiscountType:  "percent",
						DiscountValue: 15,
						ValidDays:     14,
					},
				},
				{
					Kind: models.ActionSendEmail,
					Email: &models.EmailAction{
						Subject: "A birthday treat from {{business.name}}",
						Body:    "Happy early birthday, {{client.firstName}}! Enjoy 15% off your next visit, valid for two weeks.",
					},
				},
			},
		},
		{
			BusinessID:  businessID,
			Name:        "Win back inactive clients",
			Description: description("Reaches out when a client has not visited for 60 days"),
			IsActive:    false,
			Trigger: models.TriggerSpec{
				Kind:       models.TriggerInactiveClient,
				Inactivity: &models.InactivityConfig{DaysSinceVisit: 60},
			},
			Actions: models.ActionList{
				{
					Kind: models.ActionSendSMS,
					SMS: &models.SMSAction{
						Message: "Hi {{client.firstName}}, we miss you at {{business.name}}! Book your next appointment this week.",
						Compose: &models.ComposeConfig{Enabled: true, Tone: "warm"},
					},
				},
				{
					Kind:  models.ActionCreateTask,
					Delay: models.Delay{Value: 3, Unit: models.DelayDays},
					Task: &models.TaskAction{
						Title:       "Follow up with {{client.firstName}} {{client.lastName}}",
						Description: "Inactive client outreach sent, call if no booking yet.",
						Assignee:    models.AssigneeOwner,
					},
				},
			},
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
