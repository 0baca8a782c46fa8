package commands

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/glowdesk/automations/internal/models"
)

var (
	triggerKind   string
	triggerClient string
	triggerVisits int
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Publish a test event to the automation engine",
	Long: `Publish a test event onto the event bus to exercise workflows
end to end.

Examples:
  automations trigger --kind appointment_completed --client <client-id>
  automations trigger --kind new_client --client <client-id>`,
	Run: func(cmd *cobra.Command, args []string) {
		kind := models.EventKind(triggerKind)
		if !kind.Valid() {
			fmt.Printf("Unknown event kind: %s\n", triggerKind)
			os.Exit(1)
		}

		clientID, err := uuid.Parse(triggerClient)
		if err != nil {
			fmt.Printf("Invalid client ID: %v\n", err)
			os.Exit(1)
		}

		client := newAPIClient()
		eventID, err := client.PublishEvent(&models.PublishEventRequest{
			Kind: kind,
			Payload: models.EventPayload{
				ClientID:    clientID,
				PriorVisits: triggerVisits,
			},
		})
		if err != nil {
			fmt.Printf("Failed to publish event: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Event accepted: %s\n", eventID)
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
	triggerCmd.Flags().StringVar(&triggerKind, "kind", "", "Event kind to publish (required)")
	triggerCmd.Flags().StringVar(&triggerClient, "client", "", "Client ID the event refers to (required)")
	triggerCmd.Flags().IntVar(&triggerVisits, "prior-visits", 0, "Prior visit count to stamp on the event")
	triggerCmd.MarkFlagRequired("kind")
	triggerCmd.MarkFlagRequired("client")
}
