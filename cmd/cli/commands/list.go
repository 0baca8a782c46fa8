package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/glowdesk/automations/internal/cli"
	"github.com/glowdesk/automations/internal/models"
)

var (
	activeOnly   bool
	inactiveOnly bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all workflows of a business",
	Long: `List all automation workflows of a business.

Examples:
  automations list --business-id <id>
  automations list --active-only
  automations list --json`,
	Run: func(cmd *cobra.Command, args []string) {
		client := newAPIClient()

		if err := client.HealthCheck(); err != nil {
			fmt.Printf("API health check failed: %v\n", err)
			os.Exit(1)
		}

		workflows, err := client.GetWorkflows()
		if err != nil {
			fmt.Printf("Failed to get workflows: %v\n", err)
			os.Exit(1)
		}

		if activeOnly {
			filtered := workflows[:0]
			for _, w := range workflows {
				if w.IsActive {
					filtered = append(filtered, w)
				}
			}
			workflows = filtered
		} else if inactiveOnly {
			filtered := workflows[:0]
			for _, w := range workflows {
				if !w.IsActive {
					filtered = append(filtered, w)
				}
			}
			workflows = filtered
		}

		if outputJSON {
			data, err := json.MarshalIndent(workflows, "", "  ")
			if err != nil {
				fmt.Printf("Error encoding JSON: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
			return
		}

		printWorkflowList(workflows)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&activeOnly, "active-only", false, "Show only active workflows")
	listCmd.Flags().BoolVar(&inactiveOnly, "inactive-only", false, "Show only inactive workflows")
}

func newAPIClient() *cli.Client {
	return cli.NewClient(
		viper.GetString("api.url"),
		viper.GetString("api.token"),
		viper.GetString("api.business_id"),
	)
}

func printWorkflowList(workflows []models.Workflow) {
	if len(workflows) == 0 {
		fmt.Println("No workflows found")
		return
	}

	fmt.Printf("\nFound %d workflow(s):\n\n", len(workflows))
	fmt.Printf("%-38s  %-28s  %-22s  %-8s\n", "ID", "Name", "Trigger", "Status")

	for _, w := range workflows {
		status := "active"
		if !w.IsActive {
			status = "draft"
		}

		fmt.Printf("%-38s  %-28s  %-22s  %-8s\n",
			w.ID.String(),
			truncate(w.Name, 28),
			string(w.Trigger.Kind),
			status,
		)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
