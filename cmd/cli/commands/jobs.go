package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glowdesk/automations/internal/models"
)

var jobStatus string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List scheduled action jobs",
	Long: `List scheduled action jobs of a business, optionally filtered by
status (pending, dispatched, failed, cancelled).

Examples:
  automations jobs
  automations jobs --status failed`,
	Run: func(cmd *cobra.Command, args []string) {
		client := newAPIClient()

		jobs, err := client.GetJobs(jobStatus)
		if err != nil {
			fmt.Printf("Failed to get jobs: %v\n", err)
			os.Exit(1)
		}

		if outputJSON {
			data, err := json.MarshalIndent(jobs, "", "  ")
			if err != nil {
				fmt.Printf("Error encoding JSON: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
			return
		}

		printJobList(jobs)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().StringVar(&jobStatus, "status", "", "Filter by job status")
}

func printJobList(jobs []models.ScheduledJob) {
	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return
	}

	fmt.Printf("\nFound %d job(s):\n\n", len(jobs))
	fmt.Printf("%-38s  %-18s  %-11s  %-20s  %s\n", "ID", "Action", "Status", "Due", "Attempts")

	for _, j := range jobs {
		fmt.Printf("%-38s  %-18s  %-11s  %-20s  %d\n",
			j.ID.String(),
			string(j.ActionKind),
			string(j.Status),
			j.DueAt.Format("2006-01-02 15:04:05"),
			j.Attempts,
		)
	}
}
