package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glowdesk/automations/internal/models"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow-file>",
	Short: "Validate a workflow definition file",
	Long: `Validate a workflow definition JSON file without deploying it.
Checks the trigger kind, action kinds and delays against the rules an
active workflow must satisfy.

Examples:
  automations validate workflow.json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Printf("Failed to read file: %v\n", err)
			os.Exit(1)
		}

		var req models.CreateWorkflowRequest
		if err := json.Unmarshal(data, &req); err != nil {
			fmt.Printf("Invalid JSON: %v\n", err)
			os.Exit(1)
		}

		workflow := models.Workflow{
			Name:    req.Name,
			Trigger: req.Trigger,
			Actions: req.Actions,
		}

		if err := workflow.ValidateForActivation(); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Workflow %q is valid: trigger %s, %d action(s)\n",
			req.Name, req.Trigger.Kind, len(req.Actions))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
