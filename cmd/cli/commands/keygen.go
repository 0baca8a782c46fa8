package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glowdesk/automations/pkg/auth"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a producer API key",
	Long: `Generate a new producer API key and its bcrypt hash.

The plaintext key is shown once; give it to the producer service. Add the
hash to the API server's API_KEY_HASHES environment variable (comma
separated). Keys authenticate via the X-API-Key header and carry event
scopes only.

Examples:
  automations keygen`,
	Run: func(cmd *cobra.Command, args []string) {
		key, hash, err := auth.GenerateAPIKey()
		if err != nil {
			fmt.Printf("Failed to generate key: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("API key (share with the producer, shown once):")
		fmt.Printf("  %s\n\n", key)
		fmt.Println("Hash (append to API_KEY_HASHES on the server):")
		fmt.Printf("  %s\n", hash)
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
