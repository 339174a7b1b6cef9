package admin

import (
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/regassist/internal/service"
	"github.com/spf13/cobra"
)

func APIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "Generate bearer keys for the HTTP API",
	}

	cmd.AddCommand(APIKeyGenerateCmd())

	return cmd
}

func APIKeyGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new API key",
		Long: `Generate a new API key.

Add the printed config entry to REGASSIST_API_KEYS (comma separated) on the
server and hand the token to the client. The entry stores only the token's
SHA-256 hash.`,
		RunE: runAPIKeyGenerate,
	}

	return cmd
}

func runAPIKeyGenerate(cmd *cobra.Command, args []string) error {
	outputJSON, _ := cmd.Flags().GetBool("output")

	token, entry, err := service.GenerateAPIToken()
	if err != nil {
		return fmt.Errorf("failed to generate API key: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		data := map[string]interface{}{
			"token":        token,
			"config_entry": entry,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	fmt.Fprintf(out, "Token: %s\n", token)
	fmt.Fprintf(out, "Config entry: %s\n", entry)
	fmt.Fprintln(out, "\n⚠️  Save this token now. You won't be able to see it again!")
	return nil
}
