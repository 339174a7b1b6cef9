package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/regassist/internal/cli"
	"github.com/cloo-solutions/regassist/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "regassist",
		Short: "Regassist CLI - ask questions about university regulations",
		Long: `Regassist CLI answers questions about the university regulations using a
running regassistd server.

Settings are resolved from flags, then the environment, then the settings
file managed by "regassist config" and "regassist auth".

Environment variables:
  REGASSIST_API_KEY   API key for authentication (if the server requires one)
  REGASSIST_API_URL   API base URL (default: http://localhost:8080)
  REGASSIST_TIMEOUT   Request timeout (default: 3m)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON (default from the output setting)")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Request timeout (default 3m)")
	cli.BindEnv(rootCmd.PersistentFlags(), "api-key", "REGASSIST_API_KEY")
	cli.BindEnv(rootCmd.PersistentFlags(), "api-url", "REGASSIST_API_URL")
	cli.BindEnv(rootCmd.PersistentFlags(), "timeout", "REGASSIST_TIMEOUT")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.EvalCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.AuthCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	if handled, err := cli.HandleHelpJSON(rootCmd, os.Args[1:], os.Stdout); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
