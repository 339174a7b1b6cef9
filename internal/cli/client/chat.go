package client

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/regassist/internal/tui"
)

// ChatCmd creates the interactive chat command.
func ChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat in the terminal",
		Long:  "Opens a terminal chat that sends each question to the server and shows the answer with its sources.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			title := "چت‌بات مقررات آموزشی"
			if status, err := api.Ready(commandContext(cmd)); err == nil {
				title = fmt.Sprintf("%s  (%d sections, index %s)", title, status.Rows, status.IndexVersion)
			}

			m := tui.New(api, title, 0)
			if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("chat failed: %w", err)
			}
			return nil
		},
	}

	return cmd
}
