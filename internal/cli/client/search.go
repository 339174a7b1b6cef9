package client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/spf13/cobra"
)

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the regulations",
		Long:  "Retrieves the regulation sections most similar to the query without generating an answer.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := Resolve(cmd)
			if err != nil {
				return err
			}
			return runSearch(commandContext(cmd), NewAPIClient(r), strings.Join(args, " "), limit, r.JSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (server default when 0)")

	return cmd
}

func runSearch(ctx context.Context, api *APIClient, query string, limit int, outputJSON bool, w io.Writer) error {
	searchResp, err := api.Search(ctx, query, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if outputJSON {
		return writeJSON(w, searchResp)
	}

	if len(searchResp.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "Found %d results:\n\n", len(searchResp.Results))
	for i, result := range searchResp.Results {
		fmt.Fprintf(w, "%d. %s — %s (%.3f)\n", result.Rank, result.RuleTitle, result.SectionTitle, result.Score)
		if result.ParentSection != "" && result.ParentSection != result.SectionTitle {
			fmt.Fprintf(w, "   %s\n", result.ParentSection)
		}
		fmt.Fprintf(w, "   %s\n", domain.Preview(strings.ReplaceAll(result.Content, "\n", " "), 100))
		if result.RuleURL != "" {
			fmt.Fprintf(w, "   %s\n", result.RuleURL)
		}
		if i < len(searchResp.Results)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}

	return nil
}
