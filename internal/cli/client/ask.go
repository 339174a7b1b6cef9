package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/spf13/cobra"
)

// SourcesHeading introduces the source list printed under an answer.
const SourcesHeading = "منابع:"

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the regulations",
		Long:  "Sends the question to the server and prints the grounded answer followed by its sources.",
		Example: `  regassist ask "شرایط حذف اضطراری چیست؟"
  regassist ask --output "حداقل معدل برای مشروط نشدن"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := Resolve(cmd)
			if err != nil {
				return err
			}
			return runAsk(commandContext(cmd), NewAPIClient(r), strings.Join(args, " "), r.JSON, cmd.OutOrStdout())
		},
	}

	return cmd
}

func runAsk(ctx context.Context, api answerer, query string, outputJSON bool, w io.Writer) error {
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(w, domain.ErrEmptyQuery.Message)
		return nil
	}

	result, err := api.Answer(ctx, query)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if outputJSON {
		return writeJSON(w, result)
	}

	FormatAnswer(w, result)
	return nil
}

// writeJSON prints v indented, leaving Persian text unescaped.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatAnswer writes the answer and one line per source.
func FormatAnswer(w io.Writer, result *AnswerResult) {
	fmt.Fprintln(w, result.Answer)
	if len(result.Sources) == 0 {
		return
	}

	fmt.Fprintf(w, "\n---\n%s\n", SourcesHeading)
	for _, s := range result.Sources {
		fmt.Fprintln(w, FormatSource(s))
	}
}

// FormatSource renders a source as "- title — section (امتیاز: 0.000)".
func FormatSource(s Source) string {
	return fmt.Sprintf("- %s — %s (امتیاز: %.3f)", s.RuleTitle, s.SectionTitle, s.Score)
}
