package admin

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cloo-solutions/regassist/internal/config"
	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/pagination"
	"github.com/cloo-solutions/regassist/internal/repository"
	"github.com/cloo-solutions/regassist/internal/service"
	"github.com/spf13/cobra"
)

func LogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List answered questions from the answer log",
		Long: `List logged answers, newest first. Pass the printed cursor to --cursor to
fetch the next page. Requires REGASSIST_DATABASE_URL.`,
		RunE: runLogs,
	}

	cmd.Flags().IntP("limit", "n", pagination.DefaultLimit, "Entries per page")
	cmd.Flags().String("cursor", "", "Cursor from a previous page")

	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	token, _ := cmd.Flags().GetString("cursor")
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid --cursor", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return fmt.Errorf("logs requires REGASSIST_DATABASE_URL")
	}

	pool, err := openDatabase(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer pool.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	page, err := repository.NewAnswerLogRepository(pool).List(ctx, cursor, limit)
	if err != nil {
		return err
	}

	outputJSON, _ := cmd.Flags().GetBool("output")
	return printLogs(cmd.OutOrStdout(), page, outputJSON)
}

func printLogs(w io.Writer, page *pagination.Page[service.AnswerLog], outputJSON bool) error {
	if outputJSON {
		return printJSON(w, page)
	}
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No answers logged")
		return nil
	}

	for _, l := range page.Items {
		status := "answered"
		switch {
		case l.ErrorCode != "":
			status = "failed: " + l.ErrorCode
		case l.Abstained:
			status = "abstained"
		}
		fmt.Fprintf(w, "%s  %-20s %5dms  %s\n", l.CreatedAt.UTC().Format(time.RFC3339), status, l.DurationMs, domain.Preview(l.Query, 80))
	}
	if page.HasMore {
		fmt.Fprintf(w, "\nNext page: --cursor %s\n", page.Cursor)
	}
	return nil
}
