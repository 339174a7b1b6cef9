package admin

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cloo-solutions/regassist/internal/config"
	"github.com/cloo-solutions/regassist/internal/repository"
	"github.com/cloo-solutions/regassist/internal/service"
	"github.com/spf13/cobra"
)

func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show answer statistics from the answer log",
		Long:  "Summarize logged answers: totals, abstentions and failures. Requires REGASSIST_DATABASE_URL.",
		RunE:  runStats,
	}

	cmd.Flags().Duration("since", 0, "Only count answers newer than this (e.g. 24h); 0 counts everything")

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return fmt.Errorf("stats requires REGASSIST_DATABASE_URL")
	}

	pool, err := openDatabase(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer pool.Close()

	since, _ := cmd.Flags().GetDuration("since")
	var from time.Time
	if since > 0 {
		from = time.Now().Add(-since)
	}

	stats, err := repository.NewAnswerLogRepository(pool).Stats(ctx, from)
	if err != nil {
		return err
	}

	outputJSON, _ := cmd.Flags().GetBool("output")
	return printStats(cmd.OutOrStdout(), stats, since, outputJSON)
}

func printStats(w io.Writer, stats *service.AnswerStats, since time.Duration, outputJSON bool) error {
	if outputJSON {
		return printJSON(w, stats)
	}
	window := "all time"
	if since > 0 {
		window = "last " + since.String()
	}
	fmt.Fprintf(w, "Answers (%s)\n", window)
	fmt.Fprintf(w, "  Total:      %d\n", stats.Total)
	fmt.Fprintf(w, "  Abstained:  %d (%.1f%%)\n", stats.Abstained, stats.AbstentionRate*100)
	fmt.Fprintf(w, "  Failed:     %d\n", stats.Failed)
	return nil
}
