package admin

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloo-solutions/regassist/internal/jobs"
	"github.com/cloo-solutions/regassist/internal/storage"
	"github.com/spf13/cobra"
)

func CrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the regulations site into a chunk corpus",
		Long: `Fetch the rules index and every rule page it lists, segment each page
into section chunks and write them as a JSON corpus.

Pages that fail are skipped and listed at the end. An empty crawl leaves the
existing corpus untouched.`,
		RunE: runCrawl,
	}

	cmd.Flags().String("out", "", "Corpus file to write (default: REGASSIST_CORPUS_PATH)")

	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, shutdownTelemetry, err := setup()
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = cfg.CorpusPath
	}

	s, err := newScraper(cfg)
	if err != nil {
		return err
	}

	outputJSON, _ := cmd.Flags().GetBool("output")
	return crawlToCorpus(ctx, s, out, outputJSON, cmd.OutOrStdout())
}

type crawlSummary struct {
	Corpus string   `json:"corpus"`
	Rules  int      `json:"rules"`
	Chunks int      `json:"chunks"`
	Failed []string `json:"failed"`
}

func crawlToCorpus(ctx context.Context, crawler jobs.Crawler, out string, outputJSON bool, w io.Writer) error {
	res, err := crawler.Crawl(ctx)
	if err != nil {
		return fmt.Errorf("failed to crawl rules: %w", err)
	}
	if len(res.Chunks) == 0 {
		return jobs.ErrEmptyCrawl
	}

	if err := storage.WriteCorpus(out, res.Chunks); err != nil {
		return err
	}

	summary := crawlSummary{Corpus: out, Rules: res.Rules, Chunks: len(res.Chunks), Failed: res.Failed}
	if summary.Failed == nil {
		summary.Failed = []string{}
	}
	if outputJSON {
		return printJSON(w, summary)
	}

	fmt.Fprintf(w, "Crawled %d rules into %d chunks\n", summary.Rules, summary.Chunks)
	fmt.Fprintf(w, "Corpus written to %s\n", summary.Corpus)
	if len(summary.Failed) > 0 {
		fmt.Fprintf(w, "\n%d pages failed:\n", len(summary.Failed))
		for _, u := range summary.Failed {
			fmt.Fprintf(w, "  %s\n", u)
		}
	}
	return nil
}
