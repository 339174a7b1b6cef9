package admin

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/regassist/internal/config"
	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/jobs"
	"github.com/cloo-solutions/regassist/internal/logger"
	"github.com/cloo-solutions/regassist/internal/repository"
	"github.com/cloo-solutions/regassist/internal/storage"
	"github.com/spf13/cobra"
)

func BuildIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Embed the corpus and publish a new index",
		Long: `Embed every chunk of the corpus and publish the result as the current index.

The build is written to REGASSIST_INDEX_DIR first, then mirrored to S3 and
Postgres when they are configured. Old builds beyond
REGASSIST_INDEX_KEEP_VERSIONS are pruned.

With --watch the command crawls the regulations site, rewrites the corpus and
rebuilds on every interval until interrupted.`,
		RunE: runBuildIndex,
	}

	cmd.Flags().String("corpus", "", "Corpus file to read (default: REGASSIST_CORPUS_PATH)")
	cmd.Flags().Bool("watch", false, "Re-crawl and rebuild periodically")
	cmd.Flags().Duration("interval", 0, "Rebuild interval for --watch (default: REGASSIST_REBUILD_INTERVAL)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")

	return cmd
}

func runBuildIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, shutdownTelemetry, err := setup()
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	corpus, _ := cmd.Flags().GetString("corpus")
	if corpus == "" {
		corpus = cfg.CorpusPath
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	pool, err := openDatabase(ctx, cfg, noMigrate)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	s3, err := openS3(ctx, cfg)
	if err != nil {
		return err
	}

	indexing, err := newIndexingService(cfg, storage.NewFileStore(cfg.IndexDir), s3, pool)
	if err != nil {
		return err
	}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = cfg.RebuildInterval
		}
		s, err := newScraper(cfg)
		if err != nil {
			return err
		}
		return watchRebuild(ctx, jobs.NewRebuildWorker(s, indexing, corpus), interval)
	}

	chunks, err := storage.ReadCorpus(corpus)
	if err != nil {
		return err
	}
	logger.Info("corpus loaded", "path", corpus, "chunks", len(chunks))

	manifest, err := indexing.Rebuild(ctx, chunks)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
		return printJSON(out, manifest)
	}
	fmt.Fprintln(out, "Index published")
	printManifest(out, manifest)
	return nil
}

// watchRebuild runs the rebuild worker until ctx is cancelled.
func watchRebuild(ctx context.Context, proc jobs.JobProcessor, interval time.Duration) error {
	worker := jobs.NewWorker(proc, interval, jobs.WithRunOnStart())
	go worker.Start(ctx)

	<-ctx.Done()
	<-worker.Done()
	return nil
}

func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect published indexes",
	}

	cmd.AddCommand(indexVerifyCmd())
	cmd.AddCommand(indexListCmd())

	return cmd
}

func indexVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that an index build is complete and aligned",
		Long: `Load an index build and check its mapping and vectors against the
manifest: row count, dimensions and the alignment checksum over the ordered
chunk IDs. Exits non-zero when the build is unusable.`,
		RunE: runIndexVerify,
	}

	cmd.Flags().String("version", "", "Build version to verify (default: current)")

	return cmd
}

func runIndexVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	version, _ := cmd.Flags().GetString("version")
	outputJSON, _ := cmd.Flags().GetBool("output")

	if cfg.IndexBackend == config.BackendPostgres {
		if version != "" {
			return fmt.Errorf("--version is only supported for the %s backend", config.BackendFile)
		}
		pool, err := openDatabase(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer pool.Close()

		idx, err := repository.NewChunkVectorRepository(pool).OpenCurrent(ctx)
		if err != nil {
			return err
		}
		return reportVerified(cmd.OutOrStdout(), &idx.Manifest, outputJSON)
	}

	return verifyFileIndex(ctx, storage.NewFileStore(cfg.IndexDir), version, outputJSON, cmd.OutOrStdout())
}

func verifyFileIndex(ctx context.Context, store *storage.FileStore, version string, outputJSON bool, w io.Writer) error {
	if version == "" {
		current, err := store.Current()
		if err != nil {
			return domain.ErrIndexUnavailable.WithCause(err)
		}
		version = current
	}

	art, err := store.LoadVersion(ctx, version)
	if err != nil {
		return fmt.Errorf("index %s failed verification: %w", version, err)
	}
	return reportVerified(w, &art.Manifest, outputJSON)
}

func reportVerified(w io.Writer, m *domain.IndexManifest, outputJSON bool) error {
	if outputJSON {
		return printJSON(w, map[string]any{"ok": true, "manifest": m})
	}
	fmt.Fprintln(w, "Index OK")
	printManifest(w, m)
	return nil
}

func indexListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the index builds kept in the index directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return listFileIndex(storage.NewFileStore(cfg.IndexDir), outputJSON, cmd.OutOrStdout())
		},
	}
}

type indexVersion struct {
	Version string `json:"version"`
	Current bool   `json:"current"`
}

func listFileIndex(store *storage.FileStore, outputJSON bool, w io.Writer) error {
	versions, err := store.Versions()
	if err != nil {
		return fmt.Errorf("failed to list index builds: %w", err)
	}
	current, _ := store.Current()

	items := make([]indexVersion, 0, len(versions))
	for _, v := range versions {
		items = append(items, indexVersion{Version: v, Current: v == current})
	}

	if outputJSON {
		return printJSON(w, items)
	}
	if len(items) == 0 {
		fmt.Fprintf(w, "No index builds in %s\n", store.Root())
		return nil
	}
	for _, it := range items {
		marker := " "
		if it.Current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\n", marker, it.Version)
	}
	return nil
}
