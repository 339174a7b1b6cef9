package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/logger"
	"github.com/cloo-solutions/regassist/internal/scraper"
	"github.com/cloo-solutions/regassist/internal/storage"
	"github.com/cloo-solutions/regassist/internal/telemetry"
)

const (
	// MaxRetries is the number of consecutive failed rebuilds before the
	// failure is reported to error tracking.
	MaxRetries = 3
)

// ErrEmptyCrawl is returned when a crawl yields no chunks; the current index is kept.
var ErrEmptyCrawl = errors.New("crawl produced no chunks")

// Crawler produces a fresh chunk corpus.
type Crawler interface {
	Crawl(ctx context.Context) (*scraper.Result, error)
}

// IndexRebuilder builds and publishes an index from chunks.
type IndexRebuilder interface {
	Rebuild(ctx context.Context, chunks []domain.Chunk) (*domain.IndexManifest, error)
}

// RebuildWorker re-crawls the regulations, publishes a new index and then
// rewrites the corpus file on every run. The corpus is only replaced once the
// new build is current, so it always matches the index rows being served.
type RebuildWorker struct {
	crawler    Crawler
	indexing   IndexRebuilder
	corpusPath string
	failures   int
	log        *slog.Logger
}

// NewRebuildWorker creates a RebuildWorker. An empty corpusPath skips
// writing the corpus file.
func NewRebuildWorker(crawler Crawler, indexing IndexRebuilder, corpusPath string) *RebuildWorker {
	return &RebuildWorker{
		crawler:    crawler,
		indexing:   indexing,
		corpusPath: corpusPath,
		log:        logger.Default(),
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *RebuildWorker) ProcessJobs(ctx context.Context) error {
	err := w.rebuild(ctx)
	if err == nil {
		w.failures = 0
		return nil
	}

	w.failures++
	if w.failures >= MaxRetries {
		w.log.Error("rebuild keeps failing", "attempts", w.failures, "error", err)
		telemetry.CaptureError(ctx, fmt.Errorf("index rebuild failed %d times: %w", w.failures, err))
		w.failures = 0
	}
	return err
}

func (w *RebuildWorker) rebuild(ctx context.Context) error {
	res, err := w.crawler.Crawl(ctx)
	if err != nil {
		return fmt.Errorf("failed to crawl rules: %w", err)
	}
	if len(res.Chunks) == 0 {
		return ErrEmptyCrawl
	}
	if len(res.Failed) > 0 {
		w.log.Warn("some rules were skipped", "failed", len(res.Failed), "rules", res.Rules)
	}

	manifest, err := w.indexing.Rebuild(ctx, res.Chunks)
	if manifest == nil {
		if err == nil {
			err = errors.New("no manifest returned")
		}
		return fmt.Errorf("failed to rebuild index: %w", err)
	}

	if w.corpusPath != "" {
		if werr := storage.WriteCorpus(w.corpusPath, res.Chunks); werr != nil {
			return fmt.Errorf("failed to write corpus: %w", werr)
		}
	}
	if err != nil {
		return fmt.Errorf("index %s published but not mirrored: %w", manifest.Version, err)
	}

	w.log.Info("index rebuilt", "version", manifest.Version, "rows", manifest.Rows)
	return nil
}
