package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloo-solutions/regassist/internal/config"
	"github.com/cloo-solutions/regassist/internal/database"
	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/indexer"
	"github.com/cloo-solutions/regassist/internal/llm"
	"github.com/cloo-solutions/regassist/internal/logger"
	"github.com/cloo-solutions/regassist/internal/repository"
	"github.com/cloo-solutions/regassist/internal/retriever"
	"github.com/cloo-solutions/regassist/internal/scraper"
	"github.com/cloo-solutions/regassist/internal/segmenter"
	"github.com/cloo-solutions/regassist/internal/service"
	"github.com/cloo-solutions/regassist/internal/storage"
	"github.com/cloo-solutions/regassist/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
)

// setup loads configuration and installs the process logger and tracing.
// The returned func flushes telemetry.
func setup() (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Setup(cfg.Environment, cfg.Debug)

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", "error", err)
		shutdown = func() {}
	}

	return cfg, shutdown, nil
}

// openDatabase connects and, unless skipMigrate is set, applies migrations.
// It returns a nil pool when no database is configured.
func openDatabase(ctx context.Context, cfg *config.Config, skipMigrate bool) (*pgxpool.Pool, error) {
	if !cfg.HasDatabase() {
		return nil, nil
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("connected to database")

	if !skipMigrate {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return pool, nil
}

// openS3 returns the artifact mirror, or nil when S3 is not configured.
func openS3(ctx context.Context, cfg *config.Config) (*storage.S3ArtifactStore, error) {
	if !cfg.HasS3() {
		return nil, nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    cfg.S3UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	logger.Info("S3 bucket ready", "bucket", cfg.S3Bucket, "prefix", cfg.S3Prefix)

	return storage.NewS3ArtifactStore(client, cfg.S3Prefix), nil
}

func newScraper(cfg *config.Config) (*scraper.Scraper, error) {
	seg, err := segmenter.New(cfg.SectionPattern)
	if err != nil {
		return nil, err
	}
	return scraper.New(scraper.Config{
		IndexURL:          cfg.RulesIndexURL,
		RequestsPerSecond: cfg.CrawlRate,
		Timeout:           cfg.CrawlTimeout,
		UserAgent:         cfg.CrawlUserAgent,
	}, seg)
}

// newIndexingService wires the builder with the file store as primary and
// S3 and Postgres as mirrors when they are configured.
func newIndexingService(cfg *config.Config, store *storage.FileStore, s3 *storage.S3ArtifactStore, pool *pgxpool.Pool) (*service.IndexingService, error) {
	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	builder := indexer.NewBuilder(embedder, indexer.WithBatchSize(cfg.EmbeddingBatchSize))

	opts := []service.IndexingOption{service.WithRetention(cfg.IndexKeepVersions)}
	if s3 != nil {
		opts = append(opts, service.WithArtifactMirror("s3", s3))
	}
	if pool != nil {
		opts = append(opts, service.WithVectorMirror(repository.NewTxRunner(pool), cfg.IndexKeepVersions))
	}
	return service.NewIndexingService(builder, store, opts...), nil
}

// servedIndex is the index a server answers from.
type servedIndex struct {
	manifest  *domain.IndexManifest
	retriever service.Retriever
}

// openIndex loads the current index from the configured backend. When the
// file store has no build and S3 does, that build is copied locally first.
//
// Any load failure is fatal and reported as IndexUnavailable. With
// allowMissing, a backend that has never published a build yields a
// retriever that fails every request with IndexUnavailable instead; a build
// that exists but fails verification is still fatal.
func openIndex(ctx context.Context, cfg *config.Config, embedder llm.Embedder, pool *pgxpool.Pool, s3 *storage.S3ArtifactStore, allowMissing bool) (*servedIndex, error) {
	log := logger.With("backend", cfg.IndexBackend)

	if cfg.IndexBackend == config.BackendPostgres {
		if pool == nil {
			return nil, fmt.Errorf("index backend %s requires a database", config.BackendPostgres)
		}
		idx, err := repository.NewChunkVectorRepository(pool).OpenCurrent(ctx)
		if err != nil {
			return missingIndex(log, err, allowMissing)
		}
		checkModel(log, &idx.Manifest, embedder)
		return &servedIndex{
			manifest:  &idx.Manifest,
			retriever: retriever.New(embedder, idx.Searcher, idx.Mapping, config.BackendPostgres),
		}, nil
	}

	store := storage.NewFileStore(cfg.IndexDir)
	art, err := store.Load(ctx)
	if isMissing(err) && s3 != nil {
		log.Info("no local index, fetching from S3")
		fetched, fetchErr := s3.Fetch(ctx)
		switch {
		case fetchErr == nil:
			if pubErr := store.Publish(ctx, fetched); pubErr != nil {
				return nil, fmt.Errorf("failed to store fetched index: %w", pubErr)
			}
			art, err = fetched, nil
		case isMissing(fetchErr):
			log.Info("no index in S3 either")
		default:
			return nil, domain.ErrIndexUnavailable.WithCause(fmt.Errorf("failed to fetch index from S3: %w", fetchErr))
		}
	}
	if err != nil {
		return missingIndex(log, err, allowMissing)
	}

	manifest := art.Manifest
	checkModel(log, &manifest, embedder)
	return &servedIndex{
		manifest:  &manifest,
		retriever: retriever.New(embedder, art.Index, art.Mapping, config.BackendFile),
	}, nil
}

// isMissing reports whether err means no build was ever published, as
// opposed to a build that is present but unreadable.
func isMissing(err error) bool {
	return err != nil && errors.Is(err, domain.ErrArtifactNotFound)
}

func missingIndex(log *slog.Logger, err error, allowMissing bool) (*servedIndex, error) {
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		err = domain.ErrIndexUnavailable.WithCause(err)
	}
	if !allowMissing || !isMissing(err) {
		return nil, err
	}
	log.Warn("no index built yet, serving without one", "error", err)
	return &servedIndex{retriever: unavailableRetriever{err: err}}, nil
}

func checkModel(log *slog.Logger, m *domain.IndexManifest, embedder llm.Embedder) {
	if m.EmbeddingModel != "" && m.EmbeddingModel != embedder.ModelName() {
		log.Warn("index was built with a different embedding model",
			"index_model", m.EmbeddingModel,
			"embedder_model", embedder.ModelName(),
		)
	}
}

type unavailableRetriever struct {
	err error
}

func (r unavailableRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error) {
	return nil, r.err
}
