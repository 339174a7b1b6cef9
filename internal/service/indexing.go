package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/indexer"
	"github.com/cloo-solutions/regassist/internal/logger"
	"github.com/cloo-solutions/regassist/internal/telemetry"
)

// IndexBuilder turns chunks into index artifacts.
type IndexBuilder interface {
	Build(ctx context.Context, chunks []domain.Chunk) (*indexer.Artifacts, error)
}

// ArtifactPublisher makes a build the current index of some store.
type ArtifactPublisher interface {
	Publish(ctx context.Context, art *indexer.Artifacts) error
}

// RetainingPublisher is a publisher that can drop old builds.
type RetainingPublisher interface {
	ArtifactPublisher
	Prune(keep int) (int, error)
}

type artifactMirror struct {
	name      string
	publisher ArtifactPublisher
}

// IndexingService builds an index and publishes it to the primary store,
// then to every configured mirror.
type IndexingService struct {
	builder IndexBuilder
	store   ArtifactPublisher
	mirrors []artifactMirror
	tx      TxRunner
	keep    int
	retain  int
	log     *slog.Logger
}

// IndexingOption configures an IndexingService.
type IndexingOption func(*IndexingService)

// WithArtifactMirror publishes every build to p after the primary store.
func WithArtifactMirror(name string, p ArtifactPublisher) IndexingOption {
	return func(s *IndexingService) {
		s.mirrors = append(s.mirrors, artifactMirror{name: name, publisher: p})
	}
}

// WithVectorMirror copies every build into database rows, keeping the newest
// keep versions.
func WithVectorMirror(tx TxRunner, keep int) IndexingOption {
	return func(s *IndexingService) {
		s.tx = tx
		s.keep = keep
	}
}

// WithRetention keeps only the newest keep builds in the primary store when
// it supports pruning. Pruning failures are logged and do not fail a rebuild.
func WithRetention(keep int) IndexingOption {
	return func(s *IndexingService) {
		s.retain = keep
	}
}

// WithIndexingLogger sets the logger.
func WithIndexingLogger(l *slog.Logger) IndexingOption {
	return func(s *IndexingService) {
		s.log = l
	}
}

func NewIndexingService(builder IndexBuilder, store ArtifactPublisher, opts ...IndexingOption) *IndexingService {
	s := &IndexingService{
		builder: builder,
		store:   store,
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rebuild embeds chunks and publishes the result. The primary store is
// updated first. A mirror failure is returned together with the manifest,
// since the primary publish has already taken effect; a nil manifest means
// the current build did not change.
func (s *IndexingService) Rebuild(ctx context.Context, chunks []domain.Chunk) (*domain.IndexManifest, error) {
	ctx, span := telemetry.StartSpan(ctx, "index.rebuild", telemetry.SpanAttributes{Operation: "rebuild"})
	defer span.End()

	art, err := s.builder.Build(ctx, chunks)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := s.store.Publish(ctx, art); err != nil {
		span.SetError(err)
		return nil, err
	}
	s.log.Info("index published",
		"version", art.Manifest.Version,
		"rows", art.Manifest.Rows,
		"dimensions", art.Manifest.Dimensions,
		"model", art.Manifest.EmbeddingModel,
	)
	s.prunePrimary()
	manifest := art.Manifest

	for _, m := range s.mirrors {
		if err := m.publisher.Publish(ctx, art); err != nil {
			span.SetError(err)
			return &manifest, fmt.Errorf("failed to publish index to %s mirror: %w", m.name, err)
		}
		s.log.Info("index mirrored", "mirror", m.name, "version", art.Manifest.Version)
	}

	if s.tx != nil {
		if err := s.mirrorVectors(ctx, art); err != nil {
			span.SetError(err)
			return &manifest, err
		}
	}

	return &manifest, nil
}

func (s *IndexingService) prunePrimary() {
	p, ok := s.store.(RetainingPublisher)
	if !ok || s.retain <= 0 {
		return
	}
	n, err := p.Prune(s.retain)
	if err != nil {
		s.log.Warn("failed to prune old index builds", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("pruned old index builds", "removed", n, "kept", s.retain)
	}
}

func (s *IndexingService) mirrorVectors(ctx context.Context, art *indexer.Artifacts) error {
	var pruned int
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		vectors := repos.ChunkVectors()
		if err := vectors.InsertVersion(ctx, art.Manifest); err != nil {
			return err
		}
		if err := vectors.InsertRows(ctx, art.Manifest.Version, art.Mapping, art.Index); err != nil {
			return err
		}
		if err := vectors.SetCurrent(ctx, art.Manifest.Version); err != nil {
			return err
		}
		if s.keep > 0 {
			n, err := vectors.Prune(ctx, s.keep)
			if err != nil {
				return err
			}
			pruned = n
		}
		return nil
	})
	if err != nil {
		return domain.ErrStorageOperationFail.WithCause(fmt.Errorf("failed to mirror vectors: %w", err))
	}
	s.log.Info("index mirrored", "mirror", "postgres", "version", art.Manifest.Version, "pruned", pruned)
	return nil
}
