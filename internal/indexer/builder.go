// Package indexer embeds chunks and assembles the row-aligned vector index
// and mapping that retrieval runs against.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/logger"
	"github.com/cloo-solutions/regassist/internal/telemetry"
	"github.com/google/uuid"
)

// DefaultBatchSize is the number of passages sent per embedding call.
const DefaultBatchSize = 32

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Artifacts is a complete, aligned index build.
type Artifacts struct {
	Index    *FlatIndex
	Mapping  []domain.MappingEntry
	Manifest domain.IndexManifest
}

// Builder builds index artifacts from chunks.
type Builder struct {
	embedder  Embedder
	batchSize int
	log       *slog.Logger
	now       func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBatchSize overrides DefaultBatchSize. Non-positive values are ignored.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithLogger sets the logger used for progress records.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.log = l
	}
}

// WithClock overrides the build timestamp source.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

func NewBuilder(embedder Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		log:       logger.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build embeds every chunk and returns the index, mapping and manifest.
// Any embedding failure aborts the whole build.
func (b *Builder) Build(ctx context.Context, chunks []domain.Chunk) (*Artifacts, error) {
	if len(chunks) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "no chunks to index")
	}

	ctx, span := telemetry.StartSpan(ctx, "indexer.build", telemetry.SpanAttributes{
		Operation: "build_index",
	})
	defer span.End()

	vectors, err := b.embedAll(ctx, chunks)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	dims := len(vectors[0])
	index := NewFlatIndex(dims)
	mapping := make([]domain.MappingEntry, len(chunks))
	for i, c := range chunks {
		Normalize(vectors[i])
		if err := index.Add(vectors[i], c.ID); err != nil {
			return nil, fmt.Errorf("failed to add row %d: %w", i, err)
		}
		mapping[i] = domain.NewMappingEntry(i, c)
	}

	ids := index.ChunkIDs()
	if err := domain.ValidateAlignment(mapping, ids); err != nil {
		span.SetError(err)
		return nil, err
	}

	manifest := domain.IndexManifest{
		Version:        b.now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8],
		Rows:           index.Rows(),
		Dimensions:     dims,
		EmbeddingModel: b.embedder.ModelName(),
		Checksum:       domain.AlignmentChecksum(index.Rows(), dims, ids),
		BuiltAt:        b.now().UTC(),
	}

	b.log.Info("index built",
		"rows", manifest.Rows,
		"dimensions", manifest.Dimensions,
		"model", manifest.EmbeddingModel,
		"version", manifest.Version,
	)

	return &Artifacts{Index: index, Mapping: mapping, Manifest: manifest}, nil
}

func (b *Builder) embedAll(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	dims := 0

	for start := 0; start < len(chunks); start += b.batchSize {
		end := min(start+b.batchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, PassageText(c.RuleTitle, c.SectionTitle, c.Content))
		}

		batch, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedding batch %d-%d returned %d vectors for %d passages",
				start, end, len(batch), len(texts))
		}

		for i, vec := range batch {
			if dims == 0 {
				dims = len(vec)
				if dims == 0 {
					return nil, fmt.Errorf("embedding model returned an empty vector")
				}
			}
			if len(vec) != dims {
				return nil, fmt.Errorf("%w: row %d has %d dimensions, want %d",
					ErrDimensionMismatch, start+i, len(vec), dims)
			}
			vectors = append(vectors, vec)
		}

		b.log.Debug("embedded batch", "from", start, "to", end, "total", len(chunks))
	}

	return vectors, nil
}
