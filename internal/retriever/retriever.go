// Package retriever finds the chunks nearest to a question.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/indexer"
	"github.com/cloo-solutions/regassist/internal/telemetry"
)

// Embedder embeds query text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher returns the k best rows for a normalized query vector, in
// descending score order. Slots it could not fill carry indexer.EmptyPosition.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]indexer.Hit, error)
}

// Retriever embeds questions and resolves index hits against the mapping.
// It never mutates the mapping and is safe for concurrent use.
type Retriever struct {
	embedder Embedder
	searcher Searcher
	mapping  []domain.MappingEntry
	backend  string
}

// New creates a Retriever. backend names the searcher in traces.
func New(embedder Embedder, searcher Searcher, mapping []domain.MappingEntry, backend string) *Retriever {
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		mapping:  mapping,
		backend:  backend,
	}
}

// Retrieve returns up to topK results ranked from 1 in descending score order.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return nil, domain.ErrInvalidTopK
	}

	ctx, span := telemetry.StartSpan(ctx, "retriever.retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
		Backend:   r.backend,
		TopK:      topK,
	})
	defer span.End()

	vectors, err := r.embedder.EmbedBatch(ctx, []string{indexer.QueryText(query)})
	if err != nil {
		span.SetError(err)
		return nil, domain.ErrRetrievalFailure.WithCause(fmt.Errorf("failed to embed query: %w", err))
	}
	if len(vectors) != 1 {
		err := fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
		span.SetError(err)
		return nil, domain.ErrRetrievalFailure.WithCause(err)
	}

	qvec := append([]float32(nil), vectors[0]...)
	indexer.Normalize(qvec)

	hits, err := r.searcher.Search(ctx, qvec, topK)
	if err != nil {
		span.SetError(err)
		return nil, domain.ErrRetrievalFailure.WithCause(fmt.Errorf("index search failed: %w", err))
	}

	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Position < 0 {
			continue
		}
		if hit.Position >= len(r.mapping) {
			err := errors.New("index returned a row outside the mapping")
			span.SetError(err)
			return nil, domain.ErrRetrievalFailure.WithCause(fmt.Errorf("%w: row %d of %d", err, hit.Position, len(r.mapping)))
		}
		results = append(results, domain.RetrievalResult{
			MappingEntry: r.mapping[hit.Position],
			Score:        hit.Score,
			Rank:         len(results) + 1,
		})
	}

	span.SetData("results", len(results))
	return results, nil
}
