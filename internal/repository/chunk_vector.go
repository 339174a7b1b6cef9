package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/indexer"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkVectorRepository mirrors index builds into pgvector rows.
type ChunkVectorRepository struct {
	db dbtx
}

func NewChunkVectorRepository(pool *pgxpool.Pool) *ChunkVectorRepository {
	return &ChunkVectorRepository{db: pool}
}

func NewChunkVectorRepositoryWithTx(tx pgx.Tx) *ChunkVectorRepository {
	return &ChunkVectorRepository{db: tx}
}

func (r *ChunkVectorRepository) InsertVersion(ctx context.Context, m domain.IndexManifest) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO index_versions (version, rows, dimensions, embedding_model, checksum, built_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.Version, m.Rows, m.Dimensions, m.EmbeddingModel, m.Checksum, m.BuiltAt,
	)
	return err
}

// InsertRows stores one row per mapping entry, keyed by its index position.
func (r *ChunkVectorRepository) InsertRows(ctx context.Context, version string, mapping []domain.MappingEntry, index *indexer.FlatIndex) error {
	if err := domain.ValidateAlignment(mapping, index.ChunkIDs()); err != nil {
		return err
	}

	for i, e := range mapping {
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunk_vectors
				(index_version, position, chunk_id, rule_title, rule_url, rule_date, parent_section, section_title, content, embedding)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			version,
			e.Position,
			e.ID,
			e.RuleTitle,
			e.RuleURL,
			e.RuleDate,
			e.ParentSection,
			e.SectionTitle,
			e.Content,
			pgvector.NewVector(index.Vector(i)),
		)
		if err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	return nil
}

// SetCurrent marks version as the one served by the postgres backend.
func (r *ChunkVectorRepository) SetCurrent(ctx context.Context, version string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE index_versions SET is_current = FALSE WHERE is_current AND version <> $1`,
		version,
	); err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `UPDATE index_versions SET is_current = TRUE WHERE version = $1`, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrArtifactNotFound.WithCause(fmt.Errorf("version %s", version))
	}
	return nil
}

// Prune deletes all but the newest keep versions. The current version is never deleted.
func (r *ChunkVectorRepository) Prune(ctx context.Context, keep int) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM index_versions
		 WHERE NOT is_current
		   AND version NOT IN (SELECT version FROM index_versions ORDER BY built_at DESC LIMIT $1)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *ChunkVectorRepository) CurrentManifest(ctx context.Context) (*domain.IndexManifest, error) {
	var m domain.IndexManifest
	err := r.db.QueryRow(ctx,
		`SELECT version, rows, dimensions, embedding_model, checksum, built_at
		 FROM index_versions WHERE is_current`,
	).Scan(&m.Version, &m.Rows, &m.Dimensions, &m.EmbeddingModel, &m.Checksum, &m.BuiltAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, err
	}
	return &m, nil
}

// LoadMapping returns the mapping of version in position order.
func (r *ChunkVectorRepository) LoadMapping(ctx context.Context, version string) ([]domain.MappingEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT position, chunk_id, rule_title, rule_url, rule_date, parent_section, section_title, content
		 FROM chunk_vectors
		 WHERE index_version = $1
		 ORDER BY position ASC`,
		version,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mapping []domain.MappingEntry
	for rows.Next() {
		var e domain.MappingEntry
		if err := rows.Scan(&e.Position, &e.ID, &e.RuleTitle, &e.RuleURL, &e.RuleDate, &e.ParentSection, &e.SectionTitle, &e.Content); err != nil {
			return nil, err
		}
		mapping = append(mapping, e)
	}
	return mapping, rows.Err()
}

// Search ranks the rows of version by inner product with query.
func (r *ChunkVectorRepository) Search(ctx context.Context, version string, query []float32, k int) ([]indexer.Hit, error) {
	if k <= 0 {
		return nil, indexer.ErrInvalidK
	}

	rows, err := r.db.Query(ctx,
		`SELECT position, (embedding <#> $2) * -1 AS score
		 FROM chunk_vectors
		 WHERE index_version = $1
		 ORDER BY embedding <#> $2, position
		 LIMIT $3`,
		version, pgvector.NewVector(query), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]indexer.Hit, 0, k)
	for rows.Next() {
		var h indexer.Hit
		var score float64
		if err := rows.Scan(&h.Position, &score); err != nil {
			return nil, err
		}
		h.Score = float32(score)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for len(hits) < k {
		hits = append(hits, indexer.Hit{Position: indexer.EmptyPosition, Score: indexer.EmptyScore})
	}
	return hits, nil
}

// PgIndex is the current postgres-backed index, ready for retrieval.
type PgIndex struct {
	Manifest domain.IndexManifest
	Mapping  []domain.MappingEntry
	Searcher *VersionSearcher
}

// OpenCurrent loads the current version and verifies its mapping against the manifest.
func (r *ChunkVectorRepository) OpenCurrent(ctx context.Context) (*PgIndex, error) {
	m, err := r.CurrentManifest(ctx)
	if err != nil {
		return nil, domain.ErrIndexUnavailable.WithCause(err)
	}

	mapping, err := r.LoadMapping(ctx, m.Version)
	if err != nil {
		return nil, domain.ErrIndexUnavailable.WithCause(err)
	}

	ids := make([]string, len(mapping))
	for i, e := range mapping {
		ids[i] = e.ID
	}
	if err := m.Verify(mapping, ids, m.Dimensions); err != nil {
		return nil, domain.ErrIndexUnavailable.WithCause(err)
	}

	return &PgIndex{
		Manifest: *m,
		Mapping:  mapping,
		Searcher: &VersionSearcher{repo: r, version: m.Version},
	}, nil
}

// VersionSearcher searches a single stored version.
type VersionSearcher struct {
	repo    *ChunkVectorRepository
	version string
}

func (s *VersionSearcher) Search(ctx context.Context, query []float32, k int) ([]indexer.Hit, error) {
	return s.repo.Search(ctx, s.version, query, k)
}
