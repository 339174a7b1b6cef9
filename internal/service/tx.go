package service

import (
	"context"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/indexer"
)

// ChunkVectorRepositoryInterface stores an index build as database rows.
type ChunkVectorRepositoryInterface interface {
	InsertVersion(ctx context.Context, manifest domain.IndexManifest) error
	InsertRows(ctx context.Context, version string, mapping []domain.MappingEntry, index *indexer.FlatIndex) error
	SetCurrent(ctx context.Context, version string) error
	Prune(ctx context.Context, keep int) (int, error)
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	ChunkVectors() ChunkVectorRepositoryInterface
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
