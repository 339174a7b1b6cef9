package service

import (
	"context"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/indexer"
	"github.com/stretchr/testify/mock"
)

type MockChunkVectorRepository struct {
	mock.Mock
}

func (m *MockChunkVectorRepository) InsertVersion(ctx context.Context, manifest domain.IndexManifest) error {
	return m.Called(ctx, manifest).Error(0)
}

func (m *MockChunkVectorRepository) InsertRows(ctx context.Context, version string, mapping []domain.MappingEntry, index *indexer.FlatIndex) error {
	return m.Called(ctx, version, mapping, index).Error(0)
}

func (m *MockChunkVectorRepository) SetCurrent(ctx context.Context, version string) error {
	return m.Called(ctx, version).Error(0)
}

func (m *MockChunkVectorRepository) Prune(ctx context.Context, keep int) (int, error) {
	args := m.Called(ctx, keep)
	return args.Int(0), args.Error(1)
}

type testTxRepos struct {
	chunkVectors ChunkVectorRepositoryInterface
}

func (t *testTxRepos) ChunkVectors() ChunkVectorRepositoryInterface {
	return t.chunkVectors
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
