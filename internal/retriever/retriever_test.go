package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/indexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query []float32, k int) ([]indexer.Hit, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]indexer.Hit), args.Error(1)
}

func testMapping() []domain.MappingEntry {
	return []domain.MappingEntry{
		{Position: 0, ID: "a", RuleTitle: "آیین‌نامه کارشناسی", SectionTitle: "ماده 5", Content: "مشروطی"},
		{Position: 1, ID: "b", RuleTitle: "آیین‌نامه کارشناسی", SectionTitle: "ماده 6", Content: "سنوات"},
		{Position: 2, ID: "c", RuleTitle: "آیین‌نامه ارشد", SectionTitle: "ماده 1", Content: "پذیرش"},
	}
}

func flatIndex(t *testing.T) *indexer.FlatIndex {
	t.Helper()
	idx := indexer.NewFlatIndex(2)
	require.NoError(t, idx.Add([]float32{1, 0}, "a"))
	require.NoError(t, idx.Add([]float32{0, 1}, "b"))
	require.NoError(t, idx.Add([]float32{0.6, 0.8}, "c"))
	return idx
}

func TestRetrieve_RanksAgainstFlatIndex(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("EmbedBatch", mock.Anything, []string{"query: شرط مشروطی چیست؟"}).
		Return([][]float32{{2, 0}}, nil)

	r := New(emb, flatIndex(t), testMapping(), "file")
	results, err := r.Retrieve(context.Background(), "شرط مشروطی چیست؟", 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, 1, results[0].Rank)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6, "query vector is normalized")
	assert.Equal(t, "c", results[1].ID)
	assert.Equal(t, 2, results[1].Rank)
	emb.AssertExpectations(t)
}

func TestRetrieve_DropsEmptySlots(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{0, 1}}, nil)

	r := New(emb, flatIndex(t), testMapping(), "file")
	results, err := r.Retrieve(context.Background(), "q", 10)
	require.NoError(t, err)

	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, i+1, res.Rank)
	}
}

func TestRetrieve_RanksAssignedAfterDrop(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)
	s := new(MockSearcher)
	s.On("Search", mock.Anything, mock.Anything, 3).Return([]indexer.Hit{
		{Position: 2, Score: 0.9},
		{Position: indexer.EmptyPosition, Score: 0},
		{Position: 0, Score: 0.4},
	}, nil)

	results, err := New(emb, s, testMapping(), "pgvector").Retrieve(context.Background(), "q", 3)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "c", results[0].ID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "a", results[1].ID)
	assert.Equal(t, 2, results[1].Rank)
}

func TestRetrieve_ResultsAreCopies(t *testing.T) {
	mapping := testMapping()
	emb := new(MockEmbedder)
	emb.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)

	results, err := New(emb, flatIndex(t), mapping, "file").Retrieve(context.Background(), "q", 1)
	require.NoError(t, err)

	results[0].Content = "mutated"
	assert.Equal(t, "مشروطی", mapping[0].Content)
}

func TestRetrieve_InvalidTopK(t *testing.T) {
	emb := new(MockEmbedder)
	r := New(emb, flatIndex(t), testMapping(), "file")

	_, err := r.Retrieve(context.Background(), "q", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTopK)
	emb.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, errors.New("ollama down"))

	_, err := New(emb, flatIndex(t), testMapping(), "file").Retrieve(context.Background(), "q", 5)
	assert.ErrorIs(t, err, domain.ErrRetrievalFailure)
	assert.ErrorContains(t, err, "ollama down")
}

func TestRetrieve_SearchFailure(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{1, 0, 0}}, nil)

	_, err := New(emb, flatIndex(t), testMapping(), "file").Retrieve(context.Background(), "q", 5)
	assert.ErrorIs(t, err, domain.ErrRetrievalFailure)
	assert.ErrorIs(t, err, indexer.ErrDimensionMismatch)
}

func TestRetrieve_RowOutsideMapping(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)
	s := new(MockSearcher)
	s.On("Search", mock.Anything, mock.Anything, 1).Return([]indexer.Hit{{Position: 9, Score: 1}}, nil)

	_, err := New(emb, s, testMapping(), "pgvector").Retrieve(context.Background(), "q", 1)
	assert.ErrorIs(t, err, domain.ErrRetrievalFailure)
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)

	results, err := New(emb, indexer.NewFlatIndex(2), nil, "file").Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
