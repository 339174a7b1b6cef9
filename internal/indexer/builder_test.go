package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/regassist/internal/domain"
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

func (m *MockEmbedder) ModelName() string {
	return "test-model"
}

// axisEmbedder maps passage i to a vector pointing mostly along axis i mod dims.
type axisEmbedder struct {
	dims    int
	calls   [][]string
	counter int
}

func (e *axisEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, e.dims)
		v[e.counter%e.dims] = 3
		out[i] = v
		e.counter++
	}
	return out, nil
}

func (e *axisEmbedder) ModelName() string { return "axis" }

func testChunks(n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:            string(rune('a'+i)) + "-id",
			RuleTitle:     "آیین‌نامه",
			ParentSection: "فصل",
			SectionTitle:  "ماده",
			Content:       "متن",
		}
	}
	return chunks
}

func TestBuilder_Build_AlignsRowsAndMapping(t *testing.T) {
	emb := &axisEmbedder{dims: 4}
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	b := NewBuilder(emb, WithBatchSize(2), WithClock(func() time.Time { return fixed }))

	chunks := testChunks(5)
	art, err := b.Build(context.Background(), chunks)
	require.NoError(t, err)

	assert.Len(t, emb.calls, 3, "5 chunks in batches of 2")
	assert.Len(t, emb.calls[2], 1)

	assert.Equal(t, 5, art.Index.Rows())
	assert.Equal(t, 4, art.Index.Dimensions())
	require.Len(t, art.Mapping, 5)
	for i, entry := range art.Mapping {
		assert.Equal(t, i, entry.Position)
		assert.Equal(t, chunks[i].ID, entry.ID)
		assert.Equal(t, chunks[i].ID, art.Index.ChunkID(i))
	}

	assert.Equal(t, 5, art.Manifest.Rows)
	assert.Equal(t, 4, art.Manifest.Dimensions)
	assert.Equal(t, "axis", art.Manifest.EmbeddingModel)
	assert.Equal(t, fixed, art.Manifest.BuiltAt)
	assert.Equal(t, domain.AlignmentChecksum(5, 4, art.Index.ChunkIDs()), art.Manifest.Checksum)
	assert.NoError(t, art.Manifest.Verify(art.Mapping, art.Index.ChunkIDs(), 4))
}

func TestBuilder_Build_UsesPassageFormat(t *testing.T) {
	emb := &axisEmbedder{dims: 2}
	b := NewBuilder(emb)

	_, err := b.Build(context.Background(), []domain.Chunk{{
		ID: "x", RuleTitle: "R", SectionTitle: "S", Content: "C",
	}})
	require.NoError(t, err)

	require.Len(t, emb.calls, 1)
	assert.Equal(t, []string{"passage: R — S\nC"}, emb.calls[0])
}

func TestBuilder_Build_NormalizesVectors(t *testing.T) {
	b := NewBuilder(&axisEmbedder{dims: 3})

	art, err := b.Build(context.Background(), testChunks(2))
	require.NoError(t, err)

	assert.InDelta(t, 1.0, dot(art.Index.Vector(0), art.Index.Vector(0)), 1e-6)
	assert.InDelta(t, 1.0, dot(art.Index.Vector(1), art.Index.Vector(1)), 1e-6)
}

func TestBuilder_Build_EmptyCorpus(t *testing.T) {
	b := NewBuilder(&axisEmbedder{dims: 3})

	_, err := b.Build(context.Background(), nil)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestBuilder_Build_BatchErrorFailsBuild(t *testing.T) {
	m := new(MockEmbedder)
	m.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()

	art, err := NewBuilder(m).Build(context.Background(), testChunks(3))

	assert.Nil(t, art)
	assert.ErrorContains(t, err, "connection refused")
	m.AssertExpectations(t)
}

func TestBuilder_Build_WrongVectorCount(t *testing.T) {
	m := new(MockEmbedder)
	m.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)

	_, err := NewBuilder(m).Build(context.Background(), testChunks(2))

	assert.ErrorContains(t, err, "returned 1 vectors for 2 passages")
}

func TestBuilder_Build_DimensionDrift(t *testing.T) {
	m := new(MockEmbedder)
	m.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{1, 0}, {1, 0, 0}}, nil)

	_, err := NewBuilder(m).Build(context.Background(), testChunks(2))

	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
