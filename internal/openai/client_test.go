package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOpenAIAPI is a mock for the embeddings API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func TestClient_EmbedBatch_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, model: "m", dimensions: 3}

	ctx := context.Background()
	texts := []string{"passage: a", "passage: b"}
	expected := [][]float32{{1, 0, 0}, {0, 1, 0}}

	mockAPI.On("CreateEmbeddings", ctx, texts).Return(expected, nil)

	vectors, err := client.EmbedBatch(ctx, texts)

	assert.NoError(t, err)
	assert.Equal(t, expected, vectors)
	mockAPI.AssertExpectations(t)
}

func TestClient_EmbedBatch_Empty(t *testing.T) {
	client := &Client{api: new(MockOpenAIAPI)}

	vectors, err := client.EmbedBatch(context.Background(), nil)

	assert.Nil(t, vectors)
	assert.Equal(t, ErrEmptyBatch, err)
}

func TestClient_EmbedBatch_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI}

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(nil, errors.New("API rate limit exceeded"))

	vectors, err := client.EmbedBatch(context.Background(), []string{"x"})

	assert.Nil(t, vectors)
	assert.Contains(t, err.Error(), "failed to create embeddings")
	mockAPI.AssertExpectations(t)
}

func TestClient_EmbedBatch_WrongCount(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI}

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return([][]float32{{1}}, nil)

	_, err := client.EmbedBatch(context.Background(), []string{"x", "y"})

	assert.ErrorIs(t, err, ErrWrongCount)
}

func TestClient_EmbedBatch_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 768}

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return([][]float32{make([]float32, 512)}, nil)

	_, err := client.EmbedBatch(context.Background(), []string{"x"})

	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	assert.NotNil(t, client.api)
	assert.Equal(t, DefaultEmbeddingModel, client.ModelName())

	_, err = NewClient(Config{})
	assert.Equal(t, ErrNoAPIKey, err)
}
