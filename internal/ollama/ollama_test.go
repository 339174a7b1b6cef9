package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Generate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "\n دانشجو مشروط می‌شود. \n"},
			Done:    true,
		})
	}))
	defer srv.Close()

	g := NewGenerator(GeneratorConfig{BaseURL: srv.URL + "/", Temperature: 0.3, TopP: 0.9})
	answer, err := g.Generate(context.Background(), "شرط مشروطی؟", "[R | S]\nمتن")

	require.NoError(t, err)
	assert.Equal(t, "دانشجو مشروط می‌شود.", answer)

	assert.Equal(t, DefaultChatModel, got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, prompt.SystemPrompt, got.Messages[0].Content)
	assert.Equal(t, prompt.BuildUserMessage("شرط مشروطی؟", "[R | S]\nمتن"), got.Messages[1].Content)
	assert.Equal(t, 512, got.Options.NumPredict)
	assert.Equal(t, 0.3, got.Options.Temperature)
	assert.Equal(t, 0.9, got.Options.TopP)
	assert.Equal(t, 1.1, got.Options.RepeatPenalty)
}

func TestGenerator_EmptyContextAbstains(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	answer, err := NewGenerator(GeneratorConfig{BaseURL: srv.URL}).Generate(context.Background(), "q", "")

	require.NoError(t, err)
	assert.Equal(t, domain.AbstentionSentence, answer)
	assert.False(t, called)
}

func TestGenerator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewGenerator(GeneratorConfig{BaseURL: srv.URL}).Generate(context.Background(), "q", "ctx")

	assert.ErrorContains(t, err, "status 404")
	assert.ErrorContains(t, err, "model not found")
}

func TestGenerator_Incomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: "partial"}})
	}))
	defer srv.Close()

	_, err := NewGenerator(GeneratorConfig{BaseURL: srv.URL}).Generate(context.Background(), "q", "ctx")
	assert.ErrorContains(t, err, "incomplete")
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	var got embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(embedResponse{
			Model:      got.Model,
			Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer srv.Close()

	e := NewEmbedder(EmbedderConfig{BaseURL: srv.URL})
	vectors, err := e.EmbedBatch(context.Background(), []string{"passage: a", "passage: b"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vectors)
	assert.Equal(t, DefaultEmbeddingModel, got.Model)
	assert.Equal(t, []string{"passage: a", "passage: b"}, got.Input)
	assert.Equal(t, DefaultEmbeddingModel, e.ModelName())
}

func TestEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	_, err := NewEmbedder(EmbedderConfig{BaseURL: srv.URL}).EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "got 1 embeddings for 2 inputs")
}

func TestEmbedder_EmptyInput(t *testing.T) {
	vectors, err := NewEmbedder(EmbedderConfig{BaseURL: "http://127.0.0.1:1"}).EmbedBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, NewEmbedder(EmbedderConfig{BaseURL: srv.URL}).Ping(context.Background()))
	assert.NoError(t, NewGenerator(GeneratorConfig{BaseURL: srv.URL}).Ping(context.Background()))

	srv.Close()
	assert.Error(t, NewEmbedder(EmbedderConfig{BaseURL: srv.URL}).Ping(context.Background()))
}
