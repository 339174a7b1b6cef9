package ollama

import (
	"context"
	"fmt"
	"time"
)

// EmbedderConfig holds configuration for the Ollama embedder.
type EmbedderConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Embedder produces embeddings through Ollama's batch /api/embed endpoint.
type Embedder struct {
	client client
	model  string
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

func NewEmbedder(cfg EmbedderConfig) *Embedder {
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultEmbedTimeout
	}
	return &Embedder{
		client: newClient(cfg.BaseURL, cfg.Timeout),
		model:  cfg.Model,
	}
}

// EmbedBatch embeds texts in one request, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	if err := e.client.post(ctx, "/api/embed", embedRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// ModelName returns the embedding model.
func (e *Embedder) ModelName() string { return e.model }

// Ping validates the server is reachable.
func (e *Embedder) Ping(ctx context.Context) error { return e.client.ping(ctx) }
