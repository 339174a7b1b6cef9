// Package llm selects the embedding and generation backends from configuration.
package llm

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/regassist/internal/config"
	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/ollama"
	"github.com/cloo-solutions/regassist/internal/openai"
)

// Generator produces an answer for a question from retrieved passages.
type Generator interface {
	Generate(ctx context.Context, query, passages string) (string, error)
	ModelName() string
}

// Embedder turns texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Pinger is implemented by backends that can report whether they are reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Pinger    = (*ollama.Generator)(nil)
	_ Pinger    = (*ollama.Embedder)(nil)
	_ Generator = (*ollama.Generator)(nil)
	_ Generator = (*openai.ChatGenerator)(nil)
	_ Embedder  = (*ollama.Embedder)(nil)
	_ Embedder  = (*openai.Client)(nil)
)

// NewGenerator builds the generator selected by GENERATOR_MODE.
func NewGenerator(cfg *config.Config) (Generator, error) {
	switch cfg.GeneratorMode {
	case config.ModeLocal:
		return ollama.NewGenerator(ollama.GeneratorConfig{
			BaseURL:       cfg.OllamaURL,
			Model:         cfg.OllamaChatModel,
			Timeout:       cfg.RequestTimeout,
			MaxTokens:     cfg.MaxTokens,
			Temperature:   cfg.Temperature,
			TopP:          cfg.TopP,
			RepeatPenalty: cfg.RepeatPenalty,
		}), nil
	case config.ModeAPI:
		return openai.NewChatGenerator(openai.ChatConfig{
			APIKey:            cfg.OpenRouterAPIKey,
			BaseURL:           cfg.OpenRouterBaseURL,
			Model:             cfg.OpenRouterModel,
			MaxTokens:         cfg.MaxTokens,
			Temperature:       float32(cfg.Temperature),
			TopP:              float32(cfg.TopP),
			RequestsPerMinute: cfg.GenerationRPM,
		})
	default:
		return nil, domain.ErrGenerationFailure.WithCause(
			fmt.Errorf("unsupported generator mode: %s", cfg.GeneratorMode))
	}
}

// NewEmbedder builds the embedder selected by EMBEDDING_MODE.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingMode {
	case config.ModeLocal:
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaEmbeddingModel,
		}), nil
	case config.ModeAPI:
		client, err := openai.NewClient(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      cfg.OpenAIEmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		})
		if err != nil {
			return nil, domain.ErrRetrievalFailure.WithCause(fmt.Errorf("remote embedder: %w", err))
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported embedding mode: %s", cfg.EmbeddingMode)
	}
}

// Pingers returns the reachability checks of the backends that support them,
// keyed by role.
func Pingers(embedder Embedder, generator Generator) map[string]Pinger {
	out := make(map[string]Pinger, 2)
	if p, ok := embedder.(Pinger); ok {
		out["embedder"] = p
	}
	if p, ok := generator.(Pinger); ok {
		out["generator"] = p
	}
	return out
}
