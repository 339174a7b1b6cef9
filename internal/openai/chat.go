package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/logger"
	"github.com/cloo-solutions/regassist/internal/prompt"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	DefaultChatBaseURL = "https://openrouter.ai/api/v1"
	DefaultChatModel   = "qwen/qwen-2.5-7b-instruct"
)

// ErrEmptyCompletion is returned when the API answers without any choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// ChatAPI is the chat completion call the generator depends on.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatConfig configures the remote generator.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
	// RequestsPerMinute caps outgoing calls. Zero disables the limiter.
	RequestsPerMinute int
}

// ChatGenerator answers questions through an OpenAI-compatible chat API.
type ChatGenerator struct {
	api     ChatAPI
	cfg     ChatConfig
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewChatGenerator builds the remote generator. A missing API key is a
// generation failure.
func NewChatGenerator(cfg ChatConfig) (*ChatGenerator, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrGenerationFailure.WithCause(fmt.Errorf("remote generator: %w", ErrNoAPIKey))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultChatBaseURL
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return newChatGenerator(openai.NewClientWithConfig(clientCfg), cfg), nil
}

func newChatGenerator(api ChatAPI, cfg ChatConfig) *ChatGenerator {
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ChatCompletions",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	g := &ChatGenerator{api: api, cfg: cfg, breaker: breaker}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), max(1, cfg.RequestsPerMinute/10))
	}
	return g
}

// Generate answers query from the retrieved passages. Empty passages yield
// the abstention sentence without calling the API.
func (g *ChatGenerator) Generate(ctx context.Context, query, passages string) (string, error) {
	if !prompt.HasEvidence(passages) {
		return prompt.Abstain(), nil
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	msgs := prompt.Messages(query, passages)
	req := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(msgs)),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		TopP:        g.cfg.TopP,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmptyCompletion
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("chat completions unavailable: %w", err)
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	return strings.TrimSpace(result.(string)), nil
}

// ModelName returns the configured chat model.
func (g *ChatGenerator) ModelName() string {
	return g.cfg.Model
}
