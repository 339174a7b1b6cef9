package ollama

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloo-solutions/regassist/internal/prompt"
)

// GeneratorConfig holds configuration for the on-device generator.
type GeneratorConfig struct {
	BaseURL       string
	Model         string
	Timeout       time.Duration
	MaxTokens     int
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
}

// Generator answers questions with a chat model served by Ollama.
type Generator struct {
	client client
	cfg    GeneratorConfig
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	NumPredict    int     `json:"num_predict,omitempty"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// NewGenerator creates a generator, filling unset fields with defaults.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultChatTimeout
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}
	if cfg.RepeatPenalty == 0 {
		cfg.RepeatPenalty = 1.1
	}
	return &Generator{
		client: newClient(cfg.BaseURL, cfg.Timeout),
		cfg:    cfg,
	}
}

// Generate answers query from the retrieved passages. Empty passages yield
// the abstention sentence without calling the model.
func (g *Generator) Generate(ctx context.Context, query, passages string) (string, error) {
	if !prompt.HasEvidence(passages) {
		return prompt.Abstain(), nil
	}

	msgs := prompt.Messages(query, passages)
	req := chatRequest{
		Model:    g.cfg.Model,
		Messages: make([]chatMessage, 0, len(msgs)),
		Stream:   false,
		Options: chatOptions{
			NumPredict:    g.cfg.MaxTokens,
			Temperature:   g.cfg.Temperature,
			TopP:          g.cfg.TopP,
			RepeatPenalty: g.cfg.RepeatPenalty,
		},
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	var resp chatResponse
	if err := g.client.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	if !resp.Done {
		return "", errors.New("ollama: incomplete chat response")
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

// ModelName returns the chat model.
func (g *Generator) ModelName() string { return g.cfg.Model }

// Ping validates the server is reachable.
func (g *Generator) Ping(ctx context.Context) error { return g.client.ping(ctx) }
