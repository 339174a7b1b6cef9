package llm

import (
	"testing"

	"github.com/cloo-solutions/regassist/internal/config"
	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/ollama"
	"github.com/cloo-solutions/regassist/internal/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		GeneratorMode:        config.ModeLocal,
		EmbeddingMode:        config.ModeLocal,
		OllamaChatModel:      "qwen2.5:7b-instruct",
		OllamaEmbeddingModel: "jeffh/intfloat-multilingual-e5-base",
		OpenRouterModel:      "qwen/qwen-2.5-7b-instruct",
		MaxTokens:            512,
		Temperature:          0.3,
		TopP:                 0.9,
	}
}

func TestNewGenerator_Local(t *testing.T) {
	g, err := NewGenerator(baseConfig())
	require.NoError(t, err)
	assert.IsType(t, &ollama.Generator{}, g)
	assert.Equal(t, "qwen2.5:7b-instruct", g.ModelName())
}

func TestNewGenerator_API(t *testing.T) {
	cfg := baseConfig()
	cfg.GeneratorMode = config.ModeAPI
	cfg.OpenRouterAPIKey = "sk-or-test"

	g, err := NewGenerator(cfg)
	require.NoError(t, err)
	assert.IsType(t, &openai.ChatGenerator{}, g)
	assert.Equal(t, "qwen/qwen-2.5-7b-instruct", g.ModelName())
}

func TestNewGenerator_APIWithoutKey(t *testing.T) {
	cfg := baseConfig()
	cfg.GeneratorMode = config.ModeAPI

	g, err := NewGenerator(cfg)
	assert.Nil(t, g)
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)
}

func TestNewGenerator_UnknownMode(t *testing.T) {
	cfg := baseConfig()
	cfg.GeneratorMode = "quantum"

	_, err := NewGenerator(cfg)
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(baseConfig())
	require.NoError(t, err)
	assert.Equal(t, "jeffh/intfloat-multilingual-e5-base", e.ModelName())

	cfg := baseConfig()
	cfg.EmbeddingMode = config.ModeAPI
	_, err = NewEmbedder(cfg)
	assert.ErrorIs(t, err, openai.ErrNoAPIKey)

	cfg.OpenAIAPIKey = "sk-test"
	cfg.OpenAIEmbeddingModel = "text-embedding-3-small"
	e, err = NewEmbedder(cfg)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", e.ModelName())

	cfg.EmbeddingMode = "nope"
	_, err = NewEmbedder(cfg)
	assert.Error(t, err)
}

func TestPingers(t *testing.T) {
	local := baseConfig()
	emb, err := NewEmbedder(local)
	require.NoError(t, err)
	gen, err := NewGenerator(local)
	require.NoError(t, err)

	pingers := Pingers(emb, gen)
	assert.Len(t, pingers, 2)
	assert.Contains(t, pingers, "embedder")
	assert.Contains(t, pingers, "generator")

	remote := baseConfig()
	remote.GeneratorMode = config.ModeAPI
	remote.OpenRouterAPIKey = "sk-or-test"
	gen, err = NewGenerator(remote)
	require.NoError(t, err)

	pingers = Pingers(emb, gen)
	assert.Len(t, pingers, 1)
	assert.NotContains(t, pingers, "generator")
}
