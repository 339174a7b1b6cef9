package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/prompt"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}
}

func testChatConfig() ChatConfig {
	return ChatConfig{Model: DefaultChatModel, MaxTokens: 512, Temperature: 0.3, TopP: 0.9}
}

func TestChatGenerator_Generate(t *testing.T) {
	api := new(MockChatAPI)
	g := newChatGenerator(api, testChatConfig())

	api.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == DefaultChatModel &&
			req.MaxTokens == 512 &&
			req.Temperature == 0.3 &&
			req.TopP == 0.9 &&
			len(req.Messages) == 2 &&
			req.Messages[0].Role == prompt.RoleSystem &&
			req.Messages[0].Content == prompt.SystemPrompt &&
			req.Messages[1].Content == prompt.BuildUserMessage("سوال", "[R | S]\nمتن")
	})).Return(completion("  پاسخ نهایی \n"), nil)

	answer, err := g.Generate(context.Background(), "سوال", "[R | S]\nمتن")

	require.NoError(t, err)
	assert.Equal(t, "پاسخ نهایی", answer)
	api.AssertExpectations(t)
}

func TestChatGenerator_EmptyContextAbstains(t *testing.T) {
	api := new(MockChatAPI)
	g := newChatGenerator(api, testChatConfig())

	answer, err := g.Generate(context.Background(), "سوال", "  ")

	require.NoError(t, err)
	assert.Equal(t, domain.AbstentionSentence, answer)
	api.AssertNotCalled(t, "CreateChatCompletion", mock.Anything, mock.Anything)
}

func TestChatGenerator_APIError(t *testing.T) {
	api := new(MockChatAPI)
	g := newChatGenerator(api, testChatConfig())

	api.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("502 bad gateway"))

	_, err := g.Generate(context.Background(), "q", "ctx")

	assert.ErrorContains(t, err, "chat completion failed")
	assert.ErrorContains(t, err, "502 bad gateway")
}

func TestChatGenerator_NoChoices(t *testing.T) {
	api := new(MockChatAPI)
	g := newChatGenerator(api, testChatConfig())

	api.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, nil)

	_, err := g.Generate(context.Background(), "q", "ctx")

	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestChatGenerator_BreakerOpens(t *testing.T) {
	api := new(MockChatAPI)
	g := newChatGenerator(api, testChatConfig())

	api.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("timeout")).Times(3)

	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), "q", "ctx")
		require.Error(t, err)
	}

	_, err := g.Generate(context.Background(), "q", "ctx")
	assert.ErrorContains(t, err, "chat completions unavailable")
	api.AssertNumberOfCalls(t, "CreateChatCompletion", 3)
}

func TestChatGenerator_RateLimiterHonoursContext(t *testing.T) {
	api := new(MockChatAPI)
	cfg := testChatConfig()
	cfg.RequestsPerMinute = 1
	g := newChatGenerator(api, cfg)

	api.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion("ok"), nil).Once()

	_, err := g.Generate(context.Background(), "q", "ctx")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Generate(ctx, "q", "ctx")
	assert.ErrorContains(t, err, "rate limiter")
}

func TestNewChatGenerator_MissingKey(t *testing.T) {
	g, err := NewChatGenerator(ChatConfig{})

	assert.Nil(t, g)
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNewChatGenerator_Defaults(t *testing.T) {
	g, err := NewChatGenerator(ChatConfig{APIKey: "sk-or-test"})

	require.NoError(t, err)
	assert.Equal(t, DefaultChatModel, g.ModelName())
	assert.Equal(t, DefaultChatBaseURL, g.cfg.BaseURL)
	assert.Equal(t, 512, g.cfg.MaxTokens)
}
