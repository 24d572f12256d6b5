package providers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"calflow/internal/config"
	"calflow/internal/telemetry"
)

const defaultMaxTokens = 256

// AI generates short texts through an OpenAI-compatible chat completion API.
type AI struct {
	client  *openai.Client
	model   string
	apiKey  string
	metrics *telemetry.CallMetrics
}

func NewAI(apiKey, baseURL, model string, timeout time.Duration) *AI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &AI{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		apiKey:  apiKey,
		metrics: telemetry.NewCallMetrics("calflow/providers"),
	}
}

// Generate returns the model's answer to prompt.
func (a *AI) Generate(ctx context.Context, prompt string) (text string, err error) {
	if a.apiKey == "" {
		return "", config.Missing("GEMINI_API_KEY")
	}

	start := time.Now()
	defer func() { a.metrics.Observe(ctx, "ai", "generate", start, err) }()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.model,
		MaxTokens: defaultMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", upstream("ai", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", noResult("ai returned an empty answer")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
