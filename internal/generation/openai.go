package generation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"idol-server/internal/config"
)

const providerOpenAI = "openai"

// OpenAIClient работает с любым OpenAI-совместимым API.
type OpenAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

var _ Generator = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg *config.Config, logger *zap.Logger) *OpenAIClient {
	openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
	openaiConfig.BaseURL = cfg.AIBaseURL
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
	return &OpenAIClient{
		client: openaigo.NewClientWithConfig(openaiConfig),
		model:  cfg.AIModel,
		logger: logger.Named("OpenAIClient"),
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	started := time.Now()

	req := openaigo.ChatCompletionRequest{
		Model: c.model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxOutputTokens,
	}
	if opts.Structured {
		req.ResponseFormat = &openaigo.ChatCompletionResponseFormat{Type: openaigo.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		observe(providerOpenAI, opts.Purpose, statusTransport, started)
		c.logger.Warn("OpenAI request failed", zap.String("purpose", opts.Purpose), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		observe(providerOpenAI, opts.Purpose, statusEmpty, started)
		return "", fmt.Errorf("%w: no choices", ErrEmptyOutput)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openaigo.FinishReasonContentFilter {
		observe(providerOpenAI, opts.Purpose, statusSafety, started)
		return "", fmt.Errorf("%w: content filter", ErrSafetyBlocked)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		observe(providerOpenAI, opts.Purpose, statusEmpty, started)
		return "", fmt.Errorf("%w: empty message", ErrEmptyOutput)
	}

	observe(providerOpenAI, opts.Purpose, statusSuccess, started)
	if resp.Usage.TotalTokens > 0 {
		observeTokens(providerOpenAI, opts.Purpose, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	} else {
		observeTokens(providerOpenAI, opts.Purpose, EstimateTokens(c.model, prompt), EstimateTokens(c.model, choice.Message.Content))
	}
	return choice.Message.Content, nil
}
