package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"idol-server/internal/config"
)

const providerOllama = "ollama"

// OllamaClient использует нативный API Ollama.
type OllamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ Generator = (*OllamaClient)(nil)

func NewOllamaClient(cfg *config.Config, logger *zap.Logger) (*OllamaClient, error) {
	// api.NewClient ждет адрес без суффикса /v1
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.AIBaseURL, "/"), "/v1")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama base URL %q: %w", baseURL, err)
	}
	return &OllamaClient{
		client:  api.NewClient(parsedURL, &http.Client{Timeout: cfg.AITimeout}),
		model:   cfg.AIModel,
		timeout: cfg.AITimeout,
		logger:  logger.Named("OllamaClient"),
	}, nil
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	started := time.Now()

	req := &api.ChatRequest{
		Model:    c.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   func(b bool) *bool { return &b }(false),
		Options: map[string]interface{}{
			"temperature": opts.Temperature,
			"num_predict": opts.MaxOutputTokens,
		},
	}
	if opts.Structured {
		format := json.RawMessage(`"json"`)
		if opts.Schema != nil {
			if raw, err := json.Marshal(opts.Schema.JSONSchema()); err == nil {
				format = raw
			}
		}
		req.Format = format
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		observe(providerOllama, opts.Purpose, statusTransport, started)
		c.logger.Warn("Ollama request failed", zap.String("purpose", opts.Purpose), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		observe(providerOllama, opts.Purpose, statusEmpty, started)
		return "", fmt.Errorf("%w: empty message", ErrEmptyOutput)
	}

	observe(providerOllama, opts.Purpose, statusSuccess, started)
	observeTokens(providerOllama, opts.Purpose, resp.PromptEvalCount, resp.EvalCount)
	return resp.Message.Content, nil
}
