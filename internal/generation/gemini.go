package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"idol-server/internal/config"
	"idol-server/internal/logger"
)

const providerGemini = "gemini"

// Категории фильтра безопасности. Все выставляются в BLOCK_NONE:
// резкие и злые реплики персонажей - штатная часть игры.
var geminiHarmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Причины завершения кандидата, означающие срабатывание фильтра.
var geminiSafetyFinishReasons = map[string]struct{}{
	"SAFETY":             {},
	"PROHIBITED_CONTENT": {},
	"BLOCKLIST":          {},
	"SPII":               {},
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerationConfig struct {
	Temperature      float32 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	SafetySettings   []geminiSafetySetting  `json:"safetySettings"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// GeminiClient вызывает REST-метод generateContent.
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	logger     *zap.Logger
}

var _ Generator = (*GeminiClient)(nil)

func NewGeminiClient(cfg *config.Config, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{Timeout: cfg.AITimeout},
		baseURL:    strings.TrimSuffix(cfg.AIBaseURL, "/"),
		model:      cfg.AIModel,
		apiKey:     cfg.AIAPIKey,
		logger:     logger.Named("GeminiClient"),
	}
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	started := time.Now()
	log := c.logger.With(zap.String("purpose", opts.Purpose), zap.String("model", c.model))

	reqBody := geminiRequest{
		Contents:       []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		SafetySettings: make([]geminiSafetySetting, 0, len(geminiHarmCategories)),
		GenerationConfig: geminiGenerationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxOutputTokens,
		},
	}
	for _, category := range geminiHarmCategories {
		reqBody.SafetySettings = append(reqBody.SafetySettings, geminiSafetySetting{Category: category, Threshold: "BLOCK_NONE"})
	}
	if opts.Structured {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
		reqBody.GenerationConfig.ResponseSchema = opts.Schema
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: failed to build request: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		observe(providerGemini, opts.Purpose, statusTransport, started)
		log.Warn("Gemini request failed", zap.Error(redactKey(err, c.apiKey)))
		return "", fmt.Errorf("%w: %v", ErrTransport, redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		observe(providerGemini, opts.Purpose, statusTransport, started)
		return "", fmt.Errorf("%w: failed to read body: %v", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observe(providerGemini, opts.Purpose, statusTransport, started)
		log.Warn("Gemini returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", logger.Snippet(string(body), 300)),
		)
		return "", fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, logger.Snippet(string(body), 200))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		observe(providerGemini, opts.Purpose, statusTransport, started)
		return "", fmt.Errorf("%w: malformed response: %v", ErrTransport, err)
	}

	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		observe(providerGemini, opts.Purpose, statusSafety, started)
		log.Warn("Gemini blocked the prompt", zap.String("blockReason", parsed.PromptFeedback.BlockReason))
		return "", fmt.Errorf("%w: prompt blocked: %s", ErrSafetyBlocked, parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 {
		observe(providerGemini, opts.Purpose, statusEmpty, started)
		return "", fmt.Errorf("%w: no candidates", ErrEmptyOutput)
	}

	candidate := parsed.Candidates[0]
	if _, blocked := geminiSafetyFinishReasons[candidate.FinishReason]; blocked {
		observe(providerGemini, opts.Purpose, statusSafety, started)
		log.Warn("Gemini candidate stopped by safety filter", zap.String("finishReason", candidate.FinishReason))
		return "", fmt.Errorf("%w: finish reason %s", ErrSafetyBlocked, candidate.FinishReason)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		observe(providerGemini, opts.Purpose, statusEmpty, started)
		return "", fmt.Errorf("%w: candidate has no text (finish reason %q)", ErrEmptyOutput, candidate.FinishReason)
	}

	observe(providerGemini, opts.Purpose, statusSuccess, started)
	if parsed.UsageMetadata != nil {
		observeTokens(providerGemini, opts.Purpose, parsed.UsageMetadata.PromptTokenCount, parsed.UsageMetadata.CandidatesTokenCount)
	} else {
		observeTokens(providerGemini, opts.Purpose, EstimateTokens(c.model, prompt), EstimateTokens(c.model, text))
	}
	log.Debug("Gemini response received",
		zap.Duration("duration", time.Since(started)),
		zap.Int("length", len(text)),
		zap.String("finishReason", candidate.FinishReason),
	)
	return text, nil
}

// Ключ передается в query, поэтому он может оказаться в тексте *url.Error.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), url.QueryEscape(key), "***"))
}
