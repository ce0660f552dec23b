package generation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"idol-server/internal/config"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiClient(&config.Config{
		AIBaseURL: srv.URL,
		AIModel:   "gemini-test",
		AIAPIKey:  "secret-key",
		AITimeout: 5 * time.Second,
	}, zap.NewNop())
}

const okGeminiBody = `{
  "candidates": [{"content": {"role": "model", "parts": [{"text": "{\"reply_text\":\"좋아요\"}"}]}, "finishReason": "STOP"}],
  "usageMetadata": {"promptTokenCount": 120, "candidatesTokenCount": 30}
}`

func TestGemini_StructuredRequest(t *testing.T) {
	var captured geminiRequest
	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret-key", r.URL.Query().Get("key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(okGeminiBody))
	})

	text, err := client.Generate(context.Background(), "prompt", Options{
		Structured:      true,
		Schema:          NegotiationSchema,
		Temperature:     0.9,
		MaxOutputTokens: 2048,
		Purpose:         PurposeNegotiation,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"reply_text":"좋아요"}`, text)

	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "prompt", captured.Contents[0].Parts[0].Text)
	require.Len(t, captured.SafetySettings, 4)
	for _, s := range captured.SafetySettings {
		assert.Equal(t, "BLOCK_NONE", s.Threshold)
	}
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
	assert.Equal(t, 2048, captured.GenerationConfig.MaxOutputTokens)
	require.NotNil(t, captured.GenerationConfig.ResponseSchema)
	assert.ElementsMatch(t, []string{"reply_text", "stat_changes", "mood"}, captured.GenerationConfig.ResponseSchema.Required)
}

func TestGemini_FreeTextHasNoSchema(t *testing.T) {
	var raw map[string]any
	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &raw))
		_, _ = w.Write([]byte(okGeminiBody))
	})

	_, err := client.Generate(context.Background(), "svg please", Options{Purpose: PurposeEnrichment})
	require.NoError(t, err)
	genCfg := raw["generationConfig"].(map[string]any)
	assert.NotContains(t, genCfg, "responseMimeType")
	assert.NotContains(t, genCfg, "responseSchema")
}

func TestGemini_FailureKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, ErrTransport},
		{"quota", http.StatusTooManyRequests, `{}`, ErrTransport},
		{"malformed body", http.StatusOK, `not json`, ErrTransport},
		{"prompt blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, ErrSafetyBlocked},
		{"candidate blocked", http.StatusOK, `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`, ErrSafetyBlocked},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, ErrEmptyOutput},
		{"empty text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  "}]},"finishReason":"MAX_TOKENS"}]}`, ErrEmptyOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Generate(context.Background(), "p", Options{Structured: true, Schema: NegotiationSchema})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGemini_UnreachableIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewGeminiClient(&config.Config{AIBaseURL: srv.URL, AIModel: "m", AIAPIKey: "k3y", AITimeout: time.Second}, zap.NewNop())
	_, err := client.Generate(context.Background(), "p", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotContains(t, err.Error(), "k3y")
}

func TestSchema_JSONSchema(t *testing.T) {
	js := CrisisSchema.JSONSchema()
	assert.Equal(t, "object", js["type"])
	props := js["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "integer"}, props["score"])
}
