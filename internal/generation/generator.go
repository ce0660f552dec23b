// Package generation - адаптеры внешних сервисов генерации текста.
// Адаптер делает ровно одну попытку; решение о повторе или резервном ответе
// принимает вызывающий.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"idol-server/internal/config"
)

// Виды отказа генерации. Ошибки адаптеров оборачивают один из них.
var (
	ErrTransport     = errors.New("generation transport failure")
	ErrSafetyBlocked = errors.New("generation blocked by safety filter")
	ErrEmptyOutput   = errors.New("generation returned empty output")
)

// Назначение запроса, идет в метки метрик.
const (
	PurposeNegotiation = "negotiation"
	PurposeEnrichment  = "enrichment"
	PurposeCrisis      = "crisis"
)

// Schema - описание структурированного ответа в формате responseSchema Gemini.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

// JSONSchema переводит схему в нижний регистр типов (JSON Schema для Ollama).
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{"type": strings.ToLower(s.Type)}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSONSchema()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

// NegotiationSchema - ответ участницы на предложение.
var NegotiationSchema = &Schema{
	Type: "OBJECT",
	Properties: map[string]*Schema{
		"reply_text": {Type: "STRING"},
		"stat_changes": {
			Type: "OBJECT",
			Properties: map[string]*Schema{
				"stress":     {Type: "INTEGER"},
				"ego":        {Type: "INTEGER"},
				"motivation": {Type: "INTEGER"},
			},
		},
		"mood":         {Type: "STRING"},
		"reward_bonus": {Type: "INTEGER"},
	},
	Required: []string{"reply_text", "stat_changes", "mood"},
}

// CrisisSchema - оценка ответа на кризис.
var CrisisSchema = &Schema{
	Type: "OBJECT",
	Properties: map[string]*Schema{
		"score":     {Type: "INTEGER"},
		"reasoning": {Type: "STRING"},
	},
	Required: []string{"score", "reasoning"},
}

// Options - параметры одного вызова.
type Options struct {
	// Structured включает JSON-режим; Schema тогда ограничивает форму ответа.
	Structured      bool
	Schema          *Schema
	Temperature     float32
	MaxOutputTokens int
	Purpose         string
}

// Generator превращает запрос в сырой текст ответа.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// DefaultOptions заполняет температуру и лимит токенов из конфигурации.
func DefaultOptions(cfg *config.Config, purpose string) Options {
	return Options{
		Temperature:     cfg.AITemperature,
		MaxOutputTokens: cfg.AIMaxOutputTokens,
		Purpose:         purpose,
	}
}

// NewGenerator выбирает реализацию по AI_PROVIDER.
func NewGenerator(cfg *config.Config, logger *zap.Logger) (Generator, error) {
	switch strings.ToLower(cfg.AIProvider) {
	case "gemini":
		logger.Info("Using Gemini generator", zap.String("model", cfg.AIModel))
		return NewGeminiClient(cfg, logger), nil
	case "openai":
		logger.Info("Using OpenAI-compatible generator", zap.String("model", cfg.AIModel), zap.String("baseURL", cfg.AIBaseURL))
		return NewOpenAIClient(cfg, logger), nil
	case "ollama":
		logger.Info("Using Ollama generator", zap.String("model", cfg.AIModel), zap.String("baseURL", cfg.AIBaseURL))
		return NewOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}
