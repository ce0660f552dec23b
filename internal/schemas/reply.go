// Package schemas разбирает и проверяет сырой ответ генератора.
// На выходе всегда типизированная структура: нечисловые дельты превращаются в 0,
// слишком большие зажимаются, настроение приводится к закрытому словарю.
package schemas

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"idol-server/internal/models"
)

const (
	// MaxStatDelta - максимальный модуль изменения одного показателя за ход.
	MaxStatDelta = 15
	// MaxRewardBonus - верхняя граница бонуса награды, предложенного генератором.
	MaxRewardBonus = 10

	// ThinkingPlaceholder подставляется, если в ответе нет текста реплики.
	ThinkingPlaceholder = "...잠시 생각 중이에요."
)

// ErrParse - ответ генератора не удалось разобрать как структурированную запись.
var ErrParse = errors.New("generation parse failure")

// ParseError хранит исходный текст для диагностики.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse generator reply: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// NegotiationReply - проверенный результат хода.
type NegotiationReply struct {
	ReplyText   string
	StatChanges models.StatDelta
	Mood        models.Mood
	RewardBonus int
}

type rawReply struct {
	ReplyText   json.RawMessage            `json:"reply_text"`
	StatChanges map[string]json.RawMessage `json:"stat_changes"`
	Mood        json.RawMessage            `json:"mood"`
	RewardBonus json.RawMessage            `json:"reward_bonus"`
}

var fencedBlockRegex = regexp.MustCompile("(?s)^```(?:[A-Za-z]+)?\\s*(.*?)\\s*```$")

// StripCodeFence убирает обертку ```json ... ``` вокруг ответа, если она есть.
func StripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if m := fencedBlockRegex.FindStringSubmatch(cleaned); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	// Незакрытая обертка
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "json"), "JSON")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// ParseNegotiationReply разбирает структурированный ответ генератора.
// Ошибка всегда *ParseError; вызывающий переходит на резервный ответ.
func ParseNegotiationReply(raw string) (*NegotiationReply, error) {
	content := StripCodeFence(raw)
	if content == "" {
		return nil, &ParseError{Raw: raw, Err: errors.New("empty content")}
	}

	var r rawReply
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	reply := &NegotiationReply{
		ReplyText: stringField(r.ReplyText),
		StatChanges: models.StatDelta{
			Stress:     clampDelta(r.StatChanges["stress"]),
			Ego:        clampDelta(r.StatChanges["ego"]),
			Motivation: clampDelta(r.StatChanges["motivation"]),
		},
		Mood:        NormalizeMood(stringField(r.Mood)),
		RewardBonus: int(math.Round(clampFloat(coerceNumber(r.RewardBonus), 0, MaxRewardBonus))),
	}
	if strings.TrimSpace(reply.ReplyText) == "" {
		reply.ReplyText = ThinkingPlaceholder
	}
	return reply, nil
}

func clampDelta(raw json.RawMessage) int {
	return int(math.Round(clampFloat(coerceNumber(raw), -MaxStatDelta, MaxStatDelta)))
}

// coerceNumber принимает число или числовую строку; все остальное дает 0.
func coerceNumber(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) {
			return f
		}
	}
	return 0
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
