package worker

import (
	"errors"

	"idol-server/internal/generation"
	"idol-server/internal/models"
	"idol-server/internal/reward"
	"idol-server/internal/schemas"
)

// Outcome - результат хода перед применением к сессии и профилю.
type Outcome struct {
	ReplyText string
	Delta     models.StatDelta
	Mood      models.Mood
	Reward    models.Reward
	// Fallback - ответ не от генератора; декоративная задача не ставится.
	Fallback bool
}

var fallbackReplies = []string{
	"...미안해요, 지금은 대답하기가 좀 어려워요. 조금 있다가 다시 얘기해요.",
	"죄송해요, 머리가 복잡해서요... 나중에 다시 말해줄래요?",
	"음... 잠깐만요. 생각이 잘 정리가 안 돼요.",
	"미안해요 프로듀서님, 지금은 집중이 잘 안 돼요.",
}

// FallbackOutcome - нейтральный ход: нулевые дельты, нулевая награда и
// заготовленная реплика, выбранная детерминированно по сессии и тексту.
func FallbackOutcome(sessionKey, input string) Outcome {
	pick := reward.Range{Min: 0, Max: len(fallbackReplies) - 1}
	idx := pick.Pick(reward.Fraction(sessionKey, input, reward.SlotFallback))
	return Outcome{
		ReplyText: fallbackReplies[idx],
		Mood:      models.DefaultMood,
		Fallback:  true,
	}
}

// fallbackReason - метка метрики для причины перехода на резервный ответ.
func fallbackReason(err error) string {
	switch {
	case errors.Is(err, generation.ErrTransport):
		return "transport"
	case errors.Is(err, generation.ErrSafetyBlocked):
		return "safety"
	case errors.Is(err, generation.ErrEmptyOutput):
		return "empty"
	case errors.Is(err, schemas.ErrParse):
		return "parse"
	default:
		return "other"
	}
}
