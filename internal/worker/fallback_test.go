package worker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"idol-server/internal/generation"
	"idol-server/internal/models"
	"idol-server/internal/schemas"
)

func TestFallbackOutcome_Deterministic(t *testing.T) {
	a := FallbackOutcome("session-1", "라이브 방송 해줘")
	b := FallbackOutcome("session-1", "라이브 방송 해줘")

	assert.Equal(t, a, b)
	assert.True(t, a.Fallback)
	assert.True(t, a.Delta.IsZero())
	assert.True(t, a.Reward.IsZero())
	assert.Equal(t, models.MoodPassive, a.Mood)
	assert.Contains(t, fallbackReplies, a.ReplyText)
}

func TestFallbackOutcome_CoversReplySet(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[FallbackOutcome("session-1", fmt.Sprintf("input-%d", i)).ReplyText] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestFallbackReason(t *testing.T) {
	assert.Equal(t, "transport", fallbackReason(fmt.Errorf("gemini: %w", generation.ErrTransport)))
	assert.Equal(t, "safety", fallbackReason(generation.ErrSafetyBlocked))
	assert.Equal(t, "empty", fallbackReason(generation.ErrEmptyOutput))
	assert.Equal(t, "parse", fallbackReason(&schemas.ParseError{Raw: "x", Err: errors.New("bad")}))
	assert.Equal(t, "other", fallbackReason(errors.New("boom")))
}
