package prompts

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idol-server/internal/models"
)

func TestNegotiationPrompt(t *testing.T) {
	character := &models.Character{Name: "리아", Personality: "완벽주의 메인보컬"}
	history := make([]models.Message, 0, 10)
	for i := 0; i < 10; i++ {
		sender := models.SenderPlayer
		if i%2 == 1 {
			sender = models.SenderCharacter
		}
		history = append(history, models.Message{Sender: sender, Text: fmt.Sprintf("line-%d", i)})
	}

	data := NewNegotiationData(character, models.SessionStats{Stress: 81, Ego: 72, Motivation: 20}, history, "예능 출연 어때?")
	assert.Len(t, data.History, HistoryLimit)

	prompt, err := Negotiation(data)
	require.NoError(t, err)
	assert.Contains(t, prompt, "You are 리아")
	assert.Contains(t, prompt, "완벽주의 메인보컬")
	assert.Contains(t, prompt, "자아(Ego): 72/100")
	assert.Contains(t, prompt, "스트레스(Stress): 81/100")
	assert.Contains(t, prompt, `"예능 출연 어때?"`)
	assert.Contains(t, prompt, "- 리아: line-9")
	assert.NotContains(t, prompt, "line-3")
	assert.Contains(t, prompt, "counter_offer")
}

func TestNegotiationPrompt_NoHistory(t *testing.T) {
	prompt, err := Negotiation(NewNegotiationData(&models.Character{Name: "Sera"}, models.DefaultSessionStats, nil, "hi"))
	require.NoError(t, err)
	assert.NotContains(t, prompt, "최근 대화")
}

func TestEnrichmentPrompt(t *testing.T) {
	prompt, err := Enrichment(models.MoodAccept, "Yuna")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Mood: accept (purple/gold glow)")
	assert.Contains(t, prompt, "Character: Yuna")

	prompt, err = Enrichment(models.Mood("weird"), "Yuna")
	require.NoError(t, err)
	assert.Contains(t, prompt, "gray/blue drift")
}

func TestCrisisPrompt(t *testing.T) {
	prompt, err := Crisis("열애설 보도", "사실무근입니다")
	require.NoError(t, err)
	assert.Contains(t, prompt, `Crisis Summary: "열애설 보도"`)
	assert.Contains(t, prompt, `"사실무근입니다"`)
}
