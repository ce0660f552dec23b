package reward

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"idol-server/internal/models"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestCalculate_SuccessfulTurn(t *testing.T) {
	r := Calculate(Input{
		SessionKey: "session-1",
		Text:       "propose a TV appearance",
		Mood:       models.MoodAccept,
		Delta:      models.StatDelta{Stress: 5, Ego: 3, Motivation: 10},
		Now:        fixedNow,
	})

	assert.GreaterOrEqual(t, r.ShardGrant, PrimaryRange.Min)
	assert.LessOrEqual(t, r.ShardGrant, PrimaryRange.Max)
	assert.GreaterOrEqual(t, r.CoreGrant, SecondaryRange.Min)
	assert.LessOrEqual(t, r.CoreGrant, SecondaryRange.Max)
	assert.True(t, r.Breakthrough, "motivation +10 is a breakthrough")
	require.NotNil(t, r.Buff)
	assert.Equal(t, fixedNow.Add(BuffDuration), r.Buff.ExpiresAt)
	assert.Contains(t, models.BuffStats, r.Buff.Stat)
}

func TestCalculate_FailedTurnGetsConsolation(t *testing.T) {
	for _, mood := range []models.Mood{models.MoodReject, models.MoodPassive, models.MoodAngry} {
		r := Calculate(Input{
			SessionKey: "s", Text: "무리한 일정", Mood: mood,
			Delta: models.StatDelta{Ego: 15, Motivation: 15}, RewardBonus: 10,
		})
		assert.GreaterOrEqual(t, r.ShardGrant, ConsolationRange.Min)
		assert.LessOrEqual(t, r.ShardGrant, ConsolationRange.Max)
		assert.Zero(t, r.CoreGrant)
		assert.False(t, r.Breakthrough, "breakthrough only on a successful turn")
		assert.Nil(t, r.Buff)
	}
}

func TestCalculate_BreakthroughThresholds(t *testing.T) {
	base := Input{SessionKey: "s", Text: "t", Mood: models.MoodCounterOffer, Now: fixedNow}

	base.Delta = models.StatDelta{Ego: 4, Motivation: 7}
	assert.False(t, Calculate(base).Breakthrough)

	base.Delta = models.StatDelta{Ego: 5}
	assert.True(t, Calculate(base).Breakthrough)

	base.Delta = models.StatDelta{Motivation: 8}
	assert.True(t, Calculate(base).Breakthrough)
}

func TestCalculate_Deterministic(t *testing.T) {
	in := Input{SessionKey: "abc", Text: "콘서트 하자", Mood: models.MoodAccept, Now: fixedNow}
	assert.Equal(t, Calculate(in), Calculate(in))

	// Разные тексты почти всегда дают разные броски
	distinct := map[float64]struct{}{}
	for _, text := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		distinct[Fraction("abc", text, SlotPrimary)] = struct{}{}
	}
	assert.Greater(t, len(distinct), 1)
}

func TestFraction_SlotsAreIndependent(t *testing.T) {
	assert.NotEqual(t, Fraction("s", "t", SlotPrimary), Fraction("s", "t", SlotSecondary))
}

func TestCalculate_GrantsBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := Input{
			SessionKey:  rapid.String().Draw(t, "session"),
			Text:        rapid.String().Draw(t, "text"),
			Mood:        rapid.SampledFrom(models.MoodVocabulary).Draw(t, "mood"),
			RewardBonus: rapid.IntRange(-100, 100).Draw(t, "bonus"),
			Now:         fixedNow,
		}
		f := Fraction(in.SessionKey, in.Text, SlotPrimary)
		if f < 0 || f >= 1 {
			t.Fatalf("fraction %v outside [0,1)", f)
		}

		r := Calculate(in)
		if in.Mood.IsSuccessful() {
			if r.ShardGrant < PrimaryRange.Min || r.ShardGrant > PrimaryRange.Max+BonusRange.Max {
				t.Fatalf("shard grant %d out of range", r.ShardGrant)
			}
			if r.CoreGrant < SecondaryRange.Min || r.CoreGrant > SecondaryRange.Max {
				t.Fatalf("core grant %d out of range", r.CoreGrant)
			}
			return
		}
		if r.ShardGrant < ConsolationRange.Min || r.ShardGrant > ConsolationRange.Max || r.CoreGrant != 0 {
			t.Fatalf("consolation reward out of range: %+v", r)
		}
	})
}
