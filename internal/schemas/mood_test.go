package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"idol-server/internal/models"
)

func TestNormalizeMood(t *testing.T) {
	tests := []struct {
		in   string
		want models.Mood
	}{
		{"accept", models.MoodAccept},
		{"reject", models.MoodReject},
		{"counter_offer", models.MoodCounterOffer},
		{"Accept", models.MoodAccept},
		{"ACCEPT!", models.MoodAccept},
		{"acept", models.MoodAccept},
		{"Accept.", models.MoodAccept},
		{"ACCEPTED", models.MoodAccept},
		{"counter offer", models.MoodCounterOffer},
		{"Counter-Offer", models.MoodCounterOffer},
		{"angy", models.MoodAngry},
		{"rejected", models.MoodReject},
		{"xyzxyz", models.MoodPassive},
		{"", models.MoodPassive},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMood(tt.in))
		})
	}
}

func TestNormalizeMood_AlwaysInVocabulary(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		got := NormalizeMood(rapid.String().Draw(t, "label"))
		for _, m := range models.MoodVocabulary {
			if got == m {
				return
			}
		}
		t.Fatalf("mood %q is outside vocabulary", got)
	})
}
