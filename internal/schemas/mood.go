package schemas

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"idol-server/internal/models"
)

var moodReplacer = strings.NewReplacer(" ", "_", "-", "_")

// NormalizeMood сопоставляет метку настроения со словарем models.MoodVocabulary.
// Точное совпадение возвращается сразу, иначе выбирается ближайшая по расстоянию
// Левенштейна метка; при равенстве побеждает более ранняя в словаре.
// Если даже ближайшая метка отличается больше чем на половину своей длины,
// возвращается models.DefaultMood.
func NormalizeMood(label string) models.Mood {
	normalized := moodReplacer.Replace(strings.ToLower(strings.TrimSpace(label)))
	if normalized == "" {
		return models.DefaultMood
	}
	for _, m := range models.MoodVocabulary {
		if normalized == string(m) {
			return m
		}
	}

	best := models.DefaultMood
	bestDistance := -1
	for _, m := range models.MoodVocabulary {
		d := levenshtein.ComputeDistance(normalized, string(m))
		if bestDistance < 0 || d < bestDistance {
			best, bestDistance = m, d
		}
	}
	if bestDistance > len(best)/2 {
		return models.DefaultMood
	}
	return best
}
