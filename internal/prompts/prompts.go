// Package prompts собирает тексты запросов к генератору из встроенных шаблонов.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"idol-server/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// HistoryLimit - сколько последних реплик попадает в запрос переговоров.
const HistoryLimit = 6

// HistoryLine - одна реплика из журнала сессии.
type HistoryLine struct {
	Speaker string
	Text    string
}

// NegotiationData - данные для запроса хода переговоров.
type NegotiationData struct {
	Name        string
	Personality string
	Stats       models.SessionStats
	History     []HistoryLine
	Proposal    string
}

// NewNegotiationData заполняет данные запроса из сессии, участницы и хвоста журнала.
func NewNegotiationData(character *models.Character, stats models.SessionStats, history []models.Message, proposal string) NegotiationData {
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	lines := make([]HistoryLine, 0, len(history))
	for _, m := range history {
		speaker := "프로듀서"
		if m.Sender == models.SenderCharacter {
			speaker = character.Name
		}
		lines = append(lines, HistoryLine{Speaker: speaker, Text: m.Text})
	}
	return NegotiationData{
		Name:        character.Name,
		Personality: character.Personality,
		Stats:       stats,
		History:     lines,
		Proposal:    proposal,
	}
}

func Negotiation(data NegotiationData) (string, error) {
	return render("negotiation.tmpl", data)
}

var moodPalettes = map[models.Mood]string{
	models.MoodReject:       "angry red/orange",
	models.MoodAccept:       "purple/gold glow",
	models.MoodCounterOffer: "teal/gold shimmer",
	models.MoodPassive:      "gray/blue drift",
	models.MoodAngry:        "red noise shake",
}

// Enrichment - запрос декоративного svg-фона под настроение.
func Enrichment(mood models.Mood, characterName string) (string, error) {
	palette, ok := moodPalettes[mood]
	if !ok {
		palette = moodPalettes[models.DefaultMood]
	}
	return render("enrichment.tmpl", struct {
		Mood    models.Mood
		Palette string
		Name    string
	}{mood, palette, characterName})
}

// Crisis - запрос оценки ответа агентства на кризис.
func Crisis(crisis, response string) (string, error) {
	return render("crisis.tmpl", struct {
		Crisis   string
		Response string
	}{crisis, response})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
