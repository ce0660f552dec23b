package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatMin = 0
	StatMax = 100

	// DefaultArtifact - заглушка декоративного поля новой сессии.
	DefaultArtifact = "<svg></svg>"
)

// DefaultSessionStats - стартовые показатели самой первой сессии пары игрок/участница.
var DefaultSessionStats = SessionStats{Stress: 0, Ego: 10, Motivation: 50}

// SessionStats - три психологических показателя участницы, каждый в [0,100].
type SessionStats struct {
	Stress     int `json:"stress"`
	Ego        int `json:"ego"`
	Motivation int `json:"motivation"`
}

// Apply прибавляет дельту и зажимает каждый показатель в [StatMin, StatMax].
func (s SessionStats) Apply(d StatDelta) SessionStats {
	return SessionStats{
		Stress:     ClampInt(s.Stress+d.Stress, StatMin, StatMax),
		Ego:        ClampInt(s.Ego+d.Ego, StatMin, StatMax),
		Motivation: ClampInt(s.Motivation+d.Motivation, StatMin, StatMax),
	}
}

// NegotiationSession - переговорная сессия между игроком и участницей.
// Переход в закрытое состояние необратим.
type NegotiationSession struct {
	ID              uuid.UUID `json:"id" db:"id"`
	PlayerKey       string    `json:"player_key" db:"player_key"`
	CharacterID     uuid.UUID `json:"character_id" db:"character_id"`
	CharacterName   string    `json:"character_name" db:"character_name"`
	IsClosed        bool      `json:"is_closed" db:"is_closed"`
	Stress          int       `json:"stress" db:"stress"`
	Ego             int       `json:"ego" db:"ego"`
	Motivation      int       `json:"motivation" db:"motivation"`
	CurrentArtifact string    `json:"current_artifact" db:"current_artifact"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Stats возвращает текущие показатели сессии.
func (s *NegotiationSession) Stats() SessionStats {
	return SessionStats{Stress: s.Stress, Ego: s.Ego, Motivation: s.Motivation}
}

// SetStats записывает показатели в сессию.
func (s *NegotiationSession) SetStats(st SessionStats) {
	s.Stress = st.Stress
	s.Ego = st.Ego
	s.Motivation = st.Motivation
}

// ClampInt ограничивает v диапазоном [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
