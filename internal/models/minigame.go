package models

import (
	"time"

	"github.com/google/uuid"
)

// MinigameResult - запись журнала результатов мини-игры.
type MinigameResult struct {
	ID               uuid.UUID `json:"id" db:"id"`
	PlayerKey        string    `json:"player_key" db:"player_key"`
	CompletionTimeMs int64     `json:"completion_time_ms" db:"completion_time_ms"`
	Rank             string    `json:"rank" db:"rank"`
	TicketsAwarded   int       `json:"tickets_awarded" db:"tickets_awarded"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// MinigameOutcome возвращается клиенту после отправки результата.
type MinigameOutcome struct {
	Rank           string `json:"rank"`
	TicketsAwarded int    `json:"tickets_awarded"`
	IsNewBest      bool   `json:"is_new_best"`
	Tickets        int    `json:"tickets"`
}
