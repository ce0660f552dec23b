package messaging

import (
	"time"

	"github.com/google/uuid"

	"idol-server/internal/models"
)

// NegotiationTaskPayload - задача генерации ответа на ход игрока.
// TurnID - id сообщения игрока; по нему ответ применяется не больше одного раза.
type NegotiationTaskPayload struct {
	TaskID      string    `json:"task_id"`
	TurnID      uuid.UUID `json:"turn_id"`
	SessionID   uuid.UUID `json:"session_id"`
	PlayerKey   string    `json:"player_key"`
	CharacterID uuid.UUID `json:"character_id"`
	InputText   string    `json:"input_text"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// EnrichmentTaskPayload - задача генерации декоративного артефакта.
type EnrichmentTaskPayload struct {
	TaskID        string      `json:"task_id"`
	SessionID     uuid.UUID   `json:"session_id"`
	PlayerKey     string      `json:"player_key"`
	CharacterName string      `json:"character_name"`
	Mood          models.Mood `json:"mood"`
}
