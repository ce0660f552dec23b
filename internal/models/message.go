package models

import (
	"time"

	"github.com/google/uuid"
)

// SenderRole - автор сообщения в ленте переговоров.
type SenderRole string

const (
	SenderPlayer    SenderRole = "player"
	SenderCharacter SenderRole = "character"
)

// MessageHistoryLimit - сколько последних сообщений отдается клиенту.
const MessageHistoryLimit = 100

// StatDelta - изменение показателей за один ход.
type StatDelta struct {
	Stress     int `json:"stress"`
	Ego        int `json:"ego"`
	Motivation int `json:"motivation"`
}

// IsZero сообщает, что дельта нулевая.
func (d StatDelta) IsZero() bool {
	return d.Stress == 0 && d.Ego == 0 && d.Motivation == 0
}

// Message - запись журнала переговоров. После вставки не меняется.
// Для ответа участницы ReplyTo указывает на сообщение игрока (ход).
type Message struct {
	ID        uuid.UUID  `json:"id"`
	SessionID uuid.UUID  `json:"session_id"`
	Sender    SenderRole `json:"sender"`
	Text      string     `json:"text"`
	StatDelta *StatDelta `json:"stat_changes,omitempty"`
	Reward    *Reward    `json:"rewards,omitempty"`
	ReplyTo   *uuid.UUID `json:"reply_to,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
