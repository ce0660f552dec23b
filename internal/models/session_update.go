package models

import "github.com/google/uuid"

// SessionUpdateType - вид события в живой ленте сессии.
type SessionUpdateType string

const (
	SessionUpdateReply    SessionUpdateType = "reply"
	SessionUpdateArtifact SessionUpdateType = "artifact"
)

// SessionUpdate уходит через очередь в websocket владельца сессии.
type SessionUpdate struct {
	Type      SessionUpdateType `json:"type"`
	PlayerKey string            `json:"player_key"`
	SessionID uuid.UUID         `json:"session_id"`
	Stats     *SessionStats     `json:"stats,omitempty"`
	Message   *Message          `json:"message,omitempty"`
	Artifact  string            `json:"artifact,omitempty"`
}
