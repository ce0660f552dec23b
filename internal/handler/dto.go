package handler

import (
	"github.com/google/uuid"
)

// CreateSessionRequest - тело POST /sessions.
type CreateSessionRequest struct {
	CharacterID uuid.UUID `json:"character_id" binding:"required"`
}

// SubmitProposalRequest - тело POST /sessions/:id/proposals.
type SubmitProposalRequest struct {
	Text string `json:"text"`
}

// MinigameResultRequest - тело POST /minigames/results.
type MinigameResultRequest struct {
	CompletionTimeMs int64 `json:"completion_time_ms" binding:"required"`
}

// CrisisResponseRequest - тело POST /crisis/responses.
type CrisisResponseRequest struct {
	CrisisDescription string `json:"crisis_description" binding:"required"`
	ResponseText      string `json:"response_text"`
}

// SaveUnitRequest - тело PUT /units. Размер и уникальность карт проверяет сервис.
type SaveUnitRequest struct {
	UnitName string      `json:"unit_name"`
	CardIDs  []uuid.UUID `json:"card_ids" binding:"required"`
}

// ListResponse оборачивает коллекции, чтобы пустой список отдавался как [].
type ListResponse[T any] struct {
	Data []T `json:"data"`
}

func listOf[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items}
}
