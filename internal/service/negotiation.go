package service

import (
	"context"

	"github.com/google/uuid"

	"idol-server/internal/models"
)

// SubmitResult - принятый ход: сообщение игрока и остаток билетов.
// Ответ участницы приходит позже через ленту сессии.
type SubmitResult struct {
	Turn        *models.Message `json:"turn"`
	TicketsLeft int             `json:"tickets_left"`
}

// NegotiationService управляет сессиями переговоров и приемом ходов.
// Пустой playerKey во всех методах означает неаутентифицированный вызов.
type NegotiationService interface {
	EnsurePlayer(ctx context.Context, playerKey string) (*models.Player, error)
	GetProfile(ctx context.Context, playerKey string) (*models.Player, error)
	ListCharacters(ctx context.Context) ([]models.Character, error)
	GetCharacter(ctx context.Context, characterID uuid.UUID) (*models.Character, error)

	// GetOrCreateSession возвращает открытую сессию пары или создает новую,
	// унаследовав показатели последней закрытой.
	GetOrCreateSession(ctx context.Context, playerKey string, characterID uuid.UUID) (*models.NegotiationSession, error)
	GetSession(ctx context.Context, playerKey string, sessionID uuid.UUID) (*models.NegotiationSession, error)
	ListSessions(ctx context.Context, playerKey string) ([]models.NegotiationSession, error)
	// ListMessages - последние models.MessageHistoryLimit сообщений в хронологическом порядке.
	ListMessages(ctx context.Context, playerKey string, sessionID uuid.UUID) ([]models.Message, error)
	CloseSession(ctx context.Context, playerKey string, sessionID uuid.UUID) (*models.NegotiationSession, error)

	SubmitProposal(ctx context.Context, playerKey string, sessionID uuid.UUID, text string) (*SubmitResult, error)
}
