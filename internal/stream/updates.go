package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"idol-server/internal/messaging"
	"idol-server/internal/models"
)

// UpdateForwarder передает обновления сессий из очереди в websocket владельца.
type UpdateForwarder struct {
	manager *ConnectionManager
	logger  *zap.Logger
}

var _ messaging.Handler = (*UpdateForwarder)(nil)

func NewUpdateForwarder(manager *ConnectionManager, logger *zap.Logger) *UpdateForwarder {
	return &UpdateForwarder{manager: manager, logger: logger.Named("UpdateForwarder")}
}

// Handle подтверждает сообщение и тогда, когда игрок офлайн: ответ уже лежит
// в журнале сессии, клиент получит его при следующем чтении истории.
func (f *UpdateForwarder) Handle(ctx context.Context, body []byte) error {
	var update models.SessionUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("invalid session update: %w", err)
	}
	if update.PlayerKey == "" {
		return fmt.Errorf("session update for %s has no player_key", update.SessionID)
	}

	if !f.manager.SendToPlayer(update.PlayerKey, body) {
		f.logger.Debug("Player offline, dropping update",
			zap.String("playerKey", update.PlayerKey), zap.String("type", string(update.Type)))
	}
	return nil
}
