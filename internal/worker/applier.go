package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"idol-server/internal/interfaces"
	"idol-server/internal/messaging"
	"idol-server/internal/models"
)

var errReplyExists = errors.New("reply already exists")

// TurnApplier - единственный путь записи ответа на ход. Используется и
// обработчиком задач, и периодической задачей для зависших ходов.
type TurnApplier struct {
	tx       interfaces.TransactionManager
	players  interfaces.PlayerRepository
	sessions interfaces.SessionRepository
	messages interfaces.MessageRepository
	updates  messaging.SessionUpdatePublisher
	logger   *zap.Logger
	now      func() time.Time
}

func NewTurnApplier(
	tx interfaces.TransactionManager,
	players interfaces.PlayerRepository,
	sessions interfaces.SessionRepository,
	messages interfaces.MessageRepository,
	updates messaging.SessionUpdatePublisher,
	logger *zap.Logger,
) *TurnApplier {
	return &TurnApplier{
		tx:       tx,
		players:  players,
		sessions: sessions,
		messages: messages,
		updates:  updates,
		logger:   logger.Named("TurnApplier"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply атомарно применяет дельты, начисляет награду и добавляет ответ участницы.
// applied=false, если ответ на этот ход уже записан: тогда ничего не меняется.
func (a *TurnApplier) Apply(ctx context.Context, turn *models.Message, out Outcome) (reply *models.Message, applied bool, err error) {
	log := a.logger.With(zap.String("turnID", turn.ID.String()), zap.String("sessionID", turn.SessionID.String()))

	var (
		playerKey string
		stats     models.SessionStats
	)
	err = a.tx.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		session, err := a.sessions.GetForUpdate(ctx, tx, turn.SessionID)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		// Под блокировкой сессии проверка дублей не гоняется с другим воркером
		exists, err := a.messages.ReplyExists(ctx, tx, turn.ID)
		if err != nil {
			return err
		}
		if exists {
			return errReplyExists
		}

		playerKey = session.PlayerKey
		stats = session.Stats().Apply(out.Delta)
		if err := a.sessions.UpdateStats(ctx, tx, session.ID, stats); err != nil {
			return fmt.Errorf("update stats: %w", err)
		}

		if out.Reward.ShardGrant > 0 || out.Reward.CoreGrant > 0 {
			if err := a.players.CreditCurrencies(ctx, tx, playerKey, out.Reward.ShardGrant, out.Reward.CoreGrant); err != nil {
				return fmt.Errorf("credit currencies: %w", err)
			}
		}
		if out.Reward.Buff != nil {
			if err := a.players.AppendBuff(ctx, tx, playerKey, *out.Reward.Buff); err != nil {
				return fmt.Errorf("append buff: %w", err)
			}
		}

		delta := out.Delta
		rw := out.Reward
		turnID := turn.ID
		reply = &models.Message{
			ID:        uuid.New(),
			SessionID: session.ID,
			Sender:    models.SenderCharacter,
			Text:      out.ReplyText,
			StatDelta: &delta,
			Reward:    &rw,
			ReplyTo:   &turnID,
			CreatedAt: a.now(),
		}
		inserted, err := a.messages.CreateReply(ctx, tx, reply)
		if err != nil {
			return fmt.Errorf("insert reply: %w", err)
		}
		if !inserted {
			return errReplyExists
		}
		return nil
	})
	if errors.Is(err, errReplyExists) {
		log.Info("Reply already recorded, skipping")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	update := models.SessionUpdate{
		Type:      models.SessionUpdateReply,
		PlayerKey: playerKey,
		SessionID: turn.SessionID,
		Stats:     &stats,
		Message:   reply,
	}
	if err := a.updates.PublishSessionUpdate(ctx, update); err != nil {
		// Ответ уже в журнале, клиент получит его при следующем чтении истории
		log.Warn("Failed to publish session update", zap.Error(err))
	}

	log.Info("Turn applied",
		zap.String("mood", string(out.Mood)),
		zap.Bool("fallback", out.Fallback),
		zap.Int("stress", stats.Stress),
		zap.Int("ego", stats.Ego),
		zap.Int("motivation", stats.Motivation),
		zap.Int("egoShards", out.Reward.ShardGrant),
		zap.Int("dataCores", out.Reward.CoreGrant),
		zap.Bool("breakthrough", out.Reward.Breakthrough),
	)
	return reply, true, nil
}
