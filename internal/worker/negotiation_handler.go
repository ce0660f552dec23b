// Package worker обрабатывает асинхронную часть хода: генерацию ответа,
// применение результата, декоративные артефакты и зависшие ходы.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"idol-server/internal/config"
	"idol-server/internal/generation"
	"idol-server/internal/interfaces"
	"idol-server/internal/logger"
	"idol-server/internal/messaging"
	"idol-server/internal/models"
	"idol-server/internal/prompts"
	"idol-server/internal/reward"
	"idol-server/internal/schemas"
)

// NegotiationHandler обрабатывает задачи генерации ответа на ход игрока.
// Доставка at-least-once: повторная задача по тому же ходу ничего не меняет.
type NegotiationHandler struct {
	db         interfaces.DBTX
	characters interfaces.CharacterRepository
	sessions   interfaces.SessionRepository
	messages   interfaces.MessageRepository
	locker     interfaces.TurnLocker
	generator  generation.Generator
	applier    *TurnApplier
	enrichPub  messaging.EnrichmentTaskPublisher
	cfg        *config.Config
	logger     *zap.Logger
	now        func() time.Time
}

var _ messaging.Handler = (*NegotiationHandler)(nil)

func NewNegotiationHandler(
	db interfaces.DBTX,
	characters interfaces.CharacterRepository,
	sessions interfaces.SessionRepository,
	messages interfaces.MessageRepository,
	locker interfaces.TurnLocker,
	generator generation.Generator,
	applier *TurnApplier,
	enrichPub messaging.EnrichmentTaskPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *NegotiationHandler {
	return &NegotiationHandler{
		db:         db,
		characters: characters,
		sessions:   sessions,
		messages:   messages,
		locker:     locker,
		generator:  generator,
		applier:    applier,
		enrichPub:  enrichPub,
		cfg:        cfg,
		logger:     logger.Named("NegotiationHandler"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Handle разбирает задачу из очереди. Битое сообщение уходит в DLQ,
// временная ошибка хранилища возвращает задачу в очередь.
func (h *NegotiationHandler) Handle(ctx context.Context, body []byte) error {
	tasksReceived.WithLabelValues("negotiation").Inc()

	var payload messaging.NegotiationTaskPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("invalid negotiation task: %w", err)
	}
	if payload.TurnID == uuid.Nil {
		return errors.New("invalid negotiation task: missing turn_id")
	}
	return h.Process(ctx, payload)
}

// Process доводит ход до записанного ответа участницы.
func (h *NegotiationHandler) Process(ctx context.Context, payload messaging.NegotiationTaskPayload) error {
	start := time.Now()
	log := h.logger.With(
		zap.String("taskID", payload.TaskID),
		zap.String("turnID", payload.TurnID.String()),
		zap.String("sessionID", payload.SessionID.String()),
	)

	acquired, err := h.locker.Acquire(ctx, payload.TurnID, h.cfg.TurnLockTTL)
	switch {
	case err != nil:
		// Без Redis остается уникальный индекс reply_to
		log.Warn("Turn lock unavailable, relying on reply uniqueness", zap.Error(err))
	case !acquired:
		log.Info("Turn is being processed by another worker, dropping redelivery")
		turnOutcomes.WithLabelValues("duplicate").Inc()
		return nil
	default:
		defer func() {
			// Отдельный контекст: ctx обработчика мог истечь
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.locker.Release(releaseCtx, payload.TurnID); err != nil {
				log.Warn("Failed to release turn lock", zap.Error(err))
			}
		}()
	}

	exists, err := h.messages.ReplyExists(ctx, h.db, payload.TurnID)
	if err != nil {
		return fmt.Errorf("%w: check reply: %w", messaging.ErrRetryable, err)
	}
	if exists {
		log.Info("Turn already answered")
		turnOutcomes.WithLabelValues("duplicate").Inc()
		return nil
	}

	turn, err := h.messages.GetByID(ctx, h.db, payload.TurnID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("turn %s not found: %w", payload.TurnID, err)
		}
		return fmt.Errorf("%w: load turn: %w", messaging.ErrRetryable, err)
	}
	session, err := h.sessions.GetByID(ctx, h.db, turn.SessionID)
	if err != nil {
		return fmt.Errorf("%w: load session: %w", messaging.ErrRetryable, err)
	}
	character, err := h.characters.GetByID(ctx, h.db, session.CharacterID)
	if err != nil {
		return fmt.Errorf("%w: load character: %w", messaging.ErrRetryable, err)
	}
	history, err := h.messages.ListRecent(ctx, h.db, session.ID, models.MessageHistoryLimit)
	if err != nil {
		return fmt.Errorf("%w: load history: %w", messaging.ErrRetryable, err)
	}

	out := h.generateOutcome(ctx, log, session, character, historyBefore(history, turn.ID), turn)

	if _, applied, err := h.applier.Apply(ctx, turn, out); err != nil {
		return fmt.Errorf("%w: apply turn: %w", messaging.ErrRetryable, err)
	} else if !applied {
		turnOutcomes.WithLabelValues("duplicate").Inc()
		return nil
	}

	turnDuration.Observe(time.Since(start).Seconds())
	if out.Fallback {
		turnOutcomes.WithLabelValues("fallback").Inc()
		return nil
	}
	turnOutcomes.WithLabelValues("generated").Inc()

	enrichment := messaging.EnrichmentTaskPayload{
		TaskID:        uuid.NewString(),
		SessionID:     session.ID,
		PlayerKey:     session.PlayerKey,
		CharacterName: character.Name,
		Mood:          out.Mood,
	}
	if err := h.enrichPub.PublishEnrichmentTask(ctx, enrichment); err != nil {
		log.Warn("Failed to enqueue enrichment task", zap.Error(err))
	}
	return nil
}

// generateOutcome не возвращает ошибок: любой сбой генерации дает резервный ход.
func (h *NegotiationHandler) generateOutcome(
	ctx context.Context,
	log *zap.Logger,
	session *models.NegotiationSession,
	character *models.Character,
	history []models.Message,
	turn *models.Message,
) Outcome {
	sessionKey := session.ID.String()
	fallback := func(err error) Outcome {
		reason := fallbackReason(err)
		fallbackReasons.WithLabelValues(reason).Inc()
		log.Warn("Generation failed, applying fallback reply", zap.String("reason", reason), zap.Error(err))
		return FallbackOutcome(sessionKey, turn.Text)
	}

	prompt, err := prompts.Negotiation(prompts.NewNegotiationData(character, session.Stats(), history, turn.Text))
	if err != nil {
		return fallback(err)
	}

	opts := generation.DefaultOptions(h.cfg, generation.PurposeNegotiation)
	opts.Structured = true
	opts.Schema = generation.NegotiationSchema

	genCtx, cancel := context.WithTimeout(ctx, h.cfg.AITimeout)
	defer cancel()
	raw, err := h.generator.Generate(genCtx, prompt, opts)
	if err != nil {
		return fallback(err)
	}

	parsed, err := schemas.ParseNegotiationReply(raw)
	if err != nil {
		log.Debug("Unparseable generator reply", zap.String("raw", logger.Snippet(raw, 300)))
		return fallback(err)
	}

	return Outcome{
		ReplyText: parsed.ReplyText,
		Delta:     parsed.StatChanges,
		Mood:      parsed.Mood,
		Reward: reward.Calculate(reward.Input{
			SessionKey:  sessionKey,
			Text:        turn.Text,
			Mood:        parsed.Mood,
			Delta:       parsed.StatChanges,
			RewardBonus: parsed.RewardBonus,
			Now:         h.now(),
		}),
	}
}

// historyBefore отрезает текущий ход и все, что записано после него.
func historyBefore(history []models.Message, turnID uuid.UUID) []models.Message {
	for i, m := range history {
		if m.ID == turnID {
			return history[:i]
		}
	}
	return history
}
