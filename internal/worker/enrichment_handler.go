package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"idol-server/internal/config"
	"idol-server/internal/generation"
	"idol-server/internal/interfaces"
	"idol-server/internal/messaging"
	"idol-server/internal/models"
	"idol-server/internal/prompts"
	"idol-server/internal/schemas"
)

// EnrichmentHandler генерирует декоративный SVG для сессии.
// Задача необязательная: любые ошибки логируются, сообщение подтверждается.
type EnrichmentHandler struct {
	db        interfaces.DBTX
	sessions  interfaces.SessionRepository
	generator generation.Generator
	updates   messaging.SessionUpdatePublisher
	cfg       *config.Config
	logger    *zap.Logger
}

var _ messaging.Handler = (*EnrichmentHandler)(nil)

func NewEnrichmentHandler(
	db interfaces.DBTX,
	sessions interfaces.SessionRepository,
	generator generation.Generator,
	updates messaging.SessionUpdatePublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *EnrichmentHandler {
	return &EnrichmentHandler{
		db:        db,
		sessions:  sessions,
		generator: generator,
		updates:   updates,
		cfg:       cfg,
		logger:    logger.Named("EnrichmentHandler"),
	}
}

func (h *EnrichmentHandler) Handle(ctx context.Context, body []byte) error {
	tasksReceived.WithLabelValues("enrichment").Inc()

	var payload messaging.EnrichmentTaskPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("Dropping malformed enrichment task", zap.Error(err))
		artifactsApplied.WithLabelValues("invalid").Inc()
		return nil
	}
	log := h.logger.With(zap.String("taskID", payload.TaskID), zap.String("sessionID", payload.SessionID.String()))

	prompt, err := prompts.Enrichment(payload.Mood, payload.CharacterName)
	if err != nil {
		log.Error("Failed to render enrichment prompt", zap.Error(err))
		artifactsApplied.WithLabelValues("prompt_error").Inc()
		return nil
	}

	genCtx, cancel := context.WithTimeout(ctx, h.cfg.AITimeout)
	defer cancel()
	raw, err := h.generator.Generate(genCtx, prompt, generation.DefaultOptions(h.cfg, generation.PurposeEnrichment))
	if err != nil {
		log.Warn("Enrichment generation failed", zap.Error(err))
		artifactsApplied.WithLabelValues("generation_failed").Inc()
		return nil
	}

	artifact := schemas.ExtractSanitizedMarkup(raw)
	if artifact == "" {
		log.Info("Generator returned no usable markup")
		artifactsApplied.WithLabelValues("no_markup").Inc()
		return nil
	}

	updated, err := h.sessions.UpdateArtifact(ctx, h.db, payload.SessionID, artifact)
	if err != nil {
		log.Error("Failed to store artifact", zap.Error(err))
		artifactsApplied.WithLabelValues("store_failed").Inc()
		return nil
	}
	if !updated {
		artifactsApplied.WithLabelValues("skipped").Inc()
		return nil
	}
	artifactsApplied.WithLabelValues("applied").Inc()

	update := models.SessionUpdate{
		Type:      models.SessionUpdateArtifact,
		PlayerKey: payload.PlayerKey,
		SessionID: payload.SessionID,
		Artifact:  artifact,
	}
	if err := h.updates.PublishSessionUpdate(ctx, update); err != nil {
		log.Warn("Failed to publish artifact update", zap.Error(err))
	}
	return nil
}
