package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"idol-server/internal/interfaces"
	"idol-server/internal/models"
)

const (
	sessionFields = `id, player_key, character_id, character_name, is_closed, stress, ego, motivation, current_artifact, created_at, updated_at`

	// ON CONFLICT по частичному индексу uq_sessions_open_pair: параллельное создание
	// второй открытой сессии для пары молча пропускается, вызывающий перечитывает открытую.
	createSessionQuery = `
        INSERT INTO negotiation_sessions
            (id, player_key, character_id, character_name, is_closed, stress, ego, motivation, current_artifact, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
        ON CONFLICT (player_key, character_id) WHERE NOT is_closed DO NOTHING
    `
	getSessionQuery          = `SELECT ` + sessionFields + ` FROM negotiation_sessions WHERE id = $1`
	getSessionForUpdateQuery = `SELECT ` + sessionFields + ` FROM negotiation_sessions WHERE id = $1 FOR UPDATE`
	findOpenSessionQuery     = `
        SELECT ` + sessionFields + ` FROM negotiation_sessions
        WHERE player_key = $1 AND character_id = $2 AND NOT is_closed
    `
	findLatestSessionQuery = `
        SELECT ` + sessionFields + ` FROM negotiation_sessions
        WHERE player_key = $1 AND character_id = $2
        ORDER BY created_at DESC
        LIMIT 1
    `
	listSessionsByPlayerQuery = `
        SELECT ` + sessionFields + ` FROM negotiation_sessions
        WHERE player_key = $1
        ORDER BY updated_at DESC
    `
	updateSessionStatsQuery = `
        UPDATE negotiation_sessions SET stress = $2, ego = $3, motivation = $4, updated_at = NOW()
        WHERE id = $1
    `
	// Пустой артефакт никогда не затирает сохраненный
	updateSessionArtifactQuery = `
        UPDATE negotiation_sessions SET current_artifact = $2, updated_at = NOW()
        WHERE id = $1 AND $2 <> ''
    `
	closeSessionQuery = `
        UPDATE negotiation_sessions SET is_closed = TRUE, updated_at = NOW()
        WHERE id = $1 AND NOT is_closed
    `
)

var _ interfaces.SessionRepository = (*pgSessionRepository)(nil)

type pgSessionRepository struct {
	logger *zap.Logger
}

// NewPgSessionRepository создает репозиторий переговорных сессий.
func NewPgSessionRepository(logger *zap.Logger) interfaces.SessionRepository {
	return &pgSessionRepository{logger: logger.Named("PgSessionRepo")}
}

// Create вставляет сессию. Если для пары уже есть открытая сессия, возвращает
// models.ErrOpenSessionExists, и вызывающий перечитывает ее через FindOpen.
func (r *pgSessionRepository) Create(ctx context.Context, querier interfaces.DBTX, s *models.NegotiationSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now

	tag, err := querier.Exec(ctx, createSessionQuery,
		s.ID, s.PlayerKey, s.CharacterID, s.CharacterName, s.IsClosed,
		s.Stress, s.Ego, s.Motivation, s.CurrentArtifact, now,
	)
	if err != nil {
		r.logger.Error("Failed to create session", zap.String("playerKey", s.PlayerKey), zap.Error(err))
		return fmt.Errorf("failed to create session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrOpenSessionExists
	}
	return nil
}

func (r *pgSessionRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.NegotiationSession, error) {
	return r.getOne(ctx, querier, getSessionQuery, id)
}

func (r *pgSessionRepository) GetForUpdate(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.NegotiationSession, error) {
	return r.getOne(ctx, querier, getSessionForUpdateQuery, id)
}

func (r *pgSessionRepository) FindOpen(ctx context.Context, querier interfaces.DBTX, playerKey string, characterID uuid.UUID) (*models.NegotiationSession, error) {
	return r.getOne(ctx, querier, findOpenSessionQuery, playerKey, characterID)
}

func (r *pgSessionRepository) FindLatest(ctx context.Context, querier interfaces.DBTX, playerKey string, characterID uuid.UUID) (*models.NegotiationSession, error) {
	return r.getOne(ctx, querier, findLatestSessionQuery, playerKey, characterID)
}

func (r *pgSessionRepository) getOne(ctx context.Context, querier interfaces.DBTX, query string, args ...any) (*models.NegotiationSession, error) {
	var s models.NegotiationSession
	if err := pgxscan.Get(ctx, querier, &s, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get session", zap.Any("args", args), zap.Error(err))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (r *pgSessionRepository) ListByPlayer(ctx context.Context, querier interfaces.DBTX, playerKey string) ([]models.NegotiationSession, error) {
	sessions := make([]models.NegotiationSession, 0)
	if err := pgxscan.Select(ctx, querier, &sessions, listSessionsByPlayerQuery, playerKey); err != nil {
		r.logger.Error("Failed to list sessions", zap.String("playerKey", playerKey), zap.Error(err))
		return nil, fmt.Errorf("failed to list sessions for %s: %w", playerKey, err)
	}
	return sessions, nil
}

func (r *pgSessionRepository) UpdateStats(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, stats models.SessionStats) error {
	tag, err := querier.Exec(ctx, updateSessionStatsQuery, id, stats.Stress, stats.Ego, stats.Motivation)
	if err != nil {
		r.logger.Error("Failed to update session stats", zap.String("sessionID", id.String()), zap.Error(err))
		return fmt.Errorf("failed to update stats for session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *pgSessionRepository) UpdateArtifact(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, artifact string) (bool, error) {
	tag, err := querier.Exec(ctx, updateSessionArtifactQuery, id, artifact)
	if err != nil {
		r.logger.Error("Failed to update session artifact", zap.String("sessionID", id.String()), zap.Error(err))
		return false, fmt.Errorf("failed to update artifact for session %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgSessionRepository) Close(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) error {
	tag, err := querier.Exec(ctx, closeSessionQuery, id)
	if err != nil {
		r.logger.Error("Failed to close session", zap.String("sessionID", id.String()), zap.Error(err))
		return fmt.Errorf("failed to close session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrSessionClosed
	}
	return nil
}
