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
	insertMinigameResultQuery = `
        INSERT INTO minigame_results (id, player_key, completion_time_ms, rank, tickets_awarded, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	getLatestMinigameResultQuery = `
        SELECT id, player_key, completion_time_ms, rank, tickets_awarded, created_at
        FROM minigame_results
        WHERE player_key = $1
        ORDER BY created_at DESC
        LIMIT 1
    `
)

var _ interfaces.MinigameRepository = (*pgMinigameRepository)(nil)

type pgMinigameRepository struct {
	logger *zap.Logger
}

// NewPgMinigameRepository создает репозиторий результатов мини-игр.
func NewPgMinigameRepository(logger *zap.Logger) interfaces.MinigameRepository {
	return &pgMinigameRepository{logger: logger.Named("PgMinigameRepo")}
}

func (r *pgMinigameRepository) Create(ctx context.Context, querier interfaces.DBTX, result *models.MinigameResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	_, err := querier.Exec(ctx, insertMinigameResultQuery,
		result.ID, result.PlayerKey, result.CompletionTimeMs, result.Rank, result.TicketsAwarded, result.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert minigame result", zap.String("playerKey", result.PlayerKey), zap.Error(err))
		return fmt.Errorf("failed to insert minigame result: %w", err)
	}
	return nil
}

func (r *pgMinigameRepository) GetLatestForPlayer(ctx context.Context, querier interfaces.DBTX, playerKey string) (*models.MinigameResult, error) {
	var res models.MinigameResult
	if err := pgxscan.Get(ctx, querier, &res, getLatestMinigameResultQuery, playerKey); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get latest minigame result", zap.String("playerKey", playerKey), zap.Error(err))
		return nil, fmt.Errorf("failed to get latest minigame result: %w", err)
	}
	return &res, nil
}
