package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"idol-server/internal/interfaces"
	"idol-server/internal/models"
)

const (
	playerFields = `player_key, tickets, games_played, best_time_ms, core_fandom, casual_fandom, ego_shards, data_cores, active_buffs, created_at, updated_at`

	ensurePlayerQuery = `
        INSERT INTO players (player_key, tickets)
        VALUES ($1, $2)
        ON CONFLICT (player_key) DO NOTHING
    `
	getPlayerQuery          = `SELECT ` + playerFields + ` FROM players WHERE player_key = $1`
	getPlayerForUpdateQuery = `SELECT ` + playerFields + ` FROM players WHERE player_key = $1 FOR UPDATE`
	// Условие tickets > 0 в самом UPDATE: баланс не уйдет в минус даже без блокировки строки
	spendTicketQuery = `
        UPDATE players SET tickets = tickets - 1, updated_at = NOW()
        WHERE player_key = $1 AND tickets > 0
        RETURNING tickets
    `
	creditCurrenciesQuery = `
        UPDATE players SET ego_shards = ego_shards + $2, data_cores = data_cores + $3, updated_at = NOW()
        WHERE player_key = $1
    `
	appendBuffQuery = `
        UPDATE players SET active_buffs = active_buffs || $2::jsonb, updated_at = NOW()
        WHERE player_key = $1
    `
	setFandomQuery = `
        UPDATE players SET core_fandom = $2, casual_fandom = $3, updated_at = NOW()
        WHERE player_key = $1
    `
	recordMinigameQuery = `
        UPDATE players SET
            tickets = tickets + $3,
            games_played = games_played + 1,
            best_time_ms = CASE WHEN best_time_ms IS NULL OR $2 < best_time_ms THEN $2 ELSE best_time_ms END,
            updated_at = NOW()
        WHERE player_key = $1
        RETURNING ` + playerFields
	pruneExpiredBuffsQuery = `
        UPDATE players SET active_buffs = COALESCE((
            SELECT jsonb_agg(b) FROM jsonb_array_elements(active_buffs) b
            WHERE (b->>'expires_at')::timestamptz > $1
        ), '[]'::jsonb), updated_at = NOW()
        WHERE EXISTS (
            SELECT 1 FROM jsonb_array_elements(active_buffs) b
            WHERE (b->>'expires_at')::timestamptz <= $1
        )
    `
)

var _ interfaces.PlayerRepository = (*pgPlayerRepository)(nil)

type pgPlayerRepository struct {
	logger *zap.Logger
}

// NewPgPlayerRepository создает репозиторий профилей игроков.
func NewPgPlayerRepository(logger *zap.Logger) interfaces.PlayerRepository {
	return &pgPlayerRepository{logger: logger.Named("PgPlayerRepo")}
}

func (r *pgPlayerRepository) Ensure(ctx context.Context, querier interfaces.DBTX, playerKey string, initialTickets int) (*models.Player, error) {
	tag, err := querier.Exec(ctx, ensurePlayerQuery, playerKey, initialTickets)
	if err != nil {
		r.logger.Error("Failed to ensure player", zap.String("playerKey", playerKey), zap.Error(err))
		return nil, fmt.Errorf("failed to ensure player %s: %w", playerKey, err)
	}
	if tag.RowsAffected() > 0 {
		r.logger.Info("Player created", zap.String("playerKey", playerKey), zap.Int("tickets", initialTickets))
	}
	return r.GetByKey(ctx, querier, playerKey)
}

func (r *pgPlayerRepository) GetByKey(ctx context.Context, querier interfaces.DBTX, playerKey string) (*models.Player, error) {
	return r.get(ctx, querier, getPlayerQuery, playerKey)
}

func (r *pgPlayerRepository) GetForUpdate(ctx context.Context, querier interfaces.DBTX, playerKey string) (*models.Player, error) {
	return r.get(ctx, querier, getPlayerForUpdateQuery, playerKey)
}

func (r *pgPlayerRepository) get(ctx context.Context, querier interfaces.DBTX, query, playerKey string) (*models.Player, error) {
	var p models.Player
	if err := pgxscan.Get(ctx, querier, &p, query, playerKey); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPlayerNotFound
		}
		r.logger.Error("Failed to get player", zap.String("playerKey", playerKey), zap.Error(err))
		return nil, fmt.Errorf("failed to get player %s: %w", playerKey, err)
	}
	return &p, nil
}

func (r *pgPlayerRepository) SpendTicket(ctx context.Context, querier interfaces.DBTX, playerKey string) (int, error) {
	var remaining int
	err := querier.QueryRow(ctx, spendTicketQuery, playerKey).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, models.ErrInsufficientTickets
		}
		r.logger.Error("Failed to spend ticket", zap.String("playerKey", playerKey), zap.Error(err))
		return 0, fmt.Errorf("failed to spend ticket for %s: %w", playerKey, err)
	}
	return remaining, nil
}

func (r *pgPlayerRepository) CreditCurrencies(ctx context.Context, querier interfaces.DBTX, playerKey string, egoShards, dataCores int) error {
	tag, err := querier.Exec(ctx, creditCurrenciesQuery, playerKey, egoShards, dataCores)
	if err != nil {
		r.logger.Error("Failed to credit currencies", zap.String("playerKey", playerKey), zap.Error(err))
		return fmt.Errorf("failed to credit currencies for %s: %w", playerKey, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPlayerNotFound
	}
	return nil
}

func (r *pgPlayerRepository) AppendBuff(ctx context.Context, querier interfaces.DBTX, playerKey string, buff models.StatBuff) error {
	payload, err := json.Marshal([]models.StatBuff{buff})
	if err != nil {
		return fmt.Errorf("failed to marshal buff: %w", err)
	}
	tag, err := querier.Exec(ctx, appendBuffQuery, playerKey, payload)
	if err != nil {
		r.logger.Error("Failed to append buff", zap.String("playerKey", playerKey), zap.Error(err))
		return fmt.Errorf("failed to append buff for %s: %w", playerKey, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPlayerNotFound
	}
	return nil
}

func (r *pgPlayerRepository) SetFandom(ctx context.Context, querier interfaces.DBTX, playerKey string, coreFandom, casualFandom int) error {
	tag, err := querier.Exec(ctx, setFandomQuery, playerKey, coreFandom, casualFandom)
	if err != nil {
		r.logger.Error("Failed to set fandom", zap.String("playerKey", playerKey), zap.Error(err))
		return fmt.Errorf("failed to set fandom for %s: %w", playerKey, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPlayerNotFound
	}
	return nil
}

func (r *pgPlayerRepository) RecordMinigame(ctx context.Context, querier interfaces.DBTX, playerKey string, completionTimeMs int64, ticketsAwarded int) (*models.Player, error) {
	var p models.Player
	if err := pgxscan.Get(ctx, querier, &p, recordMinigameQuery, playerKey, completionTimeMs, ticketsAwarded); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPlayerNotFound
		}
		r.logger.Error("Failed to record minigame", zap.String("playerKey", playerKey), zap.Error(err))
		return nil, fmt.Errorf("failed to record minigame for %s: %w", playerKey, err)
	}
	return &p, nil
}

func (r *pgPlayerRepository) PruneExpiredBuffs(ctx context.Context, querier interfaces.DBTX, now time.Time) (int64, error) {
	tag, err := querier.Exec(ctx, pruneExpiredBuffsQuery, now)
	if err != nil {
		r.logger.Error("Failed to prune expired buffs", zap.Error(err))
		return 0, fmt.Errorf("failed to prune expired buffs: %w", err)
	}
	return tag.RowsAffected(), nil
}
