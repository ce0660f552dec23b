package database

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"idol-server/internal/interfaces"
	"idol-server/internal/models"
)

const (
	cardFields = `id, player_key, character_id, card_name, rarity, level, hr_vocal, rh_dance, ca_charisma, avatar_url, created_at`

	grantStarterCardsQuery = `
        INSERT INTO cards (id, player_key, character_id, card_name, rarity, level, hr_vocal, rh_dance, ca_charisma, avatar_url)
        SELECT gen_random_uuid(), $1, c.id, c.name_en, 1, 1, $2, $3, $4, c.avatar_url
        FROM characters c
        ON CONFLICT (player_key, character_id, card_name) DO NOTHING
    `
	listCardsByPlayerQuery = `SELECT ` + cardFields + ` FROM cards WHERE player_key = $1 ORDER BY created_at, card_name`
	getOwnedCardsQuery     = `
        SELECT ` + cardFields + ` FROM cards
        WHERE player_key = $1 AND id = ANY($2::uuid[])
        FOR SHARE
    `
)

var _ interfaces.CardRepository = (*pgCardRepository)(nil)

type pgCardRepository struct {
	logger *zap.Logger
}

// NewPgCardRepository создает репозиторий коллекции карт.
func NewPgCardRepository(logger *zap.Logger) interfaces.CardRepository {
	return &pgCardRepository{logger: logger.Named("PgCardRepo")}
}

func (r *pgCardRepository) GrantStarterSet(ctx context.Context, querier interfaces.DBTX, playerKey string, stats models.CardStats) (int64, error) {
	tag, err := querier.Exec(ctx, grantStarterCardsQuery, playerKey, stats.Vocal, stats.Dance, stats.Charisma)
	if err != nil {
		r.logger.Error("Failed to grant starter cards", zap.String("playerKey", playerKey), zap.Error(err))
		return 0, fmt.Errorf("failed to grant starter cards: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgCardRepository) ListByPlayer(ctx context.Context, querier interfaces.DBTX, playerKey string) ([]models.Card, error) {
	cards := make([]models.Card, 0)
	if err := pgxscan.Select(ctx, querier, &cards, listCardsByPlayerQuery, playerKey); err != nil {
		r.logger.Error("Failed to list cards", zap.String("playerKey", playerKey), zap.Error(err))
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

func (r *pgCardRepository) GetOwnedForShare(ctx context.Context, querier interfaces.DBTX, playerKey string, ids []uuid.UUID) ([]models.Card, error) {
	cards := make([]models.Card, 0, len(ids))
	if err := pgxscan.Select(ctx, querier, &cards, getOwnedCardsQuery, playerKey, uuidStrings(ids)); err != nil {
		r.logger.Error("Failed to get owned cards", zap.String("playerKey", playerKey), zap.Int("requested", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("failed to get owned cards: %w", err)
	}
	return cards, nil
}

// uuidStrings - массивы UUID передаются текстом и приводятся в SQL через ::uuid[].
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
