package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"idol-server/internal/interfaces"
	"idol-server/internal/models"
)

const (
	characterFields       = `id, name, name_en, position, personality, trait, color_from, color_to, emoji, avatar_url`
	listCharactersQuery   = `SELECT ` + characterFields + ` FROM characters ORDER BY name_en`
	getCharacterByIDQuery = `SELECT ` + characterFields + ` FROM characters WHERE id = $1`
)

var _ interfaces.CharacterRepository = (*pgCharacterRepository)(nil)

type pgCharacterRepository struct {
	logger *zap.Logger
}

// NewPgCharacterRepository создает репозиторий ростера.
func NewPgCharacterRepository(logger *zap.Logger) interfaces.CharacterRepository {
	return &pgCharacterRepository{logger: logger.Named("PgCharacterRepo")}
}

func (r *pgCharacterRepository) List(ctx context.Context, querier interfaces.DBTX) ([]models.Character, error) {
	var characters []models.Character
	if err := pgxscan.Select(ctx, querier, &characters, listCharactersQuery); err != nil {
		r.logger.Error("Failed to list characters", zap.Error(err))
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	return characters, nil
}

func (r *pgCharacterRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Character, error) {
	var c models.Character
	if err := pgxscan.Get(ctx, querier, &c, getCharacterByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCharacterNotFound
		}
		r.logger.Error("Failed to get character", zap.String("characterID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get character %s: %w", id, err)
	}
	return &c, nil
}
