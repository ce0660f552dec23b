package database

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"idol-server/internal/interfaces"
	"idol-server/internal/models"
)

const (
	upsertUnitQuery = `
        INSERT INTO units (id, player_key, unit_name, card_ids, total_hr, total_rh, total_ca)
        VALUES ($1, $2, $3, $4::uuid[], $5, $6, $7)
        ON CONFLICT (player_key) DO UPDATE SET
            unit_name  = EXCLUDED.unit_name,
            card_ids   = EXCLUDED.card_ids,
            total_hr   = EXCLUDED.total_hr,
            total_rh   = EXCLUDED.total_rh,
            total_ca   = EXCLUDED.total_ca,
            updated_at = NOW()
        RETURNING id, updated_at
    `
	listUnitsByPlayerQuery = `
        SELECT id, player_key, unit_name, card_ids::text[] AS card_ids, total_hr, total_rh, total_ca, updated_at
        FROM units WHERE player_key = $1
    `
)

var _ interfaces.UnitRepository = (*pgUnitRepository)(nil)

type pgUnitRepository struct {
	logger *zap.Logger
}

// unitRow - строка units; card_ids читается как text[].
type unitRow struct {
	ID        uuid.UUID `db:"id"`
	PlayerKey string    `db:"player_key"`
	UnitName  string    `db:"unit_name"`
	CardIDs   []string  `db:"card_ids"`
	TotalHR   int       `db:"total_hr"`
	TotalRH   int       `db:"total_rh"`
	TotalCA   int       `db:"total_ca"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewPgUnitRepository создает репозиторий отрядов.
func NewPgUnitRepository(logger *zap.Logger) interfaces.UnitRepository {
	return &pgUnitRepository{logger: logger.Named("PgUnitRepo")}
}

func (r *pgUnitRepository) ListByPlayer(ctx context.Context, querier interfaces.DBTX, playerKey string) ([]models.Unit, error) {
	var rows []unitRow
	if err := pgxscan.Select(ctx, querier, &rows, listUnitsByPlayerQuery, playerKey); err != nil {
		r.logger.Error("Failed to list units", zap.String("playerKey", playerKey), zap.Error(err))
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	units := make([]models.Unit, 0, len(rows))
	for _, row := range rows {
		ids := make([]uuid.UUID, 0, len(row.CardIDs))
		for _, raw := range row.CardIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("unit %s has malformed card id %q: %w", row.ID, raw, err)
			}
			ids = append(ids, id)
		}
		units = append(units, models.Unit{
			ID:        row.ID,
			PlayerKey: row.PlayerKey,
			UnitName:  row.UnitName,
			CardIDs:   ids,
			TotalHR:   row.TotalHR,
			TotalRH:   row.TotalRH,
			TotalCA:   row.TotalCA,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return units, nil
}

func (r *pgUnitRepository) Upsert(ctx context.Context, querier interfaces.DBTX, unit *models.Unit) error {
	id := unit.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	err := querier.QueryRow(ctx, upsertUnitQuery,
		id, unit.PlayerKey, unit.UnitName, uuidStrings(unit.CardIDs), unit.TotalHR, unit.TotalRH, unit.TotalCA,
	).Scan(&unit.ID, &unit.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert unit", zap.String("playerKey", unit.PlayerKey), zap.Error(err))
		return fmt.Errorf("failed to upsert unit: %w", err)
	}
	return nil
}
