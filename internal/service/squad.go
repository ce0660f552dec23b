package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"idol-server/internal/interfaces"
	"idol-server/internal/models"
)

// SquadService - коллекция карт игрока и его отряд из пяти карт.
type SquadService interface {
	// ListCards возвращает коллекцию; при первом обращении выдает стартовый набор.
	ListCards(ctx context.Context, playerKey string) ([]models.Card, error)
	ListUnits(ctx context.Context, playerKey string) ([]models.Unit, error)
	// SaveUnit заменяет отряд игрока. Суммы характеристик считаются по текущим картам.
	SaveUnit(ctx context.Context, playerKey, unitName string, cardIDs []uuid.UUID) (*models.Unit, error)
}

type squadServiceImpl struct {
	db      interfaces.DBTX
	tx      interfaces.TransactionManager
	players interfaces.PlayerRepository
	cards   interfaces.CardRepository
	units   interfaces.UnitRepository
	initial int
	logger  *zap.Logger
}

var _ SquadService = (*squadServiceImpl)(nil)

func NewSquadService(
	db interfaces.DBTX,
	tx interfaces.TransactionManager,
	players interfaces.PlayerRepository,
	cards interfaces.CardRepository,
	units interfaces.UnitRepository,
	initialTickets int,
	logger *zap.Logger,
) SquadService {
	return &squadServiceImpl{
		db:      db,
		tx:      tx,
		players: players,
		cards:   cards,
		units:   units,
		initial: initialTickets,
		logger:  logger.Named("SquadService"),
	}
}

func (s *squadServiceImpl) ListCards(ctx context.Context, playerKey string) ([]models.Card, error) {
	if playerKey == "" {
		return nil, models.ErrUnauthorized
	}
	cards, err := s.cards.ListByPlayer(ctx, s.db, playerKey)
	if err != nil {
		return nil, err
	}
	if len(cards) > 0 {
		return cards, nil
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		if _, err := s.players.Ensure(ctx, tx, playerKey, s.initial); err != nil {
			return err
		}
		granted, err := s.cards.GrantStarterSet(ctx, tx, playerKey, models.StarterCardStats)
		if err != nil {
			return err
		}
		if granted > 0 {
			s.logger.Info("Starter cards granted", zap.String("playerKey", playerKey), zap.Int64("cards", granted))
		}
		cards, err = s.cards.ListByPlayer(ctx, tx, playerKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

func (s *squadServiceImpl) ListUnits(ctx context.Context, playerKey string) ([]models.Unit, error) {
	if playerKey == "" {
		return nil, models.ErrUnauthorized
	}
	return s.units.ListByPlayer(ctx, s.db, playerKey)
}

// validateDraft проверяет состав до похода в базу.
func validateDraft(unitName string, cardIDs []uuid.UUID) (string, error) {
	name := strings.TrimSpace(unitName)
	if name == "" || utf8.RuneCountInString(name) > models.UnitNameMaxLength {
		return "", models.ErrInvalidSquad
	}
	if len(cardIDs) != models.SquadSize {
		return "", models.ErrInvalidSquad
	}
	seen := make(map[uuid.UUID]struct{}, len(cardIDs))
	for _, id := range cardIDs {
		if id == uuid.Nil {
			return "", models.ErrInvalidSquad
		}
		if _, dup := seen[id]; dup {
			return "", models.ErrInvalidSquad
		}
		seen[id] = struct{}{}
	}
	return name, nil
}

func (s *squadServiceImpl) SaveUnit(ctx context.Context, playerKey, unitName string, cardIDs []uuid.UUID) (*models.Unit, error) {
	if playerKey == "" {
		return nil, models.ErrUnauthorized
	}
	name, err := validateDraft(unitName, cardIDs)
	if err != nil {
		return nil, err
	}

	var unit *models.Unit
	err = s.tx.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		owned, err := s.cards.GetOwnedForShare(ctx, tx, playerKey, cardIDs)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]models.Card, len(owned))
		for _, c := range owned {
			if c.PlayerKey == playerKey {
				byID[c.ID] = c
			}
		}
		// Порядок позиций в отряде - как в запросе
		ordered := make([]models.Card, 0, len(cardIDs))
		for _, id := range cardIDs {
			c, ok := byID[id]
			if !ok {
				return models.ErrCardNotOwned
			}
			ordered = append(ordered, c)
		}

		unit = models.NewUnit(playerKey, name, ordered)
		return s.units.Upsert(ctx, tx, unit)
	})
	if err != nil {
		if errors.Is(err, models.ErrCardNotOwned) {
			s.logger.Info("Unit rejected", zap.String("playerKey", playerKey), zap.Error(err))
		} else {
			s.logger.Error("Failed to save unit", zap.String("playerKey", playerKey), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Unit saved",
		zap.String("playerKey", playerKey),
		zap.String("unitID", unit.ID.String()),
		zap.Int("totalHR", unit.TotalHR),
		zap.Int("totalRH", unit.TotalRH),
		zap.Int("totalCA", unit.TotalCA),
	)
	return unit, nil
}
