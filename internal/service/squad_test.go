package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	repoMocks "idol-server/internal/interfaces/mocks"
	"idol-server/internal/models"
	"idol-server/internal/service"
)

type squadFixture struct {
	players *repoMocks.PlayerRepository
	cards   *repoMocks.CardRepository
	units   *repoMocks.UnitRepository
	tx      *repoMocks.TransactionManager
	svc     service.SquadService
}

func newSquadFixture() *squadFixture {
	f := &squadFixture{
		players: new(repoMocks.PlayerRepository),
		cards:   new(repoMocks.CardRepository),
		units:   new(repoMocks.UnitRepository),
		tx:      new(repoMocks.TransactionManager),
	}
	f.svc = service.NewSquadService(nil, f.tx, f.players, f.cards, f.units, 10, zap.NewNop())
	return f
}

func ownedCards(playerKey string, n int) []models.Card {
	cards := make([]models.Card, n)
	for i := range cards {
		cards[i] = models.Card{
			ID:        uuid.New(),
			PlayerKey: playerKey,
			CardName:  "card",
			Rarity:    1,
			Level:     1,
			CardStats: models.CardStats{Vocal: 10 + i, Dance: 20 + i, Charisma: 30 + i},
		}
	}
	return cards
}

func cardIDs(cards []models.Card) []uuid.UUID {
	ids := make([]uuid.UUID, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

func TestSaveUnit(t *testing.T) {
	ctx := context.Background()
	const playerKey = "player-1"

	t.Run("Five owned cards are summed and saved", func(t *testing.T) {
		f := newSquadFixture()
		cards := ownedCards(playerKey, 5)
		ids := cardIDs(cards)
		// База возвращает карты в своем порядке
		shuffled := []models.Card{cards[4], cards[2], cards[0], cards[3], cards[1]}
		f.cards.On("GetOwnedForShare", ctx, mock.Anything, playerKey, ids).Return(shuffled, nil).Once()
		f.units.On("Upsert", ctx, mock.Anything, mock.AnythingOfType("*models.Unit")).Return(nil).Once()

		unit, err := f.svc.SaveUnit(ctx, playerKey, "  Nova  ", ids)
		require.NoError(t, err)
		assert.Equal(t, "Nova", unit.UnitName)
		assert.Equal(t, ids, unit.CardIDs, "позиции сохраняются в порядке запроса")
		assert.Equal(t, 10+11+12+13+14, unit.TotalHR)
		assert.Equal(t, 20+21+22+23+24, unit.TotalRH)
		assert.Equal(t, 30+31+32+33+34, unit.TotalCA)
		assert.Equal(t, 1, f.tx.Committed)
		f.cards.AssertExpectations(t)
		f.units.AssertExpectations(t)
	})

	t.Run("Wrong card count is rejected before the database", func(t *testing.T) {
		for _, n := range []int{0, 4, 6} {
			f := newSquadFixture()
			_, err := f.svc.SaveUnit(ctx, playerKey, "Nova", cardIDs(ownedCards(playerKey, n)))
			assert.ErrorIs(t, err, models.ErrInvalidSquad, "n=%d", n)
			f.cards.AssertNotCalled(t, "GetOwnedForShare", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		}
	})

	t.Run("Repeated card is rejected", func(t *testing.T) {
		f := newSquadFixture()
		ids := cardIDs(ownedCards(playerKey, 5))
		ids[4] = ids[0]
		_, err := f.svc.SaveUnit(ctx, playerKey, "Nova", ids)
		assert.ErrorIs(t, err, models.ErrInvalidSquad)
	})

	t.Run("Blank or long name is rejected", func(t *testing.T) {
		f := newSquadFixture()
		ids := cardIDs(ownedCards(playerKey, 5))
		_, err := f.svc.SaveUnit(ctx, playerKey, "   ", ids)
		assert.ErrorIs(t, err, models.ErrInvalidSquad)
		_, err = f.svc.SaveUnit(ctx, playerKey, "абвгдеёжзийклмнопрстуфхцчшщъыьэюя", ids)
		assert.ErrorIs(t, err, models.ErrInvalidSquad)
	})

	t.Run("Card of another player is forbidden", func(t *testing.T) {
		f := newSquadFixture()
		cards := ownedCards(playerKey, 5)
		ids := cardIDs(cards)
		f.cards.On("GetOwnedForShare", ctx, mock.Anything, playerKey, ids).Return(cards[:4], nil).Once()

		_, err := f.svc.SaveUnit(ctx, playerKey, "Nova", ids)
		assert.ErrorIs(t, err, models.ErrCardNotOwned)
		assert.Equal(t, 1, f.tx.RolledBack)
		f.units.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Anonymous caller is unauthorized", func(t *testing.T) {
		f := newSquadFixture()
		_, err := f.svc.SaveUnit(ctx, "", "Nova", cardIDs(ownedCards(playerKey, 5)))
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("Storage failure is returned as is", func(t *testing.T) {
		f := newSquadFixture()
		cards := ownedCards(playerKey, 5)
		ids := cardIDs(cards)
		dbErr := errors.New("connection reset")
		f.cards.On("GetOwnedForShare", ctx, mock.Anything, playerKey, ids).Return(cards, nil).Once()
		f.units.On("Upsert", ctx, mock.Anything, mock.Anything).Return(dbErr).Once()

		_, err := f.svc.SaveUnit(ctx, playerKey, "Nova", ids)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestListCards(t *testing.T) {
	ctx := context.Background()
	const playerKey = "player-1"

	t.Run("Existing collection is returned without grants", func(t *testing.T) {
		f := newSquadFixture()
		cards := ownedCards(playerKey, 3)
		f.cards.On("ListByPlayer", ctx, mock.Anything, playerKey).Return(cards, nil).Once()

		got, err := f.svc.ListCards(ctx, playerKey)
		require.NoError(t, err)
		assert.Len(t, got, 3)
		f.cards.AssertNotCalled(t, "GrantStarterSet", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Empty collection receives the starter set", func(t *testing.T) {
		f := newSquadFixture()
		starter := ownedCards(playerKey, 5)
		f.cards.On("ListByPlayer", ctx, mock.Anything, playerKey).Return([]models.Card{}, nil).Once()
		f.players.On("Ensure", ctx, mock.Anything, playerKey, 10).Return(&models.Player{PlayerKey: playerKey}, nil).Once()
		f.cards.On("GrantStarterSet", ctx, mock.Anything, playerKey, models.StarterCardStats).Return(int64(5), nil).Once()
		f.cards.On("ListByPlayer", ctx, mock.Anything, playerKey).Return(starter, nil).Once()

		got, err := f.svc.ListCards(ctx, playerKey)
		require.NoError(t, err)
		assert.Equal(t, starter, got)
		assert.Equal(t, 1, f.tx.Committed)
		f.players.AssertExpectations(t)
		f.cards.AssertExpectations(t)
	})
}
