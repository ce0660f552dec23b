package database_test

import (
	"github.com/google/uuid"

	"idol-server/internal/models"
	"idol-server/internal/service"
)

func (s *RepositorySuite) TestCards_StarterSetGrantedOnce() {
	_, err := s.players.Ensure(s.ctx, s.pool, "p-cards", 0)
	s.Require().NoError(err)

	n, err := s.cards.GrantStarterSet(s.ctx, s.pool, "p-cards", models.StarterCardStats)
	s.Require().NoError(err)
	s.Equal(int64(5), n)

	n, err = s.cards.GrantStarterSet(s.ctx, s.pool, "p-cards", models.StarterCardStats)
	s.Require().NoError(err)
	s.Zero(n)

	cards, err := s.cards.ListByPlayer(s.ctx, s.pool, "p-cards")
	s.Require().NoError(err)
	s.Require().Len(cards, 5)
	s.Equal(models.StarterCardStats, cards[0].CardStats)
	s.Equal(1, cards[0].Level)
}

func (s *RepositorySuite) TestCards_OwnedFilterSkipsForeignCards() {
	for _, key := range []string{"p-owner", "p-other"} {
		_, err := s.players.Ensure(s.ctx, s.pool, key, 0)
		s.Require().NoError(err)
		_, err = s.cards.GrantStarterSet(s.ctx, s.pool, key, models.StarterCardStats)
		s.Require().NoError(err)
	}
	mine, err := s.cards.ListByPlayer(s.ctx, s.pool, "p-owner")
	s.Require().NoError(err)
	theirs, err := s.cards.ListByPlayer(s.ctx, s.pool, "p-other")
	s.Require().NoError(err)

	ids := []uuid.UUID{mine[0].ID, mine[1].ID, theirs[0].ID, uuid.New()}
	owned, err := s.cards.GetOwnedForShare(s.ctx, s.pool, "p-owner", ids)
	s.Require().NoError(err)
	s.Len(owned, 2)
	for _, c := range owned {
		s.Equal("p-owner", c.PlayerKey)
	}
}

func (s *RepositorySuite) TestSquad_SaveUnitReplacesSingleUnit() {
	const playerKey = "p-squad"
	svc := service.NewSquadService(s.pool, s.tx, s.players, s.cards, s.units, 10, s.logger)

	cards, err := svc.ListCards(s.ctx, playerKey)
	s.Require().NoError(err)
	s.Require().Len(cards, models.SquadSize)

	ids := make([]uuid.UUID, 0, len(cards))
	for i := len(cards) - 1; i >= 0; i-- {
		ids = append(ids, cards[i].ID)
	}

	first, err := svc.SaveUnit(s.ctx, playerKey, "Nova", ids)
	s.Require().NoError(err)
	s.Equal(5*models.StarterCardStats.Vocal, first.TotalHR)
	s.Equal(5*models.StarterCardStats.Dance, first.TotalRH)
	s.Equal(5*models.StarterCardStats.Charisma, first.TotalCA)

	// Повторное сохранение обновляет тот же отряд
	ids[0], ids[1] = ids[1], ids[0]
	second, err := svc.SaveUnit(s.ctx, playerKey, "Nova II", ids)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)

	units, err := svc.ListUnits(s.ctx, playerKey)
	s.Require().NoError(err)
	s.Require().Len(units, 1)
	s.Equal("Nova II", units[0].UnitName)
	s.Equal(ids, units[0].CardIDs)
}

func (s *RepositorySuite) TestSquad_ForeignCardIsRejected() {
	svc := service.NewSquadService(s.pool, s.tx, s.players, s.cards, s.units, 10, s.logger)

	mine, err := svc.ListCards(s.ctx, "p-squad-a")
	s.Require().NoError(err)
	theirs, err := svc.ListCards(s.ctx, "p-squad-b")
	s.Require().NoError(err)

	ids := []uuid.UUID{mine[0].ID, mine[1].ID, mine[2].ID, mine[3].ID, theirs[0].ID}
	_, err = svc.SaveUnit(s.ctx, "p-squad-a", "Nova", ids)
	s.ErrorIs(err, models.ErrCardNotOwned)

	units, err := svc.ListUnits(s.ctx, "p-squad-a")
	s.Require().NoError(err)
	s.Empty(units)
}
