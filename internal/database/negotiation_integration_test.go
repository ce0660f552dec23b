package database_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"idol-server/internal/config"
	"idol-server/internal/messaging"
	"idol-server/internal/models"
	"idol-server/internal/service"
)

// recordingTaskPublisher запоминает задачи вместо отправки в RabbitMQ.
type recordingTaskPublisher struct {
	mu       sync.Mutex
	payloads []messaging.NegotiationTaskPayload
}

func (p *recordingTaskPublisher) PublishNegotiationTask(_ context.Context, payload messaging.NegotiationTaskPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingTaskPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func (s *RepositorySuite) newNegotiationService(cooldown time.Duration) (service.NegotiationService, *recordingTaskPublisher) {
	pub := &recordingTaskPublisher{}
	cfg := &config.Config{InitialTickets: 10, SubmitCooldown: cooldown, MaxInputLength: 500}
	svc := service.NewNegotiationService(s.pool, s.tx, s.players, s.characters, s.sessions, s.messages, pub, cfg, s.logger)
	return svc, pub
}

func (s *RepositorySuite) sessionWith(playerKey string, characterID uuid.UUID) *models.NegotiationSession {
	session := &models.NegotiationSession{
		PlayerKey:       playerKey,
		CharacterID:     characterID,
		CharacterName:   "seeded",
		CurrentArtifact: models.DefaultArtifact,
	}
	session.SetStats(models.DefaultSessionStats)
	s.Require().NoError(s.sessions.Create(s.ctx, s.pool, session))
	return session
}

func (s *RepositorySuite) countPlayerTurns(sessionID uuid.UUID) int {
	var n int
	err := s.pool.QueryRow(s.ctx,
		`SELECT COUNT(*) FROM negotiation_messages WHERE session_id = $1 AND sender = $2`,
		sessionID, models.SenderPlayer,
	).Scan(&n)
	s.Require().NoError(err)
	return n
}

func (s *RepositorySuite) TestSubmitProposal_LastTicketAcrossSessions() {
	const playerKey = "p-submit-race"
	_, err := s.players.Ensure(s.ctx, s.pool, playerKey, 1)
	s.Require().NoError(err)

	characters, err := s.characters.List(s.ctx, s.pool)
	s.Require().NoError(err)
	s.Require().NotEmpty(characters)

	// Разные сессии, поэтому блокировка строки сессии не сериализует ходы
	sessions := make([]*models.NegotiationSession, 0, len(characters))
	for _, c := range characters {
		sessions = append(sessions, s.sessionWith(playerKey, c.ID))
	}

	svc, pub := s.newNegotiationService(2 * time.Second)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		otherErrs []error
	)
	for _, session := range sessions {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := svc.SubmitProposal(s.ctx, playerKey, id, "хочу в группу")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrInsufficientTickets):
			default:
				otherErrs = append(otherErrs, err)
			}
		}(session.ID)
	}
	wg.Wait()

	s.Empty(otherErrs)
	s.Equal(1, succeeded)
	s.Equal(1, pub.count())

	p, err := s.players.GetByKey(s.ctx, s.pool, playerKey)
	s.Require().NoError(err)
	s.Equal(0, p.Tickets)

	turns := 0
	for _, session := range sessions {
		turns += s.countPlayerTurns(session.ID)
	}
	s.Equal(1, turns)
}

func (s *RepositorySuite) TestSubmitProposal_ConcurrentInOneSession() {
	const playerKey = "p-submit-same"
	_, err := s.players.Ensure(s.ctx, s.pool, playerKey, 1)
	s.Require().NoError(err)
	session := s.sessionWith(playerKey, seededCharacterID)

	svc, _ := s.newNegotiationService(2 * time.Second)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.SubmitProposal(s.ctx, playerKey, session.ID, "давай"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(1, s.countPlayerTurns(session.ID))
	p, err := s.players.GetByKey(s.ctx, s.pool, playerKey)
	s.Require().NoError(err)
	s.Equal(0, p.Tickets)
}

func (s *RepositorySuite) TestSubmitProposal_SecondTurnInsideCooldown() {
	const playerKey = "p-submit-cooldown"
	_, err := s.players.Ensure(s.ctx, s.pool, playerKey, 3)
	s.Require().NoError(err)
	session := s.sessionWith(playerKey, seededCharacterID)

	svc, pub := s.newNegotiationService(2 * time.Second)

	res, err := svc.SubmitProposal(s.ctx, playerKey, session.ID, "первое предложение")
	s.Require().NoError(err)
	s.Equal(2, res.TicketsLeft)
	s.False(res.Turn.CreatedAt.IsZero())

	_, err = svc.SubmitProposal(s.ctx, playerKey, session.ID, "второе предложение")
	s.ErrorIs(err, models.ErrTooSoon)

	p, err := s.players.GetByKey(s.ctx, s.pool, playerKey)
	s.Require().NoError(err)
	s.Equal(2, p.Tickets, "отклоненный ход не списывает билет")
	s.Equal(1, s.countPlayerTurns(session.ID))
	s.Equal(1, pub.count())
}

func (s *RepositorySuite) TestSubmitProposal_AfterCooldownByDatabaseClock() {
	const playerKey = "p-submit-window"
	_, err := s.players.Ensure(s.ctx, s.pool, playerKey, 3)
	s.Require().NoError(err)
	session := s.sessionWith(playerKey, seededCharacterID)

	svc, _ := s.newNegotiationService(200 * time.Millisecond)

	_, err = svc.SubmitProposal(s.ctx, playerKey, session.ID, "раз")
	s.Require().NoError(err)
	time.Sleep(400 * time.Millisecond)

	res, err := svc.SubmitProposal(s.ctx, playerKey, session.ID, "два")
	s.Require().NoError(err)
	s.Equal(1, res.TicketsLeft)
	s.Equal(2, s.countPlayerTurns(session.ID))
}

func (s *RepositorySuite) TestSubmitProposal_NoTicketsKeepsBalance() {
	const playerKey = "p-submit-empty"
	_, err := s.players.Ensure(s.ctx, s.pool, playerKey, 0)
	s.Require().NoError(err)
	session := s.sessionWith(playerKey, seededCharacterID)

	svc, pub := s.newNegotiationService(2 * time.Second)

	_, err = svc.SubmitProposal(s.ctx, playerKey, session.ID, "без билетов")
	s.ErrorIs(err, models.ErrInsufficientTickets)

	p, err := s.players.GetByKey(s.ctx, s.pool, playerKey)
	s.Require().NoError(err)
	s.Equal(0, p.Tickets)
	s.Equal(0, s.countPlayerTurns(session.ID))
	s.Equal(0, pub.count())
}
