package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"idol-server/internal/config"
	"idol-server/internal/interfaces"
	"idol-server/internal/logger"
	"idol-server/internal/messaging"
	"idol-server/internal/models"
)

var _ NegotiationService = (*negotiationServiceImpl)(nil)

type negotiationServiceImpl struct {
	db         interfaces.DBTX
	tx         interfaces.TransactionManager
	players    interfaces.PlayerRepository
	characters interfaces.CharacterRepository
	sessions   interfaces.SessionRepository
	messages   interfaces.MessageRepository
	taskPub    messaging.NegotiationTaskPublisher
	cfg        *config.Config
	logger     *zap.Logger
	now        func() time.Time
}

func NewNegotiationService(
	db interfaces.DBTX,
	tx interfaces.TransactionManager,
	players interfaces.PlayerRepository,
	characters interfaces.CharacterRepository,
	sessions interfaces.SessionRepository,
	messages interfaces.MessageRepository,
	taskPub messaging.NegotiationTaskPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) NegotiationService {
	return &negotiationServiceImpl{
		db:         db,
		tx:         tx,
		players:    players,
		characters: characters,
		sessions:   sessions,
		messages:   messages,
		taskPub:    taskPub,
		cfg:        cfg,
		logger:     logger.Named("NegotiationService"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *negotiationServiceImpl) EnsurePlayer(ctx context.Context, playerKey string) (*models.Player, error) {
	if playerKey == "" {
		return nil, models.ErrUnauthorized
	}
	return s.players.Ensure(ctx, s.db, playerKey, s.cfg.InitialTickets)
}

func (s *negotiationServiceImpl) GetProfile(ctx context.Context, playerKey string) (*models.Player, error) {
	if playerKey == "" {
		return nil, models.ErrUnauthorized
	}
	p, err := s.players.GetByKey(ctx, s.db, playerKey)
	if err != nil {
		return nil, err
	}
	p.ActiveBuffs = p.LiveBuffs(s.now())
	return p, nil
}

func (s *negotiationServiceImpl) ListCharacters(ctx context.Context) ([]models.Character, error) {
	return s.characters.List(ctx, s.db)
}

func (s *negotiationServiceImpl) GetCharacter(ctx context.Context, characterID uuid.UUID) (*models.Character, error) {
	return s.characters.GetByID(ctx, s.db, characterID)
}

func (s *negotiationServiceImpl) GetOrCreateSession(ctx context.Context, playerKey string, characterID uuid.UUID) (*models.NegotiationSession, error) {
	if playerKey == "" {
		return nil, models.ErrUnauthorized
	}
	log := s.logger.With(zap.String("playerKey", playerKey), zap.String("characterID", characterID.String()))

	character, err := s.characters.GetByID(ctx, s.db, characterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.players.Ensure(ctx, s.db, playerKey, s.cfg.InitialTickets); err != nil {
		return nil, err
	}

	open, err := s.sessions.FindOpen(ctx, s.db, playerKey, characterID)
	if err == nil {
		return open, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	// Показатели - память отношений: новая сессия продолжает с последних значений
	stats := models.DefaultSessionStats
	latest, err := s.sessions.FindLatest(ctx, s.db, playerKey, characterID)
	switch {
	case err == nil:
		stats = latest.Stats()
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	session := &models.NegotiationSession{
		PlayerKey:       playerKey,
		CharacterID:     character.ID,
		CharacterName:   character.Name,
		CurrentArtifact: models.DefaultArtifact,
	}
	session.SetStats(stats)

	if err := s.sessions.Create(ctx, s.db, session); err != nil {
		if errors.Is(err, models.ErrOpenSessionExists) {
			// Параллельный запрос успел создать сессию раньше
			return s.sessions.FindOpen(ctx, s.db, playerKey, characterID)
		}
		return nil, err
	}
	log.Info("Session created", zap.String("sessionID", session.ID.String()))
	return session, nil
}

func (s *negotiationServiceImpl) GetSession(ctx context.Context, playerKey string, sessionID uuid.UUID) (*models.NegotiationSession, error) {
	return s.loadOwned(ctx, s.db, playerKey, sessionID, false)
}

func (s *negotiationServiceImpl) ListSessions(ctx context.Context, playerKey string) ([]models.NegotiationSession, error) {
	if playerKey == "" {
		return nil, models.ErrUnauthorized
	}
	return s.sessions.ListByPlayer(ctx, s.db, playerKey)
}

func (s *negotiationServiceImpl) ListMessages(ctx context.Context, playerKey string, sessionID uuid.UUID) ([]models.Message, error) {
	if _, err := s.loadOwned(ctx, s.db, playerKey, sessionID, false); err != nil {
		return nil, err
	}
	return s.messages.ListRecent(ctx, s.db, sessionID, models.MessageHistoryLimit)
}

func (s *negotiationServiceImpl) CloseSession(ctx context.Context, playerKey string, sessionID uuid.UUID) (*models.NegotiationSession, error) {
	var closed *models.NegotiationSession
	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		session, err := s.loadOwned(ctx, tx, playerKey, sessionID, true)
		if err != nil {
			return err
		}
		if session.IsClosed {
			return models.ErrSessionClosed
		}
		if err := s.sessions.Close(ctx, tx, sessionID); err != nil {
			return err
		}
		session.IsClosed = true
		closed = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Session closed", zap.String("sessionID", sessionID.String()), zap.String("playerKey", playerKey))
	return closed, nil
}

// SubmitProposal принимает ход игрока. Списание билета и запись сообщения идут
// одной транзакцией под блокировкой строки сессии; генерация ставится в очередь
// только после коммита.
func (s *negotiationServiceImpl) SubmitProposal(ctx context.Context, playerKey string, sessionID uuid.UUID, text string) (*SubmitResult, error) {
	if playerKey == "" {
		return nil, models.ErrUnauthorized
	}
	log := s.logger.With(zap.String("playerKey", playerKey), zap.String("sessionID", sessionID.String()))

	session, err := s.loadOwned(ctx, s.db, playerKey, sessionID, false)
	if err != nil {
		return nil, err
	}
	if session.IsClosed {
		return nil, models.ErrSessionClosed
	}

	input := strings.TrimSpace(text)
	if input == "" {
		return nil, models.ErrEmptyInput
	}
	if utf8.RuneCountInString(input) > s.cfg.MaxInputLength {
		return nil, models.ErrInputTooLong
	}

	var result SubmitResult
	err = s.tx.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		// Повторная проверка под блокировкой: сессию могли закрыть параллельно
		locked, err := s.loadOwned(ctx, tx, playerKey, sessionID, true)
		if err != nil {
			return err
		}
		if locked.IsClosed {
			return models.ErrSessionClosed
		}

		// Возраст считает база, чтобы часы реплик API не влияли на окно
		latest, age, err := s.messages.GetLatestWithAge(ctx, tx, sessionID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if latest != nil && latest.Sender == models.SenderPlayer && age < s.cfg.SubmitCooldown {
			return models.ErrTooSoon
		}

		remaining, err := s.players.SpendTicket(ctx, tx, playerKey)
		if err != nil {
			return err
		}

		turn := &models.Message{
			ID:        uuid.New(),
			SessionID: sessionID,
			Sender:    models.SenderPlayer,
			Text:      input,
		}
		if err := s.messages.Create(ctx, tx, turn); err != nil {
			return err
		}
		result = SubmitResult{Turn: turn, TicketsLeft: remaining}
		return nil
	})
	if err != nil {
		if isRejection(err) {
			log.Info("Proposal rejected", zap.Error(err))
		} else {
			log.Error("Failed to accept proposal", zap.Error(err))
		}
		return nil, err
	}

	payload := messaging.NegotiationTaskPayload{
		TaskID:      uuid.NewString(),
		TurnID:      result.Turn.ID,
		SessionID:   sessionID,
		PlayerKey:   playerKey,
		CharacterID: session.CharacterID,
		InputText:   input,
		SubmittedAt: result.Turn.CreatedAt,
	}
	if err := s.taskPub.PublishNegotiationTask(ctx, payload); err != nil {
		// Ход уже принят; неотвеченный ход подберет периодическая задача воркера
		log.Error("Failed to enqueue negotiation task, sweeper will answer the turn",
			zap.String("turnID", result.Turn.ID.String()), zap.Error(err))
	}

	log.Info("Proposal accepted",
		zap.String("turnID", result.Turn.ID.String()),
		zap.Int("ticketsLeft", result.TicketsLeft),
		zap.String("input", logger.Snippet(input, 80)),
	)
	return &result, nil
}

func (s *negotiationServiceImpl) loadOwned(ctx context.Context, q interfaces.DBTX, playerKey string, sessionID uuid.UUID, forUpdate bool) (*models.NegotiationSession, error) {
	if playerKey == "" {
		return nil, models.ErrUnauthorized
	}
	var (
		session *models.NegotiationSession
		err     error
	)
	if forUpdate {
		session, err = s.sessions.GetForUpdate(ctx, q, sessionID)
	} else {
		session, err = s.sessions.GetByID(ctx, q, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if session.PlayerKey != playerKey {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrForbidden)
	}
	return session, nil
}

// isRejection - ожидаемые отказы, которые не являются сбоем сервера.
func isRejection(err error) bool {
	for _, target := range []error{
		models.ErrUnauthorized, models.ErrForbidden, models.ErrNotFound, models.ErrSessionClosed,
		models.ErrEmptyInput, models.ErrInputTooLong, models.ErrTooSoon, models.ErrInsufficientTickets,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
