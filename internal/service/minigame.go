package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"idol-server/internal/interfaces"
	"idol-server/internal/models"
)

const (
	MinCompletionTime = 3 * time.Second
	MaxCompletionTime = 60 * time.Second
	// DuplicateWindow - повторная отправка в этом окне считается дублем.
	DuplicateWindow = 5 * time.Second

	MinigameTicketReward = 1
)

// MinigameService принимает результаты мини-игр и начисляет билеты.
type MinigameService interface {
	SubmitResult(ctx context.Context, playerKey string, completionTimeMs int64) (*models.MinigameOutcome, error)
}

type minigameServiceImpl struct {
	tx      interfaces.TransactionManager
	players interfaces.PlayerRepository
	results interfaces.MinigameRepository
	initial int
	logger  *zap.Logger
	now     func() time.Time
}

var _ MinigameService = (*minigameServiceImpl)(nil)

func NewMinigameService(
	tx interfaces.TransactionManager,
	players interfaces.PlayerRepository,
	results interfaces.MinigameRepository,
	initialTickets int,
	logger *zap.Logger,
) MinigameService {
	return &minigameServiceImpl{
		tx:      tx,
		players: players,
		results: results,
		initial: initialTickets,
		logger:  logger.Named("MinigameService"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RankFor переводит время прохождения в ранг.
func RankFor(completion time.Duration) string {
	switch {
	case completion <= 15*time.Second:
		return "S"
	case completion <= 30*time.Second:
		return "A"
	case completion <= 45*time.Second:
		return "B"
	default:
		return "C"
	}
}

func (s *minigameServiceImpl) SubmitResult(ctx context.Context, playerKey string, completionTimeMs int64) (*models.MinigameOutcome, error) {
	if playerKey == "" {
		return nil, models.ErrUnauthorized
	}
	completion := time.Duration(completionTimeMs) * time.Millisecond
	if completion < MinCompletionTime || completion > MaxCompletionTime {
		return nil, models.ErrInvalidCompletionTime
	}

	var outcome models.MinigameOutcome
	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		if _, err := s.players.Ensure(ctx, tx, playerKey, s.initial); err != nil {
			return err
		}
		// Блокировка строки игрока сериализует параллельные отправки
		before, err := s.players.GetForUpdate(ctx, tx, playerKey)
		if err != nil {
			return err
		}

		last, err := s.results.GetLatestForPlayer(ctx, tx, playerKey)
		switch {
		case err == nil:
			if s.now().Sub(last.CreatedAt) < DuplicateWindow {
				return models.ErrDuplicateSubmission
			}
		case !errors.Is(err, models.ErrNotFound):
			return err
		}

		rank := RankFor(completion)
		after, err := s.players.RecordMinigame(ctx, tx, playerKey, completionTimeMs, MinigameTicketReward)
		if err != nil {
			return err
		}
		if err := s.results.Create(ctx, tx, &models.MinigameResult{
			ID:               uuid.New(),
			PlayerKey:        playerKey,
			CompletionTimeMs: completionTimeMs,
			Rank:             rank,
			TicketsAwarded:   MinigameTicketReward,
			CreatedAt:        s.now(),
		}); err != nil {
			return err
		}

		outcome = models.MinigameOutcome{
			Rank:           rank,
			TicketsAwarded: MinigameTicketReward,
			IsNewBest:      before.BestTimeMs == nil || completionTimeMs < *before.BestTimeMs,
			Tickets:        after.Tickets,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Minigame result recorded",
		zap.String("playerKey", playerKey),
		zap.Int64("completionTimeMs", completionTimeMs),
		zap.String("rank", outcome.Rank),
		zap.Bool("newBest", outcome.IsNewBest),
	)
	return &outcome, nil
}
