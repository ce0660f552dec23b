package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"idol-server/internal/config"
	"idol-server/internal/interfaces"
)

const sweepBatchSize = 50

// Sweeper по расписанию отвечает резервной репликой на ходы, оставшиеся без
// ответа (потерянная задача, упавший воркер), и чистит истекшие баффы.
type Sweeper struct {
	cron     *cron.Cron
	db       interfaces.DBTX
	players  interfaces.PlayerRepository
	messages interfaces.MessageRepository
	locker   interfaces.TurnLocker
	applier  *TurnApplier
	cfg      *config.Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewSweeper(
	db interfaces.DBTX,
	players interfaces.PlayerRepository,
	messages interfaces.MessageRepository,
	locker interfaces.TurnLocker,
	applier *TurnApplier,
	cfg *config.Config,
	logger *zap.Logger,
) *Sweeper {
	named := logger.Named("Sweeper")
	cronLogger := cronZapLogger{named.Sugar()}
	return &Sweeper{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		db:       db,
		players:  players,
		messages: messages,
		locker:   locker,
		applier:  applier,
		cfg:      cfg,
		logger:   named,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start регистрирует задачу по SWEEP_SCHEDULE и запускает планировщик.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.SweepSchedule, func() {
		if _, err := s.SweepOnce(ctx); err != nil {
			s.logger.Error("Sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.SweepSchedule, err)
	}
	s.cron.Start()
	s.logger.Info("Sweeper started", zap.String("schedule", s.cfg.SweepSchedule), zap.Duration("staleAfter", s.cfg.StaleTurnAfter))
	return nil
}

// Stop дожидается завершения текущего прохода.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Sweeper stopped")
}

// SweepOnce - один проход: возвращает число ходов, закрытых резервным ответом.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	turns, err := s.messages.ListUnanswered(ctx, s.db, now.Add(-s.cfg.StaleTurnAfter), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list unanswered turns: %w", err)
	}

	answered := 0
	for i := range turns {
		turn := &turns[i]
		log := s.logger.With(zap.String("turnID", turn.ID.String()))

		// Ход еще генерируется другим воркером
		acquired, err := s.locker.Acquire(ctx, turn.ID, s.cfg.TurnLockTTL)
		if err != nil {
			log.Warn("Turn lock unavailable, applying under reply uniqueness", zap.Error(err))
		} else if !acquired {
			continue
		}

		_, applied, applyErr := s.applier.Apply(ctx, turn, FallbackOutcome(turn.SessionID.String(), turn.Text))
		if acquired {
			if err := s.locker.Release(ctx, turn.ID); err != nil {
				log.Warn("Failed to release turn lock", zap.Error(err))
			}
		}
		if applyErr != nil {
			log.Error("Failed to apply fallback to stale turn", zap.Error(applyErr))
			continue
		}
		if applied {
			answered++
			sweptTurns.Inc()
			fallbackReasons.WithLabelValues("stale").Inc()
		}
	}

	pruned, err := s.players.PruneExpiredBuffs(ctx, s.db, now)
	if err != nil {
		return answered, fmt.Errorf("prune expired buffs: %w", err)
	}
	if answered > 0 || pruned > 0 {
		s.logger.Info("Sweep finished", zap.Int("staleTurnsAnswered", answered), zap.Int64("playersPruned", pruned))
	}
	return answered, nil
}

// cronZapLogger адаптирует zap к cron.Logger.
type cronZapLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronZapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronZapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
