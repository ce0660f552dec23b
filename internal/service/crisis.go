package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"idol-server/internal/config"
	"idol-server/internal/generation"
	"idol-server/internal/interfaces"
	"idol-server/internal/logger"
	"idol-server/internal/models"
	"idol-server/internal/prompts"
	"idol-server/internal/schemas"
)

const (
	crisisTemperature = 0.2
	crisisMaxTokens   = 1024

	crisisGoodScore    = 80
	crisisNeutralScore = 50
)

// CrisisService оценивает ответ агентства на кризис и пересчитывает фандом.
type CrisisService interface {
	RespondToCrisis(ctx context.Context, playerKey, crisisDescription, responseText string) (*models.CrisisEvaluation, error)
}

type crisisServiceImpl struct {
	tx        interfaces.TransactionManager
	players   interfaces.PlayerRepository
	generator generation.Generator
	cfg       *config.Config
	logger    *zap.Logger
}

var _ CrisisService = (*crisisServiceImpl)(nil)

func NewCrisisService(
	tx interfaces.TransactionManager,
	players interfaces.PlayerRepository,
	generator generation.Generator,
	cfg *config.Config,
	logger *zap.Logger,
) CrisisService {
	return &crisisServiceImpl{
		tx:        tx,
		players:   players,
		generator: generator,
		cfg:       cfg,
		logger:    logger.Named("CrisisService"),
	}
}

// ApplyFandomPolicy пересчитывает фандом по оценке. Результат не бывает отрицательным.
func ApplyFandomPolicy(score, core, casual int) (newCore, newCasual int) {
	switch {
	case score >= crisisGoodScore:
		converted := casual / 10
		core += converted + 50
		casual -= converted
	case score >= crisisNeutralScore:
		casual -= 50
	default:
		casual -= 200
		core -= 100
	}
	return max(core, 0), max(casual, 0)
}

func (s *crisisServiceImpl) RespondToCrisis(ctx context.Context, playerKey, crisisDescription, responseText string) (*models.CrisisEvaluation, error) {
	if playerKey == "" {
		return nil, models.ErrUnauthorized
	}
	responseText = strings.TrimSpace(responseText)
	if responseText == "" {
		return nil, models.ErrEmptyInput
	}
	log := s.logger.With(zap.String("playerKey", playerKey))

	score := s.evaluate(ctx, log, strings.TrimSpace(crisisDescription), responseText)

	result := &models.CrisisEvaluation{Score: score.Score, Reasoning: score.Reasoning}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		if _, err := s.players.Ensure(ctx, tx, playerKey, s.cfg.InitialTickets); err != nil {
			return err
		}
		p, err := s.players.GetForUpdate(ctx, tx, playerKey)
		if err != nil {
			return err
		}
		result.CoreFandom, result.CasualFandom = ApplyFandomPolicy(score.Score, p.CoreFandom, p.CasualFandom)
		return s.players.SetFandom(ctx, tx, playerKey, result.CoreFandom, result.CasualFandom)
	})
	if err != nil {
		log.Error("Failed to apply crisis outcome", zap.Error(err))
		return nil, err
	}

	log.Info("Crisis response evaluated",
		zap.Int("score", result.Score),
		zap.Int("coreFandom", result.CoreFandom),
		zap.Int("casualFandom", result.CasualFandom),
	)
	return result, nil
}

// evaluate никогда не возвращает ошибку: любой сбой дает нейтральную оценку.
func (s *crisisServiceImpl) evaluate(ctx context.Context, log *zap.Logger, crisis, response string) schemas.CrisisScore {
	prompt, err := prompts.Crisis(crisis, response)
	if err != nil {
		log.Error("Failed to render crisis prompt", zap.Error(err))
		return schemas.NeutralCrisisScore()
	}

	opts := generation.DefaultOptions(s.cfg, generation.PurposeCrisis)
	opts.Structured = true
	opts.Schema = generation.CrisisSchema
	opts.Temperature = crisisTemperature
	opts.MaxOutputTokens = crisisMaxTokens

	raw, err := s.generator.Generate(ctx, prompt, opts)
	if err != nil {
		log.Warn("Crisis generation failed, using neutral score", zap.Error(err))
		return schemas.NeutralCrisisScore()
	}
	score, err := schemas.ParseCrisisScore(raw)
	if err != nil {
		log.Warn("Crisis reply parse failed, using neutral score",
			zap.Error(err), zap.String("raw", logger.Snippet(raw, 200)))
	}
	return score
}
