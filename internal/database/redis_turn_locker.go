package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"idol-server/internal/interfaces"
)

const turnLockKeyPrefix = "turn:"

var _ interfaces.TurnLocker = (*redisTurnLocker)(nil)

type redisTurnLocker struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTurnLocker - блокировка хода через SET NX с TTL.
func NewRedisTurnLocker(client *redis.Client, logger *zap.Logger) interfaces.TurnLocker {
	return &redisTurnLocker{client: client, logger: logger.Named("TurnLocker")}
}

func (l *redisTurnLocker) Acquire(ctx context.Context, turnID uuid.UUID, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, turnLockKeyPrefix+turnID.String(), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire turn lock %s: %w", turnID, err)
	}
	if !ok {
		l.logger.Debug("Turn is already locked", zap.String("turnID", turnID.String()))
	}
	return ok, nil
}

func (l *redisTurnLocker) Release(ctx context.Context, turnID uuid.UUID) error {
	if err := l.client.Del(ctx, turnLockKeyPrefix+turnID.String()).Err(); err != nil {
		return fmt.Errorf("failed to release turn lock %s: %w", turnID, err)
	}
	return nil
}
