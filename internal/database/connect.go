package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"idol-server/internal/config"
)

// RetryPolicy - сколько раз и с какой паузой пытаться подключиться к зависимостям при старте.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxRetries: 50, Delay: 3 * time.Second}

// ConnectPostgres создает пул соединений и ждет, пока база ответит на ping.
func ConnectPostgres(ctx context.Context, cfg *config.Config, policy RetryPolicy, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	logger.Info("Connecting to PostgreSQL", zap.Int("max_retries", policy.MaxRetries), zap.Duration("retry_delay", policy.Delay))

	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		cancel()
		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
			err = pool.Ping(pingCtx)
			pingCancel()
			if err == nil {
				logger.Info("PostgreSQL is ready", zap.Int("attempt", attempt))
				return pool, nil
			}
			pool.Close()
		}

		lastErr = err
		logger.Warn("PostgreSQL not ready, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", policy.MaxRetries),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, policy.Delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", policy.MaxRetries, lastErr)
}

// ConnectRedis создает клиента Redis и ждет ответа на PING.
func ConnectRedis(ctx context.Context, cfg *config.Config, policy RetryPolicy, logger *zap.Logger) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := client.Ping(pingCtx).Result()
		cancel()
		if err == nil {
			logger.Info("Redis is ready", zap.String("address", opts.Addr), zap.Int("attempt", attempt))
			return client, nil
		}
		_ = client.Close()

		lastErr = err
		logger.Warn("Redis not ready, retrying...", zap.Int("attempt", attempt), zap.Error(err))
		if err := sleepCtx(ctx, policy.Delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", policy.MaxRetries, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
