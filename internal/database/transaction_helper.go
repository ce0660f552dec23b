package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"idol-server/internal/interfaces"
	"idol-server/internal/models"
)

var _ interfaces.TransactionManager = (*TransactionHelper)(nil)

// TransactionHelper выполняет функции в транзакции пула.
type TransactionHelper struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTransactionHelper(db *pgxpool.Pool, logger *zap.Logger) *TransactionHelper {
	return &TransactionHelper{
		db:     db,
		logger: logger.Named("TxHelper"),
	}
}

// WithTransaction коммитит при успехе fn; ошибка или паника внутри fn откатывают транзакцию.
// Логи несут имя операции из models.WithOperation.
func (h *TransactionHelper) WithTransaction(
	ctx context.Context,
	fn func(ctx context.Context, tx interfaces.DBTX) error,
) error {
	operation := models.OperationFromContext(ctx)
	log := h.logger.With(zap.String("operation", operation))

	tx, err := h.db.Begin(ctx)
	if err != nil {
		log.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("%s: failed to begin transaction: %w", operation, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				log.Error("Rollback after panic failed",
					zap.Error(rollbackErr),
					zap.Any("panic", p))
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			log.Error("Rollback failed",
				zap.Error(rollbackErr),
				zap.NamedError("original_error", err))
			return err
		}
		log.Debug("Operation rolled back", zap.Error(err))
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		log.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("%s: failed to commit transaction: %w", operation, err)
	}
	return nil
}
