package models

import "context"

type contextKey string

// PlayerKeyContextKey - ключ контекста для проверенного идентификатора игрока.
const PlayerKeyContextKey contextKey = "playerKey"

// OperationContextKey - имя операции (маршрут или очередь) для логов транзакций.
const OperationContextKey contextKey = "operation"

// WithPlayerKey кладет идентификатор игрока в контекст.
func WithPlayerKey(ctx context.Context, playerKey string) context.Context {
	return context.WithValue(ctx, PlayerKeyContextKey, playerKey)
}

// PlayerKeyFromContext извлекает идентификатор игрока.
// Пустая строка считается отсутствием идентификатора.
func PlayerKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(PlayerKeyContextKey).(string)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// WithOperation помечает контекст именем операции.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationContextKey, operation)
}

// OperationFromContext возвращает имя операции или "unnamed".
func OperationFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(OperationContextKey).(string); ok && op != "" {
		return op
	}
	return "unnamed"
}
