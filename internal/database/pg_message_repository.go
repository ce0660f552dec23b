package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"idol-server/internal/interfaces"
	"idol-server/internal/models"
)

const (
	messageFields = `id, session_id, sender, text, stat_delta, reward, reply_to, created_at`

	insertMessageQuery = `
        INSERT INTO negotiation_messages (id, session_id, sender, text, stat_delta, reward, reply_to, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
    `
	insertReplyQuery = insertMessageQuery + `
        ON CONFLICT (reply_to) WHERE reply_to IS NOT NULL DO NOTHING
        RETURNING created_at
    `
	getMessageByIDQuery   = `SELECT ` + messageFields + ` FROM negotiation_messages WHERE id = $1`
	getLatestMessageQuery = `
        SELECT ` + messageFields + `, EXTRACT(EPOCH FROM (NOW() - created_at))::float8
        FROM negotiation_messages WHERE session_id = $1 ORDER BY seq DESC LIMIT 1
    `
	replyExistsQuery        = `SELECT EXISTS (SELECT 1 FROM negotiation_messages WHERE reply_to = $1)`
	listRecentMessagesQuery = `
        SELECT ` + messageFields + ` FROM (
            SELECT seq, ` + messageFields + ` FROM negotiation_messages
            WHERE session_id = $1
            ORDER BY seq DESC
            LIMIT $2
        ) recent
        ORDER BY seq ASC
    `
	listUnansweredQuery = `
        SELECT ` + prefixedMessageFields + ` FROM negotiation_messages p
        WHERE p.sender = 'player' AND p.created_at < $1
          AND NOT EXISTS (SELECT 1 FROM negotiation_messages c WHERE c.reply_to = p.id)
        ORDER BY p.created_at ASC
        LIMIT $2
    `
	prefixedMessageFields = `p.id, p.session_id, p.sender, p.text, p.stat_delta, p.reward, p.reply_to, p.created_at`
)

var _ interfaces.MessageRepository = (*pgMessageRepository)(nil)

type pgMessageRepository struct {
	logger *zap.Logger
}

// NewPgMessageRepository создает репозиторий журнала сообщений.
func NewPgMessageRepository(logger *zap.Logger) interfaces.MessageRepository {
	return &pgMessageRepository{logger: logger.Named("PgMessageRepo")}
}

func (r *pgMessageRepository) Create(ctx context.Context, querier interfaces.DBTX, msg *models.Message) error {
	prepareMessage(msg)
	err := querier.QueryRow(ctx, insertMessageQuery+` RETURNING created_at`,
		msg.ID, msg.SessionID, msg.Sender, msg.Text, msg.StatDelta, msg.Reward, msg.ReplyTo, createdAtArg(msg),
	).Scan(&msg.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert message", zap.String("sessionID", msg.SessionID.String()), zap.Error(err))
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *pgMessageRepository) CreateReply(ctx context.Context, querier interfaces.DBTX, msg *models.Message) (bool, error) {
	if msg.ReplyTo == nil {
		return false, fmt.Errorf("reply message without reply_to: %w", models.ErrBadRequest)
	}
	prepareMessage(msg)
	err := querier.QueryRow(ctx, insertReplyQuery,
		msg.ID, msg.SessionID, msg.Sender, msg.Text, msg.StatDelta, msg.Reward, msg.ReplyTo, createdAtArg(msg),
	).Scan(&msg.CreatedAt)
	if err != nil {
		// ON CONFLICT DO NOTHING не возвращает строк
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.logger.Error("Failed to insert reply", zap.String("turnID", msg.ReplyTo.String()), zap.Error(err))
		return false, fmt.Errorf("failed to insert reply: %w", err)
	}
	return true, nil
}

func (r *pgMessageRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Message, error) {
	return r.getOne(ctx, querier, getMessageByIDQuery, id)
}

func (r *pgMessageRepository) GetLatestWithAge(ctx context.Context, querier interfaces.DBTX, sessionID uuid.UUID) (*models.Message, time.Duration, error) {
	var (
		msg        models.Message
		ageSeconds float64
	)
	err := querier.QueryRow(ctx, getLatestMessageQuery, sessionID).Scan(
		&msg.ID, &msg.SessionID, &msg.Sender, &msg.Text, &msg.StatDelta, &msg.Reward, &msg.ReplyTo, &msg.CreatedAt, &ageSeconds,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, models.ErrNotFound
		}
		r.logger.Error("Failed to get latest message", zap.String("sessionID", sessionID.String()), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to get latest message: %w", err)
	}
	return &msg, time.Duration(ageSeconds * float64(time.Second)), nil
}

func (r *pgMessageRepository) getOne(ctx context.Context, querier interfaces.DBTX, query string, id uuid.UUID) (*models.Message, error) {
	msg, err := scanMessage(querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get message", zap.String("id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

func (r *pgMessageRepository) ReplyExists(ctx context.Context, querier interfaces.DBTX, turnID uuid.UUID) (bool, error) {
	var exists bool
	if err := querier.QueryRow(ctx, replyExistsQuery, turnID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check reply existence", zap.String("turnID", turnID.String()), zap.Error(err))
		return false, fmt.Errorf("failed to check reply for turn %s: %w", turnID, err)
	}
	return exists, nil
}

func (r *pgMessageRepository) ListRecent(ctx context.Context, querier interfaces.DBTX, sessionID uuid.UUID, limit int) ([]models.Message, error) {
	return r.list(ctx, querier, listRecentMessagesQuery, sessionID, limit)
}

func (r *pgMessageRepository) ListUnanswered(ctx context.Context, querier interfaces.DBTX, olderThan time.Time, limit int) ([]models.Message, error) {
	return r.list(ctx, querier, listUnansweredQuery, olderThan, limit)
}

func (r *pgMessageRepository) list(ctx context.Context, querier interfaces.DBTX, query string, args ...any) ([]models.Message, error) {
	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query messages", zap.Error(err))
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// scanMessage читает строку вручную: JSONB-снимки сканируются в указатели, NULL дает nil.
func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	err := row.Scan(&msg.ID, &msg.SessionID, &msg.Sender, &msg.Text, &msg.StatDelta, &msg.Reward, &msg.ReplyTo, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func prepareMessage(msg *models.Message) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
}

// createdAtArg - NULL для нулевого времени: тогда время ставит база.
func createdAtArg(msg *models.Message) any {
	if msg.CreatedAt.IsZero() {
		return nil
	}
	return msg.CreatedAt
}
