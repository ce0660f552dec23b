package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"idol-server/internal/models"
)

// NegotiationTaskPublisher ставит ход игрока в очередь генерации.
type NegotiationTaskPublisher interface {
	PublishNegotiationTask(ctx context.Context, payload NegotiationTaskPayload) error
}

// EnrichmentTaskPublisher ставит задачу декоративного артефакта.
type EnrichmentTaskPublisher interface {
	PublishEnrichmentTask(ctx context.Context, payload EnrichmentTaskPayload) error
}

// SessionUpdatePublisher отправляет обновления сессии подключенным клиентам.
type SessionUpdatePublisher interface {
	PublishSessionUpdate(ctx context.Context, update models.SessionUpdate) error
}

const publishAttempts = 3

// rabbitMQPublisher публикует JSON в default exchange с routing key = имя очереди.
// amqp.Channel не потокобезопасен для публикаций, поэтому вызовы сериализуются.
type rabbitMQPublisher struct {
	mu        sync.Mutex
	channel   *amqp.Channel
	queueName string
	appID     string
	logger    *zap.Logger
}

var (
	_ NegotiationTaskPublisher = (*rabbitMQPublisher)(nil)
	_ EnrichmentTaskPublisher  = (*rabbitMQPublisher)(nil)
	_ SessionUpdatePublisher   = (*rabbitMQPublisher)(nil)
)

func newPublisher(conn *amqp.Connection, queueName, appID string, declare func(*amqp.Channel, string) error, logger *zap.Logger) (*rabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("publisher: failed to open channel: %w", err)
	}
	if err := declare(ch, queueName); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("publisher: %w", err)
	}
	logger.Info("Publisher ready", zap.String("queue", queueName))
	return &rabbitMQPublisher{channel: ch, queueName: queueName, appID: appID, logger: logger}, nil
}

func NewNegotiationTaskPublisher(conn *amqp.Connection, queueName, appID string, logger *zap.Logger) (NegotiationTaskPublisher, error) {
	return newPublisher(conn, queueName, appID, DeclareTaskQueue, logger.Named("NegotiationTaskPublisher"))
}

func NewEnrichmentTaskPublisher(conn *amqp.Connection, queueName, appID string, logger *zap.Logger) (EnrichmentTaskPublisher, error) {
	return newPublisher(conn, queueName, appID, DeclareTaskQueue, logger.Named("EnrichmentTaskPublisher"))
}

func NewSessionUpdatePublisher(conn *amqp.Connection, queueName, appID string, logger *zap.Logger) (SessionUpdatePublisher, error) {
	return newPublisher(conn, queueName, appID, DeclareUpdatesQueue, logger.Named("SessionUpdatePublisher"))
}

func (p *rabbitMQPublisher) PublishNegotiationTask(ctx context.Context, payload NegotiationTaskPayload) error {
	if err := p.publishJSON(ctx, payload); err != nil {
		p.logger.Error("Failed to publish negotiation task",
			zap.String("taskID", payload.TaskID),
			zap.String("turnID", payload.TurnID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish negotiation task %s: %w", payload.TaskID, err)
	}
	return nil
}

func (p *rabbitMQPublisher) PublishEnrichmentTask(ctx context.Context, payload EnrichmentTaskPayload) error {
	if err := p.publishJSON(ctx, payload); err != nil {
		return fmt.Errorf("failed to publish enrichment task %s: %w", payload.TaskID, err)
	}
	return nil
}

func (p *rabbitMQPublisher) PublishSessionUpdate(ctx context.Context, update models.SessionUpdate) error {
	if err := p.publishJSON(ctx, update); err != nil {
		return fmt.Errorf("failed to publish session update for %s: %w", update.SessionID, err)
	}
	return nil
}

func (p *rabbitMQPublisher) publishJSON(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return p.publishMessage(ctx, body)
}

func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",
			p.queueName,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        p.appID,
			},
		)
		if err == nil {
			return nil
		}
		p.logger.Warn("Publish attempt failed", zap.Int("attempt", attempt), zap.String("queue", p.queueName), zap.Error(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("publish to %s cancelled: %w", p.queueName, ctx.Err())
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return fmt.Errorf("failed to publish to %s after %d attempts: %w", p.queueName, publishAttempts, err)
}
