package messaging

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"idol-server/internal/models"
)

// ErrRetryable - обработчик просит вернуть сообщение в очередь.
// Любая другая ошибка отправляет сообщение в DLQ.
var ErrRetryable = errors.New("retryable message failure")

// Handler обрабатывает тело одного сообщения.
type Handler interface {
	Handle(ctx context.Context, body []byte) error
}

// HandlerFunc позволяет использовать функцию как Handler.
type HandlerFunc func(ctx context.Context, body []byte) error

func (f HandlerFunc) Handle(ctx context.Context, body []byte) error { return f(ctx, body) }

// Delivery - то, что консьюмеру нужно от amqp.Delivery.
type Delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consumer читает очередь и раздает сообщения обработчику в нескольких горутинах.
type Consumer struct {
	conn           *amqp.Connection
	queueName      string
	consumerTag    string
	concurrency    int
	handlerTimeout time.Duration
	declare        func(*amqp.Channel, string) error
	handler        Handler
	logger         *zap.Logger

	stopChannel chan struct{}
	stopOnce    sync.Once
	inFlight    sync.WaitGroup
}

// ConsumerConfig - параметры консьюмера.
type ConsumerConfig struct {
	QueueName      string
	ConsumerTag    string
	Concurrency    int
	HandlerTimeout time.Duration
	// UpdatesQueue - очередь без DLX (обновления для клиентов).
	UpdatesQueue bool
}

func NewConsumer(conn *amqp.Connection, cfg ConsumerConfig, handler Handler, logger *zap.Logger) *Consumer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 2 * time.Minute
	}
	declare := DeclareTaskQueue
	if cfg.UpdatesQueue {
		declare = DeclareUpdatesQueue
	}
	return &Consumer{
		conn:           conn,
		queueName:      cfg.QueueName,
		consumerTag:    cfg.ConsumerTag,
		concurrency:    cfg.Concurrency,
		handlerTimeout: cfg.HandlerTimeout,
		declare:        declare,
		handler:        handler,
		logger:         logger.Named("Consumer").With(zap.String("queue", cfg.QueueName)),
		stopChannel:    make(chan struct{}),
	}
}

// StartConsuming блокирует до Stop или закрытия канала; запускать в отдельной горутине.
func (c *Consumer) StartConsuming() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("consumer: failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := c.declare(ch, c.queueName); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	if err := ch.Qos(c.concurrency, 0, false); err != nil {
		return fmt.Errorf("consumer: failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(c.queueName, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consumer: failed to register consumer: %w", err)
	}
	c.logger.Info("Consumer started", zap.Int("concurrency", c.concurrency))

	sem := make(chan struct{}, c.concurrency)
	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				c.logger.Warn("Delivery channel closed")
				c.inFlight.Wait()
				return nil
			}
			sem <- struct{}{}
			c.inFlight.Add(1)
			go func(d amqp.Delivery) {
				defer func() {
					<-sem
					c.inFlight.Done()
				}()
				c.Dispatch(&d, d.Body)
			}(d)
		case <-c.stopChannel:
			c.logger.Info("Stop signal received, waiting for in-flight messages")
			if err := ch.Cancel(c.consumerTag, false); err != nil {
				c.logger.Warn("Failed to cancel consumer", zap.Error(err))
			}
			c.inFlight.Wait()
			return nil
		}
	}
}

// Dispatch вызывает обработчик и подтверждает сообщение по результату.
// Паника обработчика превращается в отправку в DLQ.
func (c *Consumer) Dispatch(d Delivery, body []byte) {
	ctx, cancel := context.WithTimeout(models.WithOperation(context.Background(), "consume "+c.queueName), c.handlerTimeout)
	defer cancel()

	err := c.safeHandle(ctx, body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("Failed to ack message", zap.Error(ackErr))
		}
	case errors.Is(err, ErrRetryable):
		c.logger.Warn("Handler asked for retry", zap.Error(err))
		_ = d.Nack(false, true)
	default:
		c.logger.Error("Handler failed, dead-lettering message", zap.Error(err))
		_ = d.Nack(false, false)
	}
}

func (c *Consumer) safeHandle(ctx context.Context, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler.Handle(ctx, body)
}

// Stop останавливает чтение; безопасно вызывать повторно.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping consumer...")
		close(c.stopChannel)
	})
}
