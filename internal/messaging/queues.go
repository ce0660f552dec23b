package messaging

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const deadLetterRoutingKey = "dlq"

// DeclareTaskQueue объявляет durable-очередь задач вместе с DLX и DLQ.
// Публикатор и консьюмер вызывают ее с одинаковыми параметрами,
// поэтому порядок запуска сервисов не важен.
func DeclareTaskQueue(ch *amqp.Channel, queueName string) error {
	dlx := queueName + "_dlx"
	dlq := queueName + "_dlq"

	if err := ch.ExchangeDeclare(dlx, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLX '%s': %w", dlx, err)
	}
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ '%s': %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, deadLetterRoutingKey, dlx, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ '%s': %w", dlq, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": deadLetterRoutingKey,
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", queueName, err)
	}
	return nil
}

// DeclareUpdatesQueue объявляет очередь обновлений для клиентов (без DLX:
// потерянное обновление клиент доберет запросом истории).
func DeclareUpdatesQueue(ch *amqp.Channel, queueName string) error {
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", queueName, err)
	}
	return nil
}
