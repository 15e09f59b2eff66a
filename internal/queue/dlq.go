package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

const (
	DeadLetterQueueName    = "practice_events_dlq"
	DeadLetterExchangeName = "ark_dlq"
	RetryQueueName         = "practice_events_retry"
	MaxRetries             = 5
)

// SetupDeadLetterQueue sets up the dead letter queue infrastructure
func (q *Queue) SetupDeadLetterQueue() error {
	// Declare dead letter exchange
	err := q.channel.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	// Declare dead letter queue
	_, err = q.channel.QueueDeclare(
		DeadLetterQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	// Bind DLQ to exchange
	err = q.channel.QueueBind(
		DeadLetterQueueName,
		DeadLetterQueueName,
		DeadLetterExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	// Expired retries flow back into the events queue
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": EventsQueueName,
	}

	_, err = q.channel.QueueDeclare(
		RetryQueueName,
		true,
		false,
		false,
		false,
		retryArgs,
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	q.logger.Debug("Dead letter queue infrastructure set up")
	return nil
}

// PublishToRetryQueue schedules an event for another delivery attempt
func (q *Queue) PublishToRetryQueue(ctx context.Context, evt *models.SessionEvent, retries int) error {
	if retries >= MaxRetries {
		return q.PublishToDeadLetterQueue(ctx, evt, "max retries exceeded")
	}

	delay := calculateBackoffDelay(retries)
	headers := amqp.Table{
		"x-retry-count": int32(retries + 1),
	}

	if err := q.publish(ctx, "", RetryQueueName, evt, headers, fmt.Sprintf("%d", delay.Milliseconds())); err != nil {
		return fmt.Errorf("failed to publish to retry queue: %w", err)
	}

	q.logger.WithSessionID(evt.SessionID).Infof("Event %s queued for retry #%d in %v", evt.ID, retries+1, delay)
	return nil
}

// PublishToDeadLetterQueue parks an event that could not be persisted
func (q *Queue) PublishToDeadLetterQueue(ctx context.Context, evt *models.SessionEvent, reason string) error {
	headers := amqp.Table{
		"x-failure-reason": reason,
		"x-failed-at":      time.Now().Format(time.RFC3339),
	}

	if err := q.publish(ctx, DeadLetterExchangeName, DeadLetterQueueName, evt, headers, ""); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	q.logger.WithSessionID(evt.SessionID).Warnf("Event %s moved to dead letter queue: %s", evt.ID, reason)
	return nil
}

// ConsumeDLQ consumes messages from the dead letter queue for manual processing
func (q *Queue) ConsumeDLQ(ctx context.Context, handler func(*models.SessionEvent, string) error) error {
	msgs, err := q.channel.Consume(
		DeadLetterQueueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register DLQ consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				evt, err := decodeEvent(msg.Body)
				if err != nil {
					q.logger.WarnWithErr("Dropping malformed dead-lettered event", err)
					msg.Nack(false, false)
					continue
				}

				reason := ""
				if val, ok := msg.Headers["x-failure-reason"].(string); ok {
					reason = val
				}

				if err := handler(evt, reason); err != nil {
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// RetryFromDLQ puts a dead-lettered event back on the events queue
func (q *Queue) RetryFromDLQ(ctx context.Context, evt *models.SessionEvent) error {
	return q.PublishEvent(ctx, evt)
}

// GetDLQDepth returns the number of messages in the dead letter queue
func (q *Queue) GetDLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(DeadLetterQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	return info.Messages, nil
}

// calculateBackoffDelay calculates exponential backoff delay
func calculateBackoffDelay(retries int) time.Duration {
	// 5s, 10s, 20s, 40s, 80s
	delay := 5 * time.Second * (1 << retries)

	if delay > 10*time.Minute {
		delay = 10 * time.Minute
	}

	return delay
}

// retryCount reads the retry header; AMQP tables carry it as any integer width
func retryCount(headers amqp.Table) int {
	switch v := headers["x-retry-count"].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}
