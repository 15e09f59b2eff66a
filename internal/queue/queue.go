package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/therealutkarshpriyadarshi/ark/internal/config"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

const (
	EventsQueueName = "practice_events"
	ExchangeName    = "ark"
)

// EventHandler persists or otherwise processes a consumed event
type EventHandler func(ctx context.Context, evt *models.SessionEvent) error

// Queue provides message queue operations
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logging.Logger
}

// New creates a new queue client
func New(cfg config.QueueConfig, logger *logging.Logger) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare exchange
	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		EventsQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange
	err = channel.QueueBind(
		EventsQueueName,
		EventsQueueName,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	q := &Queue{
		conn:    conn,
		channel: channel,
		logger:  logger.WithComponent("queue"),
	}

	if err := q.SetupDeadLetterQueue(); err != nil {
		q.Close()
		return nil, err
	}

	return q, nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// PublishEvent publishes a session event for persistence
func (q *Queue) PublishEvent(ctx context.Context, evt *models.SessionEvent) error {
	err := q.publish(ctx, ExchangeName, EventsQueueName, evt, nil, "")

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordEventPublish(evt.Type, status)
	return err
}

// Record implements the session event sink by publishing the event
func (q *Queue) Record(ctx context.Context, evt *models.SessionEvent) error {
	return q.PublishEvent(ctx, evt)
}

func (q *Queue) publish(ctx context.Context, exchange, key string, evt *models.SessionEvent, headers amqp.Table, expiration string) error {
	body, err := encodeEvent(evt)
	if err != nil {
		return err
	}

	err = q.channel.PublishWithContext(ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    evt.ID,
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      headers,
			Expiration:   expiration,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// ConsumeEvents starts consuming session events from the queue. Events the
// handler rejects go to the retry queue and end up in the dead letter queue.
func (q *Queue) ConsumeEvents(ctx context.Context, handler EventHandler) error {
	// Set QoS to limit concurrent processing
	err := q.channel.Qos(
		10,    // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		EventsQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
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
				q.handle(ctx, msg, handler)
			}
		}
	}()

	return nil
}

func (q *Queue) handle(ctx context.Context, msg amqp.Delivery, handler EventHandler) {
	evt, err := decodeEvent(msg.Body)
	if err != nil {
		q.logger.WarnWithErr("Dropping malformed event", err)
		metrics.RecordEventConsume("malformed")
		msg.Nack(false, false)
		return
	}

	if err := handler(ctx, evt); err != nil {
		q.logger.WithSessionID(evt.SessionID).WithError(err).Warnf("Failed to handle %s event", evt.Type)
		if rerr := q.PublishToRetryQueue(ctx, evt, retryCount(msg.Headers)); rerr != nil {
			q.logger.ErrorWithErr("Failed to schedule event retry", rerr)
			msg.Nack(false, true)
			return
		}
		metrics.RecordEventConsume("retried")
		msg.Ack(false)
		return
	}

	metrics.RecordEventConsume("success")
	msg.Ack(false)
}

// GetQueueDepth returns the number of messages in the queue
func (q *Queue) GetQueueDepth() (int, error) {
	info, err := q.channel.QueueInspect(EventsQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}

func encodeEvent(evt *models.SessionEvent) ([]byte, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return body, nil
}

func decodeEvent(body []byte) (*models.SessionEvent, error) {
	var evt models.SessionEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if evt.ID == "" || evt.SessionID == "" || evt.Type == "" {
		return nil, fmt.Errorf("event is missing id, session_id or type")
	}
	return &evt, nil
}
