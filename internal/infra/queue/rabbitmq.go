package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitConfig describes the broker connection.
type RabbitConfig struct {
	URL         string
	Queue       string
	MaxConsumer int
}

// RabbitQueue publishes jobs to a durable RabbitMQ queue and consumes them
// with bounded concurrency.
type RabbitQueue struct {
	cfg     RabbitConfig
	conn    *amqp.Connection
	pubMu   sync.Mutex
	pub     *amqp.Channel
	logger  *slog.Logger
	closing chan struct{}
	once    sync.Once
}

// NewRabbitQueue dials the broker and declares the queue.
func NewRabbitQueue(cfg RabbitConfig, logger *slog.Logger) (*RabbitQueue, error) {
	if cfg.Queue == "" {
		cfg.Queue = "evaluator.jobs"
	}
	if cfg.MaxConsumer <= 0 {
		cfg.MaxConsumer = 4
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitQueue{
		cfg:     cfg,
		conn:    conn,
		pub:     ch,
		logger:  logger.With("component", "queue.rabbitmq"),
		closing: make(chan struct{}),
	}, nil
}

// Enqueue publishes a persistent job message.
func (q *RabbitQueue) Enqueue(ctx context.Context, name string, payload any) error {
	body, err := json.Marshal(jobEnvelope{Name: name, Payload: asPayload(payload)})
	if err != nil {
		return err
	}
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	return q.pub.PublishWithContext(ctx, "", q.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// SetHandler starts consuming on a dedicated channel.
func (q *RabbitQueue) SetHandler(handler Handler) {
	if handler == nil {
		return
	}
	go func() {
		if err := q.consume(handler); err != nil {
			q.logger.Error("rabbitmq consumer stopped", "error", err)
		}
	}()
}

// Close shuts the connection down, which ends the consumer.
func (q *RabbitQueue) Close() error {
	var err error
	q.once.Do(func() {
		close(q.closing)
		err = q.conn.Close()
	})
	return err
}

func (q *RabbitQueue) consume(handler Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := ch.Qos(q.cfg.MaxConsumer, 0, false); err != nil {
		return err
	}
	msgs, err := ch.Consume(q.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	sem := make(chan struct{}, q.cfg.MaxConsumer)
	for msg := range msgs {
		sem <- struct{}{}
		go func(msg amqp.Delivery) {
			defer func() { <-sem }()
			q.process(handler, msg)
		}(msg)
	}
	return nil
}

// process acks handled jobs. A failed job is requeued once; undecodable
// messages and second failures are dropped.
func (q *RabbitQueue) process(handler Handler, msg amqp.Delivery) {
	var job jobEnvelope
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		q.logger.Warn("rabbitmq payload unmarshal failed", "error", err)
		_ = msg.Nack(false, false)
		return
	}
	if err := handler(context.Background(), job.Name, job.Payload); err != nil {
		q.logger.Warn("job failed", "job", job.Name, "redelivered", msg.Redelivered, "error", err)
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	_ = msg.Ack(false)
}

var _ HandlerQueue = (*RabbitQueue)(nil)
