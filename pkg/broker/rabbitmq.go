package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const attemptHeader = "x-attempt"

// MessageHandler processes one delivery body.
type MessageHandler func(ctx context.Context, body []byte) error

// RabbitMQConfig configures the durable work queue.
type RabbitMQConfig struct {
	URL        string
	QueueName  string
	MaxRetries int
	Prefetch   int
	Logger     *zap.Logger
	OnDrop     func(body []byte, err error)
}

// RabbitMQ publishes to and consumes from a single durable queue.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	cfg     RabbitMQConfig
	logger  *zap.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewRabbitMQ dials the broker and declares the queue.
func NewRabbitMQ(cfg RabbitMQConfig) (*RabbitMQ, error) {
	if cfg.QueueName == "" {
		return nil, errors.New("rabbitmq queue name is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	q, err := channel.QueueDeclare(
		cfg.QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare rabbitmq queue: %w", err)
	}

	return &RabbitMQ{conn: conn, channel: channel, queue: q, cfg: cfg, logger: cfg.Logger}, nil
}

// Publish sends a persistent JSON message.
func (r *RabbitMQ) Publish(ctx context.Context, body []byte) error {
	return r.publish(ctx, body, 0)
}

func (r *RabbitMQ) publish(ctx context.Context, body []byte, attempt int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.channel.PublishWithContext(
		ctx,
		"",           // exchange
		r.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers:      amqp.Table{attemptHeader: int32(attempt)},
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", r.queue.Name, err)
	}
	return nil
}

// Consume starts delivering messages to handler until ctx is cancelled.
// Failed messages are republished with an incremented attempt header and
// acknowledged; after MaxRetries they are dropped through OnDrop.
func (r *RabbitMQ) Consume(ctx context.Context, handler MessageHandler) error {
	if err := r.channel.Qos(r.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set rabbitmq qos: %w", err)
	}

	msgs, err := r.channel.Consume(
		r.queue.Name,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", r.queue.Name, err)
	}

	r.wg.Add(1)
	go r.handleMessages(ctx, msgs, handler)
	return nil
}

func (r *RabbitMQ) handleMessages(ctx context.Context, msgs <-chan amqp.Delivery, handler MessageHandler) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				r.logger.Warn("rabbitmq delivery channel closed", zap.String("queue", r.queue.Name))
				return
			}
			r.handle(ctx, msg, handler)
		}
	}
}

func (r *RabbitMQ) handle(ctx context.Context, msg amqp.Delivery, handler MessageHandler) {
	err := handler(ctx, msg.Body)
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	attempt := attemptOf(msg.Headers) + 1
	if attempt > r.cfg.MaxRetries {
		r.logger.Error("message exceeded retries", zap.String("queue", r.queue.Name), zap.Int("attempt", attempt), zap.Error(err))
		if r.cfg.OnDrop != nil {
			r.cfg.OnDrop(msg.Body, err)
		}
		_ = msg.Ack(false)
		return
	}

	r.logger.Warn("message failed, republishing", zap.String("queue", r.queue.Name), zap.Int("attempt", attempt), zap.Error(err))
	if pubErr := r.publish(ctx, msg.Body, attempt); pubErr != nil {
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func attemptOf(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Close waits for the consumer to exit and releases the connection.
func (r *RabbitMQ) Close() error {
	var errs []error

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.wg.Wait()

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// HealthCheck reports whether the connection is still open.
func (r *RabbitMQ) HealthCheck() error {
	if r.conn == nil || r.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}
