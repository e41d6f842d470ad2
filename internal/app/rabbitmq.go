package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"transit/internal/config"
	"transit/internal/logger"
)

const (
	amqpMaxRetries    = 5
	amqpRetryInterval = 3 * time.Second
	amqpMaxBackoff    = 30 * time.Second
)

var errAMQPNotConnected = errors.New("rabbitmq is not connected")

// queueBinding binds a notification queue to the event exchange.
type queueBinding struct {
	Queue      string
	RoutingKey string
}

var notificationQueues = []queueBinding{
	{Queue: "journey_notifications", RoutingKey: "journey.#"},
	{Queue: "payment_notifications", RoutingKey: "payment.#"},
}

// EventBus is a RabbitMQ connection that publishes journey and payment events
// to a topic exchange and reconnects when the broker drops it.
type EventBus struct {
	log         logger.ILogger
	url         string
	exchange    string
	conn        *amqp.Connection
	pubChannel  *amqp.Channel
	mu          sync.RWMutex // Protects conn and pubChannel during reconnects
	isConnected bool
	notifyClose chan *amqp.Error
	done        chan struct{}
}

// NewEventBus connects to RabbitMQ, declares the topology and starts the reconnect loop.
func NewEventBus(cfg config.RabbitMQConfig, log logger.ILogger) (*EventBus, error) {
	b := &EventBus{
		log:      log,
		url:      cfg.URL,
		exchange: cfg.Exchange,
		done:     make(chan struct{}),
	}

	var err error
	for i := 0; i < amqpMaxRetries; i++ {
		if err = b.connect(); err != nil {
			log.Warning("rabbitmq connect retry",
				logger.Int("attempt", i+1),
				logger.Int("max_attempts", amqpMaxRetries),
				logger.Error(err),
			)
			time.Sleep(amqpRetryInterval)
			continue
		}
		if err := b.setupTopology(); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to setup rabbitmq topology: %w", err)
		}
		go b.reconnectLoop()
		log.Info("rabbitmq connected", logger.String("exchange", b.exchange))
		return b, nil
	}

	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", amqpMaxRetries, err)
}

func (b *EventBus) connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open publisher channel: %w", err)
	}

	b.conn = conn
	b.pubChannel = ch
	b.isConnected = true
	b.notifyClose = make(chan *amqp.Error, 1)
	b.conn.NotifyClose(b.notifyClose)
	return nil
}

func (b *EventBus) reconnectLoop() {
	for {
		b.mu.RLock()
		notifyClose := b.notifyClose
		b.mu.RUnlock()

		select {
		case <-b.done:
			return
		case err, ok := <-notifyClose:
			if !ok || err == nil {
				// Closed gracefully.
				return
			}
			b.log.Error("rabbitmq connection lost", logger.Error(err))
			b.mu.Lock()
			b.isConnected = false
			b.mu.Unlock()

			backoff := time.Second
			for {
				select {
				case <-b.done:
					return
				case <-time.After(backoff):
				}

				if err := b.connect(); err != nil {
					b.log.Error("rabbitmq reconnect failed", logger.Duration("backoff", backoff), logger.Error(err))
					backoff = min(time.Duration(float64(backoff)*1.5), amqpMaxBackoff)
					continue
				}
				if err := b.setupTopology(); err != nil {
					b.log.Error("rabbitmq topology redeclare failed", logger.Error(err))
					continue
				}
				b.log.Info("rabbitmq reconnected")
				break
			}
		}
	}
}

// setupTopology declares the topic exchange and the notification queues.
func (b *EventBus) setupTopology() error {
	b.mu.RLock()
	if !b.isConnected {
		b.mu.RUnlock()
		return errAMQPNotConnected
	}
	ch, err := b.conn.Channel()
	b.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to open setup channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", b.exchange, err)
	}

	for _, q := range notificationQueues {
		if _, err := ch.QueueDeclare(q.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.Queue, err)
		}
		if err := ch.QueueBind(q.Queue, q.RoutingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", q.Queue, b.exchange, err)
		}
	}
	return nil
}

// Publish sends a persistent JSON message to the event exchange. It is goroutine-safe.
func (b *EventBus) Publish(ctx context.Context, routingKey string, body []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.isConnected {
		return errAMQPNotConnected
	}

	return b.pubChannel.PublishWithContext(ctx, b.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
}

// Close shuts down the connection and the reconnect loop.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
		close(b.done)
	}

	b.isConnected = false
	if b.pubChannel != nil {
		b.pubChannel.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}
