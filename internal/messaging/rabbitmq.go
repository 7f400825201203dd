package messaging

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"scholarship-service/common/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQProducer publishes to a durable topic exchange; subject is the routing key.
type RabbitMQProducer struct {
	conn     *amqp.Connection
	exchange string
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	channel *amqp.Channel
}

func NewRabbitMQProducer(amqpURL, exchange string, logger *slog.Logger, m *metrics.Metrics) (*RabbitMQProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	p := &RabbitMQProducer{conn: conn, exchange: exchange, logger: logger, metrics: m}
	if err := p.openChannel(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("RabbitMQ producer initialized", "exchange", exchange)
	return p, nil
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP URL must start with amqp:// or amqps://")
	}
	return clean, nil
}

func (p *RabbitMQProducer) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return err
	}
	p.channel = ch
	return nil
}

func (p *RabbitMQProducer) Publish(ctx context.Context, subject, key string, v any) error {
	start := time.Now()
	body, err := encode(v)
	if err == nil {
		err = p.publish(ctx, subject, key, body)
	}
	record(ctx, p.metrics, "rabbitmq", subject, start, err)

	if err != nil {
		p.logger.ErrorContext(ctx, "failed to publish to RabbitMQ", "exchange", p.exchange, "routing_key", subject, "error", err)
		return err
	}
	return nil
}

func (p *RabbitMQProducer) publish(ctx context.Context, routingKey, key string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    key,
		Timestamp:    time.Now(),
		Body:         body,
	}

	err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil || p.conn.IsClosed() {
		return err
	}

	// one retry on a fresh channel
	if chErr := p.openChannel(); chErr != nil {
		return errors.Join(err, chErr)
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

func (p *RabbitMQProducer) Transport() string { return "rabbitmq" }

func (p *RabbitMQProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	return p.conn.Close()
}
