// Package messaging publishes JSON events to the configured broker.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"scholarship-service/common/metrics"
	"scholarship-service/internal/config"
)

// Publisher sends v, JSON encoded, to subject. key is used for partitioning
// where the broker supports it.
type Publisher interface {
	Publish(ctx context.Context, subject, key string, v any) error
	Transport() string
	Close() error
}

// New connects the publisher for transport ("nats", "kafka" or "rabbitmq").
func New(transport string, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (Publisher, error) {
	switch transport {
	case "nats":
		return NewNATSProducer(cfg.NATS.URL, logger, m)
	case "kafka":
		return NewKafkaProducer(cfg.Kafka.Brokers, logger, m)
	case "rabbitmq":
		return NewRabbitMQProducer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger, m)
	default:
		return nil, fmt.Errorf("unsupported broker transport %q", transport)
	}
}

// Fallback logs instead of publishing. It keeps the service up when the broker is unreachable at startup.
type Fallback struct {
	logger *slog.Logger
}

func NewFallback(logger *slog.Logger) *Fallback {
	return &Fallback{logger: logger}
}

func (f *Fallback) Publish(ctx context.Context, subject, key string, v any) error {
	f.logger.WarnContext(ctx, "broker unavailable, event not published", "subject", subject, "key", key)
	return nil
}

func (f *Fallback) Transport() string { return "fallback" }

func (f *Fallback) Close() error { return nil }

func encode(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

func record(ctx context.Context, m *metrics.Metrics, transport, subject string, start time.Time, err error) {
	if m != nil {
		m.Messaging.RecordPublish(ctx, transport, subject, time.Since(start), err)
	}
}
