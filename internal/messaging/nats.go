package messaging

import (
	"context"
	"log/slog"
	"time"

	"scholarship-service/common/metrics"

	"github.com/nats-io/nats.go"
)

type NATSProducer struct {
	conn    *nats.Conn
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewNATSProducer(url string, logger *slog.Logger, m *metrics.Metrics) (*NATSProducer, error) {
	nc, err := nats.Connect(url,
		nats.Name("scholarship-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url)

	return &NATSProducer{conn: nc, logger: logger, metrics: m}, nil
}

func (p *NATSProducer) Publish(ctx context.Context, subject, key string, v any) error {
	start := time.Now()
	body, err := encode(v)
	if err == nil {
		msg := nats.NewMsg(subject)
		msg.Data = body
		if key != "" {
			msg.Header.Set("Message-Key", key)
		}
		err = p.conn.PublishMsg(msg)
	}
	record(ctx, p.metrics, "nats", subject, start, err)

	if err != nil {
		p.logger.ErrorContext(ctx, "failed to publish to NATS", "subject", subject, "error", err)
		return err
	}
	return nil
}

func (p *NATSProducer) Transport() string { return "nats" }

func (p *NATSProducer) Close() error {
	return p.conn.Drain()
}
