package messaging

import (
	"context"
	"log/slog"
	"time"

	"scholarship-service/common/metrics"

	"github.com/IBM/sarama"
)

type KafkaProducer struct {
	producer sarama.SyncProducer
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewKafkaProducer(brokers []string, logger *slog.Logger, m *metrics.Metrics) (*KafkaProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "scholarship-service"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("kafka producer initialized", "brokers", brokers)

	return &KafkaProducer{producer: producer, logger: logger, metrics: m}, nil
}

// Publish sends v to the topic named by subject, keyed for per-recipient ordering.
func (p *KafkaProducer) Publish(ctx context.Context, subject, key string, v any) error {
	start := time.Now()
	body, err := encode(v)
	var partition int32
	var offset int64
	if err == nil {
		msg := &sarama.ProducerMessage{
			Topic: subject,
			Value: sarama.ByteEncoder(body),
		}
		if key != "" {
			msg.Key = sarama.StringEncoder(key)
		}
		partition, offset, err = p.producer.SendMessage(msg)
	}
	record(ctx, p.metrics, "kafka", subject, start, err)

	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send message to kafka", "topic", subject, "error", err)
		return err
	}
	p.logger.DebugContext(ctx, "message sent to kafka", "topic", subject, "partition", partition, "offset", offset)
	return nil
}

func (p *KafkaProducer) Transport() string { return "kafka" }

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
