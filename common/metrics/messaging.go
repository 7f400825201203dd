package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type MessagingMetrics struct {
	messagesPublished metric.Int64Counter
	publishErrors     metric.Int64Counter
	publishDuration   metric.Float64Histogram
}

func NewMessagingMetrics(meter metric.Meter) (*MessagingMetrics, error) {
	mm := &MessagingMetrics{}

	var err error
	if mm.messagesPublished, err = meter.Int64Counter("messaging.messages.published",
		metric.WithDescription("Total number of messages published"),
		metric.WithUnit("{message}")); err != nil {
		return nil, err
	}
	if mm.publishErrors, err = meter.Int64Counter("messaging.messages.publish_errors",
		metric.WithDescription("Total number of failed publishes"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if mm.publishDuration, err = meter.Float64Histogram("messaging.message.publish_duration",
		metric.WithDescription("Time spent publishing a message"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...)); err != nil {
		return nil, err
	}

	return mm, nil
}

// RecordPublish records one publish attempt on the given transport and subject.
func (mm *MessagingMetrics) RecordPublish(ctx context.Context, transport, subject string, duration time.Duration, err error) {
	if mm == nil || mm.messagesPublished == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("transport", transport),
		attribute.String("subject", subject),
	)
	mm.publishDuration.Record(ctx, duration.Seconds(), attrs)

	if err != nil {
		mm.publishErrors.Add(ctx, 1, attrs)
		return
	}
	mm.messagesPublished.Add(ctx, 1, attrs)
}
