package messaging_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"scholarship-service/common/metrics"
	"scholarship-service/internal/config"
	"scholarship-service/internal/messaging"
	"scholarship-service/testing/testnats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNATSProducer(t *testing.T) {
	nc := testnats.SetupSharedNATS(t)
	defer nc.Cleanup(t)

	cfg := &config.Config{NATS: config.NATSConfig{URL: nc.URL}}
	producer, err := messaging.New("nats", cfg, discardLogger(), metrics.NewMock())
	require.NoError(t, err)
	defer producer.Close()

	assert.Equal(t, "nats", producer.Transport())

	sub := nc.Subscribe(t, "notifications.email")

	payload := map[string]string{"to": "ada@example.com"}
	require.NoError(t, producer.Publish(context.Background(), "notifications.email", "ada@example.com", payload))

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", msg.Header.Get("Message-Key"))

	var got map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, payload, got)
}

func TestNew_UnknownTransport(t *testing.T) {
	_, err := messaging.New("carrier-pigeon", &config.Config{}, discardLogger(), metrics.NewMock())
	assert.Error(t, err)
}

func TestFallback(t *testing.T) {
	f := messaging.NewFallback(discardLogger())
	assert.Equal(t, "fallback", f.Transport())
	assert.NoError(t, f.Publish(context.Background(), "subject", "key", struct{}{}))
	assert.NoError(t, f.Close())
}

func TestNew_RabbitMQRejectsBadURL(t *testing.T) {
	cfg := &config.Config{RabbitMQ: config.RabbitMQConfig{URL: "http://broker:5672", Exchange: "events"}}
	_, err := messaging.New("rabbitmq", cfg, discardLogger(), metrics.NewMock())
	assert.Error(t, err)
}
