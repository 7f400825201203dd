package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"scholarship-service/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu      sync.Mutex
	sent    []Message
	err     error
	release chan struct{}
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func newTestDispatcher(t *testing.T, opts Options, sender Sender) *Dispatcher {
	t.Helper()
	renderer, err := NewRenderer("https://portal.example.com/")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(opts, sender, renderer, logger, metrics.NewMock())
}

func TestDispatcher_DeliversRenderedMessage(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(t, Options{Workers: 2, QueueSize: 4, From: "noreply@example.com"}, sender)
	d.Start()

	d.Deliver("ada@example.com", TemplateWelcome, map[string]any{"FirstName": "Ada"})

	require.NoError(t, d.Close(context.Background()))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ada@example.com", msgs[0].To)
	assert.Equal(t, "noreply@example.com", msgs[0].From)
	assert.Equal(t, TemplateWelcome, msgs[0].Template)
	assert.Contains(t, msgs[0].Subject, "Ada")
	assert.Contains(t, msgs[0].HTML, `href="https://portal.example.com/dashboard"`)
}

func TestDispatcher_SendFailureIsNotSurfaced(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay refused")}
	d := newTestDispatcher(t, Options{Workers: 1, QueueSize: 2}, sender)
	d.Start()

	assert.NotPanics(t, func() {
		d.Deliver("ada@example.com", TemplateWelcome, map[string]any{"FirstName": "Ada"})
	})
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, sender.messages(), 1)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	d := newTestDispatcher(t, Options{Workers: 1, QueueSize: 1}, sender)
	d.Start()

	data := map[string]any{"FirstName": "Ada"}
	d.Deliver("a@example.com", TemplateWelcome, data)
	// wait for the worker to pick up the first job and block in Send
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		d.Deliver("b@example.com", TemplateWelcome, data)
		d.Deliver("c@example.com", TemplateWelcome, data)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Deliver blocked on a full queue")
	}

	close(sender.release)
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, sender.messages(), 2)
}

func TestDispatcher_DeliverAfterCloseIsDropped(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(t, Options{Workers: 1, QueueSize: 1}, sender)
	d.Start()
	require.NoError(t, d.Close(context.Background()))

	d.Deliver("ada@example.com", TemplateWelcome, nil)
	assert.Empty(t, sender.messages())
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	d := newTestDispatcher(t, Options{Workers: 1, QueueSize: 1}, sender)
	d.Start()
	d.Deliver("ada@example.com", TemplateWelcome, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	close(sender.release)
}
