package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scholarship-service/internal/metrics"
)

const sendTimeout = 15 * time.Second

type Options struct {
	Workers   int
	QueueSize int
	From      string
}

type job struct {
	recipient string
	template  Template
	data      map[string]any
}

// Dispatcher queues notifications and sends them from a fixed worker pool.
// Deliver never blocks: when the queue is full the message is dropped and logged.
// Send failures are logged and counted, never retried.
type Dispatcher struct {
	opts     Options
	sender   Sender
	renderer *Renderer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	queue  chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

var _ Notifier = (*Dispatcher)(nil)

func NewDispatcher(opts Options, sender Sender, renderer *Renderer, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	return &Dispatcher{
		opts:     opts,
		sender:   sender,
		renderer: renderer,
		logger:   logger.With(slog.String("component", "notification"), slog.String("transport", sender.Name())),
		metrics:  m,
		queue:    make(chan job, opts.QueueSize),
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("notification dispatcher started", "workers", d.opts.Workers, "queue_size", d.opts.QueueSize)
}

func (d *Dispatcher) Deliver(recipient string, template Template, data map[string]any) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped after shutdown", "template", template)
		d.metrics.RecordNotification(context.Background(), string(template), "dropped")
		return
	}

	select {
	case d.queue <- job{recipient: recipient, template: template, data: data}:
	default:
		d.logger.Warn("notification queue full, dropping message", "template", template, "recipient", recipient)
		d.metrics.RecordNotification(context.Background(), string(template), "dropped")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.send(j)
	}
}

func (d *Dispatcher) send(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	subject, text, html, err := d.renderer.Render(j.template, j.data)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to render notification", "template", j.template, "error", err)
		d.metrics.RecordNotification(ctx, string(j.template), "render_error")
		return
	}

	msg := Message{
		To:        j.recipient,
		From:      d.opts.From,
		Subject:   subject,
		HTML:      html,
		Text:      text,
		Template:  j.template,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.ErrorContext(ctx, "failed to send notification", "template", j.template, "recipient", j.recipient, "error", err)
		d.metrics.RecordNotification(ctx, string(j.template), "failed")
		return
	}

	d.logger.InfoContext(ctx, "notification sent", "template", j.template, "recipient", j.recipient)
	d.metrics.RecordNotification(ctx, string(j.template), "sent")
}

// Close stops accepting messages and waits for queued ones until ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notification dispatcher drained")
		return nil
	case <-ctx.Done():
		d.logger.Warn("notification dispatcher closed before drain", "pending", len(d.queue))
		return ctx.Err()
	}
}
