package scholarship

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DeadlineCloser periodically closes published scholarships past their deadline.
type DeadlineCloser struct {
	cron    *cron.Cron
	service Service
	logger  *slog.Logger
}

func NewDeadlineCloser(service Service, schedule string, logger *slog.Logger) (*DeadlineCloser, error) {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	d := &DeadlineCloser{cron: c, service: service, logger: logger}
	if _, err := c.AddFunc(schedule, d.Run); err != nil {
		return nil, err
	}
	logger.Info("scheduled deadline closer", "schedule", schedule)
	return d, nil
}

func (d *DeadlineCloser) Start() {
	d.cron.Start()
}

// Run closes expired scholarships once.
func (d *DeadlineCloser) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := d.service.CloseExpired(ctx)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to close expired scholarships", "error", err)
		return
	}
	if n > 0 {
		d.logger.InfoContext(ctx, "closed expired scholarships", "count", n)
	}
}

// Stop waits for a running job until ctx is done.
func (d *DeadlineCloser) Stop(ctx context.Context) {
	select {
	case <-d.cron.Stop().Done():
	case <-ctx.Done():
	}
}
