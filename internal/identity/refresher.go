package identity

import (
	"context"
	"log/slog"
	"time"
)

type keyRefreshable interface {
	RefreshKeys(ctx context.Context) error
}

// KeyRefresher reloads the provider signing keys on a fixed interval until its
// context is cancelled.
type KeyRefresher struct {
	client   keyRefreshable
	interval time.Duration
	logger   *slog.Logger
}

func NewKeyRefresher(client keyRefreshable, interval time.Duration, logger *slog.Logger) *KeyRefresher {
	if interval <= 0 {
		interval = time.Hour
	}
	return &KeyRefresher{client: client, interval: interval, logger: logger}
}

// Run blocks until ctx is done. The first refresh happens immediately.
func (r *KeyRefresher) Run(ctx context.Context) {
	r.logger.Info("identity key refresher started", "interval", r.interval)
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("identity key refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *KeyRefresher) refresh(ctx context.Context) {
	if err := r.client.RefreshKeys(ctx); err != nil && ctx.Err() == nil {
		r.logger.WarnContext(ctx, "identity key refresh failed", "error", err)
	}
}
