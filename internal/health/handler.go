package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"scholarship-service/common/httputil"
	"scholarship-service/common/metrics"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const checkTimeout = 2 * time.Second

// Pinger is satisfied by *bun.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	db      Pinger
	metrics *metrics.Metrics
	logger  *slog.Logger
	grpc    *health.Server
}

func NewHandler(db Pinger, grpcHealth *health.Server, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{db: db, grpc: grpcHealth, logger: logger, metrics: m}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready reports 503 while the database is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.Check(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
		httputil.RespondWithJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
			Checks: map[string]string{"database": "down"},
		})
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{
		Status: "ready",
		Checks: map[string]string{"database": "up"},
	})
}

// Check pings the database, records the outcome and mirrors it on the gRPC health server.
func (h *Handler) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)
	h.metrics.Health.RecordDependencyCheck(ctx, "postgres", time.Since(start), err)

	if h.grpc != nil {
		status := grpc_health_v1.HealthCheckResponse_SERVING
		if err != nil {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
		h.grpc.SetServingStatus("", status)
	}
	return err
}

// Watch re-runs Check every interval until ctx is done.
func (h *Handler) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_ = h.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
