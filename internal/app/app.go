package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"scholarship-service/common/httputil"
	"scholarship-service/common/logger"
	commonmetrics "scholarship-service/common/metrics"
	"scholarship-service/common/telemetry"
	"scholarship-service/internal/account"
	"scholarship-service/internal/admin"
	"scholarship-service/internal/application"
	"scholarship-service/internal/config"
	"scholarship-service/internal/db"
	"scholarship-service/internal/health"
	"scholarship-service/internal/identity"
	"scholarship-service/internal/messaging"
	"scholarship-service/internal/metrics"
	"scholarship-service/internal/middleware"
	"scholarship-service/internal/notification"
	"scholarship-service/internal/ratelimit"
	"scholarship-service/internal/scholarship"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const healthInterval = 15 * time.Second

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_scholarships_status_deadline ON scholarships (status, deadline)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_applicant ON applications (applicant_id, submitted_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_status ON applications (status, submitted_at DESC)`,
}

type App struct {
	config     *config.Config
	logger     *slog.Logger
	server     *http.Server
	grpcServer *grpc.Server
	grpcHealth *grpchealth.Server
	db         *bun.DB
	redis      *redis.Client
	telemetry  *telemetry.Telemetry
	publisher  messaging.Publisher
	dispatcher *notification.Dispatcher
	closer     *scholarship.DeadlineCloser
	refresher  *identity.KeyRefresher
	health     *health.Handler

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(ctx context.Context) (*App, error) {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "commit", GitCommit, "built", BuildTime)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)
	httputil.SetDebug(cfg.Debug)

	a := &App{config: cfg, logger: slogLogger}
	a.runCtx, a.cancel = context.WithCancel(context.Background())

	a.telemetry, err = telemetry.Init(ctx, telemetry.Options{
		ServiceName:    ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Dependencies:   []string{"postgres"},
	}, slogLogger)
	if err != nil {
		return nil, err
	}
	domainMetrics, err := metrics.New(otel.Meter(ServiceName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize domain metrics: %w", err)
	}
	sharedMetrics := a.telemetry.Metrics

	a.db, err = db.New(ctx, cfg.Database, slogLogger)
	if err != nil {
		return nil, err
	}
	models := []any{
		(*account.Account)(nil),
		(*scholarship.Scholarship)(nil),
		(*application.Application)(nil),
	}
	if err := db.RunMigrations(ctx, a.db, models, indexes); err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	idClient := identity.NewClient(cfg.Identity, slogLogger)
	a.refresher = identity.NewKeyRefresher(idClient, cfg.Identity.KeyRefreshInterval, slogLogger)

	renderer, err := notification.NewRenderer(cfg.Notification.ClientURL)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.dispatcher = notification.NewDispatcher(notification.Options{
		Workers:   cfg.Notification.Workers,
		QueueSize: cfg.Notification.QueueSize,
		From:      cfg.Notification.From,
	}, a.newSender(sharedMetrics), renderer, slogLogger, domainMetrics)

	a.grpcServer = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(sharedMetrics.Grpc.UnaryServerInterceptor()),
	)
	a.grpcHealth = grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(a.grpcServer, a.grpcHealth)
	a.health = health.NewHandler(a.db, a.grpcHealth, slogLogger, sharedMetrics)

	scholarshipRepo := scholarship.NewRepository(a.db, sharedMetrics)
	router := NewRouter(Deps{
		Config:       cfg,
		Logger:       slogLogger,
		Metrics:      domainMetrics,
		Provider:     idClient,
		Accounts:     account.NewRepository(a.db, sharedMetrics),
		Scholarships: scholarshipRepo,
		Applications: application.NewRepository(a.db, sharedMetrics),
		Stats:        admin.NewStatsRepository(a.db, sharedMetrics),
		Notifier:     a.dispatcher,
		Limiter:      a.newLimiter(ctx),
		Health:       a.health,
		HTTPMetrics:  middleware.NewHTTPMetrics("scholarship_service"),
	})

	a.closer, err = scholarship.NewDeadlineCloser(router.Scholarships, cfg.Scheduler.DeadlineCloseSchedule, slogLogger)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	a.server = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	slogLogger.Info("application initialized successfully")
	return a, nil
}

// newSender picks the notification transport. A broker that cannot be reached
// at startup degrades to logging instead of failing the boot.
func (a *App) newSender(m *commonmetrics.Metrics) notification.Sender {
	cfg := a.config
	switch cfg.Notification.Transport {
	case "smtp":
		return notification.NewSMTPSender(cfg.SMTP)
	case "nats", "kafka", "rabbitmq":
		publisher, err := messaging.New(cfg.Notification.Transport, cfg, a.logger, m)
		if err != nil {
			a.logger.Warn("failed to initialize broker, notifications will only be logged",
				"transport", cfg.Notification.Transport, "error", err)
			publisher = messaging.NewFallback(a.logger)
		}
		a.publisher = publisher
		return notification.NewBrokerSender(publisher, cfg.Notification.Subject)
	default:
		return notification.NewLogSender(a.logger)
	}
}

// newLimiter uses Redis when configured and reachable, the in-process limiter otherwise.
func (a *App) newLimiter(ctx context.Context) ratelimit.Limiter {
	cfg := a.config.Redis
	if cfg.Addr == "" {
		a.logger.Info("rate limiting in process")
		return ratelimit.NewLocalLimiter()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.logger.Warn("redis unavailable, rate limiting in process", "addr", cfg.Addr, "error", err)
		client.Close()
		return ratelimit.NewLocalLimiter()
	}

	a.redis = client
	a.logger.Info("rate limiting via redis", "addr", cfg.Addr)
	return ratelimit.NewRedisLimiter(client, a.logger)
}

// Run starts the background jobs and both servers. It blocks until the HTTP
// server stops.
func (a *App) Run() error {
	ctx := a.runCtx

	a.dispatcher.Start()
	a.closer.Start()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.refresher.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.health.Watch(ctx, healthInterval)
	}()

	lis, err := net.Listen("tcp", ":"+a.config.GRPC.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	go func() {
		a.logger.Info("gRPC health server starting", "port", a.config.GRPC.Port)
		if err := a.grpcServer.Serve(lis); err != nil {
			a.logger.Error("gRPC server stopped", "error", err)
		}
	}()

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	a.grpcHealth.Shutdown()
	a.grpcServer.GracefulStop()

	a.closer.Stop(ctx)
	a.cancel()
	a.wg.Wait()

	if err := a.dispatcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("notification drain: %w", err))
	}
	a.closeResources()

	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeResources() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("publisher close error", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", "error", err)
		}
	}
	db.Close(a.db)
}
