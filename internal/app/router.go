package app

import (
	"log/slog"
	"net/http"

	"scholarship-service/internal/account"
	"scholarship-service/internal/admin"
	"scholarship-service/internal/application"
	"scholarship-service/internal/auth"
	"scholarship-service/internal/config"
	"scholarship-service/internal/health"
	"scholarship-service/internal/identity"
	"scholarship-service/internal/metrics"
	"scholarship-service/internal/middleware"
	"scholarship-service/internal/notification"
	"scholarship-service/internal/ratelimit"
	"scholarship-service/internal/scholarship"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators the HTTP surface is built from. Production
// passes Postgres repositories, tests pass the in-memory ones.
type Deps struct {
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Provider     identity.Provider
	Accounts     account.Repository
	Scholarships scholarship.Repository
	Applications application.Repository
	Stats        admin.StatsRepository
	Notifier     notification.Notifier
	Limiter      ratelimit.Limiter
	Health       *health.Handler
	HTTPMetrics  *middleware.HTTPMetrics
}

// Router is the wired HTTP surface plus the services background jobs need.
type Router struct {
	chi.Router
	Scholarships scholarship.Service
}

func NewRouter(d Deps) *Router {
	cfg := d.Config
	router := chi.NewRouter()

	router.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	if d.HTTPMetrics != nil {
		router.Use(d.HTTPMetrics.Instrument)
	}
	router.Use(middleware.RequestLogger(d.Logger))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	if d.Health != nil {
		d.Health.RegisterRoutes(router)
	}
	if d.HTTPMetrics != nil {
		router.Method(http.MethodGet, "/metrics", d.HTTPMetrics.Handler())
	}

	accounts := account.NewService(d.Accounts)
	mw := auth.NewMiddleware(d.Provider, accounts, d.Logger, d.Metrics)
	sessions := auth.NewSessions(cfg.Session, cfg.IsProduction())

	scholarships := scholarship.NewService(d.Scholarships, d.Logger, d.Metrics)
	applications := application.NewService(d.Applications, d.Scholarships, accounts, d.Notifier, cfg.Uploads, d.Logger, d.Metrics)

	router.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(d.Limiter, "api", ratelimit.ClientIP, cfg.RateLimit.APILimit, cfg.RateLimit.APIWindow))

		authService := auth.NewService(d.Provider, accounts, d.Notifier, d.Logger, d.Metrics)
		auth.NewHandler(authService, sessions, mw, d.Limiter, cfg.RateLimit, d.Logger).RegisterRoutes(r)

		scholarship.NewHandler(scholarships, d.Logger).RegisterRoutes(r, mw)
		application.NewHandler(applications, d.Limiter, cfg.RateLimit, d.Logger).RegisterRoutes(r, mw)

		if d.Stats != nil {
			admin.NewHandler(admin.NewService(d.Stats, accounts, d.Logger), d.Logger).RegisterRoutes(r, mw)
		}
	})

	return &Router{Router: router, Scholarships: scholarships}
}
