package application

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"scholarship-service/common/httputil"
	"scholarship-service/internal/account"
	"scholarship-service/internal/auth"
	"scholarship-service/internal/config"
	"scholarship-service/internal/ratelimit"
	"scholarship-service/internal/scholarship"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

type DocumentStatusRequest struct {
	Status DocumentStatus `json:"status" validate:"required,oneof=pending approved rejected"`
}

type Handler struct {
	service  Service
	limiter  ratelimit.Limiter
	limits   config.RateLimitConfig
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service Service, limiter ratelimit.Limiter, limits config.RateLimitConfig, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		limiter:  limiter,
		limits:   limits,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router, mw *auth.Middleware) {
	router.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)

		r.With(
			mw.RequireRole(account.RoleApplicant),
			ratelimit.Middleware(h.limiter, "submit", principalKey, h.limits.SubmitLimit, h.limits.Window),
		).Post("/applications", h.Submit)
		r.Get("/applications/my-applications", h.ListMine)
		r.Get("/applications/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(account.RoleReviewer, account.RoleAdmin))
			r.Get("/applications", h.List)
			r.Post("/applications/{id}/review", h.Review)
			r.Put("/applications/{id}/documents/{docId}/status", h.UpdateDocumentStatus)
		})
	})
}

func principalKey(r *http.Request) string {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return ""
	}
	return p.AccountID.String()
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())

	var req SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}

	app, err := h.service.Submit(r.Context(), p, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, app)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())

	apps, err := h.service.ListMine(r.Context(), p)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if apps == nil {
		apps = []Application{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, apps)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	app, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, app)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	q := r.URL.Query()

	filter := ListFilter{Status: Status(q.Get("status"))}
	if raw := q.Get("scholarshipId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, "invalid scholarshipId")
			return
		}
		filter.ScholarshipID = id
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	apps, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if apps == nil {
		apps = []Application{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, apps)
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	app, err := h.service.Review(r.Context(), p, id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, app)
}

func (h *Handler) UpdateDocumentStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	docID, ok := h.pathID(w, r, "docId")
	if !ok {
		return
	}

	var req DocumentStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	app, err := h.service.UpdateDocumentStatus(r.Context(), p, id, docID, req.Status)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, app)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(w, r, dst, maxBodyBytes); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, err.Error())
		return false
	}
	return true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrApplicationNotFound),
		errors.Is(err, ErrDocumentNotFound),
		errors.Is(err, scholarship.ErrScholarshipNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, httputil.KindNotFound, err.Error())
	case errors.Is(err, ErrApplicantRequired), errors.Is(err, ErrReviewerRequired):
		httputil.RespondWithError(w, http.StatusForbidden, httputil.KindAuthorizationDenied, err.Error())
	case errors.Is(err, ErrDuplicateApplication),
		errors.Is(err, ErrScholarshipNotAcceptingApplications):
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindConflict, err.Error())
	case errors.Is(err, ErrNotEligible),
		errors.Is(err, ErrInvalidDocument),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidTransition):
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "application request failed", "path", r.URL.Path, "error", err)
		httputil.RespondWithInternalError(w, err)
	}
}
