package scholarship

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"scholarship-service/common/httputil"
	"scholarship-service/internal/account"
	"scholarship-service/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

type StatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router, mw *auth.Middleware) {
	router.Get("/scholarships", h.List)
	router.Get("/scholarships/{id}", h.Get)

	router.Group(func(r chi.Router) {
		r.Use(mw.Authenticate, mw.RequireRole(account.RoleAdmin))
		r.Post("/scholarships", h.Create)
		r.Put("/scholarships/{id}", h.Update)
		r.Patch("/scholarships/{id}/status", h.ChangeStatus)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{AcademicLevel: AcademicLevel(q.Get("academicLevel"))}
	if filter.AcademicLevel != "" && filter.AcademicLevel != LevelUndergraduate && filter.AcademicLevel != LevelGraduate {
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, "academicLevel must be undergraduate or graduate")
		return
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	scholarships, err := h.service.ListOpen(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if scholarships == nil {
		scholarships = []Scholarship{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, scholarships)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sch, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, sch)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())

	var in Input
	if !h.decode(w, r, &in) {
		return
	}

	sch, err := h.service.Create(r.Context(), p, in)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, sch)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var in Input
	if !h.decode(w, r, &in) {
		return
	}

	sch, err := h.service.Update(r.Context(), p, id, in)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, sch)
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	sch, err := h.service.ChangeStatus(r.Context(), p, id, req.Status)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, sch)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, "invalid scholarship id")
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
	case errors.Is(err, ErrScholarshipNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, httputil.KindNotFound, err.Error())
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrAdminRequired):
		httputil.RespondWithError(w, http.StatusForbidden, httputil.KindAuthorizationDenied, err.Error())
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrDeadlineInPast),
		errors.Is(err, ErrMaxApplicantsTooSmall):
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "scholarship request failed", "path", r.URL.Path, "error", err)
		httputil.RespondWithInternalError(w, err)
	}
}
