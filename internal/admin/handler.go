package admin

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

const maxBodyBytes = 1 << 16

type RoleRequest struct {
	Role account.Role `json:"role" validate:"required,oneof=applicant reviewer admin"`
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
	router.Route("/admin", func(r chi.Router) {
		r.Use(mw.Authenticate, mw.RequireRole(account.RoleAdmin))

		r.Get("/dashboard", h.Dashboard)
		r.Get("/applications/stats", h.ApplicationStats)
		r.Get("/scholarships/stats", h.ScholarshipStats)

		r.Get("/users", h.ListUsers)
		r.Put("/users/{id}/role", h.UpdateRole)
		r.Delete("/users/{id}", h.DeleteUser)
	})
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) ApplicationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ApplicationStats(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) ScholarshipStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ScholarshipStats(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	q := r.URL.Query()

	filter := account.ListFilter{Role: account.Role(q.Get("role"))}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	users, err := h.service.ListUsers(r.Context(), p, filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []account.Account{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, users)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req RoleRequest
	if err := httputil.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, err.Error())
		return
	}

	acc, err := h.service.UpdateRole(r.Context(), p, id, req.Role)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, acc)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), p, id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, account.ErrAccountNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, httputil.KindNotFound, err.Error())
	case errors.Is(err, account.ErrAdminRequired):
		httputil.RespondWithError(w, http.StatusForbidden, httputil.KindAuthorizationDenied, err.Error())
	case errors.Is(err, account.ErrInvalidRole):
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "admin request failed", "path", r.URL.Path, "error", err)
		httputil.RespondWithInternalError(w, err)
	}
}
