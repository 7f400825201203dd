package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"scholarship-service/common/httputil"
	"scholarship-service/internal/account"
	"scholarship-service/internal/config"
	"scholarship-service/internal/identity"
	"scholarship-service/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

type RegisterRequest struct {
	FirstName    string               `json:"firstName" validate:"required,max=100"`
	LastName     string               `json:"lastName" validate:"required,max=100"`
	PhoneNumber  string               `json:"phoneNumber" validate:"omitempty,max=32"`
	AcademicInfo account.AcademicInfo `json:"academicInfo"`
}

func (r RegisterRequest) profile() account.Profile {
	return account.Profile{
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PhoneNumber:  r.PhoneNumber,
		AcademicInfo: r.AcademicInfo,
	}
}

type SocialLoginRequest struct {
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

type RegisterResponse struct {
	AccountID uuid.UUID    `json:"accountId"`
	Email     string       `json:"email"`
	Role      account.Role `json:"role"`
}

type LoginResponse struct {
	Account     *account.Account `json:"account"`
	RedirectURL string           `json:"redirectUrl"`
}

type VerificationStatusResponse struct {
	IsVerified bool `json:"isVerified"`
}

type Handler struct {
	service    Service
	sessions   *Sessions
	middleware *Middleware
	limiter    ratelimit.Limiter
	limits     config.RateLimitConfig
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewHandler(service Service, sessions *Sessions, mw *Middleware, limiter ratelimit.Limiter, limits config.RateLimitConfig, logger *slog.Logger) *Handler {
	return &Handler{
		service:    service,
		sessions:   sessions,
		middleware: mw,
		limiter:    limiter,
		limits:     limits,
		validate:   validator.New(),
		logger:     logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.middleware.RequireToken)

			r.With(h.throttle("register", h.limits.RegisterLimit)).Post("/register", h.Register)
			r.With(h.throttle("login", h.limits.LoginLimit)).Post("/login", h.Login)
			r.With(h.throttle("login", h.limits.LoginLimit)).Post("/social", h.SocialLogin)
			r.Post("/verify-email", h.VerifyEmail)
			r.With(h.throttle("verification", h.limits.RegisterLimit)).Post("/send-verification", h.SendVerification)
			r.Get("/verification-status", h.VerificationStatus)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(h.middleware.Authenticate)
		r.Get("/users/profile", h.GetProfile)
		r.Put("/users/profile", h.UpdateProfile)
	})
}

func (h *Handler) throttle(scope string, limit int) func(http.Handler) http.Handler {
	return ratelimit.Middleware(h.limiter, scope, ratelimit.ClientIP, limit, h.limits.Window)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	acc, err := h.service.Register(r.Context(), id, req.profile())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, RegisterResponse{
		AccountID: acc.ID,
		Email:     acc.Email,
		Role:      acc.Role,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	acc, err := h.service.Login(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "account logged in", "account_id", acc.ID, "role", acc.Role)
	h.startSession(w, r, acc)
}

func (h *Handler) SocialLogin(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req SocialLoginRequest
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}

	acc, err := h.service.SocialLogin(r.Context(), id, account.Profile{FirstName: req.FirstName, LastName: req.LastName})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.startSession(w, r, acc)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	acc, err := h.service.VerifyEmail(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, acc)
}

func (h *Handler) SendVerification(w http.ResponseWriter, r *http.Request) {
	token, _ := TokenFromContext(r.Context())

	if err := h.service.SendVerification(r.Context(), token); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "verification email sent"})
}

func (h *Handler) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	httputil.RespondWithJSON(w, http.StatusOK, VerificationStatusResponse{
		IsVerified: h.service.VerificationStatus(r.Context(), id),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, err := h.sessions.FromRequest(r); err == nil {
		h.logger.InfoContext(r.Context(), "account logged out", "account_id", claims.AccountID)
	}
	h.sessions.ClearCookies(w)
	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	acc, err := h.service.Profile(r.Context(), p.AccountID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, acc)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	var profile account.Profile
	if !h.decode(w, r, &profile) {
		return
	}

	acc, err := h.service.UpdateProfile(r.Context(), p.AccountID, profile)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, acc)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, acc *account.Account) {
	session, err := h.sessions.Issue(acc)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	token, _ := TokenFromContext(r.Context())
	h.sessions.SetCookies(w, token, session)

	httputil.RespondWithJSON(w, http.StatusOK, LoginResponse{
		Account:     acc,
		RedirectURL: RedirectFor(acc.Role),
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(w, r, dst, maxBodyBytes); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.logger.WarnContext(r.Context(), "validation failed", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, httputil.KindValidationFailure, err.Error())
		return false
	}
	return true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidToken):
		httputil.RespondWithError(w, http.StatusUnauthorized, httputil.KindAuthenticationFailure, "invalid or expired token")
	case errors.Is(err, ErrEmailNotVerified):
		httputil.RespondWithError(w, http.StatusForbidden, httputil.KindVerificationRequired, err.Error())
	case errors.Is(err, account.ErrAccountNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, httputil.KindNotFound, "account not found")
	case errors.Is(err, account.ErrDuplicateEmail), errors.Is(err, account.ErrDuplicateProviderID):
		httputil.RespondWithError(w, http.StatusConflict, httputil.KindConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "auth request failed", "path", r.URL.Path, "error", err)
		httputil.RespondWithInternalError(w, err)
	}
}
