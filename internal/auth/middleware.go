// Package auth turns provider-issued tokens into platform principals and
// serves the authentication routes.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"scholarship-service/common/httputil"
	"scholarship-service/internal/account"
	"scholarship-service/internal/identity"
	"scholarship-service/internal/metrics"
)

const tokenCookie = "token"

// AccountStore is the part of the account service the middleware needs.
type AccountStore interface {
	GetByProviderID(ctx context.Context, providerID string) (*account.Account, error)
	MarkVerified(ctx context.Context, acc *account.Account) error
}

type Middleware struct {
	provider identity.Provider
	accounts AccountStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewMiddleware(provider identity.Provider, accounts AccountStore, logger *slog.Logger, m *metrics.Metrics) *Middleware {
	return &Middleware{provider: provider, accounts: accounts, logger: logger, metrics: m}
}

// Authenticate runs the full pipeline: token verification, provider
// verification refresh, account lookup, local flag reconciliation. Any
// failure halts the request.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, token, ok := m.verifyToken(w, r)
		if !ok {
			return
		}

		verified, err := providerVerified(ctx, m.provider, id)
		if err != nil {
			m.logger.WarnContext(ctx, "verification refresh failed", "error", err)
			m.fail(w, r, http.StatusUnauthorized, httputil.KindAuthenticationFailure, "invalid or expired token", "lookup_failed")
			return
		}
		if !verified {
			m.fail(w, r, http.StatusForbidden, httputil.KindVerificationRequired, "email address is not verified", "unverified")
			return
		}

		acc, err := m.accounts.GetByProviderID(ctx, id.ProviderID)
		if errors.Is(err, account.ErrAccountNotFound) {
			m.fail(w, r, http.StatusNotFound, httputil.KindNotFound, "account not found", "no_account")
			return
		}
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to load account", "error", err)
			httputil.RespondWithInternalError(w, err)
			return
		}

		if err := m.accounts.MarkVerified(ctx, acc); err != nil {
			m.logger.ErrorContext(ctx, "failed to reconcile verification flag", "account_id", acc.ID, "error", err)
			httputil.RespondWithInternalError(w, err)
			return
		}

		ctx = WithIdentity(ctx, *id, token)
		ctx = WithPrincipal(ctx, Principal{AccountID: acc.ID, Email: acc.Email, Role: acc.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireToken only verifies the token. Used by routes that run before an
// account exists or is verified.
func (m *Middleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, token, ok := m.verifyToken(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id, token)))
	})
}

// RequireRole must run after Authenticate.
func (m *Middleware) RequireRole(roles ...account.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				m.fail(w, r, http.StatusUnauthorized, httputil.KindAuthenticationFailure, "authentication required", "no_principal")
				return
			}
			if !p.HasRole(roles...) {
				m.logger.WarnContext(r.Context(), "role not allowed", "account_id", p.AccountID, "role", p.Role, "path", r.URL.Path)
				m.fail(w, r, http.StatusForbidden, httputil.KindAuthorizationDenied, "insufficient permissions", "role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) verifyToken(w http.ResponseWriter, r *http.Request) (*identity.Identity, string, bool) {
	token := tokenFromRequest(r)
	if token == "" {
		m.fail(w, r, http.StatusUnauthorized, httputil.KindAuthenticationFailure, "authentication required", "missing_token")
		return nil, "", false
	}

	id, err := m.provider.Verify(r.Context(), token)
	if err != nil {
		m.fail(w, r, http.StatusUnauthorized, httputil.KindAuthenticationFailure, "invalid or expired token", "invalid_token")
		return nil, "", false
	}
	return id, token, true
}

func (m *Middleware) fail(w http.ResponseWriter, r *http.Request, code int, kind httputil.Kind, message, reason string) {
	m.metrics.RecordAuthFailure(r.Context(), reason)
	httputil.RespondWithError(w, code, kind, message)
}

// tokenFromRequest prefers the Authorization header over the session cookie.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(tokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// providerVerified trusts a verified claim as is. An unverified claim may
// predate the verification, so the provider is asked once.
func providerVerified(ctx context.Context, provider identity.Provider, id *identity.Identity) (bool, error) {
	if id.ProviderVerified {
		return true, nil
	}
	fresh, err := provider.Lookup(ctx, id.ProviderID)
	if err != nil {
		return false, err
	}
	return fresh.ProviderVerified, nil
}
