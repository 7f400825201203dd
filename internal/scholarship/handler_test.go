package scholarship_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scholarship-service/internal/account"
	"scholarship-service/internal/auth"
	"scholarship-service/internal/identity"
	"scholarship-service/internal/metrics"
	"scholarship-service/internal/scholarship"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScholarshipHandler(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMock()

	provider := identity.NewFake()
	accounts := account.NewService(account.NewMemoryRepository())
	mw := auth.NewMiddleware(provider, accounts, logger, m)

	register := func(token, uid, email string, role account.Role) {
		provider.AddToken(token, identity.Identity{ProviderID: uid, Email: email, ProviderVerified: true})
		acc, err := accounts.Register(ctx, account.NewAccount{ProviderID: uid, Email: email, Verified: true})
		require.NoError(t, err)
		if role != account.RoleApplicant {
			_, err = accounts.UpdateRole(ctx, account.RoleAdmin, acc.ID, role)
			require.NoError(t, err)
		}
	}
	register("admin-tok", "uid-admin", "admin@example.com", account.RoleAdmin)
	register("other-admin-tok", "uid-admin-2", "admin2@example.com", account.RoleAdmin)
	register("applicant-tok", "uid-app", "ada@example.com", account.RoleApplicant)

	handler := scholarship.NewHandler(scholarship.NewService(scholarship.NewMemoryRepository(), logger, m), logger)
	router := chi.NewRouter()
	handler.RegisterRoutes(router, mw)

	do := func(method, path, token string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			json.NewEncoder(&buf).Encode(body)
		}
		req := httptest.NewRequest(method, path, &buf)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	input := map[string]any{
		"title":       "STEM Futures",
		"description": "For science students.",
		"amount":      2500,
		"deadline":    time.Now().Add(14 * 24 * time.Hour).Format(time.RFC3339),
		"requirements": map[string]any{
			"minGpa":        3.2,
			"academicLevel": "undergraduate",
			"documents":     []map[string]any{{"name": "transcript", "required": true}},
		},
	}

	var created scholarship.Scholarship

	t.Run("CreateRequiresAdmin", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, "/scholarships", "", input).Code)
		assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/scholarships", "applicant-tok", input).Code)
	})

	t.Run("Create", func(t *testing.T) {
		w := do(http.MethodPost, "/scholarships", "admin-tok", input)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		assert.Equal(t, scholarship.StatusDraft, created.Status)
		assert.Len(t, created.Requirements.Documents, 1)
	})

	t.Run("CreateValidation", func(t *testing.T) {
		bad := map[string]any{"title": "", "amount": -1}
		w := do(http.MethodPost, "/scholarships", "admin-tok", bad)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"ValidationFailure"`)
	})

	t.Run("DraftIsNotPublic", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/scholarships/"+created.ID.String(), "", nil).Code)

		w := do(http.MethodGet, "/scholarships", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("StatusByOtherAdmin", func(t *testing.T) {
		w := do(http.MethodPatch, "/scholarships/"+created.ID.String()+"/status", "other-admin-tok", map[string]string{"status": "published"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("InvalidTransition", func(t *testing.T) {
		w := do(http.MethodPatch, "/scholarships/"+created.ID.String()+"/status", "admin-tok", map[string]string{"status": "closed"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("PublishAndList", func(t *testing.T) {
		w := do(http.MethodPatch, "/scholarships/"+created.ID.String()+"/status", "admin-tok", map[string]string{"status": "published"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = do(http.MethodGet, "/scholarships?academicLevel=undergraduate", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var list []scholarship.Scholarship
		require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
		require.Len(t, list, 1)
		assert.Equal(t, created.ID, list[0].ID)

		w = do(http.MethodGet, "/scholarships?academicLevel=graduate", "", nil)
		assert.JSONEq(t, `[]`, w.Body.String())

		w = do(http.MethodGet, "/scholarships?academicLevel=phd", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Update", func(t *testing.T) {
		input["title"] = "STEM Futures 2026"
		w := do(http.MethodPut, "/scholarships/"+created.ID.String(), "admin-tok", input)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var updated scholarship.Scholarship
		require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
		assert.Equal(t, "STEM Futures 2026", updated.Title)
		assert.Equal(t, scholarship.StatusPublished, updated.Status)
	})

	t.Run("NotFound", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/scholarships/6f1c1f2e-0000-4000-8000-000000000000", "", nil).Code)
		assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/scholarships/not-a-uuid", "", nil).Code)
	})
}
