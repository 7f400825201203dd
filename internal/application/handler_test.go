package application_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"scholarship-service/internal/account"
	"scholarship-service/internal/application"
	"scholarship-service/internal/auth"
	"scholarship-service/internal/config"
	"scholarship-service/internal/identity"
	"scholarship-service/internal/metrics"
	"scholarship-service/internal/notification"
	"scholarship-service/internal/ratelimit"
	"scholarship-service/internal/scholarship"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationHandler(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMock()

	provider := identity.NewFake()
	accounts := account.NewService(account.NewMemoryRepository())
	mw := auth.NewMiddleware(provider, accounts, logger, m)

	register := func(token, uid, email string, role account.Role) *account.Account {
		provider.AddToken(token, identity.Identity{ProviderID: uid, Email: email, ProviderVerified: true})
		acc, err := accounts.Register(ctx, account.NewAccount{ProviderID: uid, Email: email, Verified: true})
		require.NoError(t, err)
		if role != account.RoleApplicant {
			acc, err = accounts.UpdateRole(ctx, account.RoleAdmin, acc.ID, role)
			require.NoError(t, err)
		}
		return acc
	}
	owner := register("admin-tok", "uid-admin", "admin@example.com", account.RoleAdmin)
	register("reviewer-tok", "uid-reviewer", "reviewer@example.com", account.RoleReviewer)
	register("ada-tok", "uid-ada", "ada@example.com", account.RoleApplicant)
	register("bob-tok", "uid-bob", "bob@example.com", account.RoleApplicant)

	scholarships := scholarship.NewMemoryRepository()
	sch := &scholarship.Scholarship{
		Title:        "STEM Futures",
		Description:  "For science students.",
		Amount:       2500,
		Deadline:     time.Now().Add(7 * 24 * time.Hour),
		Status:       scholarship.StatusPublished,
		CreatedBy:    owner.ID,
		Requirements: scholarship.Requirements{MinGPA: 3.0, AcademicLevel: scholarship.LevelBoth},
	}
	require.NoError(t, scholarships.Create(ctx, sch))

	svc := application.NewService(
		application.NewMemoryRepository(scholarships),
		scholarships,
		accounts,
		notification.Nop{},
		config.UploadsConfig{MaxFileSize: 5 << 20, AllowedTypes: []string{".pdf"}},
		logger,
		m,
	)
	limits := config.RateLimitConfig{Window: time.Minute, SubmitLimit: 2}
	handler := application.NewHandler(svc, ratelimit.NewLocalLimiter(), limits, logger)
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

	submit := map[string]any{
		"scholarshipId": sch.ID,
		"academicInfo": map[string]any{
			"institution":   "State University",
			"major":         "Physics",
			"gpa":           3.7,
			"academicLevel": "graduate",
		},
		"documents": []map[string]any{
			{"name": "transcript", "url": "https://files.example.com/transcript.pdf", "size": 1024},
		},
	}

	var created application.Application

	t.Run("SubmitRequiresApplicant", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, "/applications", "", submit).Code)
		assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/applications", "reviewer-tok", submit).Code)
	})

	t.Run("SubmitValidation", func(t *testing.T) {
		w := do(http.MethodPost, "/applications", "bob-tok", map[string]any{"academicInfo": map[string]any{"gpa": 7}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"ValidationFailure"`)
	})

	t.Run("Submit", func(t *testing.T) {
		w := do(http.MethodPost, "/applications", "ada-tok", submit)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		assert.Equal(t, application.StatusSubmitted, created.Status)
		require.NotNil(t, created.Summary)
		assert.Equal(t, "STEM Futures", created.Summary.Title)
	})

	t.Run("Duplicate", func(t *testing.T) {
		w := do(http.MethodPost, "/applications", "ada-tok", submit)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"Conflict"`)
	})

	t.Run("SubmitRateLimited", func(t *testing.T) {
		w := do(http.MethodPost, "/applications", "ada-tok", submit)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))

		w = do(http.MethodPost, "/applications", "bob-tok", submit)
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("MyApplications", func(t *testing.T) {
		w := do(http.MethodGet, "/applications/my-applications", "ada-tok", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var mine []application.Application
		require.NoError(t, json.NewDecoder(w.Body).Decode(&mine))
		require.Len(t, mine, 1)
		assert.Equal(t, created.ID, mine[0].ID)
	})

	t.Run("Get", func(t *testing.T) {
		path := "/applications/" + created.ID.String()
		assert.Equal(t, http.StatusOK, do(http.MethodGet, path, "ada-tok", nil).Code)
		assert.Equal(t, http.StatusOK, do(http.MethodGet, path, "reviewer-tok", nil).Code)
		assert.Equal(t, http.StatusNotFound, do(http.MethodGet, path, "bob-tok", nil).Code)
		assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/applications/nope", "ada-tok", nil).Code)
	})

	t.Run("ListForReviewers", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/applications", "ada-tok", nil).Code)

		w := do(http.MethodGet, "/applications?status=submitted&scholarshipId="+sch.ID.String(), "reviewer-tok", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var all []application.Application
		require.NoError(t, json.NewDecoder(w.Body).Decode(&all))
		assert.NotEmpty(t, all)

		assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/applications?status=lost", "reviewer-tok", nil).Code)
	})

	t.Run("Review", func(t *testing.T) {
		path := "/applications/" + created.ID.String() + "/review"
		assert.Equal(t, http.StatusForbidden, do(http.MethodPost, path, "ada-tok", map[string]any{"score": 1, "comment": "x"}).Code)
		assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, path, "reviewer-tok", map[string]any{"score": 101, "comment": "x"}).Code)

		w := do(http.MethodPost, path, "reviewer-tok", map[string]any{"score": 88, "comment": "great fit", "status": "under_review"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var reviewed application.Application
		require.NoError(t, json.NewDecoder(w.Body).Decode(&reviewed))
		assert.Equal(t, application.StatusUnderReview, reviewed.Status)
		assert.Len(t, reviewed.Reviews, 1)

		w = do(http.MethodPost, path, "reviewer-tok", map[string]any{"score": 10, "comment": "back", "status": "submitted"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("DocumentStatus", func(t *testing.T) {
		path := "/applications/" + created.ID.String() + "/documents/" + created.Documents[0].ID.String() + "/status"
		w := do(http.MethodPut, path, "admin-tok", map[string]string{"status": "approved"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got application.Application
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, application.DocumentApproved, got.Documents[0].Status)

		assert.Equal(t, http.StatusBadRequest, do(http.MethodPut, path, "admin-tok", map[string]string{"status": "lost"}).Code)
	})
}

func TestApplicationHandler_SimultaneousSubmits(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMock()

	provider := identity.NewFake()
	accounts := account.NewService(account.NewMemoryRepository())
	provider.AddToken("ada-tok", identity.Identity{ProviderID: "uid-ada", Email: "ada@example.com", ProviderVerified: true})
	_, err := accounts.Register(ctx, account.NewAccount{ProviderID: "uid-ada", Email: "ada@example.com", Verified: true})
	require.NoError(t, err)

	scholarships := scholarship.NewMemoryRepository()
	sch := &scholarship.Scholarship{
		Title:    "Open Call",
		Amount:   500,
		Deadline: time.Now().Add(24 * time.Hour),
		Status:   scholarship.StatusPublished,
	}
	require.NoError(t, scholarships.Create(ctx, sch))

	svc := application.NewService(application.NewMemoryRepository(scholarships), scholarships, accounts,
		notification.Nop{}, config.UploadsConfig{}, logger, m)
	router := chi.NewRouter()
	application.NewHandler(svc, nil, config.RateLimitConfig{}, logger).
		RegisterRoutes(router, auth.NewMiddleware(provider, accounts, logger, m))

	body, err := json.Marshal(map[string]any{
		"scholarshipId": sch.ID,
		"academicInfo":  map[string]any{"institution": "MIT", "major": "Math", "gpa": 3.5, "academicLevel": "undergraduate"},
	})
	require.NoError(t, err)

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/applications", bytes.NewReader(body))
			req.Header.Set("Authorization", "Bearer ada-tok")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	sort.Ints(codes)
	assert.Equal(t, []int{http.StatusCreated, http.StatusBadRequest}, codes)

	stored, err := scholarships.GetByID(ctx, sch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentApplicants)
}
