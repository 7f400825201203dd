package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"scholarship-service/internal/account"
	"scholarship-service/internal/admin"
	"scholarship-service/internal/app"
	"scholarship-service/internal/application"
	"scholarship-service/internal/auth"
	"scholarship-service/internal/config"
	"scholarship-service/internal/identity"
	"scholarship-service/internal/metrics"
	"scholarship-service/internal/middleware"
	"scholarship-service/internal/notification"
	"scholarship-service/internal/ratelimit"
	"scholarship-service/internal/scholarship"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu        sync.Mutex
	templates []notification.Template
}

func (n *recordingNotifier) Deliver(_ string, template notification.Template, _ map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.templates = append(n.templates, template)
}

func (n *recordingNotifier) sent() []notification.Template {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.Template(nil), n.templates...)
}

type emptyStats struct{}

func (emptyStats) Dashboard(context.Context, time.Time) (*admin.Dashboard, error) {
	return &admin.Dashboard{}, nil
}

func (emptyStats) ApplicationStats(context.Context) (*admin.ApplicationStats, error) {
	return &admin.ApplicationStats{}, nil
}

func (emptyStats) ScholarshipStats(context.Context) (*admin.ScholarshipStats, error) {
	return &admin.ScholarshipStats{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:     "test",
		Server:  config.ServerConfig{CORSOrigins: []string{"http://localhost:3000"}},
		Session: config.SessionConfig{Secret: "flow-secret", CookieTTL: time.Hour},
		Uploads: config.UploadsConfig{MaxFileSize: 5 << 20, AllowedTypes: []string{".pdf"}},
		RateLimit: config.RateLimitConfig{
			Window:        time.Hour,
			LoginLimit:    100,
			RegisterLimit: 100,
			SubmitLimit:   100,
			APILimit:      1000,
			APIWindow:     time.Minute,
		},
	}
}

func TestScholarshipLifecycle(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	provider := identity.NewFake()
	accountRepo := account.NewMemoryRepository()
	scholarshipRepo := scholarship.NewMemoryRepository()
	notifier := &recordingNotifier{}

	router := app.NewRouter(app.Deps{
		Config:       testConfig(),
		Logger:       logger,
		Metrics:      metrics.NewMock(),
		Provider:     provider,
		Accounts:     accountRepo,
		Scholarships: scholarshipRepo,
		Applications: application.NewMemoryRepository(scholarshipRepo),
		Stats:        emptyStats{},
		Notifier:     notifier,
		Limiter:      ratelimit.NewLocalLimiter(),
		HTTPMetrics:  middleware.NewHTTPMetrics("scholarship_service"),
	})

	do := func(method, path, token string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			json.NewEncoder(&buf).Encode(body)
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	// The first administrator is provisioned out of band.
	accounts := account.NewService(accountRepo)
	provider.AddToken("admin-tok", identity.Identity{ProviderID: "uid-admin", Email: "admin@example.com", ProviderVerified: true})
	adminAcc, err := accounts.Register(ctx, account.NewAccount{ProviderID: "uid-admin", Email: "admin@example.com", Verified: true})
	require.NoError(t, err)
	_, err = accounts.UpdateRole(ctx, account.RoleAdmin, adminAcc.ID, account.RoleAdmin)
	require.NoError(t, err)

	provider.AddToken("ada-tok", identity.Identity{ProviderID: "uid-ada", Email: "ada@example.com"})
	provider.AddToken("rev-tok", identity.Identity{ProviderID: "uid-rev", Email: "grace@example.com", ProviderVerified: true})

	var scholarshipID string
	var applicationID string
	var reviewerID string

	t.Run("ApplicantRegisters", func(t *testing.T) {
		w := do(http.MethodPost, "/auth/register", "ada-tok", map[string]any{"firstName": "Ada", "lastName": "Lovelace"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = do(http.MethodGet, "/auth/verification-status", "ada-tok", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"isVerified":false}`, w.Body.String())
	})

	t.Run("UnverifiedIsHalted", func(t *testing.T) {
		w := do(http.MethodPost, "/applications", "ada-tok", map[string]any{"scholarshipId": "6f1c1f2e-0000-4000-8000-000000000000"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"VerificationRequired"`)
	})

	t.Run("VerifyAndLogin", func(t *testing.T) {
		provider.SetProviderVerified("uid-ada", true)
		require.Equal(t, http.StatusOK, do(http.MethodPost, "/auth/verify-email", "ada-tok", nil).Code)

		w := do(http.MethodPost, "/auth/login", "ada-tok", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp auth.LoginResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, auth.RedirectFor(account.RoleApplicant), resp.RedirectURL)
		assert.True(t, resp.Account.Verified)
	})

	t.Run("AdminPublishesScholarship", func(t *testing.T) {
		w := do(http.MethodPost, "/scholarships", "admin-tok", map[string]any{
			"title":       "STEM Futures",
			"description": "For science students.",
			"amount":      2500,
			"deadline":    time.Now().Add(14 * 24 * time.Hour).Format(time.RFC3339),
			"requirements": map[string]any{
				"minGpa":        3.0,
				"academicLevel": "undergraduate",
				"documents":     []map[string]any{{"name": "transcript", "required": true}},
			},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var sch scholarship.Scholarship
		require.NoError(t, json.NewDecoder(w.Body).Decode(&sch))
		scholarshipID = sch.ID.String()

		w = do(http.MethodPatch, "/scholarships/"+scholarshipID+"/status", "admin-tok", map[string]string{"status": "published"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = do(http.MethodGet, "/scholarships", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), scholarshipID)
	})

	t.Run("ApplicantSubmits", func(t *testing.T) {
		w := do(http.MethodPost, "/applications", "ada-tok", map[string]any{
			"scholarshipId": scholarshipID,
			"academicInfo": map[string]any{
				"institution":   "State University",
				"major":         "Mathematics",
				"gpa":           3.8,
				"academicLevel": "undergraduate",
			},
			"documents": []map[string]any{
				{"name": "transcript", "url": "https://files.example.com/ada/transcript.pdf"},
			},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var app application.Application
		require.NoError(t, json.NewDecoder(w.Body).Decode(&app))
		applicationID = app.ID.String()

		sch, err := scholarshipRepo.GetByID(ctx, app.ScholarshipID)
		require.NoError(t, err)
		assert.Equal(t, 1, sch.CurrentApplicants)
	})

	t.Run("ReviewerIsPromoted", func(t *testing.T) {
		w := do(http.MethodPost, "/auth/register", "rev-tok", map[string]any{"firstName": "Grace", "lastName": "Hopper"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var reg auth.RegisterResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&reg))
		reviewerID = reg.AccountID.String()

		path := "/applications/" + applicationID + "/review"
		review := map[string]any{"score": 92, "comment": "Outstanding.", "status": "accepted"}
		assert.Equal(t, http.StatusForbidden, do(http.MethodPost, path, "rev-tok", review).Code)

		w = do(http.MethodPut, "/admin/users/"+reviewerID+"/role", "admin-tok", map[string]string{"role": "reviewer"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = do(http.MethodPost, path, "rev-tok", review)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("ApplicantSeesDecision", func(t *testing.T) {
		w := do(http.MethodGet, "/applications/my-applications", "ada-tok", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var mine []application.Application
		require.NoError(t, json.NewDecoder(w.Body).Decode(&mine))
		require.Len(t, mine, 1)
		assert.Equal(t, application.StatusAccepted, mine[0].Status)
		require.NotNil(t, mine[0].Summary)
		assert.Equal(t, "STEM Futures", mine[0].Summary.Title)
	})

	t.Run("Notifications", func(t *testing.T) {
		assert.Equal(t, []notification.Template{
			notification.TemplateWelcome,
			notification.TemplateApplicationConfirmation,
			notification.TemplateReviewAssigned,
			notification.TemplateWelcome,
			notification.TemplateApplicationStatusUpdate,
		}, notifier.sent())
	})

	t.Run("Metrics", func(t *testing.T) {
		w := do(http.MethodGet, "/metrics", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.True(t, strings.Contains(body, "scholarship_service_http_requests_total"))
		assert.Contains(t, body, `route="/applications/{id}/review"`)
	})
}
