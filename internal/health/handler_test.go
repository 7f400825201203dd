package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"scholarship-service/common/metrics"
	"scholarship-service/internal/health"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func setup(t *testing.T) (chi.Router, sqlmock.Sqlmock, *grpchealth.Server, *metrics.Metrics) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	grpcHealth := grpchealth.NewServer()
	m := metrics.NewMock()
	h := health.NewHandler(db, grpcHealth, slog.New(slog.NewTextHandler(io.Discard, nil)), m)

	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router, mock, grpcHealth, m
}

func servingStatus(t *testing.T, s *grpchealth.Server) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	return resp.Status
}

func TestHealth(t *testing.T) {
	router, _, _, _ := setup(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReady_DatabaseUp(t *testing.T) {
	router, mock, grpcHealth, m := setup(t)
	mock.ExpectPing()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp health.HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "up", resp.Checks["database"])
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, servingStatus(t, grpcHealth))
	assert.True(t, m.Health.DependencyAvailable("postgres"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReady_DatabaseDown(t *testing.T) {
	router, mock, grpcHealth, m := setup(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"down"`)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, servingStatus(t, grpcHealth))
	assert.False(t, m.Health.DependencyAvailable("postgres"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
