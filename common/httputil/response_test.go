package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithError_CarriesKind(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithError(w, http.StatusForbidden, KindVerificationRequired, "email not verified")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "email not verified", body.Error)
	assert.Equal(t, KindVerificationRequired, body.Kind)
}

func TestRespondWithInternalError_DetailOnlyInDebug(t *testing.T) {
	t.Cleanup(func() { SetDebug(false) })

	w := httptest.NewRecorder()
	RespondWithInternalError(w, errors.New("pq: connection refused"))
	assert.NotContains(t, w.Body.String(), "connection refused")

	SetDebug(true)
	w = httptest.NewRecorder()
	RespondWithInternalError(w, errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &dst, 1024))
	assert.Equal(t, "Ada", dst.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &dst, 1024))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("x", 64)+`"}`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &dst, 16))
}
