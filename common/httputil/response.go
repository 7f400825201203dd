package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Kind classifies an error response so clients can branch without parsing messages.
type Kind string

const (
	KindAuthenticationFailure Kind = "AuthenticationFailure"
	KindVerificationRequired  Kind = "VerificationRequired"
	KindAuthorizationDenied   Kind = "AuthorizationDenied"
	KindNotFound              Kind = "NotFound"
	KindConflict              Kind = "Conflict"
	KindValidationFailure     Kind = "ValidationFailure"
	KindRateLimited           Kind = "RateLimited"
	KindUpstreamFailure       Kind = "UpstreamFailure"
)

type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   Kind   `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

var debug atomic.Bool

// SetDebug toggles whether internal error details are echoed to clients.
func SetDebug(enabled bool) {
	debug.Store(enabled)
}

// RespondWithError writes an error response in JSON format
func RespondWithError(w http.ResponseWriter, code int, kind Kind, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message, Kind: kind})
}

// RespondWithInternalError hides err from the client unless debug is on.
func RespondWithInternalError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: "internal server error", Kind: KindUpstreamFailure}
	if debug.Load() && err != nil {
		resp.Detail = err.Error()
	}
	RespondWithJSON(w, http.StatusInternalServerError, resp)
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// DecodeJSON reads a single JSON document from the request body into dst.
// An empty body is reported as io.EOF wrapped so callers can treat it as a bad request.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty: %w", err)
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
