package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rendis/integra/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response. Errors that are not an
// IntegraError are reported without their text.
func writeError(w http.ResponseWriter, status int, err error) {
	var ie *schema.IntegraError
	if !errors.As(err, &ie) {
		ie = schema.NewError("INTERNAL_ERROR", http.StatusText(status))
	}
	writeJSON(w, status, map[string]any{"error": ie})
}

// statusFor maps an error code onto an HTTP status.
func statusFor(err error) int {
	var ie *schema.IntegraError
	if !errors.As(err, &ie) {
		return http.StatusInternalServerError
	}
	switch ie.Code {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeRequestRejected:
		return http.StatusUnprocessableEntity
	case schema.ErrCodeCancelled:
		return http.StatusServiceUnavailable
	case schema.ErrCodeStore:
		return http.StatusInternalServerError
	}
	if schema.IsClientError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
