package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	// retryAfterSeconds is advertised when a dependency is unavailable.
	retryAfterSeconds = 5
)

type errorMapping struct {
	err    error
	code   string
	status int
}

// errorMappings is checked in order, the first match wins. Every
// authentication failure shares one code so the response never says why.
var errorMappings = []errorMapping{
	{errors.ErrUnauthenticated, "unauthenticated", http.StatusUnauthorized},
	{errors.ErrAuthentication, "unauthenticated", http.StatusUnauthorized},
	{errors.ErrDecryption, "unauthenticated", http.StatusUnauthorized},
	{errors.ErrSessionNotFound, "unauthenticated", http.StatusUnauthorized},
	{errors.ErrCSRFInvalid, "csrf_invalid", http.StatusForbidden},
	{errors.ErrAdminRequired, "admin_required", http.StatusForbidden},
	{errors.ErrTenantMismatch, "tenant_mismatch", http.StatusForbidden},
	{errors.ErrStoreUnavailable, "store_unavailable", http.StatusServiceUnavailable},
	{errors.ErrBackendUnavailable, "backend_unavailable", http.StatusServiceUnavailable},
	{errors.ErrInvalidOnboardingTransition, "invalid_onboarding_transition", http.StatusConflict},
	{errors.ErrNoTenantYet, "no_tenant_yet", http.StatusConflict},
	{errors.ErrTooManyAttempts, "too_many_attempts", http.StatusTooManyRequests},
	{errors.ErrInvalidRequest, "invalid_request", http.StatusBadRequest},
	{errors.ErrUnknownOnboardingState, "invalid_request", http.StatusBadRequest},
	{errors.ErrTenantNotFound, "not_found", http.StatusNotFound},
	{errors.ErrNotFound, "not_found", http.StatusNotFound},
}

// statusFor maps err to its error code and status. Unknown errors are 500.
func statusFor(err error) (string, int) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.code, m.status
		}
	}
	return "internal_error", http.StatusInternalServerError
}

// writeError writes err as a JSON error. Descriptions are generic per code,
// the wrapped detail goes to the log only.
func writeError(w http.ResponseWriter, err error) {
	code, status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", code).Msg("request failed")
	}
	writeJSONError(w, code, http.StatusText(status), status)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}
