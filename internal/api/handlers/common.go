package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pysugar/launcher-accounts/internal/auth/token"
	"github.com/pysugar/launcher-accounts/internal/logging"
	"github.com/pysugar/launcher-accounts/internal/profile"
	"github.com/pysugar/launcher-accounts/internal/store"
)

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a lifecycle error to an HTTP status and a JSON body whose
// type tells the UI which remediation applies.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("❌ Request failed")
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message":   err.Error(),
			"type":      kind,
			"retryable": retryable(err),
		},
	})
}

func classify(err error) (int, string) {
	var apiErr *profile.APIError
	switch {
	case errors.Is(err, token.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, token.ErrAccountNotFound):
		return http.StatusNotFound, "account_not_found"
	case errors.Is(err, token.ErrReauthenticationRequired), errors.Is(err, token.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "reauthentication_required"
	case errors.Is(err, profile.ErrNoActiveAccount):
		return http.StatusConflict, "no_active_account"
	case errors.Is(err, token.ErrNetworkFailure):
		return http.StatusBadGateway, "network_failure"
	case errors.Is(err, token.ErrMalformedResponse):
		return http.StatusBadGateway, "malformed_response"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "profile_api_error"
	case errors.Is(err, store.ErrStoreCorrupt):
		return http.StatusInternalServerError, "store_corrupt"
	case errors.Is(err, store.ErrIO):
		return http.StatusInternalServerError, "io_failure"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	}
	return http.StatusInternalServerError, "internal_error"
}

func retryable(err error) bool {
	return token.IsRetryable(err) ||
		errors.Is(err, store.ErrIO) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
