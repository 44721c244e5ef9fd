package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"arabia.app/internal/auth"
	"arabia.app/internal/maintenance"
)

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, r, http.StatusTooManyRequests, "too many failed login attempts")
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, publicMessage(err, auth.ErrUnauthenticated))
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, publicMessage(err, auth.ErrForbidden))
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, publicMessage(err, auth.ErrConflict))
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, publicMessage(err, auth.ErrInvalidInput))
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleMaintenanceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, maintenance.ErrInvalidReference):
		var ref *maintenance.ReferenceError
		if errors.As(err, &ref) {
			writeErrorCode(w, r, http.StatusBadRequest, "invalid_operation", ref.Error())
			return
		}
		writeErrorCode(w, r, http.StatusBadRequest, "invalid_operation", "operation conflicts with existing service requests")
	case errors.Is(err, maintenance.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, publicMessage(err, maintenance.ErrInvalidInput))
	case errors.Is(err, maintenance.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, maintenance.ErrConflict):
		writeError(w, r, http.StatusConflict, "resource already exists")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// publicMessage drops the sentinel prefix from a wrapped error message.
func publicMessage(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
