package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"arabia.app/internal/auth"
	"arabia.app/internal/ids"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// anyIdentity accepts every authenticated caller regardless of role.
const anyIdentity auth.Policy = ""

// protect authenticates the bearer credential and enforces policy.
func (a *API) protect(policy auth.Policy, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.issuer == nil {
			writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
			return
		}
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer`)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.issuer.Parse(token)
		if err != nil || !ids.Valid(claims.Subject) {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		if policy != anyIdentity {
			if err := auth.Authorize(claims, policy); err != nil {
				handleAuthError(w, r, err)
				return
			}
		}
		next(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
