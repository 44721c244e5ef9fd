package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"arabia.app/internal/audit"
	"arabia.app/internal/auth"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) authRoutes(r *mux.Router) {
	r.HandleFunc("/auth/register", a.register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", a.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", a.refresh).Methods(http.MethodPost)
	r.Handle("/auth/logout", a.protect(anyIdentity, a.logout)).Methods(http.MethodPost)
	r.Handle("/auth/me", a.protect(anyIdentity, a.me)).Methods(http.MethodGet)
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	sess, err := a.sessions.Register(r.Context(), auth.Registration{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.RegisterSucceeded, map[string]any{
		"user_id": sess.Profile.ID,
		"roles":   sess.Profile.Roles,
	})
	writeJSON(w, http.StatusCreated, sess)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	sess, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		_ = audit.LogEvent(r.Context(), audit.LoginFailed, map[string]any{
			"email":     auth.NormalizeEmail(req.Email),
			"remote_ip": clientIP(r),
			"throttled": errors.Is(err, auth.ErrRateLimited),
		})
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.LoginSucceeded, map[string]any{
		"user_id":   sess.Profile.ID,
		"remote_ip": clientIP(r),
	})
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	token, err := decodeRefreshToken(r)
	if err != nil {
		badBody(w, r, err)
		return
	}
	sess, err := a.sessions.Refresh(r.Context(), token)
	if err != nil {
		_ = audit.LogEvent(r.Context(), audit.RefreshFailed, map[string]any{
			"remote_ip": clientIP(r),
		})
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.RefreshSucceeded, map[string]any{
		"user_id": sess.Profile.ID,
	})
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	token, err := decodeRefreshToken(r)
	if err != nil {
		badBody(w, r, err)
		return
	}
	revoked, err := a.sessions.Logout(r.Context(), token)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.Logout, map[string]any{
		"revoked": revoked,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing identity")
		return
	}
	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       claims.Subject,
		"email":    claims.Email,
		"username": claims.Username,
		"roles":    roles,
	})
}

// decodeRefreshToken accepts {"refreshToken": "..."} or a bare JSON string.
func decodeRefreshToken(r *http.Request) (string, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errors.New("request body is required")
	}
	if raw[0] == '"' {
		var token string
		if err := json.Unmarshal(raw, &token); err != nil {
			return "", err
		}
		return strings.TrimSpace(token), nil
	}
	var req refreshRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return "", err
	}
	if dec.More() {
		return "", errors.New("unexpected data after JSON body")
	}
	return strings.TrimSpace(req.RefreshToken), nil
}
