package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthSessionFlow(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/api/auth/register", map[string]any{
		"email":     "Flow@Example.com",
		"password":  "Secr3t!pass",
		"firstName": "Flow",
		"lastName":  "Tester",
	}, "")
	expectStatus(t, resp, http.StatusCreated)
	registered := decode[sessionBody](t, resp)
	if registered.AccessToken == "" || registered.RefreshToken == "" {
		t.Fatalf("expected tokens in session: %+v", registered)
	}
	if registered.User.Email != "flow@example.com" {
		t.Fatalf("email = %q", registered.User.Email)
	}
	if len(registered.User.Roles) != 1 || registered.User.Roles[0] != "User" {
		t.Fatalf("roles = %v", registered.User.Roles)
	}

	resp = c.post("/api/auth/login", map[string]any{"email": "flow@example.com", "password": "Secr3t!pass"}, "")
	expectStatus(t, resp, http.StatusOK)
	loggedIn := decode[sessionBody](t, resp)
	if loggedIn.RefreshToken == registered.RefreshToken {
		t.Fatalf("login must issue a new refresh token")
	}

	// Login replaced the registration session.
	resp = c.post("/api/auth/refresh", map[string]any{"refreshToken": registered.RefreshToken}, "")
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = c.post("/api/auth/refresh", map[string]any{"refreshToken": loggedIn.RefreshToken}, "")
	expectStatus(t, resp, http.StatusOK)
	rotated := decode[sessionBody](t, resp)

	// Bare JSON string bodies are accepted too.
	resp = c.post("/api/auth/refresh", rotated.RefreshToken, "")
	expectStatus(t, resp, http.StatusOK)
	current := decode[sessionBody](t, resp)

	resp = c.post("/api/auth/refresh", rotated.RefreshToken, "")
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = c.post("/api/auth/logout", map[string]any{"refreshToken": current.RefreshToken}, "")
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = c.post("/api/auth/logout", map[string]any{"refreshToken": current.RefreshToken}, current.AccessToken)
	expectStatus(t, resp, http.StatusOK)
	msg := decode[map[string]string](t, resp)
	if msg["message"] != "Logged out successfully" {
		t.Fatalf("unexpected logout body: %v", msg)
	}

	resp = c.post("/api/auth/refresh", current.RefreshToken, "")
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	// Logging out an unknown token still succeeds.
	resp = c.post("/api/auth/logout", "unknown", current.AccessToken)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestRegisterDuplicateEmail(t *testing.T) {
	c := newTestAPI(t)
	body := map[string]any{"email": "dup@example.com", "password": "Secr3t!pass", "firstName": "A", "lastName": "B"}

	resp := c.post("/api/auth/register", body, "")
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = c.post("/api/auth/register", body, "")
	expectStatus(t, resp, http.StatusConflict)
	e := decode[errorBody](t, resp)
	if e.Code != "conflict" || e.Error != "user with this email already exists" {
		t.Fatalf("unexpected conflict body: %+v", e)
	}
	if e.RequestID == "" {
		t.Fatalf("expected request_id")
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/api/auth/register", map[string]any{"email": "not-an-email", "password": "x"}, "")
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = c.post("/api/auth/register", map[string]any{"email": "a@example.com", "password": "x", "admin": true}, "")
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	c := newTestAPI(t)
	c.session("User")

	resp := c.post("/api/auth/register", map[string]any{"email": "known@example.com", "password": "Secr3t!pass"}, "")
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = c.post("/api/auth/login", map[string]any{"email": "known@example.com", "password": "wrong"}, "")
	expectStatus(t, resp, http.StatusUnauthorized)
	wrongPassword := decode[errorBody](t, resp)

	resp = c.post("/api/auth/login", map[string]any{"email": "nobody@example.com", "password": "wrong"}, "")
	expectStatus(t, resp, http.StatusUnauthorized)
	unknownEmail := decode[errorBody](t, resp)

	if wrongPassword.Error != unknownEmail.Error || wrongPassword.Code != unknownEmail.Code {
		t.Fatalf("failures differ: %+v vs %+v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error != "invalid email or password" {
		t.Fatalf("unexpected message: %q", wrongPassword.Error)
	}
}

func TestMeRequiresValidToken(t *testing.T) {
	c := newTestAPI(t)
	s := c.session("Manager")

	resp := c.get("/api/auth/me", nil, "")
	expectStatus(t, resp, http.StatusUnauthorized)
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate header")
	}
	resp.Body.Close()

	resp = c.get("/api/auth/me", nil, "not-a-jwt")
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = c.get("/api/auth/me", nil, s.AccessToken)
	expectStatus(t, resp, http.StatusOK)
	me := decode[map[string]any](t, resp)
	if me["id"] != s.User.ID || me["email"] != s.User.Email {
		t.Fatalf("unexpected profile: %v", me)
	}
	roles, _ := me["roles"].([]any)
	if len(roles) != 1 || roles[0] != "Manager" {
		t.Fatalf("roles = %v", me["roles"])
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	api := New(nil, nil, WithMaxBodyBytes(64))
	big := strings.Repeat("a", 1024)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"`+big+`"}`))
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413: %s", rr.Code, rr.Body.String())
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer  abc ", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer ", "", true},
		{"Bear", "", true},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: err = %v", tc.header, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %q want %q", tc.header, got, tc.want)
		}
	}
}
