package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestIssuer(t *testing.T, now func() time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(testKey, "arabia-test", "arabia-clients", WithIssuerClock(now))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestNewIssuerRequiresConfiguration(t *testing.T) {
	cases := map[string][3]string{
		"missing key":      {"", "iss", "aud"},
		"short key":        {"short", "iss", "aud"},
		"missing issuer":   {testKey, " ", "aud"},
		"missing audience": {testKey, "iss", ""},
	}
	for name, c := range cases {
		if _, err := NewIssuer(c[0], c[1], c[2]); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, func() time.Time { return now })

	acc := &Account{ID: "acc-1", Email: "a@x.com", Username: "a@x.com", Roles: []string{"User", "user", "Manager"}}
	token, exp, err := iss.Issue(acc)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(time.Hour), exp)
	}

	claims, err := iss.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "acc-1" || claims.Email != "a@x.com" || claims.Username != "a@x.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "User" || claims.Roles[1] != "Manager" {
		t.Fatalf("roles were not preserved: %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti")
	}

	other, _, err := iss.Issue(acc)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	otherClaims, err := iss.Parse(other)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if otherClaims.ID == claims.ID {
		t.Fatalf("expected unique jti per issuance")
	}
}

func TestParseRejectsExpiredWithoutSkew(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	iss := newTestIssuer(t, func() time.Time { return clock })

	token, _, err := iss.Issue(&Account{ID: "acc-1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock = now.Add(time.Hour - time.Second)
	if _, err := iss.Parse(token); err != nil {
		t.Fatalf("expected token valid just before expiry: %v", err)
	}
	clock = now.Add(time.Hour)
	if _, err := iss.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken at expiry, got %v", err)
	}
}

func TestParseRejectsForeignTokens(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t, func() time.Time { return now })

	otherAudience, err := NewIssuer(testKey, "arabia-test", "someone-else", WithIssuerClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	otherKey, err := NewIssuer(strings.Repeat("k", 40), "arabia-test", "arabia-clients", WithIssuerClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	otherIssuer, err := NewIssuer(testKey, "elsewhere", "arabia-clients", WithIssuerClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	for name, src := range map[string]*Issuer{"audience": otherAudience, "key": otherKey, "issuer": otherIssuer} {
		token, _, err := src.Issue(&Account{ID: "acc-1"})
		if err != nil {
			t.Fatalf("%s: Issue: %v", name, err)
		}
		if _, err := iss.Parse(token); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("%s: expected rejection, got %v", name, err)
		}
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "acc-1",
		Issuer:    "arabia-test",
		Audience:  jwt.ClaimStrings{"arabia-clients"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := iss.Parse(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg none rejected, got %v", err)
	}
	if _, err := iss.Parse(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected empty token rejected, got %v", err)
	}
}

func TestNewRefreshToken(t *testing.T) {
	a, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(a)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("expected 64 bytes, got %d", len(raw))
	}
	b, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct tokens")
	}
}
