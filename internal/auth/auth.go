package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTTL is the lifetime of an access credential.
	DefaultAccessTTL = time.Hour
	// DefaultRefreshTTL is the lifetime of a refresh credential.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	refreshTokenBytes = 64
	minKeyLength      = 32
)

// Claims represents JWT claims carried by an access credential.
type Claims struct {
	Username string   `json:"name"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies access credentials with a static HS256 key.
type Issuer struct {
	key       []byte
	issuer    string
	audience  string
	accessTTL time.Duration
	now       func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer) error

// WithAccessTTL configures access credential lifetime.
func WithAccessTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) error {
		if ttl > 0 {
			i.accessTTL = ttl
		}
		return nil
	}
}

// WithIssuerClock overrides the issuer time source.
func WithIssuerClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) error {
		if fn != nil {
			i.now = fn
		}
		return nil
	}
}

// NewIssuer constructs an Issuer. Key, issuer and audience are all required.
func NewIssuer(key, issuer, audience string, opts ...IssuerOption) (*Issuer, error) {
	issuer = strings.TrimSpace(issuer)
	audience = strings.TrimSpace(audience)
	switch {
	case key == "":
		return nil, errors.New("auth: signing key is required")
	case len(key) < minKeyLength:
		return nil, fmt.Errorf("auth: signing key must be at least %d bytes", minKeyLength)
	case issuer == "":
		return nil, errors.New("auth: issuer is required")
	case audience == "":
		return nil, errors.New("auth: audience is required")
	}
	i := &Issuer{
		key:       []byte(key),
		issuer:    issuer,
		audience:  audience,
		accessTTL: DefaultAccessTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Issue signs an access credential for the account. The returned expiry is
// exactly the access TTL after the issued-at claim.
func (i *Issuer) Issue(acc *Account) (string, time.Time, error) {
	if acc == nil || strings.TrimSpace(acc.ID) == "" {
		return "", time.Time{}, errors.New("auth: account id is required")
	}
	now := i.now().UTC()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(issuedAt.Time.Add(i.accessTTL))
	claims := Claims{
		Username: acc.Username,
		Email:    acc.Email,
		Roles:    dedupeRoles(acc.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   acc.ID,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt.Time, nil
}

// Parse verifies signature, algorithm, issuer, audience and expiry with no clock skew.
func (i *Issuer) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	claims.Roles = dedupeRoles(claims.Roles)
	return claims, nil
}

// NewRefreshToken returns 64 crypto-random bytes encoded as standard base64.
func NewRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// dedupeRoles trims and removes case-insensitive duplicates, keeping the first spelling.
func dedupeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		key := strings.ToLower(role)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
