package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"arabia.app/internal/ids"
)

// LoginThrottle counts failed logins per key. Allow reports whether another
// attempt may proceed.
type LoginThrottle interface {
	Allow(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// Metrics receives session outcomes.
type Metrics interface {
	SessionIssued(op string)
	SessionFailed(op, kind string)
}

// Service is the session manager: it turns credentials into sessions,
// rotates refresh credentials and ends sessions.
type Service struct {
	store      Store
	issuer     *Issuer
	now        func() time.Time
	refreshTTL time.Duration
	log        *zap.Logger
	throttle   LoginThrottle
	metrics    Metrics
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithRefreshTTL configures refresh credential lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithLogger sets the logger used for unexpected failures.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// WithLoginThrottle enables failed-login throttling.
func WithLoginThrottle(t LoginThrottle) ServiceOption {
	return func(s *Service) error {
		s.throttle = t
		return nil
	}
}

// WithMetrics reports session outcomes to m.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) error {
		s.metrics = m
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, issuer *Issuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if issuer == nil {
		return nil, errors.New("auth: issuer is required")
	}
	svc := &Service{
		store:      store,
		issuer:     issuer,
		now:        time.Now,
		refreshTTL: DefaultRefreshTTL,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Issuer returns the access credential issuer.
func (s *Service) Issuer() *Issuer { return s.issuer }

// Login verifies credentials and starts a new session, replacing any previous one.
// Unknown, inactive and wrong-password attempts fail with the same error.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	const op = "login"
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, s.fail(op, ErrInvalidCredentials)
	}
	if !s.allowAttempt(ctx, email) {
		return Session{}, s.fail(op, ErrRateLimited)
	}

	accounts := s.store.Accounts(ctx)
	acc, err := accounts.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		burnPasswordCheck(password)
		s.recordFailure(ctx, email)
		return Session{}, s.fail(op, ErrInvalidCredentials)
	case err != nil:
		return Session{}, s.unexpected(op, err)
	}
	if !acc.Active {
		burnPasswordCheck(password)
		s.recordFailure(ctx, email)
		return Session{}, s.fail(op, ErrInvalidCredentials)
	}
	if err := VerifyPassword(acc.PasswordHash, password); err != nil {
		s.recordFailure(ctx, email)
		return Session{}, s.fail(op, ErrInvalidCredentials)
	}

	session, err := s.mint(acc)
	if err != nil {
		return Session{}, s.unexpected(op, err)
	}
	if err := accounts.SetRefreshToken(ctx, acc.ID, session.RefreshToken, acc.RefreshTokenExpiresAt); err != nil {
		return Session{}, s.unexpected(op, err)
	}
	s.resetAttempts(ctx, email)
	s.issued(op)
	return session, nil
}

// Register creates an active account with one role and starts its first session.
// The role defaults to DefaultRole and is created as "{role} role" when missing.
func (s *Service) Register(ctx context.Context, reg Registration) (Session, error) {
	const op = "register"
	email := NormalizeEmail(reg.Email)
	if email == "" || reg.Password == "" {
		return Session{}, s.fail(op, fmt.Errorf("%w: email and password are required", ErrInvalidInput))
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return Session{}, s.fail(op, fmt.Errorf("%w: email is malformed", ErrInvalidInput))
	}
	role := strings.TrimSpace(reg.Role)
	if role == "" {
		role = DefaultRole
	}
	hash, err := HashPassword(reg.Password)
	if err != nil {
		return Session{}, s.fail(op, fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}

	now := s.now().UTC()
	acc := &Account{
		ID:           ids.New(),
		Email:        email,
		Username:     email,
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var session Session
	err = s.store.WithinTx(ctx, func(tx Store) error {
		accounts := tx.Accounts(ctx)
		if _, err := accounts.FindByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := accounts.Create(ctx, acc); err != nil {
			if errors.Is(err, ErrConflict) {
				return ErrEmailTaken
			}
			return err
		}
		canonical, err := ensureRole(ctx, tx.Roles(ctx), role, now)
		if err != nil {
			return err
		}
		if err := accounts.AssignRole(ctx, acc.ID, canonical); err != nil {
			return err
		}
		acc.Roles = []string{canonical}
		session, err = s.mint(acc)
		if err != nil {
			return err
		}
		return accounts.SetRefreshToken(ctx, acc.ID, session.RefreshToken, acc.RefreshTokenExpiresAt)
	})
	switch {
	case errors.Is(err, ErrConflict):
		return Session{}, s.fail(op, ErrEmailTaken)
	case err != nil:
		return Session{}, s.unexpected(op, err)
	}
	s.issued(op)
	return session, nil
}

// Refresh exchanges a live refresh credential for a new session. The presented
// credential is never valid again; of two concurrent refreshes only one wins.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	const op = "refresh"
	if refreshToken == "" {
		return Session{}, s.fail(op, ErrInvalidRefreshToken)
	}
	accounts := s.store.Accounts(ctx)
	acc, err := accounts.FindByRefreshToken(ctx, refreshToken)
	switch {
	case errors.Is(err, ErrNotFound):
		return Session{}, s.fail(op, ErrInvalidRefreshToken)
	case err != nil:
		return Session{}, s.unexpected(op, err)
	}
	if !acc.RefreshTokenExpiresAt.After(s.now()) {
		return Session{}, s.fail(op, ErrInvalidRefreshToken)
	}

	session, err := s.mint(acc)
	if err != nil {
		return Session{}, s.unexpected(op, err)
	}
	err = accounts.SwapRefreshToken(ctx, acc.ID, refreshToken, session.RefreshToken, acc.RefreshTokenExpiresAt)
	switch {
	case errors.Is(err, ErrNotFound):
		return Session{}, s.fail(op, ErrInvalidRefreshToken)
	case err != nil:
		return Session{}, s.unexpected(op, err)
	}
	s.issued(op)
	return session, nil
}

// Logout clears the session holding refreshToken. It reports false without
// error when no account holds the token.
func (s *Service) Logout(ctx context.Context, refreshToken string) (bool, error) {
	const op = "logout"
	if refreshToken == "" {
		return false, nil
	}
	accounts := s.store.Accounts(ctx)
	acc, err := accounts.FindByRefreshToken(ctx, refreshToken)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, s.unexpected(op, err)
	}
	err = accounts.SwapRefreshToken(ctx, acc.ID, refreshToken, "", time.Time{})
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, s.unexpected(op, err)
	}
	return true, nil
}

// mint issues both credentials for acc and records the refresh expiry on it.
func (s *Service) mint(acc *Account) (Session, error) {
	access, accessExp, err := s.issuer.Issue(acc)
	if err != nil {
		return Session{}, err
	}
	refresh, err := NewRefreshToken()
	if err != nil {
		return Session{}, err
	}
	acc.RefreshToken = refresh
	acc.RefreshTokenExpiresAt = s.now().UTC().Add(s.refreshTTL)
	return Session{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: accessExp,
		Profile:         acc.Profile(),
	}, nil
}

// ensureRole returns the stored spelling of name, creating the role first
// when it does not exist yet.
func ensureRole(ctx context.Context, roles RoleStore, name string, now time.Time) (string, error) {
	existing, err := roles.Find(ctx, name)
	switch {
	case err == nil:
		return existing.Name, nil
	case !errors.Is(err, ErrNotFound):
		return "", err
	}
	err = roles.Create(ctx, &Role{Name: name, Description: name + " role", CreatedAt: now})
	if errors.Is(err, ErrConflict) {
		existing, err = roles.Find(ctx, name)
		if err != nil {
			return "", err
		}
		return existing.Name, nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

func (s *Service) allowAttempt(ctx context.Context, email string) bool {
	if s.throttle == nil {
		return true
	}
	ok, err := s.throttle.Allow(ctx, email)
	if err != nil {
		s.log.Warn("login throttle unavailable", zap.Error(err))
		return true
	}
	return ok
}

func (s *Service) recordFailure(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Fail(ctx, email); err != nil {
		s.log.Warn("login throttle unavailable", zap.Error(err))
	}
}

func (s *Service) resetAttempts(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Reset(ctx, email); err != nil {
		s.log.Warn("login throttle unavailable", zap.Error(err))
	}
}

func (s *Service) issued(op string) {
	if s.metrics != nil {
		s.metrics.SessionIssued(op)
	}
}

func (s *Service) fail(op string, err error) error {
	if s.metrics != nil {
		s.metrics.SessionFailed(op, errorKind(err))
	}
	return err
}

// unexpected hides storage and crypto failures behind ErrUnexpected while
// keeping the cause for logs.
func (s *Service) unexpected(op string, err error) error {
	s.log.Error("session operation failed", zap.String("op", op), zap.Error(err))
	return s.fail(op, fmt.Errorf("%w: %w", ErrUnexpected, err))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnexpected):
		return "unexpected"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "other"
	}
}
