package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrForbidden       = errors.New("auth: forbidden")
	ErrConflict        = errors.New("auth: conflict")
	ErrNotFound        = errors.New("auth: not found")
	ErrInvalidInput    = errors.New("auth: invalid input")
	ErrRateLimited     = errors.New("auth: too many attempts")
	ErrUnexpected      = errors.New("auth: unexpected failure")
)

// Refined errors keep errors.Is compatibility with their class.
var (
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
	ErrInvalidRefreshToken = fmt.Errorf("%w: invalid or expired refresh token", ErrUnauthenticated)
	ErrInvalidToken        = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	ErrEmailTaken          = fmt.Errorf("%w: user with this email already exists", ErrConflict)
)
