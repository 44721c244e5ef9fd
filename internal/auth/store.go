package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the session subsystem.
type Store interface {
	Accounts(ctx context.Context) AccountStore
	Roles(ctx context.Context) RoleStore
	// WithinTx runs fn against a transactional view of the store. Any error
	// returned by fn discards every write made through that view.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// AccountStore manages accounts and their single refresh token.
type AccountStore interface {
	// FindByEmail matches the normalized email and loads assigned roles.
	FindByEmail(ctx context.Context, email string) (*Account, error)
	// FindByRefreshToken matches the token exactly and loads assigned roles.
	FindByRefreshToken(ctx context.Context, token string) (*Account, error)
	// Create inserts the account; ErrConflict when the email is taken.
	Create(ctx context.Context, acc *Account) error
	AssignRole(ctx context.Context, accountID, role string) error
	// SetRefreshToken overwrites whatever token the account holds.
	SetRefreshToken(ctx context.Context, accountID, token string, expiresAt time.Time) error
	// SwapRefreshToken replaces current with next only if current is still
	// stored; ErrNotFound otherwise. An empty next clears the session.
	SwapRefreshToken(ctx context.Context, accountID, current, next string, expiresAt time.Time) error
}

// RoleStore manages the role registry.
type RoleStore interface {
	// Find matches name case-insensitively and returns the stored role;
	// ErrNotFound when absent.
	Find(ctx context.Context, name string) (*Role, error)
	// Create inserts the role; ErrConflict when the name is taken.
	Create(ctx context.Context, role *Role) error
}
