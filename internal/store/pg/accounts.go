package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"arabia.app/internal/auth"
)

var _ auth.Store = (*Store)(nil)

const accountColumns = `id, email, username, first_name, last_name, password_hash, active,
	coalesce(refresh_token, ''), refresh_token_expires_at, created_at, updated_at`

func (s *Store) Accounts(context.Context) auth.AccountStore { return accountRepo{s} }

func (s *Store) Roles(context.Context) auth.RoleStore { return roleRepo{s} }

// WithinTx runs fn in one SQL transaction; a non-nil error rolls it back.
func (s *Store) WithinTx(ctx context.Context, fn func(auth.Store) error) error {
	return s.inTx(ctx, func(tx *Store) error { return fn(tx) })
}

type accountRepo struct{ s *Store }

func (r accountRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return r.findOne(ctx, `select `+accountColumns+` from accounts where lower(email) = lower($1)`, email)
}

func (r accountRepo) FindByRefreshToken(ctx context.Context, token string) (*auth.Account, error) {
	if token == "" {
		return nil, auth.ErrNotFound
	}
	return r.findOne(ctx, `select `+accountColumns+` from accounts where refresh_token = $1`, token)
}

func (r accountRepo) findOne(ctx context.Context, query string, arg any) (*auth.Account, error) {
	if r.s.q == nil {
		return nil, errNoConnection
	}
	var (
		acc     auth.Account
		expires sql.NullTime
	)
	err := r.s.q.QueryRowContext(ctx, query, arg).Scan(
		&acc.ID, &acc.Email, &acc.Username, &acc.FirstName, &acc.LastName, &acc.PasswordHash,
		&acc.Active, &acc.RefreshToken, &expires, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		acc.RefreshTokenExpiresAt = expires.Time
	}
	roles, err := r.roles(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	acc.Roles = roles
	return &acc, nil
}

func (r accountRepo) roles(ctx context.Context, accountID string) ([]string, error) {
	rows, err := r.s.q.QueryContext(ctx, `
		select role_name
		from account_roles
		where account_id = $1
		order by created_at, role_name
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r accountRepo) Create(ctx context.Context, acc *auth.Account) error {
	if r.s.q == nil {
		return errNoConnection
	}
	_, err := r.s.q.ExecContext(ctx, `
		insert into accounts (id, email, username, first_name, last_name, password_hash, active, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, acc.ID, acc.Email, acc.Username, acc.FirstName, acc.LastName, acc.PasswordHash, acc.Active,
		acc.CreatedAt, acc.UpdatedAt)
	if isPgCode(err, pgErrUniqueViolation) {
		return auth.ErrConflict
	}
	return err
}

func (r accountRepo) AssignRole(ctx context.Context, accountID, role string) error {
	if r.s.q == nil {
		return errNoConnection
	}
	res, err := r.s.q.ExecContext(ctx, `
		insert into account_roles (account_id, role_name)
		select $1, name from roles where lower(name) = lower($2)
		on conflict (account_id, role_name) do nothing
	`, accountID, role)
	if isPgCode(err, pgErrForeignKeyViolation) {
		return auth.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := expectOne(res, auth.ErrNotFound); err == nil {
		return nil
	}
	// Nothing inserted: either already assigned or the role is missing.
	_, err = roleRepo(r).Find(ctx, role)
	return err
}

func (r accountRepo) SetRefreshToken(ctx context.Context, accountID, token string, expiresAt time.Time) error {
	if r.s.q == nil {
		return errNoConnection
	}
	res, err := r.s.q.ExecContext(ctx, `
		update accounts
		set refresh_token = $2, refresh_token_expires_at = $3, updated_at = now()
		where id = $1
	`, accountID, nullIfEmpty(token), nullTime(expiresAt))
	if err != nil {
		return err
	}
	return expectOne(res, auth.ErrNotFound)
}

func (r accountRepo) SwapRefreshToken(ctx context.Context, accountID, current, next string, expiresAt time.Time) error {
	if r.s.q == nil {
		return errNoConnection
	}
	if current == "" {
		return auth.ErrNotFound
	}
	if next == "" {
		expiresAt = time.Time{}
	}
	res, err := r.s.q.ExecContext(ctx, `
		update accounts
		set refresh_token = $3, refresh_token_expires_at = $4, updated_at = now()
		where id = $1 and refresh_token = $2
	`, accountID, current, nullIfEmpty(next), nullTime(expiresAt))
	if err != nil {
		return err
	}
	return expectOne(res, auth.ErrNotFound)
}

type roleRepo struct{ s *Store }

func (r roleRepo) Find(ctx context.Context, name string) (*auth.Role, error) {
	if r.s.q == nil {
		return nil, errNoConnection
	}
	var role auth.Role
	err := r.s.q.QueryRowContext(ctx,
		`select name, description, created_at from roles where lower(name) = lower($1)`,
		strings.TrimSpace(name)).Scan(&role.Name, &role.Description, &role.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Create never aborts an enclosing transaction on a duplicate name.
func (r roleRepo) Create(ctx context.Context, role *auth.Role) error {
	if r.s.q == nil {
		return errNoConnection
	}
	created := role.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := r.s.q.ExecContext(ctx, `
		insert into roles (name, description, created_at)
		values ($1, $2, $3)
		on conflict do nothing
	`, role.Name, role.Description, created)
	if err != nil {
		return err
	}
	return expectOne(res, auth.ErrConflict)
}
