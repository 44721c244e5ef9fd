package auth

import (
	"strings"
	"time"
)

// DefaultRole is assigned at registration when no role is requested.
const DefaultRole = RoleUser

// Account is the persisted identity of a user. RefreshToken is empty and
// RefreshTokenExpiresAt is zero when no session is live.
type Account struct {
	ID                    string
	Email                 string
	Username              string
	FirstName             string
	LastName              string
	PasswordHash          string
	Active                bool
	Roles                 []string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Profile returns the public projection of the account.
func (a *Account) Profile() Profile {
	roles := make([]string, len(a.Roles))
	copy(roles, a.Roles)
	return Profile{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Username:  a.Username,
		Active:    a.Active,
		Roles:     roles,
	}
}

func (a *Account) clone() *Account {
	cp := *a
	cp.Roles = append([]string(nil), a.Roles...)
	return &cp
}

// Role is a named permission group.
type Role struct {
	Name        string
	Description string
	CreatedAt   time.Time
}

// Profile is the account view returned with every session.
type Profile struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	Username  string   `json:"username"`
	Active    bool     `json:"active"`
	Roles     []string `json:"roles"`
}

// Session pairs an access credential with its refresh credential.
type Session struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
	Profile         Profile   `json:"user"`
}

// Registration carries the fields accepted by Register.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// NormalizeEmail lower-cases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
