package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local runs.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	accounts map[string]*Account
	byEmail  map[string]string
	roles    map[string]Role
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		accounts: make(map[string]*Account),
		byEmail:  make(map[string]string),
		roles:    make(map[string]Role),
	}}
}

func (s *memState) clone() *memState {
	cp := &memState{
		accounts: make(map[string]*Account, len(s.accounts)),
		byEmail:  make(map[string]string, len(s.byEmail)),
		roles:    make(map[string]Role, len(s.roles)),
	}
	for id, acc := range s.accounts {
		cp.accounts[id] = acc.clone()
	}
	for k, v := range s.byEmail {
		cp.byEmail[k] = v
	}
	for k, v := range s.roles {
		cp.roles[k] = v
	}
	return cp
}

func (s *MemoryStore) Accounts(context.Context) AccountStore { return memAccounts{s} }
func (s *MemoryStore) Roles(context.Context) RoleStore       { return memRoles{s} }

// WithinTx serializes fn against every other writer and applies its writes
// only when fn succeeds.
func (s *MemoryStore) WithinTx(_ context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &MemoryStore{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Account returns a copy of the stored account by ID.
func (s *MemoryStore) Account(id string) (*Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.state.accounts[id]
	if !ok {
		return nil, false
	}
	return acc.clone(), true
}

// Role returns the stored role by name.
func (s *MemoryStore) Role(name string) (Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.state.roles[strings.ToLower(name)]
	return r, ok
}

// SetActive flips the account active flag.
func (s *MemoryStore) SetActive(id string, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.state.accounts[id]
	if !ok {
		return false
	}
	acc.Active = active
	return true
}

type memAccounts struct{ s *MemoryStore }

func (m memAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	id, ok := m.s.state.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return m.s.state.accounts[id].clone(), nil
}

func (m memAccounts) FindByRefreshToken(_ context.Context, token string) (*Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if token == "" {
		return nil, ErrNotFound
	}
	for _, acc := range m.s.state.accounts {
		if acc.RefreshToken == token {
			return acc.clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m memAccounts) Create(_ context.Context, acc *Account) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := NormalizeEmail(acc.Email)
	if _, ok := m.s.state.byEmail[key]; ok {
		return ErrConflict
	}
	if _, ok := m.s.state.accounts[acc.ID]; ok {
		return ErrConflict
	}
	stored := acc.clone()
	stored.Roles = nil
	m.s.state.accounts[acc.ID] = stored
	m.s.state.byEmail[key] = acc.ID
	return nil
}

func (m memAccounts) AssignRole(_ context.Context, accountID, role string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	acc, ok := m.s.state.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	stored, ok := m.s.state.roles[strings.ToLower(role)]
	if !ok {
		return ErrNotFound
	}
	for _, r := range acc.Roles {
		if strings.EqualFold(r, stored.Name) {
			return nil
		}
	}
	acc.Roles = append(acc.Roles, stored.Name)
	return nil
}

func (m memAccounts) SetRefreshToken(_ context.Context, accountID, token string, expiresAt time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	acc, ok := m.s.state.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	acc.RefreshToken = token
	acc.RefreshTokenExpiresAt = expiresAt
	if token == "" {
		acc.RefreshTokenExpiresAt = time.Time{}
	}
	return nil
}

func (m memAccounts) SwapRefreshToken(_ context.Context, accountID, current, next string, expiresAt time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	acc, ok := m.s.state.accounts[accountID]
	if !ok || current == "" || acc.RefreshToken != current {
		return ErrNotFound
	}
	acc.RefreshToken = next
	acc.RefreshTokenExpiresAt = expiresAt
	if next == "" {
		acc.RefreshTokenExpiresAt = time.Time{}
	}
	return nil
}

type memRoles struct{ s *MemoryStore }

func (m memRoles) Find(_ context.Context, name string) (*Role, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.state.roles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m memRoles) Create(_ context.Context, role *Role) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := strings.ToLower(role.Name)
	if _, ok := m.s.state.roles[key]; ok {
		return ErrConflict
	}
	m.s.state.roles[key] = *role
	return nil
}
