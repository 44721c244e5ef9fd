package maintenance

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu         sync.RWMutex
	businesses table[Business]
	employees  table[Employee]
	offerings  table[Offering]
	requests   table[Request]
}

type table[T any] struct {
	seq  int64
	rows map[int64]T
}

func (t *table[T]) insert(v T) int64 {
	if t.rows == nil {
		t.rows = make(map[int64]T)
	}
	t.seq++
	t.rows[t.seq] = v
	return t.seq
}

func (t *table[T]) replace(id int64, v T) error {
	if _, ok := t.rows[id]; !ok {
		return ErrNotFound
	}
	t.rows[id] = v
	return nil
}

func (t *table[T]) get(id int64) (T, error) {
	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return v, nil
}

func (t *table[T]) remove(id int64) error {
	if _, ok := t.rows[id]; !ok {
		return ErrNotFound
	}
	delete(t.rows, id)
	return nil
}

// ordered returns rows accepted by keep in ascending ID order.
func (t *table[T]) ordered(keep func(T) bool) []T {
	keys := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]T, 0, len(keys))
	for _, id := range keys {
		if v := t.rows[id]; keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// NewInMemory creates an empty catalog.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) CreateBusiness(_ context.Context, b *Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.businesses.insert(*b)
	s.businesses.rows[b.ID] = *b
	return nil
}

func (s *InMemory) GetBusiness(_ context.Context, id int64) (Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.businesses.get(id)
}

func (s *InMemory) ListBusinesses(_ context.Context, activeOnly bool) ([]Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.businesses.ordered(func(b Business) bool { return !activeOnly || b.Active }), nil
}

func (s *InMemory) UpdateBusiness(_ context.Context, b Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.businesses.replace(b.ID, b)
}

func (s *InMemory) DeleteBusiness(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests.rows {
		if r.BusinessID == id {
			return ErrInvalidReference
		}
	}
	return s.businesses.remove(id)
}

func (s *InMemory) CreateEmployee(_ context.Context, e *Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.employees.rows {
		if strings.EqualFold(other.Email, e.Email) {
			return ErrConflict
		}
	}
	e.ID = s.employees.insert(*e)
	s.employees.rows[e.ID] = *e
	return nil
}

func (s *InMemory) GetEmployee(_ context.Context, id int64) (Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.employees.get(id)
}

func (s *InMemory) ListEmployees(_ context.Context, specialization string) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.employees.ordered(func(e Employee) bool {
		return specialization == "" || (e.Active && strings.EqualFold(e.Specialization, specialization))
	}), nil
}

func (s *InMemory) UpdateEmployee(_ context.Context, e Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.employees.rows {
		if id != e.ID && strings.EqualFold(other.Email, e.Email) {
			return ErrConflict
		}
	}
	return s.employees.replace(e.ID, e)
}

func (s *InMemory) DeleteEmployee(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.employees.remove(id); err != nil {
		return err
	}
	for rid, r := range s.requests.rows {
		if r.EmployeeID != nil && *r.EmployeeID == id {
			r.EmployeeID = nil
			s.requests.rows[rid] = r
		}
	}
	return nil
}

func (s *InMemory) CreateOffering(_ context.Context, o *Offering) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.offerings.insert(*o)
	s.offerings.rows[o.ID] = *o
	return nil
}

func (s *InMemory) GetOffering(_ context.Context, id int64) (Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offerings.get(id)
}

func (s *InMemory) ListOfferings(_ context.Context, activeOnly bool) ([]Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offerings.ordered(func(o Offering) bool { return !activeOnly || o.Active }), nil
}

func (s *InMemory) UpdateOffering(_ context.Context, o Offering) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offerings.replace(o.ID, o)
}

func (s *InMemory) DeleteOffering(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests.rows {
		if r.ServiceID == id {
			return ErrInvalidReference
		}
	}
	return s.offerings.remove(id)
}

func (s *InMemory) CreateRequest(_ context.Context, r *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.businesses.rows[r.BusinessID]; !ok {
		return ErrInvalidReference
	}
	if _, ok := s.offerings.rows[r.ServiceID]; !ok {
		return ErrInvalidReference
	}
	r.ID = s.requests.insert(*r)
	s.requests.rows[r.ID] = *r
	return nil
}

func (s *InMemory) GetRequest(_ context.Context, id int64) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests.get(id)
}

func (s *InMemory) ListRequests(_ context.Context, f RequestFilter) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests.ordered(f.matches), nil
}

func (s *InMemory) UpdateRequest(_ context.Context, r Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.EmployeeID != nil {
		if _, ok := s.employees.rows[*r.EmployeeID]; !ok {
			return ErrInvalidReference
		}
	}
	return s.requests.replace(r.ID, r)
}

func (s *InMemory) DeleteRequest(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests.remove(id)
}
