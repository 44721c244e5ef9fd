package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// StatusHook observes request status transitions.
type StatusHook func(ctx context.Context, req Request, from Status)

// Service applies validation and lifecycle rules on top of a Store.
type Service struct {
	store  Store
	now    func() time.Time
	log    *zap.Logger
	onMove StatusHook
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStatusHook registers fn to run after a request changes status.
func WithStatusHook(fn StatusHook) Option {
	return func(s *Service) { s.onMove = fn }
}

// NewService constructs Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) stamp() time.Time { return s.now().UTC() }

// --- businesses ---

func (s *Service) CreateBusiness(ctx context.Context, in BusinessInput) (Business, error) {
	if err := in.validate(); err != nil {
		return Business{}, err
	}
	b := &Business{
		Name:          strings.TrimSpace(in.Name),
		Address:       in.Address,
		City:          in.City,
		State:         in.State,
		ZipCode:       in.ZipCode,
		ContactEmail:  in.ContactEmail,
		ContactPhone:  in.ContactPhone,
		ContactPerson: in.ContactPerson,
		Active:        true,
		CreatedAt:     s.stamp(),
	}
	if err := s.store.CreateBusiness(ctx, b); err != nil {
		return Business{}, err
	}
	return *b, nil
}

func (s *Service) GetBusiness(ctx context.Context, id int64) (Business, error) {
	return s.store.GetBusiness(ctx, id)
}

func (s *Service) ListBusinesses(ctx context.Context, activeOnly bool) ([]Business, error) {
	return s.store.ListBusinesses(ctx, activeOnly)
}

func (s *Service) UpdateBusiness(ctx context.Context, id int64, upd BusinessUpdate) (Business, error) {
	b, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return Business{}, err
	}
	if err := upd.apply(&b); err != nil {
		return Business{}, err
	}
	now := s.stamp()
	b.UpdatedAt = &now
	if err := s.store.UpdateBusiness(ctx, b); err != nil {
		return Business{}, err
	}
	return b, nil
}

func (s *Service) DeleteBusiness(ctx context.Context, id int64) error {
	return s.store.DeleteBusiness(ctx, id)
}

// --- employees ---

func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (Employee, error) {
	if err := in.validate(); err != nil {
		return Employee{}, err
	}
	hire := in.HireDate.UTC()
	if in.HireDate.IsZero() {
		hire = s.stamp()
	}
	e := &Employee{
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Email:          strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:          in.Phone,
		Specialization: in.Specialization,
		HireDate:       hire,
		Active:         true,
		CreatedAt:      s.stamp(),
	}
	if err := s.store.CreateEmployee(ctx, e); err != nil {
		return Employee{}, err
	}
	return *e, nil
}

func (s *Service) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	return s.store.GetEmployee(ctx, id)
}

func (s *Service) ListEmployees(ctx context.Context) ([]Employee, error) {
	return s.store.ListEmployees(ctx, "")
}

// ListEmployeesBySpecialization returns active employees with the specialization.
func (s *Service) ListEmployeesBySpecialization(ctx context.Context, specialization string) ([]Employee, error) {
	specialization = strings.TrimSpace(specialization)
	if specialization == "" {
		return nil, fmt.Errorf("%w: specialization is required", ErrInvalidInput)
	}
	return s.store.ListEmployees(ctx, specialization)
}

func (s *Service) UpdateEmployee(ctx context.Context, id int64, upd EmployeeUpdate) (Employee, error) {
	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	if err := upd.apply(&e); err != nil {
		return Employee{}, err
	}
	now := s.stamp()
	e.UpdatedAt = &now
	if err := s.store.UpdateEmployee(ctx, e); err != nil {
		return Employee{}, err
	}
	return e, nil
}

func (s *Service) DeleteEmployee(ctx context.Context, id int64) error {
	return s.store.DeleteEmployee(ctx, id)
}

// --- catalog services ---

func (s *Service) CreateOffering(ctx context.Context, in OfferingInput) (Offering, error) {
	if err := in.validate(); err != nil {
		return Offering{}, err
	}
	o := &Offering{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		BasePrice:   in.BasePrice,
		Active:      true,
		CreatedAt:   s.stamp(),
	}
	if err := s.store.CreateOffering(ctx, o); err != nil {
		return Offering{}, err
	}
	return *o, nil
}

func (s *Service) GetOffering(ctx context.Context, id int64) (Offering, error) {
	return s.store.GetOffering(ctx, id)
}

func (s *Service) ListOfferings(ctx context.Context, activeOnly bool) ([]Offering, error) {
	return s.store.ListOfferings(ctx, activeOnly)
}

func (s *Service) UpdateOffering(ctx context.Context, id int64, upd OfferingUpdate) (Offering, error) {
	o, err := s.store.GetOffering(ctx, id)
	if err != nil {
		return Offering{}, err
	}
	if err := upd.apply(&o); err != nil {
		return Offering{}, err
	}
	now := s.stamp()
	o.UpdatedAt = &now
	if err := s.store.UpdateOffering(ctx, o); err != nil {
		return Offering{}, err
	}
	return o, nil
}

func (s *Service) DeleteOffering(ctx context.Context, id int64) error {
	return s.store.DeleteOffering(ctx, id)
}

// --- service requests ---

// CreateRequest records a new Pending request. The business is checked before
// the service and the first missing reference is reported; nothing is created
// in that case.
func (s *Service) CreateRequest(ctx context.Context, in RequestInput) (Request, error) {
	if err := in.validate(); err != nil {
		return Request{}, err
	}
	if err := s.requireReference(ctx, "Business", in.BusinessID, s.businessExists); err != nil {
		return Request{}, err
	}
	if err := s.requireReference(ctx, "Service", in.ServiceID, s.offeringExists); err != nil {
		return Request{}, err
	}
	now := s.stamp()
	requested := in.RequestedDate.UTC()
	if in.RequestedDate.IsZero() {
		requested = now
	}
	r := &Request{
		BusinessID:    in.BusinessID,
		ServiceID:     in.ServiceID,
		Status:        StatusPending,
		RequestedDate: requested,
		ScheduledDate: utcPtr(in.ScheduledDate),
		Description:   strings.TrimSpace(in.Description),
		Notes:         in.Notes,
		EstimatedCost: in.EstimatedCost,
		CreatedAt:     now,
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return Request{}, err
	}
	return *r, nil
}

func (s *Service) GetRequest(ctx context.Context, id int64) (Request, error) {
	return s.store.GetRequest(ctx, id)
}

func (s *Service) ListRequests(ctx context.Context) ([]Request, error) {
	return s.store.ListRequests(ctx, RequestFilter{})
}

func (s *Service) ListRequestsByBusiness(ctx context.Context, businessID int64) ([]Request, error) {
	return s.store.ListRequests(ctx, RequestFilter{BusinessID: businessID})
}

func (s *Service) ListRequestsByEmployee(ctx context.Context, employeeID int64) ([]Request, error) {
	return s.store.ListRequests(ctx, RequestFilter{EmployeeID: employeeID})
}

func (s *Service) ListRequestsByStatus(ctx context.Context, status string) ([]Request, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.store.ListRequests(ctx, RequestFilter{Status: st})
}

// UpdateRequest merges upd into the stored request and derives its status.
// A referenced employee must exist, otherwise nothing is changed.
func (s *Service) UpdateRequest(ctx context.Context, id int64, upd RequestUpdate) (Request, error) {
	current, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if upd.EmployeeID != nil {
		if err := s.requireReference(ctx, "Employee", *upd.EmployeeID, s.employeeExists); err != nil {
			return Request{}, err
		}
	}
	next := current
	if err := upd.apply(&next); err != nil {
		return Request{}, err
	}
	now := s.stamp()
	next.UpdatedAt = &now
	if err := s.store.UpdateRequest(ctx, next); err != nil {
		return Request{}, err
	}
	if next.Status != current.Status {
		s.log.Info("service request status changed",
			zap.Int64("request_id", next.ID),
			zap.String("from", string(current.Status)),
			zap.String("to", string(next.Status)))
		if s.onMove != nil {
			s.onMove(ctx, next, current.Status)
		}
	}
	return next, nil
}

func (s *Service) DeleteRequest(ctx context.Context, id int64) error {
	return s.store.DeleteRequest(ctx, id)
}

func (s *Service) requireReference(ctx context.Context, entity string, id int64, exists func(context.Context, int64) error) error {
	err := exists(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return &ReferenceError{Entity: entity, ID: id}
	}
	return err
}

func (s *Service) businessExists(ctx context.Context, id int64) error {
	_, err := s.store.GetBusiness(ctx, id)
	return err
}

func (s *Service) offeringExists(ctx context.Context, id int64) error {
	_, err := s.store.GetOffering(ctx, id)
	return err
}

func (s *Service) employeeExists(ctx context.Context, id int64) error {
	_, err := s.store.GetEmployee(ctx, id)
	return err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
