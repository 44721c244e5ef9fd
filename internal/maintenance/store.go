package maintenance

import "context"

// Store persists the maintenance catalog. Create methods assign the ID;
// Update and Delete return ErrNotFound when no row matches.
type Store interface {
	CreateBusiness(ctx context.Context, b *Business) error
	GetBusiness(ctx context.Context, id int64) (Business, error)
	ListBusinesses(ctx context.Context, activeOnly bool) ([]Business, error)
	UpdateBusiness(ctx context.Context, b Business) error
	DeleteBusiness(ctx context.Context, id int64) error

	CreateEmployee(ctx context.Context, e *Employee) error
	GetEmployee(ctx context.Context, id int64) (Employee, error)
	// ListEmployees returns every employee, or active employees with the
	// given specialization when specialization is non-empty.
	ListEmployees(ctx context.Context, specialization string) ([]Employee, error)
	UpdateEmployee(ctx context.Context, e Employee) error
	DeleteEmployee(ctx context.Context, id int64) error

	CreateOffering(ctx context.Context, o *Offering) error
	GetOffering(ctx context.Context, id int64) (Offering, error)
	ListOfferings(ctx context.Context, activeOnly bool) ([]Offering, error)
	UpdateOffering(ctx context.Context, o Offering) error
	DeleteOffering(ctx context.Context, id int64) error

	CreateRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, id int64) (Request, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]Request, error)
	UpdateRequest(ctx context.Context, r Request) error
	DeleteRequest(ctx context.Context, id int64) error
}
