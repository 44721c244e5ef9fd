package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"arabia.app/internal/maintenance"
)

var _ maintenance.Store = (*Store)(nil)

// catalogErr maps constraint violations to maintenance errors.
func catalogErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return maintenance.ErrNotFound
	case isPgCode(err, pgErrUniqueViolation):
		return maintenance.ErrConflict
	case isPgCode(err, pgErrForeignKeyViolation):
		return maintenance.ErrInvalidReference
	}
	return err
}

func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	if s.q == nil {
		return errNoConnection
	}
	res, err := s.q.ExecContext(ctx, `delete from `+table+` where id = $1`, id)
	if err != nil {
		return catalogErr(err)
	}
	return expectOne(res, maintenance.ErrNotFound)
}

// --- businesses ---

const businessColumns = `id, name, address, city, state, zip_code, contact_email, contact_phone,
	contact_person, is_active, created_at, updated_at`

func scanBusiness(row interface{ Scan(...any) error }) (maintenance.Business, error) {
	var b maintenance.Business
	var updated sql.NullTime
	err := row.Scan(&b.ID, &b.Name, &b.Address, &b.City, &b.State, &b.ZipCode, &b.ContactEmail,
		&b.ContactPhone, &b.ContactPerson, &b.Active, &b.CreatedAt, &updated)
	if updated.Valid {
		b.UpdatedAt = &updated.Time
	}
	return b, err
}

func (s *Store) CreateBusiness(ctx context.Context, b *maintenance.Business) error {
	if s.q == nil {
		return errNoConnection
	}
	err := s.q.QueryRowContext(ctx, `
		insert into businesses (name, address, city, state, zip_code, contact_email, contact_phone,
			contact_person, is_active, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning id
	`, b.Name, b.Address, b.City, b.State, b.ZipCode, b.ContactEmail, b.ContactPhone,
		b.ContactPerson, b.Active, b.CreatedAt).Scan(&b.ID)
	return catalogErr(err)
}

func (s *Store) GetBusiness(ctx context.Context, id int64) (maintenance.Business, error) {
	if s.q == nil {
		return maintenance.Business{}, errNoConnection
	}
	b, err := scanBusiness(s.q.QueryRowContext(ctx, `select `+businessColumns+` from businesses where id = $1`, id))
	if err != nil {
		return maintenance.Business{}, catalogErr(err)
	}
	return b, nil
}

func (s *Store) ListBusinesses(ctx context.Context, activeOnly bool) ([]maintenance.Business, error) {
	if s.q == nil {
		return nil, errNoConnection
	}
	rows, err := s.q.QueryContext(ctx, `
		select `+businessColumns+`
		from businesses
		where is_active or not $1
		order by id
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []maintenance.Business{}
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *Store) UpdateBusiness(ctx context.Context, b maintenance.Business) error {
	if s.q == nil {
		return errNoConnection
	}
	res, err := s.q.ExecContext(ctx, `
		update businesses
		set name = $2, address = $3, city = $4, state = $5, zip_code = $6, contact_email = $7,
			contact_phone = $8, contact_person = $9, is_active = $10, updated_at = $11
		where id = $1
	`, b.ID, b.Name, b.Address, b.City, b.State, b.ZipCode, b.ContactEmail, b.ContactPhone,
		b.ContactPerson, b.Active, b.UpdatedAt)
	if err != nil {
		return catalogErr(err)
	}
	return expectOne(res, maintenance.ErrNotFound)
}

func (s *Store) DeleteBusiness(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "businesses", id)
}

// --- employees ---

const employeeColumns = `id, first_name, last_name, email, phone, specialization, hire_date,
	is_active, created_at, updated_at`

func scanEmployee(row interface{ Scan(...any) error }) (maintenance.Employee, error) {
	var e maintenance.Employee
	var updated sql.NullTime
	err := row.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Phone, &e.Specialization,
		&e.HireDate, &e.Active, &e.CreatedAt, &updated)
	if updated.Valid {
		e.UpdatedAt = &updated.Time
	}
	return e, err
}

func (s *Store) CreateEmployee(ctx context.Context, e *maintenance.Employee) error {
	if s.q == nil {
		return errNoConnection
	}
	err := s.q.QueryRowContext(ctx, `
		insert into employees (first_name, last_name, email, phone, specialization, hire_date,
			is_active, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning id
	`, e.FirstName, e.LastName, e.Email, e.Phone, e.Specialization, e.HireDate, e.Active,
		e.CreatedAt).Scan(&e.ID)
	return catalogErr(err)
}

func (s *Store) GetEmployee(ctx context.Context, id int64) (maintenance.Employee, error) {
	if s.q == nil {
		return maintenance.Employee{}, errNoConnection
	}
	e, err := scanEmployee(s.q.QueryRowContext(ctx, `select `+employeeColumns+` from employees where id = $1`, id))
	if err != nil {
		return maintenance.Employee{}, catalogErr(err)
	}
	return e, nil
}

func (s *Store) ListEmployees(ctx context.Context, specialization string) ([]maintenance.Employee, error) {
	if s.q == nil {
		return nil, errNoConnection
	}
	query := `select ` + employeeColumns + ` from employees`
	var args []any
	if specialization != "" {
		query += ` where is_active and lower(specialization) = lower($1)`
		args = append(args, specialization)
	}
	rows, err := s.q.QueryContext(ctx, query+` order by id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []maintenance.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) UpdateEmployee(ctx context.Context, e maintenance.Employee) error {
	if s.q == nil {
		return errNoConnection
	}
	res, err := s.q.ExecContext(ctx, `
		update employees
		set first_name = $2, last_name = $3, email = $4, phone = $5, specialization = $6,
			hire_date = $7, is_active = $8, updated_at = $9
		where id = $1
	`, e.ID, e.FirstName, e.LastName, e.Email, e.Phone, e.Specialization, e.HireDate, e.Active,
		e.UpdatedAt)
	if err != nil {
		return catalogErr(err)
	}
	return expectOne(res, maintenance.ErrNotFound)
}

// DeleteEmployee relies on the foreign key's on delete set null to detach
// the employee from assigned requests.
func (s *Store) DeleteEmployee(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "employees", id)
}

// --- catalog services ---

const offeringColumns = `id, name, description, base_price_cents, is_active, created_at, updated_at`

func scanOffering(row interface{ Scan(...any) error }) (maintenance.Offering, error) {
	var o maintenance.Offering
	var (
		price   int64
		updated sql.NullTime
	)
	err := row.Scan(&o.ID, &o.Name, &o.Description, &price, &o.Active, &o.CreatedAt, &updated)
	o.BasePrice = maintenance.Money(price)
	if updated.Valid {
		o.UpdatedAt = &updated.Time
	}
	return o, err
}

func (s *Store) CreateOffering(ctx context.Context, o *maintenance.Offering) error {
	if s.q == nil {
		return errNoConnection
	}
	err := s.q.QueryRowContext(ctx, `
		insert into services (name, description, base_price_cents, is_active, created_at)
		values ($1, $2, $3, $4, $5)
		returning id
	`, o.Name, o.Description, int64(o.BasePrice), o.Active, o.CreatedAt).Scan(&o.ID)
	return catalogErr(err)
}

func (s *Store) GetOffering(ctx context.Context, id int64) (maintenance.Offering, error) {
	if s.q == nil {
		return maintenance.Offering{}, errNoConnection
	}
	o, err := scanOffering(s.q.QueryRowContext(ctx, `select `+offeringColumns+` from services where id = $1`, id))
	if err != nil {
		return maintenance.Offering{}, catalogErr(err)
	}
	return o, nil
}

func (s *Store) ListOfferings(ctx context.Context, activeOnly bool) ([]maintenance.Offering, error) {
	if s.q == nil {
		return nil, errNoConnection
	}
	rows, err := s.q.QueryContext(ctx, `
		select `+offeringColumns+`
		from services
		where is_active or not $1
		order by id
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []maintenance.Offering{}
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *Store) UpdateOffering(ctx context.Context, o maintenance.Offering) error {
	if s.q == nil {
		return errNoConnection
	}
	res, err := s.q.ExecContext(ctx, `
		update services
		set name = $2, description = $3, base_price_cents = $4, is_active = $5, updated_at = $6
		where id = $1
	`, o.ID, o.Name, o.Description, int64(o.BasePrice), o.Active, o.UpdatedAt)
	if err != nil {
		return catalogErr(err)
	}
	return expectOne(res, maintenance.ErrNotFound)
}

func (s *Store) DeleteOffering(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "services", id)
}

// --- service requests ---

const requestColumns = `id, business_id, service_id, employee_id, status, requested_date,
	scheduled_date, completed_date, description, notes, estimated_cost_cents, actual_cost_cents,
	created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (maintenance.Request, error) {
	var (
		r         maintenance.Request
		employee  sql.NullInt64
		status    string
		scheduled sql.NullTime
		completed sql.NullTime
		notes     sql.NullString
		estimated sql.NullInt64
		actual    sql.NullInt64
		updated   sql.NullTime
	)
	err := row.Scan(&r.ID, &r.BusinessID, &r.ServiceID, &employee, &status, &r.RequestedDate,
		&scheduled, &completed, &r.Description, &notes, &estimated, &actual, &r.CreatedAt, &updated)
	if err != nil {
		return maintenance.Request{}, err
	}
	r.Status = maintenance.Status(status)
	if employee.Valid {
		r.EmployeeID = &employee.Int64
	}
	if scheduled.Valid {
		r.ScheduledDate = &scheduled.Time
	}
	if completed.Valid {
		r.CompletedDate = &completed.Time
	}
	if notes.Valid {
		r.Notes = &notes.String
	}
	if estimated.Valid {
		m := maintenance.Money(estimated.Int64)
		r.EstimatedCost = &m
	}
	if actual.Valid {
		m := maintenance.Money(actual.Int64)
		r.ActualCost = &m
	}
	if updated.Valid {
		r.UpdatedAt = &updated.Time
	}
	return r, nil
}

func nullMoney(m *maintenance.Money) sql.NullInt64 {
	if m == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*m), Valid: true}
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (s *Store) CreateRequest(ctx context.Context, r *maintenance.Request) error {
	if s.q == nil {
		return errNoConnection
	}
	err := s.q.QueryRowContext(ctx, `
		insert into service_requests (business_id, service_id, employee_id, status, requested_date,
			scheduled_date, completed_date, description, notes, estimated_cost_cents, actual_cost_cents,
			created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		returning id
	`, r.BusinessID, r.ServiceID, nullID(r.EmployeeID), string(r.Status), r.RequestedDate,
		r.ScheduledDate, r.CompletedDate, r.Description, nullString(r.Notes),
		nullMoney(r.EstimatedCost), nullMoney(r.ActualCost), r.CreatedAt).Scan(&r.ID)
	return catalogErr(err)
}

func (s *Store) GetRequest(ctx context.Context, id int64) (maintenance.Request, error) {
	if s.q == nil {
		return maintenance.Request{}, errNoConnection
	}
	r, err := scanRequest(s.q.QueryRowContext(ctx, `select `+requestColumns+` from service_requests where id = $1`, id))
	if err != nil {
		return maintenance.Request{}, catalogErr(err)
	}
	return r, nil
}

func (s *Store) ListRequests(ctx context.Context, f maintenance.RequestFilter) ([]maintenance.Request, error) {
	if s.q == nil {
		return nil, errNoConnection
	}
	var (
		clauses []string
		args    []any
	)
	if f.BusinessID != 0 {
		args = append(args, f.BusinessID)
		clauses = append(clauses, "business_id = "+placeholder(args))
	}
	if f.EmployeeID != 0 {
		args = append(args, f.EmployeeID)
		clauses = append(clauses, "employee_id = "+placeholder(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, "status = "+placeholder(args))
	}
	query := `select ` + requestColumns + ` from service_requests`
	if len(clauses) > 0 {
		query += ` where ` + strings.Join(clauses, " and ")
	}
	rows, err := s.q.QueryContext(ctx, query+` order by id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []maintenance.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) UpdateRequest(ctx context.Context, r maintenance.Request) error {
	if s.q == nil {
		return errNoConnection
	}
	res, err := s.q.ExecContext(ctx, `
		update service_requests
		set employee_id = $2, status = $3, scheduled_date = $4, completed_date = $5,
			description = $6, notes = $7, estimated_cost_cents = $8, actual_cost_cents = $9,
			updated_at = $10
		where id = $1
	`, r.ID, nullID(r.EmployeeID), string(r.Status), r.ScheduledDate, r.CompletedDate,
		r.Description, nullString(r.Notes), nullMoney(r.EstimatedCost), nullMoney(r.ActualCost),
		r.UpdatedAt)
	if err != nil {
		return catalogErr(err)
	}
	if err := expectOne(res, maintenance.ErrNotFound); err != nil {
		return fmt.Errorf("update request %d: %w", r.ID, err)
	}
	return nil
}

func (s *Store) DeleteRequest(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "service_requests", id)
}
