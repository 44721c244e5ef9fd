package maintenance

import (
	"fmt"
	"strings"
	"time"
)

// Update structs carry optional fields; nil leaves the stored value as is.

type BusinessInput struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zipCode"`
	ContactEmail  string `json:"contactEmail"`
	ContactPhone  string `json:"contactPhone"`
	ContactPerson string `json:"contactPerson"`
}

type BusinessUpdate struct {
	Name          *string `json:"name"`
	Address       *string `json:"address"`
	City          *string `json:"city"`
	State         *string `json:"state"`
	ZipCode       *string `json:"zipCode"`
	ContactEmail  *string `json:"contactEmail"`
	ContactPhone  *string `json:"contactPhone"`
	ContactPerson *string `json:"contactPerson"`
	Active        *bool   `json:"isActive"`
}

func (in BusinessInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return nil
}

func (u BusinessUpdate) apply(b *Business) error {
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		b.Name = strings.TrimSpace(*u.Name)
	}
	if u.Address != nil {
		b.Address = *u.Address
	}
	if u.City != nil {
		b.City = *u.City
	}
	if u.State != nil {
		b.State = *u.State
	}
	if u.ZipCode != nil {
		b.ZipCode = *u.ZipCode
	}
	if u.ContactEmail != nil {
		b.ContactEmail = *u.ContactEmail
	}
	if u.ContactPhone != nil {
		b.ContactPhone = *u.ContactPhone
	}
	if u.ContactPerson != nil {
		b.ContactPerson = *u.ContactPerson
	}
	if u.Active != nil {
		b.Active = *u.Active
	}
	return nil
}

type EmployeeInput struct {
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Specialization string    `json:"specialization"`
	HireDate       time.Time `json:"hireDate"`
}

type EmployeeUpdate struct {
	FirstName      *string    `json:"firstName"`
	LastName       *string    `json:"lastName"`
	Email          *string    `json:"email"`
	Phone          *string    `json:"phone"`
	Specialization *string    `json:"specialization"`
	HireDate       *time.Time `json:"hireDate"`
	Active         *bool      `json:"isActive"`
}

func (in EmployeeInput) validate() error {
	switch {
	case strings.TrimSpace(in.FirstName) == "", strings.TrimSpace(in.LastName) == "":
		return fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	case strings.TrimSpace(in.Email) == "":
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return nil
}

func (u EmployeeUpdate) apply(e *Employee) error {
	if u.FirstName != nil {
		e.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		e.LastName = *u.LastName
	}
	if u.Email != nil {
		if strings.TrimSpace(*u.Email) == "" {
			return fmt.Errorf("%w: email must not be empty", ErrInvalidInput)
		}
		e.Email = strings.ToLower(strings.TrimSpace(*u.Email))
	}
	if u.Phone != nil {
		e.Phone = *u.Phone
	}
	if u.Specialization != nil {
		e.Specialization = *u.Specialization
	}
	if u.HireDate != nil {
		e.HireDate = u.HireDate.UTC()
	}
	if u.Active != nil {
		e.Active = *u.Active
	}
	return nil
}

type OfferingInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BasePrice   Money  `json:"basePrice"`
}

type OfferingUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	BasePrice   *Money  `json:"basePrice"`
	Active      *bool   `json:"isActive"`
}

func (in OfferingInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case in.BasePrice < 0:
		return fmt.Errorf("%w: base price must not be negative", ErrInvalidInput)
	}
	return nil
}

func (u OfferingUpdate) apply(o *Offering) error {
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		o.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		o.Description = *u.Description
	}
	if u.BasePrice != nil {
		if *u.BasePrice < 0 {
			return fmt.Errorf("%w: base price must not be negative", ErrInvalidInput)
		}
		o.BasePrice = *u.BasePrice
	}
	if u.Active != nil {
		o.Active = *u.Active
	}
	return nil
}

type RequestInput struct {
	BusinessID    int64      `json:"businessId"`
	ServiceID     int64      `json:"serviceId"`
	RequestedDate time.Time  `json:"requestedDate"`
	ScheduledDate *time.Time `json:"scheduledDate"`
	Description   string     `json:"description"`
	Notes         *string    `json:"notes"`
	EstimatedCost *Money     `json:"estimatedCost"`
}

type RequestUpdate struct {
	EmployeeID    *int64     `json:"employeeId"`
	Status        *Status    `json:"status"`
	ScheduledDate *time.Time `json:"scheduledDate"`
	CompletedDate *time.Time `json:"completedDate"`
	Notes         *string    `json:"notes"`
	EstimatedCost *Money     `json:"estimatedCost"`
	ActualCost    *Money     `json:"actualCost"`
}

func (in RequestInput) validate() error {
	switch {
	case strings.TrimSpace(in.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	case in.EstimatedCost != nil && *in.EstimatedCost < 0:
		return fmt.Errorf("%w: estimated cost must not be negative", ErrInvalidInput)
	}
	return nil
}

// apply copies the provided fields and then derives the status.
func (u RequestUpdate) apply(r *Request) error {
	if u.Status != nil {
		st, err := ParseStatus(string(*u.Status))
		if err != nil {
			return err
		}
		r.Status = st
	}
	if u.EmployeeID != nil {
		id := *u.EmployeeID
		r.EmployeeID = &id
	}
	if u.ScheduledDate != nil {
		t := u.ScheduledDate.UTC()
		r.ScheduledDate = &t
	}
	if u.CompletedDate != nil {
		t := u.CompletedDate.UTC()
		r.CompletedDate = &t
	}
	if u.Notes != nil {
		n := *u.Notes
		r.Notes = &n
	}
	if (u.EstimatedCost != nil && *u.EstimatedCost < 0) || (u.ActualCost != nil && *u.ActualCost < 0) {
		return fmt.Errorf("%w: costs must not be negative", ErrInvalidInput)
	}
	if u.EstimatedCost != nil {
		c := *u.EstimatedCost
		r.EstimatedCost = &c
	}
	if u.ActualCost != nil {
		c := *u.ActualCost
		r.ActualCost = &c
	}
	r.Status = NextStatus(r.Status, u)
	return nil
}

// NextStatus derives the status after an update. current must already
// reflect any explicit status carried by u. A completion date moves any
// non-completed request to Completed; otherwise an employee assignment
// moves a Pending request to Assigned.
func NextStatus(current Status, u RequestUpdate) Status {
	switch {
	case u.CompletedDate != nil && current != StatusCompleted:
		return StatusCompleted
	case u.EmployeeID != nil && current == StatusPending:
		return StatusAssigned
	default:
		return current
	}
}
