package maintenance

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a service request.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusAssigned   Status = "Assigned"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled}

// ParseStatus matches s against the fixed status set, ignoring case.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(string(st), s) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

// Money is an amount in cents. It travels in JSON as a decimal number with
// two fractional digits.
type Money int64

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	v, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMoney parses an optionally negative decimal amount of ASCII digits
// with at most two fractional digits.
func ParseMoney(s string) (Money, error) {
	raw := strings.TrimSpace(s)
	body, neg := strings.CutPrefix(raw, "-")
	whole, frac, hasFrac := strings.Cut(body, ".")
	if !isDigits(whole) || (hasFrac && (!isDigits(frac) || len(frac) > 2)) {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	frac += strings.Repeat("0", 2-len(frac))
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > (math.MaxInt64-cents)/100 {
		return 0, fmt.Errorf("amount %q out of range", raw)
	}
	total := units*100 + cents
	if neg {
		total = -total
	}
	return Money(total), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Business is a customer that requests maintenance work.
type Business struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Address       string     `json:"address"`
	City          string     `json:"city"`
	State         string     `json:"state"`
	ZipCode       string     `json:"zipCode"`
	ContactEmail  string     `json:"contactEmail"`
	ContactPhone  string     `json:"contactPhone"`
	ContactPerson string     `json:"contactPerson"`
	Active        bool       `json:"isActive"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// Employee fulfills service requests.
type Employee struct {
	ID             int64      `json:"id"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Specialization string     `json:"specialization"`
	HireDate       time.Time  `json:"hireDate"`
	Active         bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// Offering is a catalog service that businesses can request.
type Offering struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	BasePrice   Money      `json:"basePrice"`
	Active      bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Request is a service request raised by a business.
type Request struct {
	ID            int64      `json:"id"`
	BusinessID    int64      `json:"businessId"`
	ServiceID     int64      `json:"serviceId"`
	EmployeeID    *int64     `json:"employeeId,omitempty"`
	Status        Status     `json:"status"`
	RequestedDate time.Time  `json:"requestedDate"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
	Description   string     `json:"description"`
	Notes         *string    `json:"notes,omitempty"`
	EstimatedCost *Money     `json:"estimatedCost,omitempty"`
	ActualCost    *Money     `json:"actualCost,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// RequestFilter narrows ListRequests. Zero fields match everything.
type RequestFilter struct {
	BusinessID int64
	EmployeeID int64
	Status     Status
}

func (f RequestFilter) matches(r Request) bool {
	if f.BusinessID != 0 && r.BusinessID != f.BusinessID {
		return false
	}
	if f.EmployeeID != 0 && (r.EmployeeID == nil || *r.EmployeeID != f.EmployeeID) {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidReference = errors.New("invalid reference")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
)

// ReferenceError reports a referenced entity that does not exist. It matches
// ErrInvalidReference and its message is safe to return to callers.
type ReferenceError struct {
	Entity string
	ID     int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Entity, e.ID)
}

func (e *ReferenceError) Is(target error) bool { return target == ErrInvalidReference }
