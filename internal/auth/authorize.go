package auth

import (
	"fmt"
	"strings"
)

const (
	RoleAdmin    = "Admin"
	RoleManager  = "Manager"
	RoleEmployee = "Employee"
	RoleUser     = "User"
)

// Policy names a fixed set of roles allowed to perform an action.
type Policy string

const (
	PolicyAdmin    Policy = "Admin"
	PolicyManager  Policy = "Manager"
	PolicyEmployee Policy = "Employee"
	PolicyUser     Policy = "User"
)

var policyRoles = map[Policy][]string{
	PolicyAdmin:    {RoleAdmin},
	PolicyManager:  {RoleAdmin, RoleManager},
	PolicyEmployee: {RoleAdmin, RoleManager, RoleEmployee},
	PolicyUser:     {RoleAdmin, RoleManager, RoleEmployee, RoleUser},
}

// Allows reports whether any of roles satisfies the policy.
func (p Policy) Allows(roles []string) bool {
	for _, allowed := range policyRoles[p] {
		for _, r := range roles {
			if strings.EqualFold(strings.TrimSpace(r), allowed) {
				return true
			}
		}
	}
	return false
}

// Authorize returns ErrForbidden unless claims satisfy the policy.
func Authorize(claims *Claims, p Policy) error {
	if claims == nil || !p.Allows(claims.Roles) {
		return fmt.Errorf("%w: insufficient role", ErrForbidden)
	}
	return nil
}
