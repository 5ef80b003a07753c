package enums

import "fmt"

// Role is the caller role attached to every authenticated request.
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleFranchiseOwner Role = "FRANCHISE_OWNER"
	RoleServiceAgent   Role = "SERVICE_AGENT"
	RoleCustomer       Role = "CUSTOMER"
)

var validRoles = []Role{
	RoleAdmin,
	RoleFranchiseOwner,
	RoleServiceAgent,
	RoleCustomer,
}

// IsValid reports whether the value matches the canonical role enum.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts the raw string to Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
