package enums

import "fmt"

// Role gates which API surface a bearer may call.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
)

var validRoles = []Role{
	RoleCustomer,
	RoleOperator,
}

func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
