package enums

import "fmt"

// AccountKind distinguishes end customers from partner (reseller) accounts.
type AccountKind string

const (
	AccountKindUser    AccountKind = "user"
	AccountKindPartner AccountKind = "partner"
)

var validAccountKinds = []AccountKind{
	AccountKindUser,
	AccountKindPartner,
}

// IsValid reports whether the value is a known AccountKind.
func (a AccountKind) IsValid() bool {
	for _, candidate := range validAccountKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAccountKind converts raw input into a AccountKind.
func ParseAccountKind(value string) (AccountKind, error) {
	for _, candidate := range validAccountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account kind %q", value)
}
