package enums

import "fmt"

// CompensationKind names the compensating action that failed.
type CompensationKind string

const (
	CompensationReleaseStock  CompensationKind = "release_stock"
	CompensationReverseWallet CompensationKind = "reverse_wallet"
	CompensationFailOrder     CompensationKind = "fail_order"
)

var validCompensationKinds = []CompensationKind{
	CompensationReleaseStock,
	CompensationReverseWallet,
	CompensationFailOrder,
}

// String implements fmt.Stringer.
func (c CompensationKind) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CompensationKind.
func (c CompensationKind) IsValid() bool {
	for _, candidate := range validCompensationKinds {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCompensationKind converts raw input into a CompensationKind.
func ParseCompensationKind(value string) (CompensationKind, error) {
	for _, candidate := range validCompensationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid compensation kind %q", value)
}
