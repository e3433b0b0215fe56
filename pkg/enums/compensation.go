package enums

import "fmt"

// CompensationStatus is the operator-queue state of a failed compensation.
type CompensationStatus string

const (
	CompensationStatusOpen     CompensationStatus = "open"
	CompensationStatusResolved CompensationStatus = "resolved"
)

var validCompensationStatuses = []CompensationStatus{
	CompensationStatusOpen,
	CompensationStatusResolved,
}

// IsValid reports whether the value is a known CompensationStatus.
func (c CompensationStatus) IsValid() bool {
	for _, candidate := range validCompensationStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCompensationStatus converts raw input into a CompensationStatus.
func ParseCompensationStatus(value string) (CompensationStatus, error) {
	for _, candidate := range validCompensationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid compensation status %q", value)
}
