package enums

import "fmt"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusInitiated          OrderStatus = "initiated"
	OrderStatusConfirmed          OrderStatus = "confirmed"
	OrderStatusReadyForDispatch   OrderStatus = "ready_for_dispatch"
	OrderStatusDispatched         OrderStatus = "dispatched"
	OrderStatusDelivered          OrderStatus = "delivered"
	OrderStatusCancelled          OrderStatus = "cancelled"
	OrderStatusReturned           OrderStatus = "returned"
	OrderStatusPartiallyCancelled OrderStatus = "partially_cancelled"
	OrderStatusFailed             OrderStatus = "failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusInitiated,
	OrderStatusConfirmed,
	OrderStatusReadyForDispatch,
	OrderStatusDispatched,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
	OrderStatusPartiallyCancelled,
	OrderStatusFailed,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into a OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// IsTerminal reports whether no further lifecycle transition is possible.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusCancelled, OrderStatusReturned, OrderStatusFailed:
		return true
	default:
		return false
	}
}
