package enums

import "fmt"

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated      OutboxEventType = "order_created"
	EventOrderConfirmed    OutboxEventType = "order_confirmed"
	EventOrderFailed       OutboxEventType = "order_failed"
	EventOrderCancelled    OutboxEventType = "order_cancelled"
	EventOrderStateChanged OutboxEventType = "order_state_changed"
	EventExchangeRequested OutboxEventType = "exchange_requested"
	EventReturnRequested   OutboxEventType = "return_requested"
	EventWalletDebited     OutboxEventType = "wallet_debited"
	EventWalletReversed    OutboxEventType = "wallet_reversed"
	EventStockDepleted     OutboxEventType = "stock_depleted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderConfirmed,
	EventOrderFailed,
	EventOrderCancelled,
	EventOrderStateChanged,
	EventExchangeRequested,
	EventReturnRequested,
	EventWalletDebited,
	EventWalletReversed,
	EventStockDepleted,
}

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into a OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
