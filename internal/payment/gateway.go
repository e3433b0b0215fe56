// Package payment adapts the hosted payment gateway: intent creation,
// callback signature checks and status polling.
package payment

import (
	"context"
	"time"
)

// Status is the gateway-side state of a payment attempt.
type Status string

const (
	StatusPending  Status = "pending"
	StatusCaptured Status = "captured"
	StatusFailed   Status = "failed"
)

// Intent is a gateway order the customer pays against.
type Intent struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// State is the settled view of an intent returned by FetchStatus.
type State struct {
	IntentID  string
	PaymentID string
	Amount    int64
	Status    Status
}

// Gateway is the surface the saga depends on.
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency, reference string) (*Intent, error)
	VerifyCallback(intentID, paymentID, signature string) bool
	FetchStatus(ctx context.Context, intentID string) (*State, error)
}
