package payloads

import "github.com/learningsainttech/nanocart-backend/pkg/enums"

// OrderEvent is the common payload for order lifecycle events.
type OrderEvent struct {
	OrderRef         string              `json:"order_ref"`
	AccountID        string              `json:"account_id"`
	Status           enums.OrderStatus   `json:"status"`
	PreviousStatus   enums.OrderStatus   `json:"previous_status,omitempty"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	TotalAmount      int64               `json:"total_amount"`
	WalletAmountUsed int64               `json:"wallet_amount_used"`
	Reason           string              `json:"reason,omitempty"`
}

// ExchangeEvent announces an exchange or return request.
type ExchangeEvent struct {
	OrderRef    string `json:"order_ref"`
	IsReturn    bool   `json:"is_return"`
	Reason      string `json:"reason"`
	TargetSKUID string `json:"target_sku_id,omitempty"`
}

// WalletEvent announces a debit or its reversal.
type WalletEvent struct {
	WalletID      string `json:"wallet_id"`
	AccountID     string `json:"account_id"`
	OrderRef      string `json:"order_ref"`
	Amount        int64  `json:"amount"`
	TransactionID string `json:"transaction_id"`
	Balance       int64  `json:"balance"`
}

// StockEvent announces a SKU running out.
type StockEvent struct {
	SKUID  string `json:"sku_id"`
	ItemID string `json:"item_id"`
}
