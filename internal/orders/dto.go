package orders

import (
	"time"

	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	"github.com/learningsainttech/nanocart-backend/pkg/money"
)

// ListFilters narrow the account order list.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentMethod *enums.PaymentMethod
}

type LineView struct {
	SKUID     string `json:"skuId"`
	ItemID    string `json:"itemId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

// OrderSummary is one row of the order list.
type OrderSummary struct {
	OrderRef         string              `json:"orderRef"`
	OrderStatus      enums.OrderStatus   `json:"orderStatus"`
	PaymentMethod    enums.PaymentMethod `json:"paymentMethod"`
	PaymentStatus    enums.PaymentStatus `json:"paymentStatus"`
	Currency         string              `json:"currency"`
	TotalAmount      int64               `json:"totalAmount"`
	TotalDisplay     string              `json:"totalDisplay"`
	WalletAmountUsed int64               `json:"walletAmountUsed"`
	TotalItems       int                 `json:"totalItems"`
	CreatedAt        time.Time           `json:"createdAt"`
}

type RefundView struct {
	Source string             `json:"source"`
	Status enums.RefundStatus `json:"status"`
	Amount int64              `json:"amount"`
	Reason string             `json:"reason"`
}

type ExchangeView struct {
	IsReturn    bool                 `json:"isReturn"`
	Status      enums.ExchangeStatus `json:"status"`
	Reason      string               `json:"reason"`
	TargetSKUID *string              `json:"targetSkuId,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// OrderDetail is the full account-facing view of one order.
type OrderDetail struct {
	OrderSummary
	ShippingAddressID string             `json:"shippingAddressId"`
	GatewayOrderID    *string            `json:"gatewayOrderId,omitempty"`
	ExpiresAt         *time.Time         `json:"expiresAt,omitempty"`
	ConfirmedAt       *time.Time         `json:"confirmedAt,omitempty"`
	CancelledAt       *time.Time         `json:"cancelledAt,omitempty"`
	FailedAt          *time.Time         `json:"failedAt,omitempty"`
	FailureReason     *string            `json:"failureReason,omitempty"`
	Lines             []LineView         `json:"lines"`
	Refunds           []RefundView       `json:"refunds"`
	Exchanges         []ExchangeView     `json:"exchanges"`
	ItemErrors        []models.ItemError `json:"itemErrors,omitempty"`
}

// OrderList wraps a page of summaries.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

func summaryOf(o models.Order) OrderSummary {
	items := 0
	for _, li := range o.LineItems {
		items += li.Quantity
	}
	return OrderSummary{
		OrderRef:         o.OrderRef,
		OrderStatus:      o.OrderStatus,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		Currency:         o.Currency,
		TotalAmount:      o.TotalAmount,
		TotalDisplay:     money.Format(o.TotalAmount),
		WalletAmountUsed: o.WalletAmountUsed,
		TotalItems:       items,
		CreatedAt:        o.CreatedAt,
	}
}

func detailOf(o *models.Order) *OrderDetail {
	d := &OrderDetail{
		OrderSummary:      summaryOf(*o),
		ShippingAddressID: o.ShippingAddressID,
		GatewayOrderID:    o.GatewayOrderID,
		ExpiresAt:         o.ExpiresAt,
		ConfirmedAt:       o.ConfirmedAt,
		CancelledAt:       o.CancelledAt,
		FailedAt:          o.FailedAt,
		FailureReason:     o.FailureReason,
		Lines:             make([]LineView, 0, len(o.LineItems)),
		Refunds:           make([]RefundView, 0, len(o.Refunds)),
		Exchanges:         make([]ExchangeView, 0, len(o.Exchanges)),
	}
	for _, li := range o.LineItems {
		d.Lines = append(d.Lines, LineView{SKUID: li.SKUID, ItemID: li.ItemID, Color: li.Color, Size: li.Size, Quantity: li.Quantity, UnitPrice: li.UnitPrice})
	}
	for _, r := range o.Refunds {
		d.Refunds = append(d.Refunds, RefundView{Source: r.Source, Status: r.Status, Amount: r.Amount, Reason: r.Reason})
	}
	for _, e := range o.Exchanges {
		d.Exchanges = append(d.Exchanges, ExchangeView{IsReturn: e.IsReturn, Status: e.Status, Reason: e.Reason, TargetSKUID: e.TargetSKUID, CreatedAt: e.CreatedAt})
	}
	if o.Cancellation != nil {
		d.ItemErrors = o.Cancellation.ItemErrors
	}
	return d
}
