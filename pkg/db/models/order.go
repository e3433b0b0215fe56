package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/enums"
)

// Order is the saga's aggregate root. Rows are never deleted.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderRef           string              `gorm:"column:order_ref;not null;uniqueIndex:ux_orders_order_ref"`
	AccountID          uuid.UUID           `gorm:"column:account_id;type:uuid;not null;index:ix_orders_account_created,priority:1"`
	AccountKind        enums.AccountKind   `gorm:"column:account_kind;type:text;not null"`
	ShippingAddressID  string              `gorm:"column:shipping_address_id;not null"`
	Currency           string              `gorm:"column:currency;type:text;not null"`
	TotalAmount        int64               `gorm:"column:total_amount;not null"`
	WalletAmountUsed   int64               `gorm:"column:wallet_amount_used;not null;default:0"`
	IsWalletAmountUsed bool                `gorm:"column:is_wallet_amount_used;not null;default:false"`
	PaymentMethod      enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	OrderStatus        enums.OrderStatus   `gorm:"column:order_status;type:text;not null;index:ix_orders_status_expires,priority:1"`
	GatewayOrderID     *string             `gorm:"column:gateway_order_id;uniqueIndex:ux_orders_gateway_order_id"`
	GatewayPaymentID   *string             `gorm:"column:gateway_payment_id"`
	GatewaySignature   *string             `gorm:"column:gateway_signature"`
	WalletDebited      bool                `gorm:"column:wallet_debited;not null;default:false"`
	ExpiresAt          *time.Time          `gorm:"column:expires_at;index:ix_orders_status_expires,priority:2"`
	ConfirmedAt        *time.Time          `gorm:"column:confirmed_at"`
	CancelledAt        *time.Time          `gorm:"column:cancelled_at"`
	FailedAt           *time.Time          `gorm:"column:failed_at"`
	FailureReason      *string             `gorm:"column:failure_reason"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime;index:ix_orders_account_created,priority:2"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	LineItems    []OrderLineItem    `gorm:"foreignKey:OrderID"`
	Refunds      []OrderRefund      `gorm:"foreignKey:OrderID"`
	Exchanges    []OrderExchange    `gorm:"foreignKey:OrderID"`
	Cancellation *OrderCancellation `gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// AmountToPayOnline is the share of the total settled through the gateway.
func (o Order) AmountToPayOnline() int64 {
	return o.TotalAmount - o.WalletAmountUsed
}

// OrderLineItem is one SKU line. Lines are immutable after creation apart
// from the reservation bookkeeping flags.
type OrderLineItem struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	Position      int       `gorm:"column:position;not null"`
	SKUID         string    `gorm:"column:sku_id;not null"`
	ItemID        string    `gorm:"column:item_id;not null"`
	Color         string    `gorm:"column:color;not null"`
	Size          string    `gorm:"column:size;not null"`
	Quantity      int       `gorm:"column:quantity;not null"`
	UnitPrice     int64     `gorm:"column:unit_price;not null;default:0"`
	StockReserved bool      `gorm:"column:stock_reserved;not null;default:false"`
	StockReleased bool      `gorm:"column:stock_released;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderLineItem) TableName() string { return "order_line_items" }

func (l *OrderLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
