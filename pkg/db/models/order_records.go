package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/enums"
)

// BankDetails is where a refund for a non-gateway payment is sent.
type BankDetails struct {
	AccountHolder string `json:"accountHolder"`
	AccountNumber string `json:"accountNumber"`
	IFSC          string `json:"ifsc"`
	BankName      string `json:"bankName,omitempty"`
}

// ItemError records a per-line compensation failure during cancel.
type ItemError struct {
	SKUID   string `json:"skuId"`
	Message string `json:"message"`
}

type OrderRefund struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	OrderRef    string             `gorm:"column:order_ref;not null"`
	Source      string             `gorm:"column:source;type:text;not null"`
	Status      enums.RefundStatus `gorm:"column:status;type:text;not null"`
	Reason      string             `gorm:"column:reason;not null"`
	Amount      int64              `gorm:"column:amount;not null"`
	BankDetails *BankDetails       `gorm:"column:bank_details;type:jsonb;serializer:json"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderRefund) TableName() string { return "order_refunds" }

func (r *OrderRefund) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

type OrderExchange struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	OrderRef       string               `gorm:"column:order_ref;not null"`
	Status         enums.ExchangeStatus `gorm:"column:status;type:text;not null"`
	IsReturn       bool                 `gorm:"column:is_return;not null;default:false"`
	Reason         string               `gorm:"column:reason;not null"`
	SpecificReason string               `gorm:"column:specific_reason"`
	TargetSKUID    *string              `gorm:"column:target_sku_id"`
	TargetColor    *string              `gorm:"column:target_color"`
	TargetSize     *string              `gorm:"column:target_size"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (OrderExchange) TableName() string { return "order_exchanges" }

func (e *OrderExchange) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

type OrderCancellation struct {
	ID         uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID   `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	OrderRef   string      `gorm:"column:order_ref;not null"`
	Reason     string      `gorm:"column:reason;not null"`
	ItemErrors []ItemError `gorm:"column:item_errors;type:jsonb;serializer:json"`
	CreatedAt  time.Time   `gorm:"column:created_at;autoCreateTime"`
}

func (OrderCancellation) TableName() string { return "order_cancellations" }

func (c *OrderCancellation) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
