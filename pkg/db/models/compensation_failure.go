package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/enums"
)

// CompensationFailure is an operator-queue entry for a compensating action
// that could not be applied after its retry budget.
type CompensationFailure struct {
	ID         uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrderRef   string                   `gorm:"column:order_ref;not null;index"`
	Kind       enums.CompensationKind   `gorm:"column:kind;type:text;not null"`
	Payload    json.RawMessage          `gorm:"column:payload;type:jsonb;not null"`
	LastError  string                   `gorm:"column:last_error;not null"`
	Attempts   int                      `gorm:"column:attempts;not null;default:0"`
	Status     enums.CompensationStatus `gorm:"column:status;type:text;not null;index"`
	ResolvedAt *time.Time               `gorm:"column:resolved_at"`
	ResolvedBy *string                  `gorm:"column:resolved_by"`
	CreatedAt  time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (CompensationFailure) TableName() string { return "compensation_failures" }

func (c *CompensationFailure) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
