package models

import "time"

// StockCounter tracks sellable units per SKU. Available never goes negative.
type StockCounter struct {
	SKUID        string    `gorm:"column:sku_id;primaryKey"`
	ItemID       string    `gorm:"column:item_id;not null;index"`
	Color        string    `gorm:"column:color;not null"`
	Size         string    `gorm:"column:size;not null"`
	Available    int       `gorm:"column:available;not null;default:0"`
	IsOutOfStock bool      `gorm:"column:is_out_of_stock;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (StockCounter) TableName() string { return "stock_counters" }
