package models

// CatalogVariant is the read model of the catalog service for one SKU.
type CatalogVariant struct {
	SKUID     string `gorm:"column:sku_id;primaryKey"`
	ItemID    string `gorm:"column:item_id;not null;index"`
	Color     string `gorm:"column:color;not null"`
	Size      string `gorm:"column:size;not null"`
	UnitPrice int64  `gorm:"column:unit_price;not null"`
	Active    bool   `gorm:"column:active;not null"`
}

func (CatalogVariant) TableName() string { return "catalog_variants" }
