// Package catalog is the read side of the catalog service: variant metadata
// and price per SKU.
package catalog

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
)

// Key identifies a variant the way a cart line refers to it.
type Key struct {
	ItemID string
	Color  string
	Size   string
	SKUID  string
}

// Lookup resolves cart lines to active variants.
type Lookup interface {
	Variant(ctx context.Context, key Key) (*models.CatalogVariant, error)
}

// StockDefiner creates the stock counter for a newly defined variant.
type StockDefiner interface {
	Define(ctx context.Context, counter models.StockCounter) error
}

type Store struct {
	db    *gorm.DB
	stock StockDefiner
}

func NewStore(db *gorm.DB, stock StockDefiner) *Store {
	return &Store{db: db, stock: stock}
}

// Variant returns the variant when it exists, is active, and its item, color
// and size match the SKU. A mismatch is reported as a validation error since
// the cart line is internally inconsistent.
func (s *Store) Variant(ctx context.Context, key Key) (*models.CatalogVariant, error) {
	if strings.TrimSpace(key.SKUID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku id is required")
	}
	var v models.CatalogVariant
	if err := s.db.WithContext(ctx).Where("sku_id = ?", key.SKUID).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "sku %s not found", key.SKUID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog variant")
	}
	if !v.Active {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "sku %s is not sellable", key.SKUID)
	}
	if v.ItemID != key.ItemID || !strings.EqualFold(v.Color, key.Color) || !strings.EqualFold(v.Size, key.Size) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "sku %s does not match item %s %s/%s", key.SKUID, key.ItemID, key.Color, key.Size)
	}
	return &v, nil
}

// DefineInput registers or reprices a variant. InitialStock only applies
// when the SKU has no counter yet.
type DefineInput struct {
	SKUID        string `json:"skuId" validate:"required"`
	ItemID       string `json:"itemId" validate:"required"`
	Color        string `json:"color" validate:"required"`
	Size         string `json:"size" validate:"required"`
	UnitPrice    int64  `json:"unitPrice" validate:"gt=0"`
	Active       bool   `json:"active"`
	InitialStock int    `json:"initialStock" validate:"gte=0"`
}

func (s *Store) Define(ctx context.Context, input DefineInput) (*models.CatalogVariant, error) {
	if input.UnitPrice <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be positive")
	}
	v := models.CatalogVariant{
		SKUID:     input.SKUID,
		ItemID:    input.ItemID,
		Color:     input.Color,
		Size:      input.Size,
		UnitPrice: input.UnitPrice,
		Active:    input.Active,
	}
	if err := s.db.WithContext(ctx).Save(&v).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save catalog variant")
	}
	if s.stock != nil {
		err := s.stock.Define(ctx, models.StockCounter{
			SKUID:     v.SKUID,
			ItemID:    v.ItemID,
			Color:     v.Color,
			Size:      v.Size,
			Available: input.InitialStock,
		})
		if err != nil {
			return nil, err
		}
	}
	return &v, nil
}
