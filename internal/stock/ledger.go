package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox/payloads"
)

var (
	ErrOutOfStock  = errors.New("out of stock")
	ErrSKUNotFound = errors.New("sku not found")
)

// AdjustInput is an admin restock. Exactly one of Delta or Set is provided.
type AdjustInput struct {
	Delta *int
	Set   *int
}

// Ledger owns the per-SKU counters. Every mutation is a single conditional
// UPDATE so concurrent reservations on one SKU serialize in the database.
type Ledger struct {
	db     *gorm.DB
	outbox outbox.Emitter
	now    func() time.Time
}

// NewLedger builds a stock ledger. emitter may be nil, in which case no
// stock_depleted events are queued.
func NewLedger(db *gorm.DB, emitter outbox.Emitter) *Ledger {
	return &Ledger{db: db, outbox: emitter, now: time.Now}
}

// WithTx binds the ledger to an open transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	return &Ledger{db: tx, outbox: l.outbox, now: l.now}
}

func (l *Ledger) Reserve(ctx context.Context, skuID string, qty int) error {
	if err := validate(skuID, qty); err != nil {
		return err
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.StockCounter{}).
			Where("sku_id = ? AND available >= ?", skuID, qty).
			Updates(map[string]any{
				"available":       gorm.Expr("available - ?", qty),
				"is_out_of_stock": gorm.Expr("available - ? <= 0", qty),
				"updated_at":      l.now().UTC(),
			})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
		}
		if res.RowsAffected == 0 {
			return l.missOrShort(tx, skuID, ErrOutOfStock)
		}
		return l.emitIfDepleted(ctx, tx, skuID)
	})
}

// Release returns qty units. It only fails when the SKU does not exist.
func (l *Ledger) Release(ctx context.Context, skuID string, qty int) error {
	if err := validate(skuID, qty); err != nil {
		return err
	}
	res := l.db.WithContext(ctx).Model(&models.StockCounter{}).
		Where("sku_id = ?", skuID).
		Updates(map[string]any{
			"available":       gorm.Expr("available + ?", qty),
			"is_out_of_stock": gorm.Expr("available + ? <= 0", qty),
			"updated_at":      l.now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrSKUNotFound, fmt.Sprintf("sku %s not found", skuID))
	}
	return nil
}

// Check is the read-only availability probe used before an order exists.
func (l *Ledger) Check(ctx context.Context, skuID string, qty int) error {
	if err := validate(skuID, qty); err != nil {
		return err
	}
	counter, err := l.Get(ctx, skuID)
	if err != nil {
		return err
	}
	if counter.Available < qty {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrOutOfStock, fmt.Sprintf("sku %s has %d available", skuID, counter.Available))
	}
	return nil
}

func (l *Ledger) Adjust(ctx context.Context, skuID string, input AdjustInput) (*models.StockCounter, error) {
	if strings.TrimSpace(skuID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku id is required")
	}
	if (input.Delta == nil) == (input.Set == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of delta or set is required")
	}

	var counter *models.StockCounter
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.StockCounter{}).Where("sku_id = ?", skuID)
		var updates map[string]any
		if input.Set != nil {
			if *input.Set < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "set must be >= 0")
			}
			updates = map[string]any{"available": *input.Set, "is_out_of_stock": *input.Set == 0}
		} else {
			q = q.Where("available + ? >= 0", *input.Delta)
			updates = map[string]any{
				"available":       gorm.Expr("available + ?", *input.Delta),
				"is_out_of_stock": gorm.Expr("available + ? <= 0", *input.Delta),
			}
		}
		updates["updated_at"] = l.now().UTC()

		res := q.Updates(updates)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust stock")
		}
		if res.RowsAffected == 0 {
			return l.missOrShort(tx, skuID, ErrOutOfStock)
		}
		loaded, err := (&Ledger{db: tx}).Get(ctx, skuID)
		if err != nil {
			return err
		}
		counter = loaded
		if counter.IsOutOfStock {
			return l.emitIfDepleted(ctx, tx, skuID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counter, nil
}

func (l *Ledger) Get(ctx context.Context, skuID string) (*models.StockCounter, error) {
	var counter models.StockCounter
	err := l.db.WithContext(ctx).Where("sku_id = ?", skuID).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrSKUNotFound, fmt.Sprintf("sku %s not found", skuID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock counter")
	}
	return &counter, nil
}

// Define creates the counter for a new variant. An existing counter keeps its
// quantity so re-defining a variant never resets stock.
func (l *Ledger) Define(ctx context.Context, counter models.StockCounter) error {
	if strings.TrimSpace(counter.SKUID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku id is required")
	}
	if counter.Available < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "available must be >= 0")
	}
	counter.IsOutOfStock = counter.Available == 0
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sku_id"}}, DoNothing: true}).
		Create(&counter).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "define stock counter")
	}
	return nil
}

func (l *Ledger) missOrShort(tx *gorm.DB, skuID string, short error) error {
	var count int64
	if err := tx.Model(&models.StockCounter{}).Where("sku_id = ?", skuID).Count(&count).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup stock counter")
	}
	if count == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrSKUNotFound, fmt.Sprintf("sku %s not found", skuID))
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, short, fmt.Sprintf("sku %s out of stock", skuID))
}

func (l *Ledger) emitIfDepleted(ctx context.Context, tx *gorm.DB, skuID string) error {
	if l.outbox == nil {
		return nil
	}
	var counter models.StockCounter
	if err := tx.Where("sku_id = ?", skuID).First(&counter).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock counter")
	}
	if !counter.IsOutOfStock {
		return nil
	}
	return l.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventStockDepleted,
		AggregateType: enums.AggregateStock,
		AggregateID:   counter.SKUID,
		Actor:         outbox.SystemActor,
		Data:          payloads.StockEvent{SKUID: counter.SKUID, ItemID: counter.ItemID},
	})
}

func validate(skuID string, qty int) error {
	if strings.TrimSpace(skuID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku id is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}
