package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	"github.com/learningsainttech/nanocart-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func linesByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *repository) FindByRef(ctx context.Context, orderRef string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", linesByPosition).
		Preload("Refunds").
		Preload("Exchanges").
		Where("order_ref = ?", orderRef).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindDetail(ctx context.Context, orderRef string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", linesByPosition).
		Preload("Refunds").
		Preload("Exchanges").
		Preload("Cancellation").
		Where("order_ref = ?", orderRef).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", linesByPosition).
		Preload("Refunds").
		Preload("Exchanges").
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, accountID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{}).Where("account_id = ?", accountID)
	if filters.Status != nil {
		q = q.Where("order_status = ?", *filters.Status)
	}
	if filters.PaymentMethod != nil {
		q = q.Where("payment_method = ?", *filters.PaymentMethod)
	}
	q, err := pagination.Apply(q, params)
	if err != nil {
		return nil, err
	}
	var rows []models.Order
	if err := q.Preload("LineItems", linesByPosition).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindExpiredInitiated(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("order_status = ? AND expires_at IS NOT NULL AND expires_at <= ?", enums.OrderStatusInitiated, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindInitiatedSince(ctx context.Context, since time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("order_status = ? AND gateway_order_id IS NOT NULL AND created_at >= ?", enums.OrderStatusInitiated, since).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CompareAndSetStatus moves the order only if it is still in from. The
// boolean is false when another writer got there first.
func (r *repository) CompareAndSetStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"order_status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND order_status = ?", orderID, from).
		Updates(values)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error
}

func (r *repository) MarkLineReserved(ctx context.Context, lineID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.OrderLineItem{}).
		Where("id = ? AND stock_reserved = ?", lineID, false).
		Update("stock_reserved", true)
	return res.RowsAffected == 1, res.Error
}

// MarkLineReleased flips the release flag once per reservation. Callers only
// touch the counter when this returns true.
func (r *repository) MarkLineReleased(ctx context.Context, lineID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.OrderLineItem{}).
		Where("id = ? AND stock_reserved = ? AND stock_released = ?", lineID, true, false).
		Update("stock_released", true)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) CreateRefund(ctx context.Context, refund *models.OrderRefund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *repository) CreateExchange(ctx context.Context, exchange *models.OrderExchange) error {
	return r.db.WithContext(ctx).Create(exchange).Error
}

func (r *repository) CreateCancellation(ctx context.Context, cancellation *models.OrderCancellation) error {
	return r.db.WithContext(ctx).Create(cancellation).Error
}
