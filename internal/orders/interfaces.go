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

// Repository defines persistence operations for orders and their sub-records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByRef(ctx context.Context, orderRef string) (*models.Order, error)
	FindDetail(ctx context.Context, orderRef string) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	List(ctx context.Context, accountID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Order, error)
	FindExpiredInitiated(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	FindInitiatedSince(ctx context.Context, since time.Time, limit int) ([]models.Order, error)
	CompareAndSetStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	MarkLineReserved(ctx context.Context, lineID uuid.UUID) (bool, error)
	MarkLineReleased(ctx context.Context, lineID uuid.UUID) (bool, error)
	CreateRefund(ctx context.Context, refund *models.OrderRefund) error
	CreateExchange(ctx context.Context, exchange *models.OrderExchange) error
	CreateCancellation(ctx context.Context, cancellation *models.OrderCancellation) error
}
