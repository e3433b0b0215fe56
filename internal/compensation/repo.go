package compensation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	"github.com/learningsainttech/nanocart-backend/pkg/pagination"
)

// Repository persists the operator queue.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record appends a queue entry. It satisfies the saga's recorder.
func (r *Repository) Record(ctx context.Context, entry *models.CompensationFailure) error {
	if entry.Status == "" {
		entry.Status = enums.CompensationStatusOpen
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.CompensationFailure, error) {
	var entry models.CompensationFailure
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *Repository) List(ctx context.Context, status *enums.CompensationStatus, params pagination.Params) ([]models.CompensationFailure, error) {
	q := r.db.WithContext(ctx).Model(&models.CompensationFailure{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	q, err := pagination.Apply(q, params)
	if err != nil {
		return nil, err
	}
	var rows []models.CompensationFailure
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// RecordAttempt bumps the attempt counter after a failed operator retry.
func (r *Repository) RecordAttempt(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.db.WithContext(ctx).Model(&models.CompensationFailure{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
		}).Error
}

// MarkResolved closes an open entry. False means it was already resolved.
func (r *Repository) MarkResolved(ctx context.Context, id uuid.UUID, resolvedBy string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.CompensationFailure{}).
		Where("id = ? AND status = ?", id, enums.CompensationStatusOpen).
		Updates(map[string]any{
			"status":      enums.CompensationStatusResolved,
			"resolved_by": resolvedBy,
			"resolved_at": at,
		})
	return res.RowsAffected == 1, res.Error
}
