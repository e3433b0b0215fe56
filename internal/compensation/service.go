// Package compensation is the operator queue for compensating actions the
// saga could not apply within its retry budget.
package compensation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/pagination"
	"github.com/learningsainttech/nanocart-backend/pkg/types"
)

// Replayer re-executes a queued action.
type Replayer interface {
	Replay(ctx context.Context, kind enums.CompensationKind, payload json.RawMessage) error
}

type Service struct {
	repo     *Repository
	replayer Replayer
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo *Repository, replayer Replayer, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("compensation repository required")
	}
	if replayer == nil {
		return nil, fmt.Errorf("replayer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, replayer: replayer, logg: logg, now: time.Now}, nil
}

func (s *Service) List(ctx context.Context, status *enums.CompensationStatus, params pagination.Params) (*types.Page[models.CompensationFailure], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, status, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list compensations")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(c models.CompensationFailure) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return &types.Page[models.CompensationFailure]{Items: rows, NextCursor: next}, nil
}

// Retry replays the entry. Success resolves it; failure bumps its attempt
// count and comes back as a dependency error.
func (s *Service) Retry(ctx context.Context, id uuid.UUID, operator string) (*models.CompensationFailure, error) {
	entry, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(s.logg.WithOrderRef(ctx, entry.OrderRef), map[string]any{
		"compensation_id": entry.ID.String(),
		"compensation":    entry.Kind,
	})
	if err := s.replayer.Replay(ctx, entry.Kind, entry.Payload); err != nil {
		if recErr := s.repo.RecordAttempt(ctx, id, err.Error()); recErr != nil {
			s.logg.Error(ctx, "record compensation attempt", recErr)
		}
		s.logg.Warn(ctx, "compensation retry failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compensation retry failed")
	}
	if _, err := s.repo.MarkResolved(ctx, id, operator, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve compensation")
	}
	s.logg.Info(ctx, "compensation replayed")
	return s.reload(ctx, id)
}

// Resolve closes an entry an operator handled by hand.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, operator string) (*models.CompensationFailure, error) {
	if _, err := s.open(ctx, id); err != nil {
		return nil, err
	}
	ok, err := s.repo.MarkResolved(ctx, id, operator, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve compensation")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "compensation already resolved")
	}
	return s.reload(ctx, id)
}

func (s *Service) open(ctx context.Context, id uuid.UUID) (*models.CompensationFailure, error) {
	entry, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status != enums.CompensationStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "compensation already resolved")
	}
	return entry, nil
}

func (s *Service) reload(ctx context.Context, id uuid.UUID) (*models.CompensationFailure, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "compensation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load compensation")
	}
	return entry, nil
}
