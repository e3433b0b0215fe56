package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/db"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox/payloads"
	"github.com/learningsainttech/nanocart-backend/pkg/pagination"
)

// TransitionRecorder observes committed status changes.
type TransitionRecorder interface {
	Transition(from, to string)
}

// Service covers the order reads and the operator-driven fulfilment steps.
// Payment and cancellation flows live in the saga.
type Service interface {
	Get(ctx context.Context, accountID uuid.UUID, orderRef string) (*OrderDetail, error)
	List(ctx context.Context, accountID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error)
	Advance(ctx context.Context, input AdvanceInput) (*OrderSummary, error)
}

// AdvanceInput moves an order one step along the fulfilment path.
type AdvanceInput struct {
	OrderRef  string
	Kind      EventKind
	ActorID   uuid.UUID
	ActorRole enums.Role
}

type service struct {
	repo    Repository
	tx      db.TxRunner
	outbox  outbox.Emitter
	metrics TransitionRecorder
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, emitter outbox.Emitter, metrics TransitionRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter, metrics: metrics, logg: logg, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, accountID uuid.UUID, orderRef string) (*OrderDetail, error) {
	order, err := s.repo.FindDetail(ctx, orderRef)
	if err != nil {
		return nil, LookupError(err)
	}
	if order.AccountID != accountID {
		// Other accounts' orders are reported as missing.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return detailOf(order), nil
}

func (s *service) List(ctx context.Context, accountID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, accountID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	out := &OrderList{Orders: make([]OrderSummary, 0, len(rows)), NextCursor: next}
	for _, o := range rows {
		out.Orders = append(out.Orders, summaryOf(o))
	}
	return out, nil
}

func (s *service) Advance(ctx context.Context, input AdvanceInput) (*OrderSummary, error) {
	switch input.Kind {
	case EventMarkReady, EventDispatch, EventDeliver:
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is not an operator step", input.Kind)
	}
	if input.ActorRole != enums.RoleOperator {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}

	var summary OrderSummary
	var decision Decision
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByRef(ctx, input.OrderRef)
		if err != nil {
			return LookupError(err)
		}
		decision, err = Transition(SnapshotOf(order), Event{Kind: input.Kind})
		if err != nil {
			return err
		}
		ok, err := repo.CompareAndSetStatus(ctx, order.ID, decision.From, decision.Next, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently; retry")
		}
		order.OrderStatus = decision.Next
		summary = summaryOf(*order)

		for _, cmd := range decision.Commands {
			emit, isEmit := cmd.(EmitEvent)
			if !isEmit {
				continue
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     emit.Type,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.OrderRef,
				Actor:         &outbox.ActorRef{AccountID: input.ActorID.String(), Role: string(input.ActorRole)},
				Data:          EventOf(order, decision.From, ""),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Transition(string(decision.From), string(decision.Next))
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithOrderRef(ctx, input.OrderRef), map[string]any{
		"from": decision.From,
		"to":   decision.Next,
	}), "order advanced")
	return &summary, nil
}

// EventOf builds the outbox payload for an order lifecycle event.
func EventOf(o *models.Order, previous enums.OrderStatus, reason string) payloads.OrderEvent {
	return payloads.OrderEvent{
		OrderRef:         o.OrderRef,
		AccountID:        o.AccountID.String(),
		Status:           o.OrderStatus,
		PreviousStatus:   previous,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		TotalAmount:      o.TotalAmount,
		WalletAmountUsed: o.WalletAmountUsed,
		Reason:           reason,
	}
}

// LookupError maps a repository lookup failure onto the API error taxonomy.
func LookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
