package saga

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/internal/catalog"
	"github.com/learningsainttech/nanocart-backend/internal/orders"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
)

// Actor is the caller behind a customer or operator request. Customers may
// only touch their own orders.
type Actor struct {
	AccountID uuid.UUID
	Role      enums.Role
}

func (a Actor) owns(o *models.Order) bool {
	return a.Role == enums.RoleOperator || o.AccountID == a.AccountID
}

type CancelInput struct {
	Actor        Actor               `json:"-"`
	OrderRefs    []string            `json:"orderRef" validate:"required,min=1,dive,required"`
	Reason       string              `json:"reason" validate:"required"`
	BankDetails  *models.BankDetails `json:"bankDetails" validate:"required"`
	AllowPartial bool                `json:"allowPartial"`
}

const (
	OutcomeError             = "error"
	OutcomeExchangeRequested = "exchange_requested"
	OutcomeReturnRequested   = "return_requested"
)

// CancelOutcome reports one order of a cancel request. Outcome is the final
// order status, or "error" with a message.
type CancelOutcome struct {
	OrderRef   string             `json:"orderRef"`
	Outcome    string             `json:"outcome"`
	Message    string             `json:"message,omitempty"`
	ItemErrors []models.ItemError `json:"itemErrors,omitempty"`
}

// Cancel handles each order independently: one order's failure never blocks
// another's. Stock that cannot be restored is reported per line and queued;
// the order still resolves.
func (c *Coordinator) Cancel(ctx context.Context, input CancelInput) []CancelOutcome {
	out := make([]CancelOutcome, 0, len(input.OrderRefs))
	for _, ref := range input.OrderRefs {
		out = append(out, c.cancelOne(c.logg.WithOrderRef(ctx, ref), input, strings.TrimSpace(ref)))
	}
	return out
}

func (c *Coordinator) cancelOne(ctx context.Context, input CancelInput, ref string) CancelOutcome {
	var order *models.Order
	var decision orders.Decision
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.orders.WithTx(tx)
		o, err := repo.FindByRef(ctx, ref)
		if err != nil {
			return orders.LookupError(err)
		}
		if !input.Actor.owns(o) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		decision, err = orders.Transition(orders.SnapshotOf(o), orders.Event{
			Kind:        orders.EventCancel,
			Reason:      input.Reason,
			BankDetails: input.BankDetails,
		})
		if err != nil {
			return err
		}
		now := c.now().UTC()
		if err := c.commitStatus(ctx, repo, o, decision, map[string]any{"cancelled_at": now}); err != nil {
			return err
		}
		o.CancelledAt = &now
		if err := c.openRecords(ctx, repo, o, decision); err != nil {
			return err
		}
		order = o
		return c.emitDecision(ctx, tx, o, decision, input.Reason)
	})
	if err != nil {
		return CancelOutcome{OrderRef: ref, Outcome: OutcomeError, Message: publicMessage(err)}
	}
	c.metrics.Transition(string(decision.From), string(decision.Next))

	released, itemErrors := c.releaseAll(ctx, order, decision)
	if _, ok := commandOf[orders.ReverseWallet](decision); ok {
		p := reversePayload{OrderRef: order.OrderRef, AccountID: order.AccountID}
		_ = c.compensate(ctx, order.OrderRef, enums.CompensationReverseWallet, p, func(ctx context.Context) error {
			return c.reverseWallet(ctx, p)
		})
	}

	final := orders.SettleCancel(decision, released, len(itemErrors), input.AllowPartial)
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.orders.WithTx(tx)
		if final != order.OrderStatus {
			if err := c.commitStatus(ctx, repo, order, orders.Decision{From: order.OrderStatus, Next: final}, nil); err != nil {
				return err
			}
		}
		return repo.CreateCancellation(ctx, &models.OrderCancellation{
			OrderID:    order.ID,
			OrderRef:   order.OrderRef,
			Reason:     input.Reason,
			ItemErrors: itemErrors,
		})
	})
	if err != nil {
		// The order is cancelled already; only the audit row is missing.
		c.logg.Error(ctx, "record cancellation", err)
	}
	if len(itemErrors) > 0 {
		c.logg.Warn(c.logg.WithField(ctx, "item_errors", len(itemErrors)), "order cancelled with unreleased stock")
	}
	return CancelOutcome{OrderRef: ref, Outcome: string(order.OrderStatus), ItemErrors: itemErrors}
}

type ExchangeInput struct {
	Actor          Actor  `json:"-"`
	OrderRef       string `json:"-"`
	Reason         string `json:"reason" validate:"required"`
	SpecificReason string `json:"specificReason"`
	NewSKUID       string `json:"newSkuId" validate:"required"`
	Color          string `json:"color" validate:"required"`
	Size           string `json:"size" validate:"required"`
}

type ReturnInput struct {
	Actor          Actor               `json:"-"`
	OrderRef       string              `json:"-"`
	Reason         string              `json:"reason" validate:"required"`
	SpecificReason string              `json:"specificReason"`
	BankDetails    *models.BankDetails `json:"bankDetails"`
}

type RequestOutcome struct {
	OrderRef    string            `json:"orderRef"`
	Outcome     string            `json:"outcome"`
	OrderStatus enums.OrderStatus `json:"orderStatus"`
}

// RequestExchange opens a pending exchange towards another variant of the
// same item. The target must currently have at least one unit.
func (c *Coordinator) RequestExchange(ctx context.Context, input ExchangeInput) (*RequestOutcome, error) {
	ctx = c.logg.WithOrderRef(ctx, input.OrderRef)
	current, err := c.orders.FindByRef(ctx, input.OrderRef)
	if err != nil {
		return nil, orders.LookupError(err)
	}
	if !input.Actor.owns(current) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if len(current.LineItems) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no line items")
	}
	target := &orders.ExchangeTarget{SKUID: input.NewSKUID, Color: input.Color, Size: input.Size}
	if _, err := c.catalog.Variant(ctx, catalog.Key{
		ItemID: current.LineItems[0].ItemID,
		Color:  input.Color,
		Size:   input.Size,
		SKUID:  input.NewSKUID,
	}); err != nil {
		return nil, err
	}
	switch err := c.stock(nil).Check(ctx, input.NewSKUID, 1); {
	case err == nil:
		target.Available = 1
	case !pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		return nil, err
	}

	event := orders.Event{Kind: orders.EventExchange, Reason: input.Reason, SpecificReason: input.SpecificReason, Target: target}
	status, err := c.request(ctx, input.Actor, input.OrderRef, event)
	if err != nil {
		return nil, err
	}
	return &RequestOutcome{OrderRef: input.OrderRef, Outcome: OutcomeExchangeRequested, OrderStatus: status}, nil
}

// RequestReturn opens a return. The wallet share is reversed and whatever
// was collected outside the wallet is opened as a refund. Delivered orders
// move to returned; confirmed ones keep their status.
func (c *Coordinator) RequestReturn(ctx context.Context, input ReturnInput) (*RequestOutcome, error) {
	ctx = c.logg.WithOrderRef(ctx, input.OrderRef)
	event := orders.Event{Kind: orders.EventReturn, Reason: input.Reason, SpecificReason: input.SpecificReason, BankDetails: input.BankDetails}
	status, err := c.request(ctx, input.Actor, input.OrderRef, event)
	if err != nil {
		return nil, err
	}
	return &RequestOutcome{OrderRef: input.OrderRef, Outcome: OutcomeReturnRequested, OrderStatus: status}, nil
}

// request records an exchange or return. A wallet share the decision hands
// back is reversed after the commit, as a compensation.
func (c *Coordinator) request(ctx context.Context, actor Actor, orderRef string, event orders.Event) (enums.OrderStatus, error) {
	var decision orders.Decision
	var status enums.OrderStatus
	var accountID uuid.UUID
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.orders.WithTx(tx)
		o, err := repo.FindByRef(ctx, orderRef)
		if err != nil {
			return orders.LookupError(err)
		}
		if !actor.owns(o) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		decision, err = orders.Transition(orders.SnapshotOf(o), event)
		if err != nil {
			return err
		}
		if err := c.commitStatus(ctx, repo, o, decision, nil); err != nil {
			return err
		}
		if err := c.openRecords(ctx, repo, o, decision); err != nil {
			return err
		}
		status = o.OrderStatus
		accountID = o.AccountID
		return c.emitDecision(ctx, tx, o, decision, event.Reason)
	})
	if err != nil {
		return "", err
	}
	if decision.From != decision.Next {
		c.metrics.Transition(string(decision.From), string(decision.Next))
	}
	if _, ok := commandOf[orders.ReverseWallet](decision); ok {
		p := reversePayload{OrderRef: orderRef, AccountID: accountID}
		_ = c.compensate(ctx, orderRef, enums.CompensationReverseWallet, p, func(ctx context.Context) error {
			return c.reverseWallet(ctx, p)
		})
	}
	c.logg.Info(c.logg.WithField(ctx, "event", event.Kind), "order request recorded")
	return status, nil
}
