package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/internal/orders"
	"github.com/learningsainttech/nanocart-backend/internal/wallet"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox/payloads"
)

type releasePayload struct {
	OrderRef string    `json:"orderRef"`
	LineID   uuid.UUID `json:"lineId"`
	SKUID    string    `json:"skuId"`
	Quantity int       `json:"quantity"`
}

type reversePayload struct {
	OrderRef  string    `json:"orderRef"`
	AccountID uuid.UUID `json:"accountId"`
}

type failPayload struct {
	OrderRef string           `json:"orderRef"`
	Event    orders.EventKind `json:"event"`
	Reason   string           `json:"reason"`
}

// fail drives an initiated order to failed and then releases its stock.
// The status change commits before any stock moves so a concurrent
// confirmation can never see its reservation disappear.
func (c *Coordinator) fail(ctx context.Context, orderRef string, event orders.Event) (*models.Order, error) {
	var order *models.Order
	var decision orders.Decision
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.orders.WithTx(tx)
		o, err := repo.FindByRef(ctx, orderRef)
		if err != nil {
			return orders.LookupError(err)
		}
		decision, err = orders.Transition(orders.SnapshotOf(o), event)
		if err != nil {
			return err
		}
		now := c.now().UTC()
		updates := map[string]any{"failed_at": now}
		if event.Reason != "" {
			updates["failure_reason"] = event.Reason
		}
		if ps, ok := commandOf[orders.SetPaymentStatus](decision); ok {
			updates["payment_status"] = ps.Status
			o.PaymentStatus = ps.Status
		}
		if err := c.commitStatus(ctx, repo, o, decision, updates); err != nil {
			return err
		}
		o.FailedAt = &now
		if err := c.openRecords(ctx, repo, o, decision); err != nil {
			return err
		}
		order = o
		return c.emitDecision(ctx, tx, o, decision, event.Reason)
	})
	if err != nil {
		return nil, err
	}
	c.metrics.Transition(string(decision.From), string(decision.Next))
	c.logg.Warn(c.logg.WithField(ctx, "reason", event.Reason), "order failed")
	c.releaseAll(ctx, order, decision)
	return order, nil
}

// abort is fail for paths where the caller already has an error to report.
// A failure to fail is itself queued.
func (c *Coordinator) abort(ctx context.Context, orderRef string, kind orders.EventKind, reason string) {
	p := failPayload{OrderRef: orderRef, Event: kind, Reason: reason}
	_ = c.compensate(ctx, orderRef, enums.CompensationFailOrder, p, func(ctx context.Context) error {
		return c.failOnce(ctx, p)
	})
}

func (c *Coordinator) failOnce(ctx context.Context, p failPayload) error {
	_, err := c.fail(ctx, p.OrderRef, orders.Event{Kind: p.Event, Reason: p.Reason})
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		o, findErr := c.orders.FindByRef(ctx, p.OrderRef)
		if findErr == nil && o.OrderStatus == enums.OrderStatusFailed {
			return nil
		}
	}
	return err
}

// commitStatus persists decision.Next with a compare-and-swap on the
// current status. Decisions that keep the status skip the write.
func (c *Coordinator) commitStatus(ctx context.Context, repo orders.Repository, o *models.Order, d orders.Decision, updates map[string]any) error {
	from := o.OrderStatus
	if d.Next == from && len(updates) == 0 {
		return nil
	}
	ok, err := repo.CompareAndSetStatus(ctx, o.ID, from, d.Next, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently; retry")
	}
	o.OrderStatus = d.Next
	return nil
}

// openRecords writes the refund and exchange sub-records a decision asks for.
func (c *Coordinator) openRecords(ctx context.Context, repo orders.Repository, o *models.Order, d orders.Decision) error {
	for _, cmd := range d.Commands {
		switch cmd := cmd.(type) {
		case orders.OpenRefund:
			if cmd.Amount <= 0 {
				continue
			}
			refund := &models.OrderRefund{
				OrderID:     o.ID,
				OrderRef:    o.OrderRef,
				Source:      cmd.Source,
				Status:      enums.RefundStatusInitiated,
				Reason:      cmd.Reason,
				Amount:      cmd.Amount,
				BankDetails: cmd.BankDetails,
			}
			if err := repo.CreateRefund(ctx, refund); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open refund")
			}
		case orders.OpenExchange:
			exchange := &models.OrderExchange{
				OrderID:        o.ID,
				OrderRef:       o.OrderRef,
				Status:         enums.ExchangeStatusPending,
				IsReturn:       cmd.IsReturn,
				Reason:         cmd.Reason,
				SpecificReason: cmd.SpecificReason,
			}
			if cmd.Target != nil {
				exchange.TargetSKUID = &cmd.Target.SKUID
				exchange.TargetColor = &cmd.Target.Color
				exchange.TargetSize = &cmd.Target.Size
			}
			if err := repo.CreateExchange(ctx, exchange); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open exchange")
			}
		}
	}
	return nil
}

func (c *Coordinator) emitDecision(ctx context.Context, tx *gorm.DB, o *models.Order, d orders.Decision, reason string) error {
	for _, emit := range commandsOf[orders.EmitEvent](d) {
		if err := c.emit(ctx, tx, o, emit.Type, d.From, reason, d); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) emit(ctx context.Context, tx *gorm.DB, o *models.Order, eventType enums.OutboxEventType, previous enums.OrderStatus, reason string, d orders.Decision) error {
	var data any = orders.EventOf(o, previous, reason)
	if eventType == enums.EventExchangeRequested || eventType == enums.EventReturnRequested {
		ev := payloads.ExchangeEvent{OrderRef: o.OrderRef, IsReturn: eventType == enums.EventReturnRequested, Reason: reason}
		if open, ok := commandOf[orders.OpenExchange](d); ok && open.Target != nil {
			ev.TargetSKUID = open.Target.SKUID
		}
		data = ev
	}
	return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   o.OrderRef,
		Actor:         &outbox.ActorRef{AccountID: o.AccountID.String(), Role: string(enums.RoleCustomer)},
		Data:          data,
	})
}

// releaseAll runs every ReleaseStock command of d as a compensation. Lines
// that stay held after the retry budget are returned as item errors.
func (c *Coordinator) releaseAll(ctx context.Context, o *models.Order, d orders.Decision) (released int, itemErrors []models.ItemError) {
	for _, cmd := range commandsOf[orders.ReleaseStock](d) {
		line := lineAt(o, cmd.Position)
		if line == nil {
			continue
		}
		p := releasePayload{OrderRef: o.OrderRef, LineID: line.ID, SKUID: cmd.SKUID, Quantity: cmd.Quantity}
		err := c.compensate(ctx, o.OrderRef, enums.CompensationReleaseStock, p, func(ctx context.Context) error {
			return c.releaseLine(ctx, p)
		})
		if err != nil {
			itemErrors = append(itemErrors, models.ItemError{SKUID: cmd.SKUID, Message: publicMessage(err)})
			continue
		}
		line.StockReleased = true
		released++
	}
	return released, itemErrors
}

// releaseLine flips the line's release flag and returns the stock in one
// transaction, so a line is restored at most once however often it is retried.
func (c *Coordinator) releaseLine(ctx context.Context, p releasePayload) error {
	return c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		flipped, err := c.orders.WithTx(tx).MarkLineReleased(ctx, p.LineID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark line released")
		}
		if !flipped {
			return nil
		}
		return c.stock(tx).Release(ctx, p.SKUID, p.Quantity)
	})
}

func (c *Coordinator) reverseWallet(ctx context.Context, p reversePayload) error {
	_, err := c.wallet(nil).Reverse(ctx, p.AccountID, p.OrderRef)
	if errors.Is(err, wallet.ErrAlreadyReversed) {
		return nil
	}
	return err
}

// compensate runs fn with the configured retry budget. When it still fails
// the action lands in the operator queue and the last error is returned.
func (c *Coordinator) compensate(ctx context.Context, orderRef string, kind enums.CompensationKind, payload any, fn func(context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	attempts := c.cfg.CompensationRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			c.metrics.Compensation(kind.String(), "applied")
			return nil
		}
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"compensation": kind,
			"attempt":      attempt,
			"error":        err.Error(),
		}), "compensation attempt failed")
	}

	c.metrics.Compensation(kind.String(), "queued")
	c.logg.Error(c.logg.WithField(ctx, "compensation", kind), "compensation queued for operator", err)
	if c.failures == nil {
		return err
	}
	raw, mErr := json.Marshal(payload)
	if mErr != nil {
		c.logg.Error(ctx, "encode compensation payload", mErr)
		return err
	}
	entry := &models.CompensationFailure{
		OrderRef:  orderRef,
		Kind:      kind,
		Payload:   raw,
		LastError: err.Error(),
		Attempts:  attempts,
		Status:    enums.CompensationStatusOpen,
	}
	if rErr := c.failures.Record(ctx, entry); rErr != nil {
		c.logg.Error(ctx, "record compensation failure", rErr)
	}
	return err
}

// Replay re-runs a queued compensation. Every action is idempotent so a
// replay after a partial success is harmless.
func (c *Coordinator) Replay(ctx context.Context, kind enums.CompensationKind, payload json.RawMessage) error {
	switch kind {
	case enums.CompensationReleaseStock:
		var p releasePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode release payload")
		}
		return c.releaseLine(ctx, p)
	case enums.CompensationReverseWallet:
		var p reversePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode reversal payload")
		}
		return c.reverseWallet(ctx, p)
	case enums.CompensationFailOrder:
		var p failPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode fail payload")
		}
		return c.failOnce(ctx, p)
	}
	return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown compensation kind %q", kind)
}

func publicMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return fmt.Sprint(err)
}
