package saga

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/internal/orders"
	"github.com/learningsainttech/nanocart-backend/internal/payment"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
)

type CallbackInput struct {
	GatewayOrderID string `json:"gatewayOrderId" validate:"required"`
	PaymentID      string `json:"paymentId" validate:"required"`
	Signature      string `json:"signature" validate:"required"`
}

type PaymentResult struct {
	Verified    bool              `json:"verified"`
	OrderRef    string            `json:"orderRef"`
	OrderStatus enums.OrderStatus `json:"orderStatus"`
}

// HandleCallback applies a gateway payment callback. Replays for an order
// that is already paid return verified without touching anything. A bad
// signature fails the order and releases its stock.
func (c *Coordinator) HandleCallback(ctx context.Context, input CallbackInput) (*PaymentResult, error) {
	if strings.TrimSpace(input.GatewayOrderID) == "" || strings.TrimSpace(input.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gatewayOrderId and paymentId are required")
	}
	order, err := c.orders.FindByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		return nil, orders.LookupError(err)
	}
	ctx = c.logg.WithOrderRef(ctx, order.OrderRef)

	if order.PaymentStatus == enums.PaymentStatusPaid {
		c.metrics.Callback("replayed")
		return &PaymentResult{Verified: true, OrderRef: order.OrderRef, OrderStatus: order.OrderStatus}, nil
	}

	if !c.gateway.VerifyCallback(input.GatewayOrderID, input.PaymentID, input.Signature) {
		c.metrics.Callback("invalid_signature")
		c.logg.Warn(ctx, "payment callback signature mismatch")
		status := order.OrderStatus
		if status == enums.OrderStatusInitiated {
			failed, err := c.fail(ctx, order.OrderRef, orders.Event{Kind: orders.EventPaymentFailed, Reason: "invalid payment signature"})
			if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				return nil, err
			}
			if failed != nil {
				status = failed.OrderStatus
			}
		}
		return &PaymentResult{Verified: false, OrderRef: order.OrderRef, OrderStatus: status}, nil
	}

	result, err := c.settleCaptured(ctx, order.OrderRef, input.PaymentID, input.Signature, 0)
	if err != nil {
		c.metrics.Callback("error")
		return nil, err
	}
	c.metrics.Callback(string(result.OrderStatus))
	return result, nil
}

// VerifyPayment polls the gateway on behalf of the paying account, for
// integrations where the callback never reaches us. Nothing is locked while
// the poller waits.
func (c *Coordinator) VerifyPayment(ctx context.Context, accountID uuid.UUID, orderRef string) (*PaymentResult, error) {
	order, err := c.orders.FindByRef(ctx, orderRef)
	if err != nil {
		return nil, orders.LookupError(err)
	}
	if order.AccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	current := &PaymentResult{
		Verified:    order.PaymentStatus == enums.PaymentStatusPaid,
		OrderRef:    order.OrderRef,
		OrderStatus: order.OrderStatus,
	}
	if order.OrderStatus != enums.OrderStatusInitiated || order.GatewayOrderID == nil {
		return current, nil
	}
	if c.poller == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment status polling is not configured")
	}
	ctx = c.logg.WithOrderRef(ctx, order.OrderRef)
	state, err := c.poller.Await(ctx, *order.GatewayOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable; please retry")
	}
	return c.applyState(ctx, order, state)
}

// applyState moves an initiated order according to a fetched gateway state.
func (c *Coordinator) applyState(ctx context.Context, order *models.Order, state *payment.State) (*PaymentResult, error) {
	switch state.Status {
	case payment.StatusCaptured:
		return c.settleCaptured(ctx, order.OrderRef, state.PaymentID, "", state.Amount)
	case payment.StatusFailed:
		failed, err := c.fail(ctx, order.OrderRef, orders.Event{Kind: orders.EventPaymentFailed, Reason: "payment failed at gateway"})
		if err != nil {
			return nil, err
		}
		return &PaymentResult{Verified: false, OrderRef: failed.OrderRef, OrderStatus: failed.OrderStatus}, nil
	}
	return &PaymentResult{Verified: false, OrderRef: order.OrderRef, OrderStatus: order.OrderStatus}, nil
}

// settleCaptured confirms an order whose online share the gateway captured.
// The wallet share is debited in the same transaction as the status change.
// If that debit bounces (insufficient funds, missing wallet) the order fails
// and the captured share is refunded. Any other debit error leaves the order
// initiated and is returned retryable so the gateway redelivers.
func (c *Coordinator) settleCaptured(ctx context.Context, orderRef, paymentID, signature string, paidAmount int64) (*PaymentResult, error) {
	var result PaymentResult
	var decision orders.Decision
	var debitErr error
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.orders.WithTx(tx)
		o, err := repo.FindByRef(ctx, orderRef)
		if err != nil {
			return orders.LookupError(err)
		}
		result = PaymentResult{OrderRef: o.OrderRef, OrderStatus: o.OrderStatus}
		if o.PaymentStatus == enums.PaymentStatusPaid {
			result.Verified = true
			return nil
		}
		if o.OrderStatus == enums.OrderStatusFailed {
			result.Verified = true
			return c.refundLateCapture(ctx, tx, o, paymentID)
		}

		decision, err = orders.Transition(orders.SnapshotOf(o), orders.Event{
			Kind:           orders.EventPaymentVerified,
			SignatureValid: true,
			PaidAmount:     paidAmount,
		})
		if err != nil {
			return err
		}
		now := c.now().UTC()
		updates := map[string]any{
			"payment_status":     enums.PaymentStatusPaid,
			"gateway_payment_id": paymentID,
			"confirmed_at":       now,
		}
		if signature != "" {
			updates["gateway_signature"] = signature
		}
		if debit, ok := commandOf[orders.DebitWallet](decision); ok {
			if _, err := c.wallet(tx).Debit(ctx, o.AccountID, debit.Amount, fmt.Sprintf("payment for order %s", o.OrderRef), o.OrderRef); err != nil {
				if debitBounced(err) {
					debitErr = err
					return err
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet; retry")
			}
			updates["wallet_debited"] = true
			o.WalletDebited = true
		}
		o.PaymentStatus = enums.PaymentStatusPaid
		if err := c.commitStatus(ctx, repo, o, decision, updates); err != nil {
			return err
		}
		o.ConfirmedAt = &now
		result = PaymentResult{Verified: true, OrderRef: o.OrderRef, OrderStatus: o.OrderStatus}
		return c.emitDecision(ctx, tx, o, decision, "")
	})

	switch {
	case err == nil:
		if decision.Next != "" {
			c.metrics.Transition(string(decision.From), string(decision.Next))
			c.logg.Info(ctx, "online order confirmed")
		}
		return &result, nil
	case debitErr != nil:
		c.logg.Error(ctx, "wallet debit failed after capture", debitErr)
		failed, failErr := c.fail(ctx, orderRef, orders.Event{
			Kind:   orders.EventConfirmationFailed,
			Reason: "wallet debit failed: " + publicMessage(debitErr),
		})
		if failErr != nil {
			return nil, failErr
		}
		return &PaymentResult{Verified: true, OrderRef: failed.OrderRef, OrderStatus: failed.OrderStatus}, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		// A concurrent callback may have won the compare-and-swap.
		o, findErr := c.orders.FindByRef(ctx, orderRef)
		if findErr == nil && o.PaymentStatus == enums.PaymentStatusPaid {
			return &PaymentResult{Verified: true, OrderRef: o.OrderRef, OrderStatus: o.OrderStatus}, nil
		}
	}
	return nil, err
}

// debitBounced reports whether a wallet debit failed for a reason a retry
// cannot fix.
func debitBounced(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeConflict) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound)
}

// refundLateCapture handles money captured after the order already failed
// (usually expiry beat the callback). The order stays failed and the captured
// share is opened as a refund once.
func (c *Coordinator) refundLateCapture(ctx context.Context, tx *gorm.DB, o *models.Order, paymentID string) error {
	if o.PaymentStatus == enums.PaymentStatusRefunded {
		return nil
	}
	repo := c.orders.WithTx(tx)
	if err := repo.Update(ctx, o.ID, map[string]any{
		"payment_status":     enums.PaymentStatusRefunded,
		"gateway_payment_id": paymentID,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record late capture")
	}
	refund := &models.OrderRefund{
		OrderID:  o.ID,
		OrderRef: o.OrderRef,
		Source:   orders.RefundSourcePayment,
		Status:   enums.RefundStatusInitiated,
		Reason:   "payment captured after order failed",
		Amount:   o.AmountToPayOnline(),
	}
	if err := repo.CreateRefund(ctx, refund); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open late capture refund")
	}
	c.logg.Warn(ctx, "payment captured after order failed; refund opened")
	return nil
}

// ExpireOrder fails an initiated order whose payment window has closed.
// The wallet was never debited for it, so only stock is released.
func (c *Coordinator) ExpireOrder(ctx context.Context, orderRef string) error {
	ctx = c.logg.WithOrderRef(ctx, orderRef)
	order, err := c.orders.FindByRef(ctx, orderRef)
	if err != nil {
		return orders.LookupError(err)
	}
	if order.ExpiresAt != nil && order.ExpiresAt.After(c.now()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment window is still open")
	}
	_, err = c.fail(ctx, orderRef, orders.Event{Kind: orders.EventPaymentExpired, Reason: "payment window expired"})
	return err
}

// ExpireStale fails up to limit expired orders. Orders that moved on while
// the batch ran are skipped; every other failure is collected.
func (c *Coordinator) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	stale, err := c.orders.FindExpiredInitiated(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired orders")
	}
	expired := 0
	var errs error
	for _, o := range stale {
		err := c.ExpireOrder(ctx, o.OrderRef)
		switch {
		case err == nil:
			expired++
		case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		default:
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", o.OrderRef, err))
		}
	}
	return expired, errs
}

// PollPending asks the gateway once about each recent initiated order and
// applies any settled state. It covers callbacks that never arrived.
func (c *Coordinator) PollPending(ctx context.Context, now time.Time, limit int) (int, error) {
	lookback := c.cfg.PollLookback
	if lookback <= 0 {
		lookback = 30 * time.Minute
	}
	pending, err := c.orders.FindInitiatedSince(ctx, now.Add(-lookback), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending orders")
	}
	settled := 0
	var errs error
	for i := range pending {
		o := &pending[i]
		if o.GatewayOrderID == nil {
			continue
		}
		state, err := c.gateway.FetchStatus(ctx, *o.GatewayOrderID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", o.OrderRef, err))
			continue
		}
		if state.Status == payment.StatusPending {
			continue
		}
		res, err := c.applyState(c.logg.WithOrderRef(ctx, o.OrderRef), o, state)
		if err != nil {
			if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", o.OrderRef, err))
			}
			continue
		}
		if res.OrderStatus != enums.OrderStatusInitiated {
			settled++
		}
	}
	return settled, errs
}
