package saga

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/internal/catalog"
	"github.com/learningsainttech/nanocart-backend/internal/orders"
	"github.com/learningsainttech/nanocart-backend/internal/payment"
	"github.com/learningsainttech/nanocart-backend/internal/wallet"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
)

type SizeQuantity struct {
	Size     string `json:"size" validate:"required"`
	SKUID    string `json:"skuId" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

// CheckoutLine is one item/color of the cart with its per-size split.
type CheckoutLine struct {
	ItemID          string         `json:"itemId" validate:"required"`
	Color           string         `json:"color" validate:"required"`
	TotalQuantity   int            `json:"totalQuantity" validate:"gte=1"`
	SizeAndQuantity []SizeQuantity `json:"sizeAndQuantity" validate:"required,min=1,dive"`
}

type CheckoutInput struct {
	AccountID          uuid.UUID           `json:"-"`
	AccountKind        enums.AccountKind   `json:"-"`
	LineItems          []CheckoutLine      `json:"lineItems" validate:"required,min=1,dive"`
	ShippingAddressID  string              `json:"shippingAddressId" validate:"required"`
	PaymentMethod      enums.PaymentMethod `json:"paymentMethod" validate:"required,oneof=online cod"`
	TotalAmount        int64               `json:"totalAmount" validate:"gt=0"`
	WalletAmountUsed   int64               `json:"walletAmountUsed" validate:"gte=0"`
	IsWalletAmountUsed bool                `json:"isWalletAmountUsed"`
}

type CheckoutResult struct {
	OrderRef      string            `json:"orderRef"`
	OrderStatus   enums.OrderStatus `json:"orderStatus"`
	GatewayIntent *payment.Intent   `json:"gatewayIntent,omitempty"`
}

// Checkout validates the cart, creates the order and reserves stock. COD
// orders are confirmed immediately; online orders stay initiated with a
// gateway intent until the callback, a status poll or expiry settles them.
func (c *Coordinator) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	result, err := c.checkout(ctx, input)
	outcome := strings.ToLower(string(pkgerrors.CodeOf(err)))
	if err == nil {
		outcome = string(result.OrderStatus)
	}
	c.metrics.Checkout(string(input.PaymentMethod), outcome)
	return result, err
}

func (c *Coordinator) checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	kind := input.AccountKind
	if kind == "" {
		kind = enums.AccountKindUser
	}
	if !kind.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid account kind %q", kind)
	}
	if strings.TrimSpace(input.ShippingAddressID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if (input.WalletAmountUsed > 0) != input.IsWalletAmountUsed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "walletAmountUsed and isWalletAmountUsed must agree")
	}
	lines, err := flatten(input.LineItems)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		AccountID:          input.AccountID,
		AccountKind:        kind,
		ShippingAddressID:  input.ShippingAddressID,
		Currency:           c.currency,
		TotalAmount:        input.TotalAmount,
		WalletAmountUsed:   input.WalletAmountUsed,
		IsWalletAmountUsed: input.IsWalletAmountUsed,
		PaymentMethod:      input.PaymentMethod,
		LineItems:          lines,
	}
	decision, err := orders.Transition(orders.SnapshotOf(order), orders.Event{Kind: orders.EventCreate})
	if err != nil {
		return nil, err
	}
	if err := c.validateAvailability(ctx, order); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	order.OrderRef = newOrderRef(now)
	order.OrderStatus = enums.OrderStatusInitiated
	order.PaymentStatus = enums.PaymentStatusPending
	if order.PaymentMethod == enums.PaymentMethodOnline {
		expires := now.Add(c.cfg.PaymentExpiry)
		order.ExpiresAt = &expires
	}
	ctx = c.logg.WithOrderRef(ctx, order.OrderRef)

	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := c.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return c.emit(ctx, tx, order, enums.EventOrderCreated, "", "", decision)
	})
	if err != nil {
		return nil, err
	}

	if err := c.reserve(ctx, order, decision); err != nil {
		c.abort(ctx, order.OrderRef, orders.EventReservationFailed, publicMessage(err))
		return nil, err
	}

	if order.PaymentMethod == enums.PaymentMethodCOD {
		return c.confirmCOD(ctx, order, decision)
	}
	return c.openIntent(ctx, order, decision)
}

// flatten expands every per-size entry into its own order line.
func flatten(items []CheckoutLine) ([]models.OrderLineItem, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	var lines []models.OrderLineItem
	for i, item := range items {
		if len(item.SizeAndQuantity) == 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line item %d has no sizes", i)
		}
		sum := 0
		for _, sq := range item.SizeAndQuantity {
			if sq.Quantity < 1 {
				return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for sku %s must be at least 1", sq.SKUID)
			}
			sum += sq.Quantity
			lines = append(lines, models.OrderLineItem{
				Position: len(lines),
				SKUID:    strings.TrimSpace(sq.SKUID),
				ItemID:   item.ItemID,
				Color:    item.Color,
				Size:     sq.Size,
				Quantity: sq.Quantity,
			})
		}
		if sum != item.TotalQuantity {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line item %d: totalQuantity %d does not match size quantities %d", i, item.TotalQuantity, sum)
		}
	}
	return lines, nil
}

// validateAvailability is the read-only pre-check: every SKU exists in the
// catalog with enough stock, the total matches catalog prices, and the wallet
// can cover its share.
func (c *Coordinator) validateAvailability(ctx context.Context, order *models.Order) error {
	var total int64
	for i := range order.LineItems {
		li := &order.LineItems[i]
		v, err := c.catalog.Variant(ctx, catalog.Key{ItemID: li.ItemID, Color: li.Color, Size: li.Size, SKUID: li.SKUID})
		if err != nil {
			return err
		}
		li.UnitPrice = v.UnitPrice
		total += v.UnitPrice * int64(li.Quantity)
		if err := c.stock(nil).Check(ctx, li.SKUID, li.Quantity); err != nil {
			return err
		}
	}
	if total != order.TotalAmount {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "totalAmount %d does not match catalog total %d", order.TotalAmount, total)
	}
	if order.WalletAmountUsed > 0 {
		w, err := c.wallet(nil).Get(ctx, order.AccountID)
		if err != nil {
			return err
		}
		if w.TotalBalance < order.WalletAmountUsed {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, wallet.ErrInsufficientFunds, "wallet balance does not cover walletAmountUsed")
		}
	}
	return nil
}

// reserve takes stock line by line. Each reservation commits with its line
// flag so a later release knows exactly which lines hold stock.
func (c *Coordinator) reserve(ctx context.Context, order *models.Order, d orders.Decision) error {
	for _, cmd := range commandsOf[orders.ReserveStock](d) {
		line := lineAt(order, cmd.Position)
		if line == nil {
			return pkgerrors.Newf(pkgerrors.CodeInternal, "order has no line at position %d", cmd.Position)
		}
		err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := c.stock(tx).Reserve(ctx, cmd.SKUID, cmd.Quantity); err != nil {
				return err
			}
			if _, err := c.orders.WithTx(tx).MarkLineReserved(ctx, line.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark line reserved")
			}
			return nil
		})
		if err != nil {
			return err
		}
		line.StockReserved = true
	}
	return nil
}

// confirmCOD debits the wallet share and confirms in one transaction. A
// failed debit rolls back with the status change and the order is failed.
func (c *Coordinator) confirmCOD(ctx context.Context, order *models.Order, d orders.Decision) (*CheckoutResult, error) {
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.orders.WithTx(tx)
		now := c.now().UTC()
		updates := map[string]any{"confirmed_at": now}
		if debit, ok := commandOf[orders.DebitWallet](d); ok {
			if _, err := c.wallet(tx).Debit(ctx, order.AccountID, debit.Amount, fmt.Sprintf("payment for order %s", order.OrderRef), order.OrderRef); err != nil {
				return err
			}
			updates["wallet_debited"] = true
			order.WalletDebited = true
		}
		if err := c.commitStatus(ctx, repo, order, d, updates); err != nil {
			return err
		}
		order.ConfirmedAt = &now
		return c.emit(ctx, tx, order, enums.EventOrderConfirmed, enums.OrderStatusInitiated, "", d)
	})
	if err != nil {
		order.WalletDebited = false
		c.abort(ctx, order.OrderRef, orders.EventPaymentFailed, publicMessage(err))
		return nil, err
	}
	c.metrics.Transition(string(enums.OrderStatusInitiated), string(order.OrderStatus))
	c.logg.Info(ctx, "cod order confirmed")
	return &CheckoutResult{OrderRef: order.OrderRef, OrderStatus: order.OrderStatus}, nil
}

// openIntent talks to the gateway outside any transaction. A gateway error
// fails the order (releasing stock) and surfaces as a retryable dependency error.
func (c *Coordinator) openIntent(ctx context.Context, order *models.Order, d orders.Decision) (*CheckoutResult, error) {
	ci, ok := commandOf[orders.CreateIntent](d)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "online checkout without payment intent")
	}
	intent, err := c.gateway.CreateIntent(ctx, ci.Amount, order.Currency, order.OrderRef)
	if err != nil {
		c.logg.Error(ctx, "create payment intent", err)
		c.abort(ctx, order.OrderRef, orders.EventPaymentFailed, "payment gateway unavailable")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable; please retry")
	}
	if err := c.orders.Update(ctx, order.ID, map[string]any{"gateway_order_id": intent.ID}); err != nil {
		c.abort(ctx, order.OrderRef, orders.EventPaymentFailed, "could not store payment intent")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment intent")
	}
	c.logg.Info(c.logg.WithField(ctx, "gateway_order_id", intent.ID), "payment intent created")
	return &CheckoutResult{OrderRef: order.OrderRef, OrderStatus: enums.OrderStatusInitiated, GatewayIntent: intent}, nil
}
