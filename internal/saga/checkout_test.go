package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learningsainttech/nanocart-backend/internal/payment"
	"github.com/learningsainttech/nanocart-backend/internal/stock"
	"github.com/learningsainttech/nanocart-backend/internal/wallet"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
)

func TestCheckoutCODWithWalletConfirms(t *testing.T) {
	h := newHarness(t)
	res, err := h.coord.Checkout(context.Background(), h.cart(enums.PaymentMethodCOD, 2, 1, 400))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, res.OrderStatus)
	assert.Nil(t, res.GatewayIntent)

	assert.Equal(t, 3, h.available(t, skuM))
	assert.Equal(t, 0, h.available(t, skuL))
	assert.Equal(t, int64(600), h.balance(t))

	o := h.order(t, res.OrderRef)
	assert.Equal(t, enums.PaymentStatusPending, o.PaymentStatus)
	assert.True(t, o.WalletDebited)
	assert.NotNil(t, o.ConfirmedAt)
	for _, li := range o.LineItems {
		assert.True(t, li.StockReserved)
		assert.Equal(t, unitPrice, li.UnitPrice)
	}
	assert.Subset(t, h.emitter.types(), []enums.OutboxEventType{
		enums.EventOrderCreated, enums.EventWalletDebited, enums.EventOrderConfirmed, enums.EventStockDepleted,
	})
}

func TestCheckoutQuantityMismatchHasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	input := h.cart(enums.PaymentMethodCOD, 2, 0, 0)
	input.LineItems[0].TotalQuantity = 3

	_, err := h.coord.Checkout(context.Background(), input)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, 5, h.available(t, skuM))
}

func TestCheckoutValidationGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	wrongTotal := h.cart(enums.PaymentMethodCOD, 1, 0, 0)
	wrongTotal.TotalAmount = 1
	_, err := h.coord.Checkout(ctx, wrongTotal)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	flagMismatch := h.cart(enums.PaymentMethodCOD, 1, 0, 100)
	flagMismatch.IsWalletAmountUsed = false
	_, err = h.coord.Checkout(ctx, flagMismatch)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	walletOnlyOnline := h.cart(enums.PaymentMethodOnline, 1, 0, unitPrice)
	_, err = h.coord.Checkout(ctx, walletOnlyOnline)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	tooMuchWallet := h.cart(enums.PaymentMethodCOD, 3, 0, 1200)
	tooMuchWallet.TotalAmount = 1500
	_, err = h.coord.Checkout(ctx, tooMuchWallet)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	notStocked := h.cart(enums.PaymentMethodCOD, 0, 2, 0)
	_, err = h.coord.Checkout(ctx, notStocked)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count, "read-only validation must not create orders")
}

func TestCheckoutReservationFailureReleasesHeldLines(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	// Someone else takes the last L between validation and reservation.
	input := h.cart(enums.PaymentMethodCOD, 2, 1, 0)
	stockBefore := h.available(t, skuM)
	h.reserveFn = func(sku string) error {
		if sku == skuL {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, stock.ErrOutOfStock, "sku out of stock")
		}
		return nil
	}

	_, err := h.coord.Checkout(ctx, input)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, stockBefore, h.available(t, skuM), "M must be released")
	assert.Equal(t, 1, h.available(t, skuL))

	var o models.Order
	require.NoError(t, h.conn.Preload("LineItems").First(&o).Error)
	assert.Equal(t, enums.OrderStatusFailed, o.OrderStatus)
	assert.Equal(t, enums.PaymentStatusFailed, o.PaymentStatus)
	for _, li := range o.LineItems {
		if li.SKUID == skuM {
			assert.True(t, li.StockReleased)
		} else {
			assert.False(t, li.StockReserved)
		}
	}
	assert.Equal(t, int64(1000), h.balance(t))
}

func TestCheckoutCODWalletFailureCompensates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	input := h.cart(enums.PaymentMethodCOD, 2, 0, 800)
	h.debitFn = func() error {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, wallet.ErrInsufficientFunds, "insufficient wallet balance")
	}

	_, err := h.coord.Checkout(ctx, input)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, 5, h.available(t, skuM))
	assert.Equal(t, int64(1000), h.balance(t))
	assert.Zero(t, h.debits(t))

	var o models.Order
	require.NoError(t, h.conn.First(&o).Error)
	assert.Equal(t, enums.OrderStatusFailed, o.OrderStatus)
	assert.False(t, o.WalletDebited)
}

func TestCheckoutOnlineCreatesIntentForOnlineShare(t *testing.T) {
	h := newHarness(t)
	var gotAmount int64
	var gotCurrency string
	h.gateway.createFn = func(_ context.Context, amount int64, currency, reference string) (*payment.Intent, error) {
		gotAmount, gotCurrency = amount, currency
		return &payment.Intent{ID: "pi_" + reference, Amount: amount, Currency: currency, Reference: reference}, nil
	}

	res, err := h.coord.Checkout(context.Background(), h.cart(enums.PaymentMethodOnline, 2, 0, 300))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusInitiated, res.OrderStatus)
	require.NotNil(t, res.GatewayIntent)
	assert.Equal(t, int64(700), gotAmount)
	assert.Equal(t, "INR", gotCurrency)

	o := h.order(t, res.OrderRef)
	require.NotNil(t, o.GatewayOrderID)
	assert.Equal(t, res.GatewayIntent.ID, *o.GatewayOrderID)
	require.NotNil(t, o.ExpiresAt)
	assert.WithinDuration(t, h.now.Add(24*time.Hour), *o.ExpiresAt, time.Second)
	assert.Equal(t, int64(1000), h.balance(t), "wallet is only debited on confirmation")
	assert.Equal(t, 3, h.available(t, skuM))
}

func TestCheckoutGatewayFailureFailsOrder(t *testing.T) {
	h := newHarness(t)
	h.gateway.createFn = func(context.Context, int64, string, string) (*payment.Intent, error) {
		return nil, errors.New("connection reset")
	}

	_, err := h.coord.Checkout(context.Background(), h.cart(enums.PaymentMethodOnline, 2, 0, 0))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.True(t, pkgerrors.As(err).Retryable())
	assert.NotContains(t, pkgerrors.As(err).Message(), "connection reset")

	assert.Equal(t, 5, h.available(t, skuM))
	var o models.Order
	require.NoError(t, h.conn.First(&o).Error)
	assert.Equal(t, enums.OrderStatusFailed, o.OrderStatus)
	assert.Contains(t, h.emitter.types(), enums.EventOrderFailed)
}
