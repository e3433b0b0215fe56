package saga

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/internal/catalog"
	"github.com/learningsainttech/nanocart-backend/internal/compensation"
	"github.com/learningsainttech/nanocart-backend/internal/orders"
	"github.com/learningsainttech/nanocart-backend/internal/payment"
	"github.com/learningsainttech/nanocart-backend/internal/stock"
	"github.com/learningsainttech/nanocart-backend/internal/wallet"
	"github.com/learningsainttech/nanocart-backend/pkg/config"
	"github.com/learningsainttech/nanocart-backend/pkg/db"
	"github.com/learningsainttech/nanocart-backend/pkg/db/dbtest"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) types() []enums.OutboxEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]enums.OutboxEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type fakeGateway struct {
	verifier payment.Verifier
	createFn func(ctx context.Context, amount int64, currency, reference string) (*payment.Intent, error)
	fetchFn  func(ctx context.Context, intentID string) (*payment.State, error)
}

func (f *fakeGateway) CreateIntent(ctx context.Context, amount int64, currency, reference string) (*payment.Intent, error) {
	return f.createFn(ctx, amount, currency, reference)
}

func (f *fakeGateway) VerifyCallback(intentID, paymentID, signature string) bool {
	return f.verifier.VerifyCallback(intentID, paymentID, signature)
}

func (f *fakeGateway) FetchStatus(ctx context.Context, intentID string) (*payment.State, error) {
	return f.fetchFn(ctx, intentID)
}

type fakeAwaiter struct {
	awaitFn func(ctx context.Context, intentID string) (*payment.State, error)
}

func (f *fakeAwaiter) Await(ctx context.Context, intentID string) (*payment.State, error) {
	return f.awaitFn(ctx, intentID)
}

// flakyStock injects reservation and release failures while everything else
// hits the ledger.
type flakyStock struct {
	Stock
	reserveFn func(skuID string) error
	releaseFn func(skuID string, qty int) error
}

func (f flakyStock) Reserve(ctx context.Context, skuID string, qty int) error {
	if f.reserveFn != nil {
		if err := f.reserveFn(skuID); err != nil {
			return err
		}
	}
	return f.Stock.Reserve(ctx, skuID, qty)
}

func (f flakyStock) Release(ctx context.Context, skuID string, qty int) error {
	if f.releaseFn != nil {
		if err := f.releaseFn(skuID, qty); err != nil {
			return err
		}
	}
	return f.Stock.Release(ctx, skuID, qty)
}

type flakyWallet struct {
	Wallet
	debitFn func() error
}

func (f flakyWallet) Debit(ctx context.Context, accountID uuid.UUID, amount int64, description, orderRef string) (*models.WalletTransaction, error) {
	if f.debitFn != nil {
		if err := f.debitFn(); err != nil {
			return nil, err
		}
	}
	return f.Wallet.Debit(ctx, accountID, amount, description, orderRef)
}

type harness struct {
	coord     *Coordinator
	conn      *gorm.DB
	stock     *stock.Ledger
	wallet    *wallet.Ledger
	gateway   *fakeGateway
	awaiter   *fakeAwaiter
	emitter   *recordingEmitter
	queue     *compensation.Repository
	reserveFn func(skuID string) error
	releaseFn func(skuID string, qty int) error
	debitFn   func() error
	now       time.Time
	account   uuid.UUID
}

const (
	skuM      = "tee-black-m"
	skuL      = "tee-black-l"
	unitPrice = int64(500)
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t, models.All()...)
	emitter := &recordingEmitter{}
	h := &harness{
		conn:    conn,
		emitter: emitter,
		stock:   stock.NewLedger(conn, emitter),
		wallet:  wallet.NewLedger(conn, emitter, logger.Nop()),
		queue:   compensation.NewRepository(conn),
		now:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		account: uuid.New(),
	}
	h.gateway = &fakeGateway{
		verifier: payment.NewVerifier("gw-secret", ""),
		createFn: func(_ context.Context, amount int64, currency, reference string) (*payment.Intent, error) {
			return &payment.Intent{ID: "pi_" + reference, Amount: amount, Currency: currency, Reference: reference, Status: "created"}, nil
		},
		fetchFn: func(context.Context, string) (*payment.State, error) {
			return &payment.State{Status: payment.StatusPending}, nil
		},
	}
	h.awaiter = &fakeAwaiter{awaitFn: func(context.Context, string) (*payment.State, error) {
		return &payment.State{Status: payment.StatusPending}, nil
	}}

	store := catalog.NewStore(conn, h.stock)
	ctx := context.Background()
	for _, v := range []catalog.DefineInput{
		{SKUID: skuM, ItemID: "tee", Color: "black", Size: "M", UnitPrice: unitPrice, Active: true, InitialStock: 5},
		{SKUID: skuL, ItemID: "tee", Color: "black", Size: "L", UnitPrice: unitPrice, Active: true, InitialStock: 1},
	} {
		_, err := store.Define(ctx, v)
		require.NoError(t, err)
	}
	_, err := h.wallet.Create(ctx, h.account, enums.AccountKindUser)
	require.NoError(t, err)
	_, err = h.wallet.Credit(ctx, h.account, 1000, "top up", nil)
	require.NoError(t, err)

	h.coord, err = NewCoordinator(Deps{
		Orders: orders.NewRepository(conn),
		Tx:     db.FromGorm(conn),
		Stock: func(tx *gorm.DB) Stock {
			return flakyStock{Stock: h.stock.WithTx(tx), reserveFn: h.reserveFn, releaseFn: h.releaseFn}
		},
		Wallet: func(tx *gorm.DB) Wallet {
			return flakyWallet{Wallet: h.wallet.WithTx(tx), debitFn: h.debitFn}
		},
		Catalog:  store,
		Gateway:  h.gateway,
		Poller:   h.awaiter,
		Outbox:   emitter,
		Failures: h.queue,
		Logger:   logger.Nop(),
		Config:   config.SagaConfig{PaymentExpiry: 24 * time.Hour, CompensationRetries: 1, PollLookback: time.Hour},
		Currency: "inr",
		Now:      func() time.Time { return h.now },
	})
	require.NoError(t, err)
	return h
}

func (h *harness) cart(method enums.PaymentMethod, m, l int, walletAmount int64) CheckoutInput {
	sizes := []SizeQuantity{}
	if m > 0 {
		sizes = append(sizes, SizeQuantity{Size: "M", SKUID: skuM, Quantity: m})
	}
	if l > 0 {
		sizes = append(sizes, SizeQuantity{Size: "L", SKUID: skuL, Quantity: l})
	}
	return CheckoutInput{
		AccountID:          h.account,
		AccountKind:        enums.AccountKindUser,
		LineItems:          []CheckoutLine{{ItemID: "tee", Color: "black", TotalQuantity: m + l, SizeAndQuantity: sizes}},
		ShippingAddressID:  "addr-1",
		PaymentMethod:      method,
		TotalAmount:        unitPrice * int64(m+l),
		WalletAmountUsed:   walletAmount,
		IsWalletAmountUsed: walletAmount > 0,
	}
}

func (h *harness) available(t *testing.T, sku string) int {
	t.Helper()
	counter, err := h.stock.Get(context.Background(), sku)
	require.NoError(t, err)
	return counter.Available
}

func (h *harness) balance(t *testing.T) int64 {
	t.Helper()
	w, err := h.wallet.Get(context.Background(), h.account)
	require.NoError(t, err)
	return w.TotalBalance
}

func (h *harness) order(t *testing.T, ref string) *models.Order {
	t.Helper()
	o, err := orders.NewRepository(h.conn).FindDetail(context.Background(), ref)
	require.NoError(t, err)
	return o
}

func (h *harness) debits(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.WalletTransaction{}).Where("type = ?", enums.WalletTxnDebit).Count(&count).Error)
	return count
}

func (h *harness) queued(t *testing.T) []models.CompensationFailure {
	t.Helper()
	var rows []models.CompensationFailure
	require.NoError(t, h.conn.Find(&rows).Error)
	return rows
}

func (h *harness) customer() Actor {
	return Actor{AccountID: h.account, Role: enums.RoleCustomer}
}

func TestNewCoordinatorRequiresCollaborators(t *testing.T) {
	_, err := NewCoordinator(Deps{})
	assert.Error(t, err)
}

func TestNewOrderRefFormat(t *testing.T) {
	ref := newOrderRef(time.UnixMilli(1767225600123))
	assert.Regexp(t, `^ORD-1767225600123-[0-9a-f]{6}$`, ref)
}

func TestFlattenRejectsQuantityMismatch(t *testing.T) {
	_, err := flatten([]CheckoutLine{{
		ItemID: "tee", Color: "black", TotalQuantity: 3,
		SizeAndQuantity: []SizeQuantity{{Size: "M", SKUID: skuM, Quantity: 1}, {Size: "L", SKUID: skuL, Quantity: 1}},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "totalQuantity 3 does not match size quantities 2")

	lines, err := flatten([]CheckoutLine{{
		ItemID: "tee", Color: "black", TotalQuantity: 2,
		SizeAndQuantity: []SizeQuantity{{Size: "M", SKUID: skuM, Quantity: 1}, {Size: "L", SKUID: skuL, Quantity: 1}},
	}})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[1].Position)
}

func TestStockLedgerAdapterBindsTransaction(t *testing.T) {
	h := newHarness(t)
	factory := StockLedger(h.stock)
	require.NoError(t, factory(nil).Reserve(context.Background(), skuM, 1))
	assert.Equal(t, 4, h.available(t, skuM))
}

func sign(h *harness, intentID, paymentID string) string {
	return h.gateway.verifier.Sign(intentID, paymentID)
}

func callback(h *harness, ref, paymentID string) CallbackInput {
	intentID := "pi_" + ref
	return CallbackInput{GatewayOrderID: intentID, PaymentID: paymentID, Signature: sign(h, intentID, paymentID)}
}
