// Package saga coordinates the order, stock, wallet and gateway effects of a
// purchase. There is no cross-resource transaction: every step is either
// committed with the order status change or undone by a compensating action
// that is retried and, failing that, queued for an operator.
package saga

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/internal/catalog"
	"github.com/learningsainttech/nanocart-backend/internal/orders"
	"github.com/learningsainttech/nanocart-backend/internal/payment"
	"github.com/learningsainttech/nanocart-backend/internal/stock"
	"github.com/learningsainttech/nanocart-backend/internal/wallet"
	"github.com/learningsainttech/nanocart-backend/pkg/config"
	"github.com/learningsainttech/nanocart-backend/pkg/db"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/metrics"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox"
)

// Stock is the slice of the stock ledger the saga drives.
type Stock interface {
	Check(ctx context.Context, skuID string, qty int) error
	Reserve(ctx context.Context, skuID string, qty int) error
	Release(ctx context.Context, skuID string, qty int) error
}

// Wallet is the slice of the wallet ledger the saga drives.
type Wallet interface {
	Get(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error)
	Debit(ctx context.Context, accountID uuid.UUID, amount int64, description, orderRef string) (*models.WalletTransaction, error)
	Reverse(ctx context.Context, accountID uuid.UUID, orderRef string) (*models.WalletTransaction, error)
}

// Awaiter waits for a gateway intent to settle.
type Awaiter interface {
	Await(ctx context.Context, intentID string) (*payment.State, error)
}

// Recorder stores compensation failures in the operator queue.
type Recorder interface {
	Record(ctx context.Context, entry *models.CompensationFailure) error
}

// Metrics receives saga outcome counters.
type Metrics interface {
	Checkout(method, outcome string)
	Callback(outcome string)
	Compensation(kind, outcome string)
	Transition(from, to string)
}

// Deps are the coordinator's collaborators. Stock and Wallet are factories so
// a step can bind them to the transaction that also moves the order.
type Deps struct {
	Orders   orders.Repository
	Tx       db.TxRunner
	Stock    func(tx *gorm.DB) Stock
	Wallet   func(tx *gorm.DB) Wallet
	Catalog  catalog.Lookup
	Gateway  payment.Gateway
	Poller   Awaiter
	Outbox   outbox.Emitter
	Failures Recorder
	Metrics  Metrics
	Logger   *logger.Logger
	Config   config.SagaConfig
	Currency string
	Now      func() time.Time
}

type Coordinator struct {
	orders   orders.Repository
	tx       db.TxRunner
	stock    func(tx *gorm.DB) Stock
	wallet   func(tx *gorm.DB) Wallet
	catalog  catalog.Lookup
	gateway  payment.Gateway
	poller   Awaiter
	outbox   outbox.Emitter
	failures Recorder
	metrics  Metrics
	logg     *logger.Logger
	cfg      config.SagaConfig
	currency string
	now      func() time.Time
}

func NewCoordinator(d Deps) (*Coordinator, error) {
	switch {
	case d.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case d.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case d.Stock == nil:
		return nil, fmt.Errorf("stock ledger required")
	case d.Wallet == nil:
		return nil, fmt.Errorf("wallet ledger required")
	case d.Catalog == nil:
		return nil, fmt.Errorf("catalog lookup required")
	case d.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case d.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case d.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	c := &Coordinator{
		orders:   d.Orders,
		tx:       d.Tx,
		stock:    d.Stock,
		wallet:   d.Wallet,
		catalog:  d.Catalog,
		gateway:  d.Gateway,
		poller:   d.Poller,
		outbox:   d.Outbox,
		failures: d.Failures,
		metrics:  d.Metrics,
		logg:     d.Logger,
		cfg:      d.Config,
		currency: strings.ToUpper(strings.TrimSpace(d.Currency)),
		now:      d.Now,
	}
	if c.metrics == nil {
		c.metrics = metrics.NewSagaMetrics(nil)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.currency == "" {
		c.currency = "INR"
	}
	if c.cfg.PaymentExpiry <= 0 {
		c.cfg.PaymentExpiry = 24 * time.Hour
	}
	if c.cfg.CompensationRetries < 0 {
		c.cfg.CompensationRetries = 0
	}
	return c, nil
}

// StockLedger adapts the stock ledger to the saga's transaction-scoped factory.
func StockLedger(l *stock.Ledger) func(tx *gorm.DB) Stock {
	return func(tx *gorm.DB) Stock { return l.WithTx(tx) }
}

// WalletLedger adapts the wallet ledger to the saga's transaction-scoped factory.
func WalletLedger(l *wallet.Ledger) func(tx *gorm.DB) Wallet {
	return func(tx *gorm.DB) Wallet { return l.WithTx(tx) }
}

// newOrderRef renders ORD-<unix-millis>-<6 hex>.
func newOrderRef(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func commandOf[T orders.Command](d orders.Decision) (T, bool) {
	for _, cmd := range d.Commands {
		if typed, ok := cmd.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}

func commandsOf[T orders.Command](d orders.Decision) []T {
	var out []T
	for _, cmd := range d.Commands {
		if typed, ok := cmd.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func lineAt(o *models.Order, position int) *models.OrderLineItem {
	for i := range o.LineItems {
		if o.LineItems[i].Position == position {
			return &o.LineItems[i]
		}
	}
	return nil
}
