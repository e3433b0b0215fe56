// Package bootstrap assembles the fulfilment services shared by the api and
// cron-worker binaries.
package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/learningsainttech/nanocart-backend/internal/catalog"
	"github.com/learningsainttech/nanocart-backend/internal/compensation"
	"github.com/learningsainttech/nanocart-backend/internal/orders"
	"github.com/learningsainttech/nanocart-backend/internal/payment"
	"github.com/learningsainttech/nanocart-backend/internal/saga"
	"github.com/learningsainttech/nanocart-backend/internal/stock"
	"github.com/learningsainttech/nanocart-backend/internal/wallet"
	"github.com/learningsainttech/nanocart-backend/pkg/config"
	"github.com/learningsainttech/nanocart-backend/pkg/db"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/metrics"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox"
)

type Fulfilment struct {
	Saga          *saga.Coordinator
	Orders        orders.Service
	Stock         *stock.Ledger
	Wallets       *wallet.Ledger
	Catalog       *catalog.Store
	Compensations *compensation.Service
	Outbox        *outbox.Repository
	Verifier      payment.Verifier
}

// NewFulfilment wires the ledgers, the gateway client and the coordinator.
// Call it once per process: saga metrics register on reg.
func NewFulfilment(cfg *config.Config, logg *logger.Logger, client *db.Client, reg prometheus.Registerer) (*Fulfilment, error) {
	conn := client.DB()
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)
	sagaMetrics := metrics.NewSagaMetrics(reg)

	stockLedger := stock.NewLedger(conn, emitter)
	walletLedger := wallet.NewLedger(conn, emitter, logg)
	store := catalog.NewStore(conn, stockLedger)
	ordersRepo := orders.NewRepository(conn)

	gateway, err := payment.NewClient(cfg.Gateway, logg)
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %w", err)
	}
	compRepo := compensation.NewRepository(conn)

	coord, err := saga.NewCoordinator(saga.Deps{
		Orders:   ordersRepo,
		Tx:       client,
		Stock:    saga.StockLedger(stockLedger),
		Wallet:   saga.WalletLedger(walletLedger),
		Catalog:  store,
		Gateway:  gateway,
		Poller:   payment.NewPoller(gateway, cfg.Gateway.PollInterval, cfg.Gateway.PollAttempts, logg),
		Outbox:   emitter,
		Failures: compRepo,
		Metrics:  sagaMetrics,
		Logger:   logg,
		Config:   cfg.Saga,
		Currency: cfg.Gateway.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("saga coordinator: %w", err)
	}

	ordersSvc, err := orders.NewService(ordersRepo, client, emitter, sagaMetrics, logg)
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	compSvc, err := compensation.NewService(compRepo, coord, logg)
	if err != nil {
		return nil, fmt.Errorf("compensation service: %w", err)
	}

	return &Fulfilment{
		Saga:          coord,
		Orders:        ordersSvc,
		Stock:         stockLedger,
		Wallets:       walletLedger,
		Catalog:       store,
		Compensations: compSvc,
		Outbox:        outboxRepo,
		Verifier:      payment.NewVerifier(cfg.Gateway.Secret, cfg.Gateway.WebhookSecret),
	}, nil
}
