package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/learningsainttech/nanocart-backend/api/controllers"
	ordercontrollers "github.com/learningsainttech/nanocart-backend/api/controllers/orders"
	webhookcontrollers "github.com/learningsainttech/nanocart-backend/api/controllers/webhooks"
	"github.com/learningsainttech/nanocart-backend/api/middleware"
	"github.com/learningsainttech/nanocart-backend/internal/catalog"
	"github.com/learningsainttech/nanocart-backend/internal/compensation"
	"github.com/learningsainttech/nanocart-backend/internal/orders"
	"github.com/learningsainttech/nanocart-backend/internal/saga"
	"github.com/learningsainttech/nanocart-backend/internal/stock"
	"github.com/learningsainttech/nanocart-backend/pkg/config"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/pagination"
	"github.com/learningsainttech/nanocart-backend/pkg/types"
)

// Saga is the order fulfilment surface the HTTP layer drives.
type Saga interface {
	Checkout(ctx context.Context, input saga.CheckoutInput) (*saga.CheckoutResult, error)
	ordercontrollers.Requests
}

// Wallets covers both the customer wallet routes and operator top-ups.
type Wallets interface {
	Create(ctx context.Context, accountID uuid.UUID, kind enums.AccountKind) (*models.Wallet, error)
	Get(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*types.Page[models.WalletTransaction], error)
	Credit(ctx context.Context, accountID uuid.UUID, amount int64, description string, orderRef *string) (*models.WalletTransaction, error)
}

type Stock interface {
	Adjust(ctx context.Context, skuID string, input stock.AdjustInput) (*models.StockCounter, error)
}

type Catalog interface {
	Define(ctx context.Context, input catalog.DefineInput) (*models.CatalogVariant, error)
}

type Compensations interface {
	List(ctx context.Context, status *enums.CompensationStatus, params pagination.Params) (*types.Page[models.CompensationFailure], error)
	Retry(ctx context.Context, id uuid.UUID, operator string) (*models.CompensationFailure, error)
	Resolve(ctx context.Context, id uuid.UUID, operator string) (*models.CompensationFailure, error)
}

type PaymentWebhooks interface {
	Process(ctx context.Context, body []byte, bodySignature string) (*saga.PaymentResult, error)
}

type idempotencyStore interface {
	controllers.Pinger
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Deps is everything the router hands to controllers. Nil services yield
// 500s from their handlers rather than panics at wiring time.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         idempotencyStore
	Gatherer      prometheus.Gatherer
	Saga          Saga
	Orders        orders.Service
	Wallets       Wallets
	Stock         Stock
	Catalog       Catalog
	Compensations Compensations
	Webhooks      PaymentWebhooks
}

var (
	_ Compensations = (*compensation.Service)(nil)
	_ Catalog       = (*catalog.Store)(nil)
	_ Stock         = (*stock.Ledger)(nil)
)

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	ready := map[string]controllers.Pinger{}
	if d.DB != nil {
		ready["db"] = d.DB
	}
	if d.Redis != nil {
		ready["redis"] = d.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(d.Webhooks, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Post("/checkout", controllers.Checkout(d.Saga, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(d.Orders, logg))
			r.Post("/cancel", ordercontrollers.Cancel(d.Saga, logg))
			r.Get("/{orderRef}", ordercontrollers.Detail(d.Orders, logg))
			r.Post("/{orderRef}/exchange", ordercontrollers.Exchange(d.Saga, logg))
			r.Post("/{orderRef}/return", ordercontrollers.Return(d.Saga, logg))
			r.Post("/{orderRef}/payment/verify", ordercontrollers.VerifyPayment(d.Saga, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletFetch(d.Wallets, logg))
			r.Post("/", controllers.WalletCreate(d.Wallets, logg))
			r.Get("/transactions", controllers.WalletTransactions(d.Wallets, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.RoleOperator, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Post("/stock/{skuId}", controllers.AdminAdjustStock(d.Stock, logg))
		r.Post("/catalog/variants", controllers.AdminDefineVariant(d.Catalog, logg))

		r.Route("/orders/{orderRef}", func(r chi.Router) {
			r.Post("/ready", controllers.AdminAdvanceOrder(d.Orders, orders.EventMarkReady, logg))
			r.Post("/dispatch", controllers.AdminAdvanceOrder(d.Orders, orders.EventDispatch, logg))
			r.Post("/deliver", controllers.AdminAdvanceOrder(d.Orders, orders.EventDeliver, logg))
		})

		r.Post("/wallets/{accountId}/credit", controllers.AdminCreditWallet(d.Wallets, logg))

		r.Route("/compensations", func(r chi.Router) {
			r.Get("/", controllers.AdminCompensations(d.Compensations, logg))
			r.Post("/{id}/retry", controllers.AdminRetryCompensation(d.Compensations, logg))
			r.Post("/{id}/resolve", controllers.AdminResolveCompensation(d.Compensations, logg))
		})
	})

	return r
}
