package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learningsainttech/nanocart-backend/internal/saga"
	"github.com/learningsainttech/nanocart-backend/pkg/auth"
	"github.com/learningsainttech/nanocart-backend/pkg/config"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "nanocart-test"}

type memoryRedis struct {
	values map[string]string
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string { return "nc:idem:" + scope + ":" + id }

type fakeSaga struct {
	Saga
	checkouts int
}

func (f *fakeSaga) Checkout(context.Context, saga.CheckoutInput) (*saga.CheckoutResult, error) {
	f.checkouts++
	return &saga.CheckoutResult{OrderRef: "NC-1", OrderStatus: enums.OrderStatusConfirmed}, nil
}

type fakeWebhooks struct{}

func (fakeWebhooks) Process(context.Context, []byte, string) (*saga.PaymentResult, error) {
	return &saga.PaymentResult{Verified: true, OrderRef: "NC-1"}, nil
}

func newTestRouter(t *testing.T, sg *fakeSaga) (http.Handler, *memoryRedis) {
	t.Helper()
	store := &memoryRedis{values: map[string]string{}}
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: testJWT,
	}
	return NewRouter(Deps{
		Config:   cfg,
		Logger:   logger.Nop(),
		Redis:    store,
		Gatherer: prometheus.NewRegistry(),
		Saga:     sg,
		Webhooks: fakeWebhooks{},
	}), store
}

func bearer(t *testing.T, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), time.Hour, auth.AccessTokenPayload{
		AccountID:   uuid.New(),
		AccountKind: enums.AccountKindUser,
		Role:        role,
	})
	require.NoError(t, err)
	return "Bearer " + token
}

const checkoutBody = `{"lineItems":[{"itemId":"tee","color":"black","totalQuantity":1,
"sizeAndQuantity":[{"size":"M","skuId":"tee-black-m","quantity":1}]}],
"shippingAddressId":"addr-1","paymentMethod":"cod","totalAmount":1000}`

func TestHealthAndMetricsArePublic(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSaga{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.Code, path)
	}
}

func TestPaymentWebhookSkipsAuth(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSaga{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestCustomerRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSaga{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody)))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAdminRoutesRequireOperator(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSaga{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/compensations", nil)
	req.Header.Set("Authorization", bearer(t, enums.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestCheckoutIsIdempotentThroughRouter(t *testing.T) {
	sg := &fakeSaga{}
	router, store := newTestRouter(t, sg)
	token := bearer(t, enums.RoleCustomer)

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
		req.Header.Set("Authorization", token)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	assert.Equal(t, http.StatusBadRequest, send("").Code)

	first := send("k-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := send("k-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, sg.checkouts)
	assert.Len(t, store.values, 1)
}
