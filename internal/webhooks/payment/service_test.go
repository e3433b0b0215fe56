package paymentwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learningsainttech/nanocart-backend/internal/payment"
	"github.com/learningsainttech/nanocart-backend/internal/saga"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
)

type memoryStore struct {
	values map[string]string
	getErr error
}

func newMemoryStore() *memoryStore { return &memoryStore{values: map[string]string{}} }

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) WebhookKey(provider, id string) string { return "nc:webhook:" + provider + ":" + id }

type fakeCallbacks struct {
	handleFn func(saga.CallbackInput) (*saga.PaymentResult, error)
	calls    int
}

func (f *fakeCallbacks) HandleCallback(_ context.Context, in saga.CallbackInput) (*saga.PaymentResult, error) {
	f.calls++
	return f.handleFn(in)
}

const webhookSecret = "whsec_test"

func newTestService(t *testing.T, callbacks *fakeCallbacks, store *memoryStore) *Service {
	t.Helper()
	guard, err := NewReplayGuard(store, time.Hour)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Callbacks: callbacks,
		Verifier:  payment.NewVerifier("secret", webhookSecret),
		Guard:     guard,
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func signedBody(t *testing.T, in saga.CallbackInput) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(in)
	require.NoError(t, err)
	return body, payment.NewVerifier("secret", webhookSecret).SignWebhookBody(body)
}

func TestProcessRemembersVerifiedCallbacks(t *testing.T) {
	store := newMemoryStore()
	callbacks := &fakeCallbacks{handleFn: func(in saga.CallbackInput) (*saga.PaymentResult, error) {
		return &saga.PaymentResult{Verified: true, OrderRef: "ORD-1", OrderStatus: enums.OrderStatusConfirmed}, nil
	}}
	svc := newTestService(t, callbacks, store)
	body, sig := signedBody(t, saga.CallbackInput{GatewayOrderID: "pi_1", PaymentID: "pay_1", Signature: "abc"})

	first, err := svc.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.True(t, first.Verified)

	second, err := svc.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, 1, callbacks.calls)
	assert.Equal(t, "ORD-1", second.OrderRef)
	assert.Equal(t, enums.OrderStatusConfirmed, second.OrderStatus)
}

func TestProcessDoesNotRememberRejectedCallbacks(t *testing.T) {
	store := newMemoryStore()
	callbacks := &fakeCallbacks{handleFn: func(in saga.CallbackInput) (*saga.PaymentResult, error) {
		return &saga.PaymentResult{Verified: false, OrderRef: "ORD-2", OrderStatus: enums.OrderStatusFailed}, nil
	}}
	svc := newTestService(t, callbacks, store)
	body, sig := signedBody(t, saga.CallbackInput{GatewayOrderID: "pi_2", PaymentID: "pay_2", Signature: "forged"})

	for i := 0; i < 2; i++ {
		result, err := svc.Process(context.Background(), body, sig)
		require.NoError(t, err)
		assert.False(t, result.Verified)
	}
	assert.Equal(t, 2, callbacks.calls)
	assert.Empty(t, store.values)
}

func TestProcessRejectsBadBodySignature(t *testing.T) {
	callbacks := &fakeCallbacks{}
	svc := newTestService(t, callbacks, newMemoryStore())
	body, _ := signedBody(t, saga.CallbackInput{GatewayOrderID: "pi_3", PaymentID: "pay_3", Signature: "x"})

	_, err := svc.Process(context.Background(), body, "deadbeef")
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
	assert.Zero(t, callbacks.calls)
}

func TestProcessValidatesPayload(t *testing.T) {
	svc := newTestService(t, &fakeCallbacks{}, newMemoryStore())

	body, sig := signedBody(t, saga.CallbackInput{GatewayOrderID: "pi_4"})
	_, err := svc.Process(context.Background(), body, sig)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	raw := []byte("not json")
	_, err = svc.Process(context.Background(), raw, payment.NewVerifier("secret", webhookSecret).SignWebhookBody(raw))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestProcessFallsThroughWhenRedisFails(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("redis down")
	callbacks := &fakeCallbacks{handleFn: func(in saga.CallbackInput) (*saga.PaymentResult, error) {
		return &saga.PaymentResult{Verified: true, OrderRef: "ORD-5", OrderStatus: enums.OrderStatusConfirmed}, nil
	}}
	svc := newTestService(t, callbacks, store)
	body, sig := signedBody(t, saga.CallbackInput{GatewayOrderID: "pi_5", PaymentID: "pay_5", Signature: "s"})

	result, err := svc.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, 1, callbacks.calls)
}

func TestProcessPropagatesSagaErrors(t *testing.T) {
	callbacks := &fakeCallbacks{handleFn: func(saga.CallbackInput) (*saga.PaymentResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}}
	store := newMemoryStore()
	svc := newTestService(t, callbacks, store)
	body, sig := signedBody(t, saga.CallbackInput{GatewayOrderID: "pi_6", PaymentID: "pay_6", Signature: "s"})

	_, err := svc.Process(context.Background(), body, sig)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Empty(t, store.values)
}
