package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learningsainttech/nanocart-backend/pkg/config"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox/payloads"
)

func TestResolveOrderEvent(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventOrderConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   "ORD-1",
		Payload: mustEnvelope(t, payloads.OrderEvent{
			OrderRef: "ORD-1",
			Status:   enums.OrderStatusConfirmed,
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.OrderEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, enums.OrderStatusConfirmed, payload.Status)
	assert.NotEmpty(t, resolved.Envelope.EventID)
}

func TestResolveWalletEventUsesWalletTopic(t *testing.T) {
	reg := newTestEventRegistry(t)
	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventWalletDebited,
		AggregateType: enums.AggregateWallet,
		AggregateID:   uuid.NewString(),
		Payload:       mustEnvelope(t, payloads.WalletEvent{Amount: 300}),
	})
	require.NoError(t, err)
	assert.Equal(t, "wallet-topic", resolved.Descriptor.Topic)
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	tests := map[string]models.OutboxEvent{
		"unknown type": {
			EventType: "mystery", AggregateType: enums.AggregateOrder, AggregateID: "x",
			Payload: mustEnvelope(t, payloads.OrderEvent{}),
		},
		"aggregate mismatch": {
			EventType: enums.EventOrderCreated, AggregateType: enums.AggregateWallet, AggregateID: "x",
			Payload: mustEnvelope(t, payloads.OrderEvent{}),
		},
		"missing aggregate": {
			EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder,
			Payload: mustEnvelope(t, payloads.OrderEvent{}),
		},
		"null data": {
			EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: "x",
			Payload: json.RawMessage(`{"version":1,"eventId":"e","data":null}`),
		},
		"garbage": {
			EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: "x",
			Payload: json.RawMessage(`{`),
		},
	}
	for name, row := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(row)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "got %v", err)
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{WalletTopic: "w"})
	assert.Error(t, err)
	_, err = NewEventRegistry(config.PubSubConfig{OrdersTopic: "o"})
	assert.Error(t, err)

	reg := newTestEventRegistry(t)
	assert.ElementsMatch(t, []string{"orders-topic", "wallet-topic"}, reg.Topics())
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic", WalletTopic: "wallet-topic"})
	require.NoError(t, err)
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return env
}
