package paymentwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const provider = "payment"

type replayStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	WebhookKey(provider, id string) string
}

// ReplayGuard remembers callbacks that already settled an order so gateway
// retries are answered from Redis. Only verified callbacks are remembered; a
// forged callback must never shadow the genuine one.
type ReplayGuard struct {
	store replayStore
	ttl   time.Duration
}

func NewReplayGuard(store replayStore, ttl time.Duration) (*ReplayGuard, error) {
	if store == nil {
		return nil, errors.New("replay store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &ReplayGuard{store: store, ttl: ttl}, nil
}

// Seen reports whether the callback was already applied and returns the value
// remembered for it.
func (g *ReplayGuard) Seen(ctx context.Context, gatewayOrderID, paymentID string) (string, bool, error) {
	value, err := g.store.Get(ctx, g.key(gatewayOrderID, paymentID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read replay key: %w", err)
	}
	return value, value != "", nil
}

func (g *ReplayGuard) Remember(ctx context.Context, gatewayOrderID, paymentID, value string) error {
	if _, err := g.store.SetNX(ctx, g.key(gatewayOrderID, paymentID), value, g.ttl); err != nil {
		return fmt.Errorf("set replay key: %w", err)
	}
	return nil
}

func (g *ReplayGuard) key(gatewayOrderID, paymentID string) string {
	return g.store.WebhookKey(provider, gatewayOrderID+":"+paymentID)
}
