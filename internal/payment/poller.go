package payment

import (
	"context"
	"time"

	"github.com/learningsainttech/nanocart-backend/pkg/logger"
)

// StatusFetcher is the slice of Gateway the poller needs.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, intentID string) (*State, error)
}

// Poller asks the gateway for an intent's status until it settles or the
// attempt budget runs out. It holds no locks or transactions while waiting.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration
	attempts int
	logg     *logger.Logger
}

func NewPoller(fetcher StatusFetcher, interval time.Duration, attempts int, logg *logger.Logger) *Poller {
	if attempts <= 0 {
		attempts = 1
	}
	return &Poller{fetcher: fetcher, interval: interval, attempts: attempts, logg: logg}
}

// Await returns the first settled state (captured or failed). When the
// budget is spent it returns the last pending state, or the last error if
// no attempt succeeded.
func (p *Poller) Await(ctx context.Context, intentID string) (*State, error) {
	var (
		last    *State
		lastErr error
	)
	for attempt := 1; attempt <= p.attempts; attempt++ {
		state, err := p.fetcher.FetchStatus(ctx, intentID)
		switch {
		case err != nil:
			lastErr = err
			if p.logg != nil {
				p.logg.Warn(p.logg.WithFields(ctx, map[string]any{"intent_id": intentID, "attempt": attempt, "error": err.Error()}), "payment status poll failed")
			}
		case state.Status != StatusPending:
			return state, nil
		default:
			last = state
		}

		if attempt == p.attempts {
			break
		}
		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if last != nil {
		return last, nil
	}
	return nil, lastErr
}
