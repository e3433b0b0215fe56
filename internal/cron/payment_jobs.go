package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/learningsainttech/nanocart-backend/pkg/logger"
)

const defaultPaymentBatch = 100

type expirer interface {
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}

type pendingPoller interface {
	PollPending(ctx context.Context, now time.Time, limit int) (int, error)
}

// PaymentExpiryJobParams configure the job that fails online orders whose
// payment window closed without a verified capture.
type PaymentExpiryJobParams struct {
	Logger    *logger.Logger
	Expirer   expirer
	BatchSize int
}

func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("expirer required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPaymentBatch
	}
	return &paymentExpiryJob{logg: params.Logger, expirer: params.Expirer, batch: batch, now: time.Now}, nil
}

type paymentExpiryJob struct {
	logg    *logger.Logger
	expirer expirer
	batch   int
	now     func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	expired, err := j.expirer.ExpireStale(ctx, j.now().UTC(), j.batch)
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "orders_expired", expired), "expired unpaid orders")
	}
	if err != nil {
		return fmt.Errorf("payment expiry: %w", err)
	}
	return nil
}

// PaymentPollJobParams configure the job that asks the gateway about online
// orders still waiting on a callback.
type PaymentPollJobParams struct {
	Logger    *logger.Logger
	Poller    pendingPoller
	BatchSize int
}

func NewPaymentPollJob(params PaymentPollJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Poller == nil {
		return nil, fmt.Errorf("poller required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPaymentBatch
	}
	return &paymentPollJob{logg: params.Logger, poller: params.Poller, batch: batch, now: time.Now}, nil
}

type paymentPollJob struct {
	logg   *logger.Logger
	poller pendingPoller
	batch  int
	now    func() time.Time
}

func (j *paymentPollJob) Name() string { return "payment-status-poll" }

func (j *paymentPollJob) Run(ctx context.Context) error {
	settled, err := j.poller.PollPending(ctx, j.now().UTC(), j.batch)
	if settled > 0 {
		j.logg.Info(j.logg.WithField(ctx, "orders_settled", settled), "settled orders from gateway status")
	}
	if err != nil {
		return fmt.Errorf("payment poll: %w", err)
	}
	return nil
}
