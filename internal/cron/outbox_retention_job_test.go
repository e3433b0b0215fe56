package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learningsainttech/nanocart-backend/pkg/logger"
)

type fakeOutboxRetentionRepo struct {
	deleteFn func(cutoff time.Time, limit int) (int64, error)
	calls    int
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	f.calls++
	return f.deleteFn(cutoff, limit)
}

func newRetentionJob(t *testing.T, repo outboxRetentionRepo, batch int) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		Repository: repo,
		BatchSize:  batch,
	})
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionDeletesUntilShortBatch(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	remaining := int64(25)
	var cutoffs []time.Time
	repo := &fakeOutboxRetentionRepo{deleteFn: func(cutoff time.Time, limit int) (int64, error) {
		cutoffs = append(cutoffs, cutoff)
		n := min(remaining, int64(limit))
		remaining -= n
		return n, nil
	}}
	job := newRetentionJob(t, repo, 10)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 3, repo.calls)
	assert.Zero(t, remaining)
	for _, c := range cutoffs {
		assert.Equal(t, now.Add(-outboxRetention), c)
	}
}

func TestOutboxRetentionStopsAtBatchCap(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{deleteFn: func(_ time.Time, limit int) (int64, error) {
		return int64(limit), nil
	}}
	job := newRetentionJob(t, repo, 1)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, outboxRetentionMaxBatches, repo.calls)
}

func TestOutboxRetentionPropagatesErrors(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{deleteFn: func(time.Time, int) (int64, error) {
		return 0, errors.New("db down")
	}}
	job := newRetentionJob(t, repo, 0)

	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestNewOutboxRetentionJobValidates(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Repository: &fakeOutboxRetentionRepo{}})
	assert.Error(t, err)
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
