package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/plantomart/plantomart-backend/pkg/logger"
)

type fakePruner struct {
	cutoff      time.Time
	minAttempts int
	calls       int
	err         error
}

func (f *fakePruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	f.minAttempts = minAttemptCount
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

type passTx struct{}

func (passTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func TestOutboxRetentionJobUsesWindow(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	repo := &fakePruner{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.Nop(),
		DB:          passTx{},
		Repository:  repo,
		Retention:   72 * time.Hour,
		MinAttempts: 4,
	})
	require.NoError(t, err)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, repo.calls)
	require.True(t, repo.cutoff.Equal(now.Add(-72*time.Hour)))
	require.Equal(t, 4, repo.minAttempts)
}

func TestOutboxRetentionJobDefaults(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop(), DB: passTx{}, Repository: &fakePruner{}})
	require.NoError(t, err)
	require.Equal(t, defaultOutboxRetention, job.retention)
	require.Equal(t, defaultOutboxMinAttempts, job.minAttempts)

	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop(), DB: passTx{}})
	require.Error(t, err)
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		DB:         passTx{},
		Repository: &fakePruner{err: errors.New("boom")},
	})
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "boom")
}
