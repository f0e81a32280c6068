package maintenance

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/plantomart/plantomart-backend/pkg/logger"
	"github.com/plantomart/plantomart-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs++
	return c.err
}

func TestRunOnceRunsEveryJobAndRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	ok := &countingJob{name: "ok"}
	bad := &countingJob{name: "bad", err: errors.New("boom")}
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(ok, nil, bad),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(reg),
	})
	require.NoError(t, err)

	err = svc.RunOnce(context.Background())
	require.ErrorContains(t, err, "bad: boom")
	require.Equal(t, 1, ok.runs)
	require.Equal(t, 1, bad.runs)
	require.Equal(t, 1, lock.releases)
	require.False(t, lock.held)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, 1.0, counterValue(mfs, "job_success_total", "ok"))
	require.Equal(t, 1.0, counterValue(mfs, "job_failure_total", "bad"))
	require.Zero(t, counterValue(mfs, "job_success_total", "bad"))
}

func counterValue(mfs []*dto.MetricFamily, name, job string) float64 {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "job" && l.GetValue() == job {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "ok"}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{held: true},
	})
	require.NoError(t, err)
	require.NoError(t, svc.RunOnce(context.Background()))
	require.Zero(t, job.runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "ok"}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
	require.Equal(t, 1, job.runs)
}

type kv struct {
	values map[string]string
}

func (k *kv) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := k.values[key]; ok {
		return false, nil
	}
	k.values[key] = value.(string)
	return true, nil
}

func (k *kv) DeleteIfEquals(_ context.Context, key, expected string) (bool, error) {
	if v, ok := k.values[key]; !ok || v != expected {
		return false, nil
	}
	delete(k.values, key)
	return true, nil
}

func TestRedisLockReleasesOnlyOwnKey(t *testing.T) {
	store := &kv{values: map[string]string{}}
	first, err := NewRedisLock(store, "pm:maintenance:lock", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "pm:maintenance:lock", 0)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, got)
	got, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, got)

	require.NoError(t, second.Release(ctx))
	require.Contains(t, store.values, "pm:maintenance:lock")

	store.values["pm:maintenance:lock"] = "someone-else"
	require.NoError(t, first.Release(ctx))
	require.Contains(t, store.values, "pm:maintenance:lock")

	delete(store.values, "pm:maintenance:lock")
	got, err = first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, got)
	require.NoError(t, first.Release(ctx))
	require.NotContains(t, store.values, "pm:maintenance:lock")
}

type depthStub struct {
	pending, dead int64
	err           error
}

func (d depthStub) Depth(context.Context) (int64, int64, error) { return d.pending, d.dead, d.err }

func TestReconciliationBacklogJobWarnsOnDeadLetters(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: buf})

	job, err := NewReconciliationBacklogJob(logg, depthStub{pending: 1, dead: 2}, 100)
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))
	require.Contains(t, buf.String(), "manual review")
	require.Contains(t, buf.String(), `"dead":2`)

	buf.Reset()
	job, err = NewReconciliationBacklogJob(logg, depthStub{pending: 150}, 100)
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))
	require.Contains(t, buf.String(), "above threshold")

	job, err = NewReconciliationBacklogJob(logg, depthStub{err: errors.New("down")}, 0)
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "down")
}
