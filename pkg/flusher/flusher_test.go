package flusher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hpc-io/pdc-sub004/pkg/cache"
	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
	"github.com/hpc-io/pdc-sub004/pkg/store/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSweeper struct {
	mu         sync.Mutex
	calls      int
	thresholds []time.Duration
	flushed    int
	err        error
}

func (f *fakeSweeper) FlushIdle(_ context.Context, threshold time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.thresholds = append(f.thresholds, threshold)
	return f.flushed, f.err
}

func (f *fakeSweeper) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sweepRecorder struct {
	mu      sync.Mutex
	flushed []int
	errs    []error
}

func (r *sweepRecorder) ObserveSweep(flushed int, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed = append(r.flushed, flushed)
	r.errs = append(r.errs, err)
}

func TestDefaults(t *testing.T) {
	f := New(&fakeSweeper{}, Config{}, nil)
	assert.Equal(t, defaultSweepInterval, f.sweepInterval)
	assert.Equal(t, defaultIdleTimeout, f.idleTimeout)
}

func TestSweepPassesIdleTimeout(t *testing.T) {
	s := &fakeSweeper{flushed: 3}
	rec := &sweepRecorder{}
	f := New(s, Config{IdleTimeout: 5 * time.Second}, rec)

	assert.Equal(t, 3, f.Sweep(context.Background()))
	assert.Equal(t, []time.Duration{5 * time.Second}, s.thresholds)
	assert.Equal(t, []int{3}, rec.flushed)
}

func TestSweepReportsErrors(t *testing.T) {
	boom := errors.New("ost down")
	s := &fakeSweeper{flushed: 1, err: boom}
	rec := &sweepRecorder{}
	f := New(s, Config{}, rec)

	assert.Equal(t, 1, f.Sweep(context.Background()))
	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], boom)
}

func TestRunSweepsUntilStopped(t *testing.T) {
	s := &fakeSweeper{}
	f := New(s, Config{SweepInterval: 5 * time.Millisecond}, nil)

	f.Start(context.Background())
	f.Start(context.Background())
	require.Eventually(t, func() bool { return s.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)

	f.Stop()
	calls := s.Calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, s.Calls())

	f.Stop()
}

func TestParentContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := New(&fakeSweeper{}, Config{SweepInterval: time.Hour}, nil)
	f.Start(ctx)
	cancel()
	f.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	f := New(&fakeSweeper{}, Config{}, nil)
	f.Stop()
}

func TestFlushesIdleCacheObjects(t *testing.T) {
	ctx := context.Background()
	backend := memory.New(nil)
	c := cache.New(backend, cache.Config{}, nil)
	defer func() { _ = c.Close(ctx) }()

	obj := store.Object{ID: 1, Dims: []uint64{8}}
	require.NoError(t, c.Update(ctx, func(tx *cache.Tx) error {
		return tx.Register(obj, region.MustNew([]uint64{0}, []uint64{4}), 1, []byte("idle"))
	}))

	f := New(c, Config{SweepInterval: 5 * time.Millisecond, IdleTimeout: time.Millisecond}, nil)
	f.Start(ctx)
	defer f.Stop()

	require.Eventually(t, func() bool {
		return string(backend.Bytes(1, 0)) == "idle"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, c.Stats().Regions)
}
