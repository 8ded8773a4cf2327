// Package flusher implements background flushing of idle cache objects.
//
// Clients rarely say when they are done with an object, so cached regions
// could stay resident forever. The flusher periodically persists objects
// whose regions have not been touched for IdleTimeout.
package flusher

import (
	"context"
	"sync"
	"time"

	"github.com/hpc-io/pdc-sub004/internal/logger"
)

// Configuration defaults
const (
	// defaultSweepInterval is how often the flusher checks for idle objects.
	defaultSweepInterval = 10 * time.Second

	// defaultIdleTimeout is how long an object must go untouched before it
	// is flushed.
	defaultIdleTimeout = 30 * time.Second
)

// Sweeper flushes objects idle for at least threshold and reports how many
// it flushed. *cache.Cache implements it.
type Sweeper interface {
	FlushIdle(ctx context.Context, threshold time.Duration) (int, error)
}

// Metrics records sweep results. A nil Metrics disables collection.
type Metrics interface {
	ObserveSweep(flushed int, duration time.Duration, err error)
}

// Config holds configuration for the idle flusher.
type Config struct {
	// SweepInterval is how often to look for idle objects.
	// Default: 10 seconds.
	SweepInterval time.Duration

	// IdleTimeout is how long an object must go untouched before flushing.
	// Default: 30 seconds. Lower values persist data sooner but may flush
	// objects that are still being written.
	IdleTimeout time.Duration
}

// IdleFlusher runs sweeps on a ticker until stopped.
//
// Lifecycle:
//   - Created via New
//   - Started via Start, which spawns the sweep goroutine
//   - Stopped via Stop, which cancels it and waits for the running sweep
//
// Unlike the cache's own shutdown flush, Stop does not sweep one last time:
// closing the cache persists everything anyway.
type IdleFlusher struct {
	sweeper       Sweeper
	metrics       Metrics
	sweepInterval time.Duration
	idleTimeout   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an idle flusher. It does nothing until Start is called.
//
//	f := flusher.New(c, flusher.Config{IdleTimeout: time.Minute}, nil)
//	f.Start(ctx)
//	defer f.Stop()
func New(s Sweeper, cfg Config, metrics Metrics) *IdleFlusher {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	return &IdleFlusher{
		sweeper:       s,
		metrics:       metrics,
		sweepInterval: cfg.SweepInterval,
		idleTimeout:   cfg.IdleTimeout,
	}
}

// Start begins sweeping. Cancelling ctx stops the flusher like Stop.
// Calling Start on a running flusher has no effect.
func (f *IdleFlusher) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return
	}

	ctx, f.cancel = context.WithCancel(ctx)
	logger.Info("Idle flusher started",
		"sweep_interval", f.sweepInterval,
		"idle_timeout", f.idleTimeout)

	f.wg.Add(1)
	go f.run(ctx)
}

// Stop cancels the flusher and waits for it to exit. It is safe to call
// more than once.
func (f *IdleFlusher) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
}

func (f *IdleFlusher) run(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Idle flusher stopped")
			return
		case <-ticker.C:
			f.Sweep(ctx)
		}
	}
}

// Sweep runs one pass immediately and returns the number of objects flushed.
func (f *IdleFlusher) Sweep(ctx context.Context) int {
	start := time.Now()
	flushed, err := f.sweeper.FlushIdle(ctx, f.idleTimeout)
	if f.metrics != nil {
		f.metrics.ObserveSweep(flushed, time.Since(start), err)
	}

	switch {
	case err != nil:
		logger.Warn("Idle flush sweep failed",
			"flushed", flushed,
			logger.KeyError, err)
	case flushed > 0:
		logger.Debug("Idle flush sweep complete",
			"flushed", flushed,
			logger.KeyDurationMs, float64(time.Since(start).Microseconds())/1000)
	}
	return flushed
}
