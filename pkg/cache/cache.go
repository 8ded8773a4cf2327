// Package cache implements the server-side region write-back cache.
//
// The cache holds, per object, the regions written by clients and not yet
// persisted. All state is guarded by one mutex: callers run a function
// against the cache with Update and see a consistent view for its whole
// duration, durable I/O done through the Tx included. This totally orders
// cache operations across objects.
//
// Data reaches durable storage only when an object is flushed, explicitly,
// when the resident size exceeds MaxSize, by the idle flusher, or at Close.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hpc-io/pdc-sub004/internal/logger"
	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
)

const defaultFlushWorkers = 4

// Cache is the region write-back cache.
type Cache struct {
	mu      sync.Mutex
	backend store.Backend
	cfg     Config
	metrics Metrics
	now     func() time.Time

	objects  map[uint64]*Entry
	resident int64
	regions  int
	closed   bool

	stats Stats
}

// New creates a cache that flushes to backend. metrics may be nil.
func New(backend store.Backend, cfg Config, metrics Metrics) *Cache {
	if cfg.FlushWorkers <= 0 {
		cfg.FlushWorkers = defaultFlushWorkers
	}
	return &Cache{
		backend: backend,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		objects: make(map[uint64]*Entry),
	}
}

// Tx is the view of the cache handed to Update callbacks. It is only valid
// during the callback.
type Tx struct {
	ctx context.Context
	c   *Cache
}

// Update runs fn with the cache lock held.
func (c *Cache) Update(ctx context.Context, fn func(tx *Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}
	return fn(&Tx{ctx: ctx, c: c})
}

// Object returns the entry for id, or nil when the object was never cached.
func (tx *Tx) Object(id uint64) *Entry {
	return tx.c.objects[id]
}

// Touch marks the entry as used now.
func (tx *Tx) Touch(e *Entry) {
	e.lastTouch = tx.c.now()
}

// ReadDurable reads a region straight from the backend.
func (tx *Tx) ReadDurable(obj store.Object, r region.Region, unit int, buf []byte) error {
	return tx.c.backend.ReadRegion(tx.ctx, obj, r, unit, buf)
}

// WriteDurable writes a region straight to the backend, bypassing the cache.
func (tx *Tx) WriteDurable(obj store.Object, r region.Region, unit int, buf []byte) error {
	return tx.c.backend.WriteRegion(tx.ctx, obj, r, unit, buf)
}

// Stats returns a snapshot of the cache counters and footprint.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stats
	st.Objects = len(c.objects)
	st.Regions = c.regions
	st.ResidentBytes = c.resident
	st.MaxSize = c.cfg.MaxSize
	return st
}

// Close flushes every object and rejects further use with ErrCacheClosed.
// The cache is closed even when the final flush fails.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	err := c.flushAllLocked(ctx)
	c.closed = true
	if err != nil {
		logger.Error("cache close left unflushed regions",
			logger.KeyRegions, c.regions,
			logger.KeyBytes, c.resident,
			logger.KeyError, err)
	}
	return err
}

func (c *Cache) publishResident() {
	if c.metrics != nil {
		c.metrics.RecordResident(len(c.objects), c.regions, c.resident)
	}
}
