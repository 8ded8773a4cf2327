package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hpc-io/pdc-sub004/internal/logger"
	"github.com/hpc-io/pdc-sub004/internal/telemetry"
	"github.com/hpc-io/pdc-sub004/pkg/region"
)

// flushResult is what flushing one entry did, applied to the cache totals
// by the caller once the write has finished.
type flushResult struct {
	entry        *Entry
	regionsDelta int
	bytesDelta   int64
	written      int
	writtenBytes int64
	err          error
}

// FlushObject persists every cached region of object id. Written regions
// are released; if a write fails the regions not yet written stay cached
// and the error is returned. Flushing an object with nothing cached is a
// no-op. ErrObjectNotCached is returned for unknown objects.
func (tx *Tx) FlushObject(id uint64) error {
	e := tx.c.objects[id]
	if e == nil {
		return ErrObjectNotCached
	}
	if len(e.regions) == 0 {
		return nil
	}
	res := tx.c.flushEntry(tx.ctx, e)
	tx.c.apply(res)
	tx.c.publishResident()
	return res.err
}

// FlushAll persists every object and then drops the entries that are fully
// flushed. Objects are written in parallel, up to FlushWorkers at a time.
func (tx *Tx) FlushAll() error {
	return tx.c.flushAllLocked(tx.ctx)
}

// Flush persists every cached region of object id.
func (c *Cache) Flush(ctx context.Context, id uint64) error {
	return c.Update(ctx, func(tx *Tx) error {
		return tx.FlushObject(id)
	})
}

// FlushAll persists every cached object and clears the cache.
func (c *Cache) FlushAll(ctx context.Context) error {
	return c.Update(ctx, func(tx *Tx) error {
		return tx.FlushAll()
	})
}

// FlushIdle flushes objects with cached regions that have not been touched
// for at least threshold. Their entries stay in the cache. It returns the
// number of objects flushed.
func (c *Cache) FlushIdle(ctx context.Context, threshold time.Duration) (int, error) {
	flushed := 0
	err := c.Update(ctx, func(tx *Tx) error {
		cutoff := c.now().Add(-threshold)
		var errs []error
		for _, e := range c.objects {
			if len(e.regions) == 0 || e.lastTouch.After(cutoff) {
				continue
			}
			res := c.flushEntry(ctx, e)
			c.apply(res)
			if res.err != nil {
				errs = append(errs, res.err)
				continue
			}
			flushed++
		}
		c.publishResident()
		return errors.Join(errs...)
	})
	return flushed, err
}

func (c *Cache) flushAllLocked(ctx context.Context) error {
	pending := make([]*Entry, 0, len(c.objects))
	for _, e := range c.objects {
		if len(e.regions) > 0 {
			pending = append(pending, e)
		}
	}

	results := make([]flushResult, len(pending))
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.FlushWorkers)
	for i, e := range pending {
		g.Go(func() error {
			results[i] = c.flushEntry(ctx, e)
			return results[i].err
		})
	}

	var err error
	if g.Wait() != nil {
		errs := make([]error, 0, len(results))
		for _, res := range results {
			errs = append(errs, res.err)
		}
		err = errors.Join(errs...)
	}

	for _, res := range results {
		c.apply(res)
	}
	for id, e := range c.objects {
		if len(e.regions) == 0 {
			delete(c.objects, id)
		}
	}
	c.publishResident()
	return err
}

// flushEntry writes e's regions to the backend. It only touches e, so
// several entries can be flushed concurrently; cache totals are updated
// afterwards by apply.
func (c *Cache) flushEntry(ctx context.Context, e *Entry) flushResult {
	ctx, span := telemetry.StartCacheSpan(ctx, telemetry.SpanCacheFlush, e.ObjectID,
		telemetry.CacheRegions(len(e.regions)))
	defer span.End()

	start := time.Now()
	beforeRegions, beforeBytes := len(e.regions), e.bytes()
	if e.NDim() == 1 {
		e.regions = coalesce(e.regions)
	}

	res := flushResult{entry: e}
	obj := e.Object()
	for i, cr := range e.regions {
		if err := c.backend.WriteRegion(ctx, obj, cr.Region, cr.Unit, cr.Data); err != nil {
			res.err = fmt.Errorf("flush object %d region %s: %w", e.ObjectID, cr.Region, err)
			kept := slices.Clone(e.regions[i:])
			e.regions = kept
			break
		}
		res.written++
		res.writtenBytes += cr.Size()
	}
	if res.err == nil {
		e.regions = nil
	}
	e.lastTouch = c.now()

	res.regionsDelta = len(e.regions) - beforeRegions
	res.bytesDelta = e.bytes() - beforeBytes

	if c.metrics != nil {
		c.metrics.ObserveFlush(res.written, res.writtenBytes, time.Since(start), res.err)
	}
	if res.err != nil {
		telemetry.RecordError(ctx, res.err)
		logger.ErrorCtx(ctx, "object flush failed",
			logger.KeyObjectID, e.ObjectID,
			logger.KeyRegions, len(e.regions),
			logger.KeyError, res.err)
	} else {
		logger.DebugCtx(ctx, "object flushed",
			logger.KeyObjectID, e.ObjectID,
			logger.KeyRegions, res.written,
			logger.KeyBytes, res.writtenBytes,
			logger.KeyDurationMs, logger.Duration(start))
	}
	return res
}

func (c *Cache) apply(res flushResult) {
	if res.entry == nil {
		return
	}
	c.regions += res.regionsDelta
	c.resident += res.bytesDelta
	c.stats.Flushes++
	c.stats.FlushedBytes += res.writtenBytes
	if res.err != nil {
		c.stats.FlushErrors++
	}
}

// coalesce sorts 1D regions by offset and merges neighbours that touch or
// overlap, so the flush issues as few writes as possible. Regions of one
// unit agree wherever they overlap; when units are mixed they may not, so
// the registration order is kept and nothing is merged.
func coalesce(regions []*CachedRegion) []*CachedRegion {
	if len(regions) < 2 {
		return regions
	}
	for _, cr := range regions[1:] {
		if cr.Unit != regions[0].Unit {
			return regions
		}
	}
	sorted := slices.Clone(regions)
	slices.SortStableFunc(sorted, func(a, b *CachedRegion) int {
		switch {
		case a.Region.Offset[0] < b.Region.Offset[0]:
			return -1
		case a.Region.Offset[0] > b.Region.Offset[0]:
			return 1
		default:
			return 0
		}
	})

	out := make([]*CachedRegion, 0, len(sorted))
	cur := sorted[0]
	for _, next := range sorted[1:] {
		if merged, buf, err := region.Merge(cur.Region, cur.Data, next.Region, next.Data, cur.Unit); err == nil {
			cur = &CachedRegion{Region: merged, Unit: cur.Unit, Data: buf}
			continue
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}
