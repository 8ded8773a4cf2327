package cache

import (
	"fmt"

	"github.com/hpc-io/pdc-sub004/internal/logger"
	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
)

// Register caches a private copy of buf as a new region of obj, creating
// the object's entry if needed. Cached regions of the same unit that r fully
// covers are released, since the new region holds newer data for all of
// their bytes.
//
// When the resident size then exceeds MaxSize every object is flushed. A
// failure in that flush is logged, not returned, since buf is already
// cached. A region larger than MaxSize on its own is refused with
// ErrCacheFull.
func (tx *Tx) Register(obj store.Object, r region.Region, unit int, buf []byte) error {
	c := tx.c
	size := int64(len(buf))
	if c.cfg.MaxSize > 0 && size > c.cfg.MaxSize {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrCacheFull, size, c.cfg.MaxSize)
	}

	e := c.objects[obj.ID]
	if e == nil {
		e = &Entry{ObjectID: obj.ID, Rank: obj.Rank}
		c.objects[obj.ID] = e
	}
	if len(e.Dims) == 0 && obj.HasShape() {
		e.Dims = append([]uint64(nil), obj.Dims...)
	}

	superseded := tx.releaseCovered(e, r, unit)

	e.regions = append(e.regions, &CachedRegion{
		Region: r.Clone(),
		Unit:   unit,
		Data:   append([]byte(nil), buf...),
	})
	e.lastTouch = c.now()
	c.resident += size
	c.regions++
	c.stats.Registered++
	c.stats.Superseded += int64(superseded)

	if c.metrics != nil {
		c.metrics.RecordRegister(size, superseded)
	}

	logger.DebugCtx(tx.ctx, "region cached",
		logger.KeyObjectID, obj.ID,
		logger.KeyOffset, r.Offset,
		logger.KeySize, r.Size,
		logger.KeyBytes, size,
		"superseded", superseded)

	if c.cfg.MaxSize > 0 && c.resident > c.cfg.MaxSize {
		c.stats.CapacityFlush++
		logger.InfoCtx(tx.ctx, "cache over capacity, flushing all objects",
			logger.KeyBytes, c.resident,
			"max_size", c.cfg.MaxSize)
		if err := c.flushAllLocked(tx.ctx); err != nil {
			// The region is cached either way; failed regions stay resident
			// for the next flush.
			logger.WarnCtx(tx.ctx, "capacity flush incomplete",
				logger.KeyObjectID, obj.ID,
				logger.KeyError, err)
		}
		return nil
	}

	c.publishResident()
	return nil
}

// releaseCovered drops cached regions of e that r fully contains.
func (tx *Tx) releaseCovered(e *Entry, r region.Region, unit int) int {
	kept := e.regions[:0]
	released := 0
	for _, cr := range e.regions {
		if cr.Unit == unit && region.Contains(r, cr.Region) {
			tx.c.resident -= cr.Size()
			tx.c.regions--
			released++
			continue
		}
		kept = append(kept, cr)
	}
	clear(e.regions[len(kept):])
	e.regions = kept
	return released
}
