// Package payload implements the region flush and fetch engine.
//
// Service is the entry point for region I/O on a server. Writes are cached
// in the write-back cache and reach durable storage when the object is
// flushed; reads are served from a cached region that contains them, or from
// durable storage after the object's cached regions are flushed.
//
// Architecture:
//
//	Service
//	  ├── cache.Cache      (write-back regions, durable backend behind it)
//	  ├── transfer.Tracker (status of asynchronous requests)
//	  └── transfer.Queue   (workers running asynchronous requests)
package payload

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hpc-io/pdc-sub004/internal/logger"
	"github.com/hpc-io/pdc-sub004/internal/telemetry"
	"github.com/hpc-io/pdc-sub004/pkg/cache"
	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
	"github.com/hpc-io/pdc-sub004/pkg/transfer"
)

const defaultStopTimeout = 30 * time.Second

// Service runs region writes, reads and flushes against the cache.
//
// Thread safety: all methods are safe for concurrent use. Cache operations
// are serialized by the cache lock.
type Service struct {
	cache   *cache.Cache
	tracker *transfer.Tracker
	queue   *transfer.Queue
	ids     transfer.IDGenerator
	rank    int
	metrics Metrics

	absorbed     atomic.Int64
	registered   atomic.Int64
	writeThrough atomic.Int64
	readHits     atomic.Int64
	readMisses   atomic.Int64
	submitted    atomic.Int64
	rejected     atomic.Int64
	closed       atomic.Bool
}

// New creates a region service. The queue must report to tracker; it is
// started here. metrics may be nil.
func New(c *cache.Cache, tracker *transfer.Tracker, queue *transfer.Queue, cfg Config, metrics Metrics) (*Service, error) {
	if c == nil {
		return nil, errors.New("cache is required")
	}
	if tracker == nil || queue == nil {
		return nil, errors.New("tracker and queue are required")
	}
	if cfg.Rank < 0 {
		return nil, fmt.Errorf("invalid server rank %d", cfg.Rank)
	}

	queue.Start()
	return &Service{
		cache:   c,
		tracker: tracker,
		queue:   queue,
		rank:    cfg.Rank,
		metrics: metrics,
	}, nil
}

// Rank returns the server rank the service writes as.
func (s *Service) Rank() int {
	return s.rank
}

// ============================================================================
// Synchronous operations
// ============================================================================

// WriteRegion caches buf as the new content of region r of obj.
//
// The bytes are first copied into every overlapping cached region of the
// same element size, so cached copies never disagree. If one of those
// regions contains r the write is absorbed and nothing else changes.
// Otherwise r becomes a new cached region, superseding the regions it
// covers. A region too large for the cache is written through to durable
// storage after the object is flushed.
func (s *Service) WriteRegion(ctx context.Context, obj Object, r region.Region, unit int, buf []byte) error {
	if err := s.check(obj, r, unit, buf); err != nil {
		return s.wrap(OpWriteRegion, obj.ID, r, unit, err)
	}

	ctx, span := telemetry.StartCacheSpan(ctx, telemetry.SpanCacheWrite, obj.ID,
		telemetry.RegionShape(r.Offset, r.Size, unit)...)
	defer span.End()

	start := time.Now()
	target := obj.target(s.rank)
	var outcome string

	err := s.cache.Update(ctx, func(tx *cache.Tx) error {
		if e := tx.Object(obj.ID); e != nil {
			if propagate(e, r, unit, buf) {
				tx.Touch(e)
				outcome = OutcomeAbsorbed
				return nil
			}
		}

		err := tx.Register(target, r, unit, buf)
		if !errors.Is(err, cache.ErrCacheFull) {
			outcome = OutcomeRegistered
			return err
		}

		outcome = OutcomeWriteThrough
		if ferr := tx.FlushObject(obj.ID); ferr != nil && !errors.Is(ferr, cache.ErrObjectNotCached) {
			return ferr
		}
		return tx.WriteDurable(target, r, unit, buf)
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return s.wrap(OpWriteRegion, obj.ID, r, unit, err)
	}

	telemetry.SetAttributes(ctx, telemetry.CacheOutcome(outcome))
	switch outcome {
	case OutcomeAbsorbed:
		s.absorbed.Add(1)
	case OutcomeRegistered:
		s.registered.Add(1)
	case OutcomeWriteThrough:
		s.writeThrough.Add(1)
		logger.InfoCtx(ctx, "region exceeds cache capacity, written through",
			logger.KeyObjectID, obj.ID,
			logger.KeyBytes, len(buf))
	}
	if s.metrics != nil {
		s.metrics.ObserveWrite(outcome, len(buf), time.Since(start))
	}
	return nil
}

// propagate copies the written bytes into every cached region of e that
// overlaps r with the same unit. It reports whether one of them contains r.
func propagate(e *cache.Entry, r region.Region, unit int, buf []byte) bool {
	absorbed := false
	for _, cr := range e.Regions() {
		if cr.Unit != unit {
			continue
		}
		switch region.Classify(r, cr.Region) {
		case region.Contained:
			region.CopyIn(cr.Region, cr.Data, r, buf, unit)
			absorbed = true
		case region.ContainedBy, region.PartialOverlap:
			region.CopyOverlap(cr.Region, cr.Data, r, buf, unit)
		}
	}
	return absorbed
}

// ReadRegion fills buf with the content of region r of obj.
//
// A cached region of the same unit that contains r answers the read without
// I/O. Otherwise the object's cached regions are flushed first so durable
// storage holds every earlier write, and r is read from there.
func (s *Service) ReadRegion(ctx context.Context, obj Object, r region.Region, unit int, buf []byte) error {
	if err := s.check(obj, r, unit, buf); err != nil {
		return s.wrap(OpReadRegion, obj.ID, r, unit, err)
	}

	ctx, span := telemetry.StartCacheSpan(ctx, telemetry.SpanCacheRead, obj.ID,
		telemetry.RegionShape(r.Offset, r.Size, unit)...)
	defer span.End()

	start := time.Now()
	target := obj.target(s.rank)
	hit := false

	err := s.cache.Update(ctx, func(tx *cache.Tx) error {
		e := tx.Object(obj.ID)
		if e != nil {
			for _, cr := range e.Regions() {
				if cr.Unit == unit && region.Contains(cr.Region, r) {
					region.CopyOut(cr.Region, cr.Data, r, buf, unit)
					tx.Touch(e)
					hit = true
					return nil
				}
			}
			if !target.HasShape() && len(e.Dims) > 0 {
				target.Dims = e.Dims
			}
			if len(e.Regions()) > 0 {
				if err := tx.FlushObject(obj.ID); err != nil {
					return fmt.Errorf("flush before read: %w", err)
				}
			}
		}
		return tx.ReadDurable(target, r, unit, buf)
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return s.wrap(OpReadRegion, obj.ID, r, unit, err)
	}

	telemetry.SetAttributes(ctx, telemetry.CacheHit(hit))
	if hit {
		s.readHits.Add(1)
	} else {
		s.readMisses.Add(1)
	}
	if s.metrics != nil {
		s.metrics.ObserveRead(hit, len(buf), time.Since(start))
	}
	return nil
}

// Flush persists every cached region of object id. Flushing an object that
// has nothing cached succeeds without I/O.
func (s *Service) Flush(ctx context.Context, id uint64) error {
	ctx, span := telemetry.StartCacheSpan(ctx, telemetry.SpanCacheFlush, id)
	defer span.End()

	err := s.cache.Flush(ctx, id)
	if err == nil || errors.Is(err, cache.ErrObjectNotCached) {
		return nil
	}
	telemetry.RecordError(ctx, err)
	return &RegionError{Op: OpFlush, ObjectID: id, Err: err}
}

// FlushAll persists every cached object.
func (s *Service) FlushAll(ctx context.Context) error {
	ctx, span := telemetry.StartCacheSpan(ctx, telemetry.SpanCacheFlush, 0)
	defer span.End()

	if err := s.cache.FlushAll(ctx); err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("flush all: %w", err)
	}
	return nil
}

// ============================================================================
// Asynchronous operations
// ============================================================================

// SubmitWrite queues a region write and returns its transfer id. buf is
// copied, so the caller may reuse it immediately. Arguments are validated
// before queuing.
func (s *Service) SubmitWrite(ctx context.Context, obj Object, r region.Region, unit int, buf []byte) (uint64, error) {
	if err := s.check(obj, r, unit, buf); err != nil {
		return 0, s.wrap(OpWriteRegion, obj.ID, r, unit, err)
	}
	data := append([]byte(nil), buf...)
	obj.Dims = append([]uint64(nil), obj.Dims...)
	r = r.Clone()
	return s.submit(ctx, OpWriteRegion, obj.ID, func(ctx context.Context) error {
		return s.WriteRegion(ctx, obj, r, unit, data)
	})
}

// SubmitRead queues a region read into buf and returns its transfer id. The
// caller must not touch buf until the transfer has finished.
func (s *Service) SubmitRead(ctx context.Context, obj Object, r region.Region, unit int, buf []byte) (uint64, error) {
	if err := s.check(obj, r, unit, buf); err != nil {
		return 0, s.wrap(OpReadRegion, obj.ID, r, unit, err)
	}
	obj.Dims = append([]uint64(nil), obj.Dims...)
	r = r.Clone()
	return s.submit(ctx, OpReadRegion, obj.ID, func(ctx context.Context) error {
		return s.ReadRegion(ctx, obj, r, unit, buf)
	})
}

// SubmitFlush queues a flush of object id and returns its transfer id.
func (s *Service) SubmitFlush(ctx context.Context, id uint64) (uint64, error) {
	return s.submit(ctx, OpFlush, id, func(ctx context.Context) error {
		return s.Flush(ctx, id)
	})
}

func (s *Service) submit(ctx context.Context, kind string, objectID uint64, run func(context.Context) error) (uint64, error) {
	if s.closed.Load() {
		return 0, ErrServiceClosed
	}

	id := s.ids.Next()
	if err := s.tracker.Register(id); err != nil {
		return 0, err
	}
	job := transfer.Job{ID: id, Kind: kind, ObjectID: objectID, Run: run}
	if !s.queue.Enqueue(job) {
		s.tracker.Discard(id)
		s.rejected.Add(1)
		return 0, transfer.ErrQueueFull
	}

	s.submitted.Add(1)
	logger.DebugCtx(ctx, "transfer submitted",
		logger.KeyTransferID, id,
		logger.KeyOperation, kind,
		logger.KeyObjectID, objectID)
	return id, nil
}

// Check returns the status of transfer id. A finished transfer is reported
// once by Check; afterwards its final status is served from the tracker's
// recent history, and StatusNotFound means the id is unknown.
func (s *Service) Check(id uint64) (transfer.Status, error) {
	st := s.tracker.Check(id)
	if st == transfer.StatusNotFound {
		if recent, ok := s.tracker.Recent(id); ok {
			st = recent
		}
	}
	if st == transfer.StatusFailed {
		return st, s.tracker.Err(id)
	}
	return st, nil
}

// Wait blocks until every listed transfer has finished or ctx is done. The
// reply's Err is the first failure among them. Transfers already collected
// by Check cannot be waited on.
func (s *Service) Wait(ctx context.Context, ids ...uint64) (transfer.Reply, error) {
	if len(ids) == 0 {
		return transfer.Reply{Kind: transfer.ResponseWaitAll, Status: transfer.StatusComplete}, nil
	}

	w := transfer.NewChanWaiter()
	var err error
	if len(ids) == 1 {
		err = s.tracker.Bind(ids[0], w)
	} else {
		err = s.tracker.BindAll(ids, w)
	}
	if err != nil {
		return transfer.Reply{}, err
	}

	select {
	case reply := <-w:
		return reply, nil
	case <-ctx.Done():
		return transfer.Reply{}, ctx.Err()
	}
}

// ============================================================================
// Lifecycle and stats
// ============================================================================

// Stats returns engine counters.
func (s *Service) Stats() Stats {
	return Stats{
		Absorbed:     s.absorbed.Load(),
		Registered:   s.registered.Load(),
		WriteThrough: s.writeThrough.Load(),
		ReadHits:     s.readHits.Load(),
		ReadMisses:   s.readMisses.Load(),
		Submitted:    s.submitted.Load(),
		Rejected:     s.rejected.Load(),
	}
}

// CacheStats returns the cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// QueueStats returns the transfer queue counters.
func (s *Service) QueueStats() transfer.QueueStats {
	return s.queue.Stats()
}

// Close stops accepting submissions, lets queued transfers finish, and
// flushes the cache. The queue gets until ctx's deadline, or 30s without one.
func (s *Service) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}

	timeout := defaultStopTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !s.queue.Stop(timeout) {
		logger.Warn("transfer queue did not drain before shutdown", "pending", s.queue.Pending())
	}
	return s.cache.Close(ctx)
}

// ============================================================================
// Validation
// ============================================================================

func (s *Service) check(obj Object, r region.Region, unit int, buf []byte) error {
	if unit <= 0 {
		return fmt.Errorf("%w: unit %d", store.ErrInvalidUnit, unit)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if len(obj.Dims) > 0 {
		if len(obj.Dims) != r.NDim() {
			return fmt.Errorf("%w: object has %d dims, region %d", ErrNDimMismatch, len(obj.Dims), r.NDim())
		}
		if err := r.WithinDims(obj.Dims); err != nil {
			return err
		}
	}
	return store.CheckBuffer(r, unit, buf)
}

func (s *Service) wrap(op string, id uint64, r region.Region, unit int, err error) error {
	return &RegionError{Op: op, ObjectID: id, Region: r.String(), Unit: unit, Err: err}
}
