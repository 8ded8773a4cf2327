// Package memory provides an in-memory store.Backend with the same flat
// row-major layout as the posix store. It counts every positional I/O and
// can be told to fail, which makes it the backend of choice in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
)

type fileKey struct {
	id   uint64
	rank int
}

// Stats counts positional I/O calls.
type Stats struct {
	WriteCalls   int64
	ReadCalls    int64
	BytesWritten int64
	BytesRead    int64
	Strategies   []store.Strategy
}

// Store is an in-memory flat-file backend.
type Store struct {
	mu       sync.Mutex
	files    map[fileKey][]byte
	stats    Stats
	failures map[string]error
	metrics  store.Metrics
	closed   bool
}

var _ store.Backend = (*Store)(nil)

// New creates an empty in-memory store.
func New(metrics store.Metrics) *Store {
	return &Store{
		files:    make(map[fileKey][]byte),
		failures: make(map[string]error),
		metrics:  metrics,
	}
}

func (s *Store) Name() string {
	return "memory"
}

// FailOn makes every subsequent op (store.OpWrite or store.OpRead) fail
// with err. A nil err clears the failure.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Stats returns a snapshot of the I/O counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Strategies = append([]store.Strategy(nil), s.stats.Strategies...)
	return st
}

// Bytes returns a copy of the flat file for (id, rank), or nil.
func (s *Store) Bytes(id uint64, rank int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileKey{id, rank}]
	if !ok {
		return nil
	}
	return append([]byte(nil), f...)
}

func (s *Store) WriteRegion(ctx context.Context, obj store.Object, r region.Region, unit int, buf []byte) error {
	plan, err := prepare(ctx, obj, r, unit, buf)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrStoreClosed
	}

	start := time.Now()
	s.stats.Strategies = append(s.stats.Strategies, plan.Strategy)
	if err := s.failures[store.OpWrite]; err != nil {
		s.observe(store.OpWrite, plan, 0, start, err)
		return &store.IOError{Op: store.OpWrite, Backend: s.Name(), ObjectID: obj.ID,
			Offset: plan.Extents[0].FileOffset, Expected: plan.Bytes(), Err: err}
	}

	key := fileKey{obj.ID, obj.Rank}
	f := s.files[key]
	for _, e := range plan.Extents {
		end := int(e.FileOffset) + e.Length
		if end > len(f) {
			f = append(f, make([]byte, end-len(f))...)
		}
		copy(f[e.FileOffset:end], buf[e.BufOffset:e.BufOffset+e.Length])
		s.stats.WriteCalls++
		s.stats.BytesWritten += int64(e.Length)
	}
	s.files[key] = f

	s.observe(store.OpWrite, plan, plan.Bytes(), start, nil)
	return nil
}

func (s *Store) ReadRegion(ctx context.Context, obj store.Object, r region.Region, unit int, buf []byte) error {
	plan, err := prepare(ctx, obj, r, unit, buf)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrStoreClosed
	}

	start := time.Now()
	s.stats.Strategies = append(s.stats.Strategies, plan.Strategy)
	ioErr := func(actual int64, err error) error {
		s.observe(store.OpRead, plan, actual, start, err)
		return &store.IOError{Op: store.OpRead, Backend: s.Name(), ObjectID: obj.ID,
			Offset: plan.Extents[0].FileOffset, Expected: plan.Bytes(), Actual: actual, Err: err}
	}
	if err := s.failures[store.OpRead]; err != nil {
		return ioErr(0, err)
	}

	f := s.files[fileKey{obj.ID, obj.Rank}]
	var total int64
	for _, e := range plan.Extents {
		s.stats.ReadCalls++
		from := int(e.FileOffset)
		if from >= len(f) {
			return ioErr(total, store.ErrShortIO)
		}
		n := copy(buf[e.BufOffset:e.BufOffset+e.Length], f[from:])
		s.stats.BytesRead += int64(n)
		total += int64(n)
		if n < e.Length {
			return ioErr(total, store.ErrShortIO)
		}
	}

	s.observe(store.OpRead, plan, total, start, nil)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) observe(op string, plan store.Plan, n int64, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveIO(s.Name(), op, plan.Strategy, len(plan.Extents), n, time.Since(start), err)
}

func prepare(ctx context.Context, obj store.Object, r region.Region, unit int, buf []byte) (store.Plan, error) {
	if err := ctx.Err(); err != nil {
		return store.Plan{}, err
	}
	if !obj.HasShape() {
		return store.Plan{}, store.ErrShapeRequired
	}
	if err := store.CheckBuffer(r, unit, buf); err != nil {
		return store.Plan{}, err
	}
	return store.PlanIO(r, obj.Dims, unit)
}
