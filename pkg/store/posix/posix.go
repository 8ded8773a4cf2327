// Package posix stores objects as one flat row-major file per
// (object, server rank) and moves regions with positional reads and writes.
package posix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
)

// DataDir is the directory created under the data root.
const DataDir = "pdc_data"

// Config holds configuration for the flat-file store.
type Config struct {
	// Root is the data root; files go to <Root>/pdc_data/<id>/server<rank>/.
	Root string

	// SyncWrites fsyncs the object file after every region write.
	SyncWrites bool

	// DirMode is the permission mode for created directories.
	// Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	// Default: 0644
	FileMode os.FileMode
}

// Stats counts positional I/O calls issued by the store.
type Stats struct {
	WriteCalls   int64
	ReadCalls    int64
	BytesWritten int64
	BytesRead    int64
}

// Store is a flat-file implementation of store.Backend.
type Store struct {
	cfg     Config
	metrics store.Metrics

	mu     sync.RWMutex
	closed bool

	writeCalls   atomic.Int64
	readCalls    atomic.Int64
	bytesWritten atomic.Int64
	bytesRead    atomic.Int64
}

var _ store.Backend = (*Store)(nil)

// New creates a flat-file store. The data root is created if missing.
func New(cfg Config, metrics store.Metrics) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("data root is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	if err := os.MkdirAll(filepath.Join(cfg.Root, DataDir), cfg.DirMode); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}

	return &Store{cfg: cfg, metrics: metrics}, nil
}

// Path returns the file holding objectID's data on the given rank.
func (s *Store) Path(objectID uint64, rank int) string {
	return filepath.Join(s.cfg.Root, DataDir,
		fmt.Sprintf("%d", objectID),
		fmt.Sprintf("server%d", rank),
		fmt.Sprintf("s%04d.bin", rank))
}

func (s *Store) Name() string {
	return "posix"
}

// Stats returns a snapshot of the I/O counters.
func (s *Store) Stats() Stats {
	return Stats{
		WriteCalls:   s.writeCalls.Load(),
		ReadCalls:    s.readCalls.Load(),
		BytesWritten: s.bytesWritten.Load(),
		BytesRead:    s.bytesRead.Load(),
	}
}

// WriteRegion writes buf to the object file using one WriteAt per planned extent.
func (s *Store) WriteRegion(ctx context.Context, obj store.Object, r region.Region, unit int, buf []byte) error {
	plan, err := s.prepare(obj, r, unit, buf)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}

	start := time.Now()
	path := s.Path(obj.ID, obj.Rank)
	written, err := s.writePlan(ctx, path, plan, buf)
	s.observe(store.OpWrite, plan, written, start, err)
	if err != nil {
		return &store.IOError{
			Op:       store.OpWrite,
			Backend:  s.Name(),
			ObjectID: obj.ID,
			Path:     path,
			Offset:   plan.Extents[0].FileOffset,
			Expected: plan.Bytes(),
			Actual:   written,
			Err:      err,
		}
	}
	return nil
}

func (s *Store) writePlan(ctx context.Context, path string, plan store.Plan, buf []byte) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), s.cfg.DirMode); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, s.cfg.FileMode)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, e := range plan.Extents {
		if err := ctx.Err(); err != nil {
			_ = f.Close()
			return total, err
		}
		n, err := f.WriteAt(buf[e.BufOffset:e.BufOffset+e.Length], e.FileOffset)
		s.writeCalls.Add(1)
		s.bytesWritten.Add(int64(n))
		total += int64(n)
		if err != nil {
			_ = f.Close()
			return total, err
		}
	}

	if s.cfg.SyncWrites {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return total, err
		}
	}
	return total, f.Close()
}

// ReadRegion fills buf from the object file using one ReadAt per planned extent.
func (s *Store) ReadRegion(ctx context.Context, obj store.Object, r region.Region, unit int, buf []byte) error {
	plan, err := s.prepare(obj, r, unit, buf)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}

	start := time.Now()
	path := s.Path(obj.ID, obj.Rank)
	read, err := s.readPlan(ctx, path, plan, buf)
	s.observe(store.OpRead, plan, read, start, err)
	if err != nil {
		return &store.IOError{
			Op:       store.OpRead,
			Backend:  s.Name(),
			ObjectID: obj.ID,
			Path:     path,
			Offset:   plan.Extents[0].FileOffset,
			Expected: plan.Bytes(),
			Actual:   read,
			Err:      err,
		}
	}
	return nil
}

func (s *Store) readPlan(ctx context.Context, path string, plan store.Plan, buf []byte) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	var total int64
	for _, e := range plan.Extents {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := f.ReadAt(buf[e.BufOffset:e.BufOffset+e.Length], e.FileOffset)
		s.readCalls.Add(1)
		s.bytesRead.Add(int64(n))
		total += int64(n)
		if errors.Is(err, io.EOF) {
			return total, store.ErrShortIO
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Store) prepare(obj store.Object, r region.Region, unit int, buf []byte) (store.Plan, error) {
	if !obj.HasShape() {
		return store.Plan{}, store.ErrShapeRequired
	}
	if err := store.CheckBuffer(r, unit, buf); err != nil {
		return store.Plan{}, err
	}
	return store.PlanIO(r, obj.Dims, unit)
}

func (s *Store) observe(op string, plan store.Plan, n int64, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveIO(s.Name(), op, plan.Strategy, len(plan.Extents), n, time.Since(start), err)
}

// Close marks the store closed. Files are opened per call, so nothing else is held.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
