// Package badger keeps regions of objects whose shape is unknown as
// standalone records in a BadgerDB database.
//
// Without dims there is no flat layout to compute offsets in, so each
// written region is stored whole, keyed by object id and a write sequence.
// Reads overlay every overlapping record in sequence order, newest last.
//
// Key layout:
//   - r:{objectID:8}{seq:8}  - one region record
//   - seq:records            - badger sequence feeding record numbers
package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/hpc-io/pdc-sub004/internal/logger"
	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
)

const (
	recordPrefix   = "r:"
	sequenceKey    = "seq:records"
	seqBandwidth   = 128
	recordVersion  = 1
	headerFixedLen = 1 + 4 + 1 // version, unit, ndim
)

// Config holds configuration for the record store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in memory only. Used by tests.
	InMemory bool

	// SyncWrites makes badger fsync every commit.
	SyncWrites bool
}

// Store is a BadgerDB implementation of store.Backend for shape-less objects.
type Store struct {
	db      *badgerdb.DB
	seq     *badgerdb.Sequence
	metrics store.Metrics

	mu     sync.RWMutex
	closed bool
}

var _ store.Backend = (*Store)(nil)

// New opens (or creates) the record database.
func New(cfg Config, metrics store.Metrics) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("region store path is required")
	}

	opts := badgerdb.DefaultOptions(cfg.Path).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(badgerLogger{})
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open region store: %w", err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open record sequence: %w", err)
	}

	return &Store{db: db, seq: seq, metrics: metrics}, nil
}

func (s *Store) Name() string {
	return "badger"
}

// WriteRegion stores buf as a new record. Older records of the same unit
// that the new region fully covers are deleted in the same transaction.
func (s *Store) WriteRegion(ctx context.Context, obj store.Object, r region.Region, unit int, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkInput(r, unit, buf); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}

	start := time.Now()
	n, err := s.seq.Next()
	if err == nil {
		err = s.db.Update(func(txn *badgerdb.Txn) error {
			if err := deleteCovered(txn, obj.ID, r, unit); err != nil {
				return err
			}
			return txn.Set(recordKey(obj.ID, n), encodeRecord(r, unit, buf))
		})
	}

	var written int64
	if err == nil {
		written = int64(len(buf))
	}
	s.observe(store.OpWrite, written, start, err)
	if err != nil {
		return &store.IOError{
			Op:       store.OpWrite,
			Backend:  s.Name(),
			ObjectID: obj.ID,
			Expected: int64(len(buf)),
			Err:      err,
		}
	}
	return nil
}

// ReadRegion overlays every record of obj that overlaps r into buf, oldest
// first. Bytes no record covers are left untouched. ErrRegionNotFound is
// returned when nothing overlaps.
func (s *Store) ReadRegion(ctx context.Context, obj store.Object, r region.Region, unit int, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkInput(r, unit, buf); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}

	start := time.Now()
	var copied int64
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return scanObject(txn, obj.ID, func(_ []byte, rec record) error {
			if rec.unit != unit {
				return nil
			}
			copied += int64(region.CopyOverlap(r, buf, rec.region, rec.data, unit))
			return nil
		})
	})
	if err == nil && copied == 0 {
		err = store.ErrRegionNotFound
	}

	s.observe(store.OpRead, copied, start, err)
	if err != nil {
		return &store.IOError{
			Op:       store.OpRead,
			Backend:  s.Name(),
			ObjectID: obj.ID,
			Expected: int64(len(buf)),
			Actual:   min(copied, int64(len(buf))),
			Err:      err,
		}
	}
	return nil
}

// Count returns the number of records held for objectID.
func (s *Store) Count(ctx context.Context, objectID uint64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := objectPrefix(objectID)
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// CacheHitRatios returns badger's block and index cache hit ratios, zero
// when a cache is disabled.
func (s *Store) CacheHitRatios() (block, index float64) {
	return s.db.BlockCacheMetrics().Ratio(), s.db.IndexCacheMetrics().Ratio()
}

// Close releases the sequence and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.seq.Release(), s.db.Close())
}

func (s *Store) observe(op string, n int64, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveIO(s.Name(), op, store.Records, 1, n, time.Since(start), err)
}

func checkInput(r region.Region, unit int, buf []byte) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return store.CheckBuffer(r, unit, buf)
}

// deleteCovered removes records the new region r fully covers.
func deleteCovered(txn *badgerdb.Txn, objectID uint64, r region.Region, unit int) error {
	var stale [][]byte
	err := scanObject(txn, objectID, func(key []byte, rec record) error {
		if rec.unit == unit && region.Contains(r, rec.region) {
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range stale {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// scanObject calls fn for every record of objectID in write order.
func scanObject(txn *badgerdb.Txn, objectID uint64, fn func(key []byte, rec record) error) error {
	opts := badgerdb.DefaultIteratorOptions
	prefix := objectPrefix(objectID)
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err := decodeRecord(val)
		if err != nil {
			return fmt.Errorf("record %x: %w", item.Key(), err)
		}
		if err := fn(item.KeyCopy(nil), rec); err != nil {
			return err
		}
	}
	return nil
}

// badgerLogger routes badger's internal logging to the process logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

