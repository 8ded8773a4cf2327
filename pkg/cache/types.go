package cache

import (
	"errors"
	"time"

	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
)

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrCacheClosed is returned when operations are attempted on a closed cache.
	ErrCacheClosed = errors.New("cache is closed")

	// ErrObjectNotCached is returned when flushing an object the cache has
	// never seen.
	ErrObjectNotCached = errors.New("object not in cache")

	// ErrCacheFull is returned when a single region is larger than the whole
	// cache. The caller should write it through to durable storage.
	ErrCacheFull = errors.New("region larger than cache capacity")
)

// ============================================================================
// Cached data
// ============================================================================

// CachedRegion is one cached write: a region, its element size and a buffer
// owned by the cache.
type CachedRegion struct {
	Region region.Region
	Unit   int
	Data   []byte
}

// Size returns the buffer length in bytes.
func (cr *CachedRegion) Size() int64 {
	return int64(len(cr.Data))
}

// Entry holds the cached regions of one object. Entries are created lazily
// on the first registration and stay in the cache until FlushAll or Close,
// even when all their regions have been flushed.
type Entry struct {
	ObjectID uint64
	Dims     []uint64
	Rank     int

	regions   []*CachedRegion
	lastTouch time.Time
}

// Regions returns the cached regions in registration order. The slice and
// buffers may only be used while the cache lock is held (inside Update).
func (e *Entry) Regions() []*CachedRegion {
	return e.regions
}

// LastTouch returns when the entry was last written, read or flushed.
func (e *Entry) LastTouch() time.Time {
	return e.lastTouch
}

// Object returns the durable target for this entry.
func (e *Entry) Object() store.Object {
	return store.Object{ID: e.ObjectID, Dims: e.Dims, Rank: e.Rank}
}

// NDim returns the object's dimensionality, from dims or else from the
// first cached region. 0 means unknown.
func (e *Entry) NDim() int {
	if len(e.Dims) > 0 {
		return len(e.Dims)
	}
	if len(e.regions) > 0 {
		return e.regions[0].Region.NDim()
	}
	return 0
}

func (e *Entry) bytes() int64 {
	var n int64
	for _, cr := range e.regions {
		n += cr.Size()
	}
	return n
}

// ============================================================================
// Configuration and stats
// ============================================================================

// Config holds cache configuration.
type Config struct {
	// MaxSize is the resident byte limit. Exceeding it flushes every object.
	// 0 means unlimited.
	MaxSize int64

	// FlushWorkers bounds how many objects FlushAll writes in parallel.
	// Default: 4
	FlushWorkers int
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Objects       int   `json:"objects"`
	Regions       int   `json:"regions"`
	ResidentBytes int64 `json:"resident_bytes"`
	MaxSize       int64 `json:"max_size"`

	Registered    int64 `json:"registered"`
	Superseded    int64 `json:"superseded"`
	Flushes       int64 `json:"flushes"`
	FlushedBytes  int64 `json:"flushed_bytes"`
	FlushErrors   int64 `json:"flush_errors"`
	CapacityFlush int64 `json:"capacity_flushes"`
}
