package posix

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
)

type recordedIO struct {
	op       string
	strategy store.Strategy
	extents  int
	bytes    int64
	err      error
}

type fakeMetrics struct {
	calls []recordedIO
}

func (m *fakeMetrics) ObserveIO(_, op string, strategy store.Strategy, extents int, bytes int64, _ time.Duration, err error) {
	m.calls = append(m.calls, recordedIO{op, strategy, extents, bytes, err})
}

func newTestStore(t *testing.T) (*Store, *fakeMetrics) {
	t.Helper()
	m := &fakeMetrics{}
	s, err := New(Config{Root: t.TempDir()}, m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, m
}

func alphabet(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte('A' + i%26)
	}
	return buf
}

func TestPath(t *testing.T) {
	s := &Store{cfg: Config{Root: "/data"}}
	assert.Equal(t, "/data/pdc_data/42/server3/s0003.bin", s.Path(42, 3))
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	tests := []struct {
		name string
		dims []uint64
		r    region.Region
	}{
		{"1D", []uint64{64}, region.MustNew([]uint64{10}, []uint64{20})},
		{"2DRows", []uint64{8, 8}, region.MustNew([]uint64{1, 2}, []uint64{3, 4})},
		{"3DPlanes", []uint64{4, 4, 4}, region.MustNew([]uint64{1, 1, 0}, []uint64{2, 2, 4})},
		{"3DLines", []uint64{4, 4, 4}, region.MustNew([]uint64{0, 1, 1}, []uint64{3, 2, 2})},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := store.Object{ID: uint64(i + 1), Dims: tt.dims, Rank: 0}
			buf := alphabet(tt.r.Bytes(4))

			require.NoError(t, s.WriteRegion(ctx, obj, tt.r, 4, buf))

			out := make([]byte, len(buf))
			require.NoError(t, s.ReadRegion(ctx, obj, tt.r, 4, out))
			assert.Equal(t, buf, out)
		})
	}
}

// TestConcreteRowBlock writes three full rows of a 10x10 byte array and
// reads back the middle row.
func TestConcreteRowBlock(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStore(t)
	obj := store.Object{ID: 7, Dims: []uint64{10, 10}, Rank: 1}

	buf := alphabet(30)
	require.NoError(t, s.WriteRegion(ctx, obj, region.MustNew([]uint64{2, 0}, []uint64{3, 10}), 1, buf))

	require.Len(t, m.calls, 1)
	assert.Equal(t, store.Contiguous, m.calls[0].strategy)
	assert.Equal(t, int64(1), s.Stats().WriteCalls)

	out := make([]byte, 10)
	require.NoError(t, s.ReadRegion(ctx, obj, region.MustNew([]uint64{3, 0}, []uint64{1, 10}), 1, out))
	assert.Equal(t, buf[10:20], out)
	assert.Equal(t, "KLMNOPQRST", string(out))

	info, err := os.Stat(s.Path(7, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(50), info.Size())
}

func TestSyscallCountBy2DShape(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	obj := store.Object{ID: 1, Dims: []uint64{6, 6}}

	full := region.MustNew([]uint64{1, 0}, []uint64{4, 6})
	require.NoError(t, s.WriteRegion(ctx, obj, full, 1, make([]byte, 24)))
	assert.Equal(t, int64(1), s.Stats().WriteCalls)

	partial := region.MustNew([]uint64{1, 1}, []uint64{4, 5})
	require.NoError(t, s.WriteRegion(ctx, obj, partial, 1, make([]byte, 20)))
	assert.Equal(t, int64(1+4), s.Stats().WriteCalls)
	assert.Equal(t, int64(44), s.Stats().BytesWritten)
}

func TestReadPastEndIsShortIO(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStore(t)
	obj := store.Object{ID: 3, Dims: []uint64{100}}

	require.NoError(t, s.WriteRegion(ctx, obj, region.MustNew([]uint64{0}, []uint64{10}), 1, alphabet(10)))

	out := make([]byte, 20)
	err := s.ReadRegion(ctx, obj, region.MustNew([]uint64{0}, []uint64{20}), 1, out)
	require.ErrorIs(t, err, store.ErrShortIO)
	assert.True(t, store.IsIOError(err))
	assert.Equal(t, int64(10), store.BytesTransferred(err))
	assert.Error(t, m.calls[len(m.calls)-1].err)
}

func TestReadMissingFile(t *testing.T) {
	s, _ := newTestStore(t)
	obj := store.Object{ID: 99, Dims: []uint64{4}}

	err := s.ReadRegion(context.Background(), obj, region.MustNew([]uint64{0}, []uint64{4}), 1, make([]byte, 4))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, store.BytesTransferred(err))
}

func TestRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	r := region.MustNew([]uint64{0}, []uint64{4})

	err := s.WriteRegion(ctx, store.Object{ID: 1}, r, 1, make([]byte, 4))
	assert.ErrorIs(t, err, store.ErrShapeRequired)

	err = s.WriteRegion(ctx, store.Object{ID: 1, Dims: []uint64{4}}, r, 1, make([]byte, 3))
	assert.ErrorIs(t, err, region.ErrBufferSize)

	err = s.WriteRegion(ctx, store.Object{ID: 1, Dims: []uint64{2}}, r, 1, make([]byte, 4))
	assert.ErrorIs(t, err, region.ErrOutOfBounds)
}

func TestWriteFailsWhenPathBlocked(t *testing.T) {
	s, _ := newTestStore(t)
	obj := store.Object{ID: 5, Dims: []uint64{4}}

	// A regular file where the object directory should be.
	blocker := filepath.Join(s.cfg.Root, DataDir, "5")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := s.WriteRegion(context.Background(), obj, region.MustNew([]uint64{0}, []uint64{4}), 1, make([]byte, 4))
	require.Error(t, err)
	assert.True(t, store.IsIOError(err))
	assert.Zero(t, store.BytesTransferred(err))
}

func TestClosedStore(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Close())

	err := s.WriteRegion(context.Background(), store.Object{ID: 1, Dims: []uint64{4}},
		region.MustNew([]uint64{0}, []uint64{4}), 1, make([]byte, 4))
	assert.ErrorIs(t, err, store.ErrStoreClosed)
}
