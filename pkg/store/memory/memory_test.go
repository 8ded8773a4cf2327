package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
)

func TestStore_FlatLayout(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	obj := store.Object{ID: 1, Dims: []uint64{3, 3}}

	require.NoError(t, s.WriteRegion(ctx, obj, region.MustNew([]uint64{1, 1}, []uint64{2, 2}), 1, []byte("abcd")))

	assert.Equal(t, []byte{0, 0, 0, 0, 'a', 'b', 0, 'c', 'd'}, s.Bytes(1, 0))
	st := s.Stats()
	assert.Equal(t, int64(2), st.WriteCalls)
	assert.Equal(t, []store.Strategy{store.Rows}, st.Strategies)
}

func TestStore_ReadShort(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	obj := store.Object{ID: 1, Dims: []uint64{8}}

	require.NoError(t, s.WriteRegion(ctx, obj, region.MustNew([]uint64{0}, []uint64{3}), 1, []byte("abc")))

	err := s.ReadRegion(ctx, obj, region.MustNew([]uint64{0}, []uint64{5}), 1, make([]byte, 5))
	require.ErrorIs(t, err, store.ErrShortIO)
	assert.Equal(t, int64(3), store.BytesTransferred(err))
}

func TestStore_FailOn(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	obj := store.Object{ID: 1, Dims: []uint64{4}}
	r := region.MustNew([]uint64{0}, []uint64{4})
	boom := errors.New("disk on fire")

	s.FailOn(store.OpWrite, boom)
	err := s.WriteRegion(ctx, obj, r, 1, []byte("abcd"))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, s.Bytes(1, 0))

	s.FailOn(store.OpWrite, nil)
	assert.NoError(t, s.WriteRegion(ctx, obj, r, 1, []byte("abcd")))
}
