package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
	"github.com/hpc-io/pdc-sub004/pkg/store/badger"
	"github.com/hpc-io/pdc-sub004/pkg/store/memory"
)

func TestSelectorRoutesByShape(t *testing.T) {
	ctx := context.Background()
	flat := memory.New(nil)
	records, err := badger.New(badger.Config{InMemory: true}, nil)
	require.NoError(t, err)

	sel := store.NewSelector(flat, records)
	defer func() { _ = sel.Close() }()

	r := region.MustNew([]uint64{0}, []uint64{4})

	shaped := store.Object{ID: 1, Dims: []uint64{4}}
	require.NoError(t, sel.WriteRegion(ctx, shaped, r, 1, []byte("flat")))
	assert.Equal(t, []byte("flat"), flat.Bytes(1, 0))

	shapeless := store.Object{ID: 2}
	require.NoError(t, sel.WriteRegion(ctx, shapeless, r, 1, []byte("recs")))
	n, err := records.Count(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out := make([]byte, 4)
	require.NoError(t, sel.ReadRegion(ctx, shapeless, r, 1, out))
	assert.Equal(t, "recs", string(out))
}

func TestSelectorWithoutRecords(t *testing.T) {
	sel := store.NewSelector(memory.New(nil), nil)

	_, err := sel.For(store.Object{ID: 1})
	assert.ErrorIs(t, err, store.ErrShapeRequired)

	err = sel.WriteRegion(context.Background(), store.Object{ID: 1}, region.MustNew([]uint64{0}, []uint64{1}), 1, []byte{1})
	assert.ErrorIs(t, err, store.ErrShapeRequired)
}

func TestIOErrorMessage(t *testing.T) {
	err := &store.IOError{Op: "write", Backend: "posix", ObjectID: 3, Path: "/x", Offset: 8, Expected: 10, Actual: 4, Err: store.ErrShortIO}
	assert.Equal(t, "posix write object 3 (/x) at offset 8: transferred 4 of 10 bytes: short I/O", err.Error())
	assert.ErrorIs(t, err, store.ErrShortIO)
	assert.Equal(t, int64(4), store.BytesTransferred(err))
}
