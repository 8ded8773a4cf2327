package transfer

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := NewTracker(16, nil)
	require.NoError(t, err)
	return tr
}

func TestTrackerLifecycle(t *testing.T) {
	tr := newTestTracker(t)

	assert.Equal(t, StatusNotFound, tr.Check(1))

	require.NoError(t, tr.Register(1))
	assert.Equal(t, StatusPending, tr.Check(1))
	assert.Equal(t, StatusPending, tr.Check(1), "polling a pending request does not consume it")

	require.NoError(t, tr.Finish(1, nil))
	assert.Equal(t, StatusComplete, tr.Check(1))
	assert.Equal(t, StatusNotFound, tr.Check(1))
	assert.Zero(t, tr.Len())

	status, ok := tr.Recent(1)
	assert.True(t, ok)
	assert.Equal(t, StatusComplete, status)

	_, ok = tr.Recent(2)
	assert.False(t, ok, "never registered")
}

func TestTrackerFailure(t *testing.T) {
	tr := newTestTracker(t)
	boom := errors.New("short write")

	require.NoError(t, tr.Register(5))
	require.NoError(t, tr.Finish(5, boom))

	assert.ErrorIs(t, tr.Err(5), boom)
	assert.Equal(t, StatusFailed, tr.Check(5))
	assert.ErrorIs(t, tr.Err(5), boom, "error kept after collection")
}

func TestTrackerErrors(t *testing.T) {
	tr := newTestTracker(t)

	require.NoError(t, tr.Register(1))
	assert.ErrorIs(t, tr.Register(1), ErrAlreadyRegistered)

	assert.ErrorIs(t, tr.Finish(2, nil), ErrUnknownRequest)
	require.NoError(t, tr.Finish(1, nil))
	assert.ErrorIs(t, tr.Finish(1, nil), ErrAlreadyFinished)

	assert.ErrorIs(t, tr.Bind(9, NewChanWaiter()), ErrUnknownRequest)
}

func TestBindThenFinishRepliesOnce(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.Register(7))

	replies := 0
	var got Reply
	require.NoError(t, tr.Bind(7, WaiterFunc(func(r Reply) {
		replies++
		got = r
	})))
	assert.Zero(t, replies)

	require.NoError(t, tr.Finish(7, nil))

	assert.Equal(t, 1, replies)
	assert.Equal(t, ResponseWait, got.Kind)
	assert.Equal(t, []uint64{7}, got.IDs)
	assert.Equal(t, StatusComplete, got.Status)
	assert.Zero(t, tr.Len())
	assert.Equal(t, StatusNotFound, tr.Check(7))
}

func TestBindTwice(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.Register(1))
	require.NoError(t, tr.Bind(1, NewChanWaiter()))
	assert.ErrorIs(t, tr.Bind(1, NewChanWaiter()), ErrAlreadyBound)
}

func TestBindAfterFinishRepliesImmediately(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.Register(3))
	require.NoError(t, tr.Finish(3, nil))

	w := NewChanWaiter()
	require.NoError(t, tr.Bind(3, w))

	select {
	case r := <-w:
		assert.Equal(t, StatusComplete, r.Status)
	default:
		t.Fatal("expected an immediate reply")
	}
	assert.Zero(t, tr.Len())
}

func TestBindAllWaitsForLast(t *testing.T) {
	tr := newTestTracker(t)
	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, tr.Register(id))
	}
	boom := errors.New("read failed")
	require.NoError(t, tr.Finish(1, nil))

	w := NewChanWaiter()
	require.NoError(t, tr.BindAll([]uint64{1, 2, 3}, w))

	require.NoError(t, tr.Finish(2, boom))
	assert.Len(t, w, 0)
	assert.Equal(t, StatusFailed, tr.Check(2), "bound entries wait for the reply")

	require.NoError(t, tr.Finish(3, nil))
	require.Len(t, w, 1)
	r := <-w
	assert.Equal(t, ResponseWaitAll, r.Kind)
	assert.Equal(t, StatusFailed, r.Status)
	assert.ErrorIs(t, r.Err, boom)
	assert.Zero(t, tr.Len())
}

func TestBindAllIsAtomic(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.Register(1))

	err := tr.BindAll([]uint64{1, 2}, NewChanWaiter())
	require.ErrorIs(t, err, ErrUnknownRequest)

	// Request 1 was left unbound and can still be polled.
	require.NoError(t, tr.Finish(1, nil))
	assert.Equal(t, StatusComplete, tr.Check(1))
}

func TestBindAllDuplicateIDs(t *testing.T) {
	t.Run("AlreadyFinished", func(t *testing.T) {
		tr := newTestTracker(t)
		require.NoError(t, tr.Register(5))
		require.NoError(t, tr.Finish(5, nil))

		w := NewChanWaiter()
		require.NoError(t, tr.BindAll([]uint64{5, 5}, w))
		require.Len(t, w, 1)
		assert.Equal(t, StatusComplete, (<-w).Status)
		assert.Zero(t, tr.Len())

		// The tracker is still usable.
		require.NoError(t, tr.Register(6))
		assert.Equal(t, StatusPending, tr.Check(6))
	})

	t.Run("StillPending", func(t *testing.T) {
		tr := newTestTracker(t)
		require.NoError(t, tr.Register(7))
		require.NoError(t, tr.Register(8))

		w := NewChanWaiter()
		require.NoError(t, tr.BindAll([]uint64{7, 8, 7}, w))
		require.NoError(t, tr.Finish(7, nil))
		assert.Len(t, w, 0)
		require.NoError(t, tr.Finish(8, nil))

		require.Len(t, w, 1)
		assert.Equal(t, StatusComplete, (<-w).Status)
		assert.Zero(t, tr.Len())
	})
}

func TestDiscard(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.Register(1))
	tr.Discard(1)

	assert.Equal(t, StatusNotFound, tr.Check(1))
	_, ok := tr.Recent(1)
	assert.False(t, ok)
}

func TestReRegisterForgetsRecent(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.Register(1))
	require.NoError(t, tr.Finish(1, nil))
	tr.Check(1)

	require.NoError(t, tr.Register(1))
	_, ok := tr.Recent(1)
	assert.False(t, ok)
}

func TestConcurrentFinishAndBind(t *testing.T) {
	tr := newTestTracker(t)
	const n = 200

	var mu sync.Mutex
	replies := 0
	for id := uint64(1); id <= n; id++ {
		require.NoError(t, tr.Register(id))
	}

	var wg sync.WaitGroup
	for id := uint64(1); id <= n; id++ {
		wg.Add(2)
		go func(id uint64) {
			defer wg.Done()
			_ = tr.Finish(id, nil)
		}(id)
		go func(id uint64) {
			defer wg.Done()
			_ = tr.Bind(id, WaiterFunc(func(Reply) {
				mu.Lock()
				replies++
				mu.Unlock()
			}))
		}(id)
	}
	wg.Wait()

	// Bind either attached before Finish (reply from Finish) or after it
	// (immediate reply); every request replies exactly once.
	assert.Equal(t, n, replies)
	assert.Zero(t, tr.Len())
}

func TestRecentIsBounded(t *testing.T) {
	tr, err := NewTracker(2, nil)
	require.NoError(t, err)

	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, tr.Register(id))
		require.NoError(t, tr.Finish(id, nil))
		tr.Check(id)
	}

	_, ok := tr.Recent(1)
	assert.False(t, ok)
	_, ok = tr.Recent(3)
	assert.True(t, ok)
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "not_found", StatusNotFound.String())
	assert.Equal(t, "status(9)", Status(9).String())
	assert.Equal(t, "wait_all", ResponseWaitAll.String())
	assert.True(t, StatusFailed.Finished())
	assert.False(t, StatusPending.Finished())
}

func TestIDGenerator(t *testing.T) {
	var g IDGenerator
	assert.Zero(t, g.Last())
	assert.Equal(t, uint64(1), g.Next())

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, dup := seen.LoadOrStore(g.Next(), true)
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(801), g.Last())
}
