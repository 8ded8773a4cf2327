package transfer

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/hpc-io/pdc-sub004/internal/logger"
)

// DefaultRecentCapacity is how many collected ids Recent remembers by default.
const DefaultRecentCapacity = 4096

type entry struct {
	status  Status
	err     error
	binding *binding
}

// binding is one waiter shared by every request bound to it.
type binding struct {
	waiter   Waiter
	kind     ResponseKind
	ids      []uint64
	refs     int
	status   Status
	firstErr error
}

func (b *binding) absorb(status Status, err error) {
	if status == StatusFailed {
		b.status = StatusFailed
		if b.firstErr == nil {
			b.firstErr = err
		}
	}
}

func (b *binding) reply() Reply {
	return Reply{Kind: b.kind, IDs: b.ids, Status: b.status, Err: b.firstErr}
}

// Tracker holds the status of in-flight transfer requests. All operations
// are serialized by one mutex; deferred replies are sent after it is released.
type Tracker struct {
	mu      sync.Mutex
	entries map[uint64]*entry
	recent  *lru.Cache
	metrics Metrics
}

// NewTracker creates a tracker that remembers the final status of the last
// recentCapacity collected requests. metrics may be nil.
func NewTracker(recentCapacity int, metrics Metrics) (*Tracker, error) {
	if recentCapacity <= 0 {
		recentCapacity = DefaultRecentCapacity
	}
	recent, err := lru.New(recentCapacity)
	if err != nil {
		return nil, fmt.Errorf("create recent set: %w", err)
	}
	return &Tracker{
		entries: make(map[uint64]*entry),
		recent:  recent,
		metrics: metrics,
	}, nil
}

// Register adds a pending request.
func (t *Tracker) Register(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[id]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyRegistered, id)
	}
	t.entries[id] = &entry{status: StatusPending}
	t.recent.Remove(id)
	t.transition(StatusPending)
	return nil
}

// Finish marks a request complete, or failed when err is non-nil. If a
// waiter is bound and this was the last of its requests still running, the
// reply is sent before Finish returns and the bound entries are removed.
// Otherwise the entry stays until it is observed by Check.
func (t *Tracker) Finish(id uint64, err error) error {
	status := StatusComplete
	if err != nil {
		status = StatusFailed
	}

	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownRequest, id)
	}
	if e.status != StatusPending {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrAlreadyFinished, id)
	}
	e.status, e.err = status, err
	t.transition(status)

	b := e.binding
	var fire bool
	if b != nil {
		b.absorb(status, err)
		b.refs--
		if b.refs == 0 {
			fire = true
			for _, boundID := range b.ids {
				t.collect(boundID)
			}
		}
	}
	t.mu.Unlock()

	if fire {
		t.respond(b)
	}
	return nil
}

// Check returns the request's status. A finished request with no bound
// waiter is collected by the call that observes it: the first Check returns
// StatusComplete or StatusFailed, later ones StatusNotFound.
func (t *Tracker) Check(id uint64) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return StatusNotFound
	}
	if e.status.Finished() && e.binding == nil {
		t.collect(id)
	}
	return e.status
}

// Err returns the failure recorded for a finished request still held by the
// tracker, or for a recently collected one.
func (t *Tracker) Err(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[id]; ok {
		return e.err
	}
	if v, ok := t.recent.Peek(id); ok {
		return v.(collected).err
	}
	return nil
}

// Recent reports the final status of a request that was collected recently,
// so callers can tell "already collected" from "never registered" after
// Check returned StatusNotFound.
func (t *Tracker) Recent(id uint64) (Status, bool) {
	v, ok := t.recent.Get(id)
	if !ok {
		return StatusNotFound, false
	}
	return v.(collected).status, true
}

// Bind attaches w to a single request. See BindAll.
func (t *Tracker) Bind(id uint64, w Waiter) error {
	return t.bind([]uint64{id}, w, ResponseWait)
}

// BindAll attaches one waiter to every id. The reply fires once, when the
// last of them finishes; requests already finished count as done. Repeated
// ids are bound once. If none
// is still pending the reply is sent before BindAll returns. Binding is all
// or nothing: if any id is unknown or already bound nothing is changed.
func (t *Tracker) BindAll(ids []uint64, w Waiter) error {
	return t.bind(ids, w, ResponseWaitAll)
}

func (t *Tracker) bind(ids []uint64, w Waiter, kind ResponseKind) error {
	ids = uniqueIDs(ids)

	t.mu.Lock()
	for _, id := range ids {
		e, ok := t.entries[id]
		if !ok {
			t.mu.Unlock()
			return fmt.Errorf("%w: %d", ErrUnknownRequest, id)
		}
		if e.binding != nil {
			t.mu.Unlock()
			return fmt.Errorf("%w: %d", ErrAlreadyBound, id)
		}
	}

	b := &binding{
		waiter: w,
		kind:   kind,
		ids:    ids,
		status: StatusComplete,
	}
	for _, id := range ids {
		e := t.entries[id]
		if e.status == StatusPending {
			e.binding = b
			b.refs++
			continue
		}
		b.absorb(e.status, e.err)
		t.collect(id)
	}
	fire := b.refs == 0
	t.mu.Unlock()

	if fire {
		t.respond(b)
	}
	return nil
}

// uniqueIDs returns ids in order with repeats dropped, as a new slice.
func uniqueIDs(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Discard drops a request without observing it, e.g. when it could not be
// queued.
func (t *Tracker) Discard(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
	t.inFlight()
}

// Len returns the number of requests held.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

type collected struct {
	status Status
	err    error
}

// collect removes a finished entry and remembers its outcome. Caller holds t.mu.
func (t *Tracker) collect(id uint64) {
	e, ok := t.entries[id]
	if !ok {
		return
	}
	delete(t.entries, id)
	t.recent.Add(id, collected{status: e.status, err: e.err})
	t.inFlight()
}

func (t *Tracker) respond(b *binding) {
	logger.Debug("sending deferred transfer reply",
		"kind", b.kind.String(),
		"requests", len(b.ids),
		logger.KeyStatus, b.status.String())
	if t.metrics != nil {
		t.metrics.RecordReply(b.kind, len(b.ids))
	}
	b.waiter.Respond(b.reply())
}

func (t *Tracker) transition(s Status) {
	if t.metrics != nil {
		t.metrics.RecordTransition(s)
	}
	t.inFlight()
}

func (t *Tracker) inFlight() {
	if t.metrics != nil {
		t.metrics.RecordInFlight(len(t.entries))
	}
}
