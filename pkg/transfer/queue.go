package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/hpc-io/pdc-sub004/internal/logger"
	"github.com/hpc-io/pdc-sub004/internal/telemetry"
)

// Job is one asynchronous region operation. Run's error decides whether
// the tracker entry ends Complete or Failed.
type Job struct {
	ID       uint64
	Kind     string // write_region, read_region, flush
	ObjectID uint64
	Run      func(ctx context.Context) error
}

// QueueConfig configures the worker pool.
type QueueConfig struct {
	// Workers is the number of concurrent workers. Default: 4
	Workers int

	// QueueSize is the job channel capacity. Default: 1000
	QueueSize int

	// JobTimeout bounds a single job. Default: 5m
	JobTimeout time.Duration
}

// QueueStats is a snapshot of queue activity.
type QueueStats struct {
	Pending     int       `json:"pending"`
	Completed   int       `json:"completed"`
	Failed      int       `json:"failed"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitzero"`
}

// Queue runs jobs on a fixed pool of workers and finishes each job's
// tracker entry with the job's result.
type Queue struct {
	tracker *Tracker
	jobs    chan Job
	workers int
	timeout time.Duration

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu          sync.Mutex
	started     bool
	stopped     bool
	pending     int
	completed   int
	failed      int
	lastError   error
	lastErrorAt time.Time
}

// NewQueue creates a queue that reports results to tracker.
func NewQueue(tracker *Tracker, cfg QueueConfig) *Queue {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}

	return &Queue{
		tracker:   tracker,
		jobs:      make(chan Job, cfg.QueueSize),
		workers:   cfg.Workers,
		timeout:   cfg.JobTimeout,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start launches the workers. Calling Start twice has no effect.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	logger.Info("Starting transfer queue", "workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	go func() {
		q.wg.Wait()
		close(q.stoppedCh)
	}()
}

// Stop signals the workers to drain the queue and exit, waiting up to
// timeout. It returns false if the workers did not finish in time.
func (q *Queue) Stop(timeout time.Duration) bool {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return true
	}
	q.stopped = true
	q.mu.Unlock()

	logger.Info("Stopping transfer queue", "pending", q.Pending())
	close(q.stopCh)

	select {
	case <-q.stoppedCh:
		logger.Info("Transfer queue stopped gracefully")
		return true
	case <-time.After(timeout):
		logger.Warn("Transfer queue stop timed out", "pending", q.Pending())
		return false
	}
}

// Enqueue adds a job without blocking. It returns false if the queue is
// full or stopped; the caller still owns the job's tracker entry then.
func (q *Queue) Enqueue(job Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}

	select {
	case q.jobs <- job:
		q.pending++
		return true
	default:
		logger.Warn("Transfer queue full, rejecting job",
			logger.KeyTransferID, job.ID,
			logger.KeyObjectID, job.ObjectID)
		return false
	}
}

// Pending returns the number of queued or running jobs.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := QueueStats{
		Pending:     q.pending,
		Completed:   q.completed,
		Failed:      q.failed,
		LastErrorAt: q.lastErrorAt,
	}
	if q.lastError != nil {
		st.LastError = q.lastError.Error()
	}
	return st
}

// worker exits only when stopCh closes, after draining what is queued.
func (q *Queue) worker(id int) {
	defer q.wg.Done()

	logger.Debug("Transfer queue worker started", "worker_id", id)

	for {
		select {
		case job := <-q.jobs:
			q.process(job)
		case <-q.stopCh:
			q.drain()
			logger.Debug("Transfer queue worker stopped", "worker_id", id)
			return
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case job := <-q.jobs:
			q.process(job)
		default:
			return
		}
	}
}

// process runs one job with a fresh timeout context and finishes its
// tracker entry.
func (q *Queue) process(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	lc := logger.NewLogContext(job.Kind).WithTransfer(job.ID).WithObject(job.ObjectID)
	ctx = logger.WithContext(ctx, lc)
	ctx, span := telemetry.StartTransferSpan(ctx, job.ID, job.Kind, telemetry.ObjectID(job.ObjectID))
	defer span.End()
	ctx = telemetry.WithLogContext(ctx)

	err := job.Run(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
	}

	q.record(ctx, job, err)
	if ferr := q.tracker.Finish(job.ID, err); ferr != nil {
		logger.WarnCtx(ctx, "Transfer finished without tracker entry", logger.KeyError, ferr)
	}
}

func (q *Queue) record(ctx context.Context, job Job, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending--
	if err != nil {
		q.failed++
		q.lastError = err
		q.lastErrorAt = time.Now()
		logger.ErrorCtx(ctx, "Transfer failed", logger.KeyError, err)
		return
	}
	q.completed++
	logger.DebugCtx(ctx, "Transfer completed")
}
