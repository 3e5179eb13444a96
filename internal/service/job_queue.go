package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("job queue full")

// Dispatcher hands jobs to whatever runs the supervisor. Enqueue must never
// wait for the encode itself.
type Dispatcher interface {
	Enqueue(ctx context.Context, d Dispatch) error
}

// JobQueue is an in-process worker pool. At most workers encoder processes
// run at the same time, further jobs wait in a buffered channel.
type JobQueue struct {
	jobs     chan Dispatch
	workers  int
	sup      *Supervisor
	inFlight sync.Map

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobQueue initializes a new job queue that limits the
// amount of concurrent encodes and the amount of waiting jobs
func NewJobQueue(sup *Supervisor, workers, size int) *JobQueue {
	if workers < 1 {
		workers = 1
	}

	zap.L().Debug("Initializing job queue", zap.Int("workers", workers), zap.Int("size", size))

	return &JobQueue{
		jobs:    make(chan Dispatch, size),
		workers: workers,
		sup:     sup,
	}
}

func (q *JobQueue) StartWorkerPool(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancel != nil {
		return
	}

	ctx, q.cancel = context.WithCancel(ctx)

	for range q.workers {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Stop cancels running encodes and waits for the workers to record them
func (q *JobQueue) Stop() {
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *JobQueue) worker(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-q.jobs:
			queueDepth.Dec()

			// select picks at random once ctx is done, the job stays
			// queued for the next start
			if ctx.Err() != nil {
				q.inFlight.Delete(d.JobID)
				return
			}

			q.sup.Run(ctx, d)
			q.inFlight.Delete(d.JobID)
		}
	}
}

// Enqueue never blocks. A job that is already waiting or running in this
// process is ignored, a full queue returns ErrQueueFull.
func (q *JobQueue) Enqueue(_ context.Context, d Dispatch) error {
	if _, loaded := q.inFlight.LoadOrStore(d.JobID, struct{}{}); loaded {
		return nil
	}

	select {
	case q.jobs <- d:
		queueDepth.Inc()
		zap.L().Debug("New transcode job enqueued", zap.String("job_id", d.JobID))
		return nil
	default:
		q.inFlight.Delete(d.JobID)
		return ErrQueueFull
	}
}

// InFlight reports whether id is waiting or running in this process
func (q *JobQueue) InFlight(id string) bool {
	_, ok := q.inFlight.Load(id)
	return ok
}
