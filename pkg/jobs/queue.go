package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer has no room. Enqueue never blocks the caller.
	ErrQueueFull = errors.New("queue buffer full")
	// ErrQueueClosed is returned by Enqueue before Start or after Stop.
	ErrQueueClosed = errors.New("queue not running")
)

// Job is one unit of work handed to a Handler.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. A non-nil error schedules a retry until MaxRetries is spent.
type Handler func(context.Context, Job) error

// QueueConfig tunes a Queue. Zero values pick defaults; MaxRetries below zero disables retries.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	// RetryDelay is the wait before the first retry. Each later attempt doubles it.
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Buffered  int
	Processed uint64
	Retried   uint64
	Dropped   uint64
}

// Queue is a fixed pool of goroutines draining a bounded channel.
type Queue struct {
	name    string
	handle  Handler
	cfg     QueueConfig
	log     *zap.SugaredLogger
	pending chan Job

	mu     sync.RWMutex
	runCtx context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup

	processed atomic.Uint64
	retried   atomic.Uint64
	dropped   atomic.Uint64
}

// NewQueue returns an idle queue; call Start before enqueueing.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = cfg.Workers * 4
	}
	switch {
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handle:  handler,
		cfg:     cfg,
		log:     cfg.Logger.Sugar().With("queue", name),
		pending: make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.runCtx != nil {
		return
	}
	q.runCtx, q.stop = context.WithCancel(ctx)
	q.wg.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go q.drain(q.runCtx)
	}
	q.log.Infow("queue started", "workers", q.cfg.Workers, "buffer", q.cfg.BufferSize)
}

// Stop cancels the workers and waits for them. Jobs still buffered are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	stop := q.stop
	q.stop = nil
	q.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	q.wg.Wait()
	q.log.Infow("queue stopped", "dropped", len(q.pending), "processed", q.processed.Load())
}

// Enqueue hands a job to the workers without waiting for buffer space.
func (q *Queue) Enqueue(job Job) error {
	ctx := q.context()
	if ctx == nil || ctx.Err() != nil {
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueClosed)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case q.pending <- job:
		return nil
	default:
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

// Len reports the number of buffered jobs.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Stats returns the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Buffered:  len(q.pending),
		Processed: q.processed.Load(),
		Retried:   q.retried.Load(),
		Dropped:   q.dropped.Load(),
	}
}

func (q *Queue) context() context.Context {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.runCtx
}

func (q *Queue) drain(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.pending:
			err := q.handle(ctx, job)
			if err == nil {
				q.processed.Add(1)
				continue
			}
			q.retry(ctx, job, err)
		}
	}
}

func (q *Queue) retry(ctx context.Context, job Job, cause error) {
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.dropped.Add(1)
		q.log.Errorw("job dropped", "job_id", job.ID, "type", job.Type, "attempts", job.Attempt, "error", cause)
		return
	}
	q.retried.Add(1)
	wait := q.cfg.RetryDelay << (job.Attempt - 1)
	q.log.Warnw("job failed, retry scheduled", "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "wait", wait.String(), "error", cause)

	time.AfterFunc(wait, func() {
		if ctx.Err() != nil {
			return
		}
		if err := q.Enqueue(job); err != nil {
			q.dropped.Add(1)
			q.log.Errorw("job requeue failed", "job_id", job.ID, "error", err)
		}
	})
}
