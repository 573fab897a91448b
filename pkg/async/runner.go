package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenety/saascore/pkg/logger"
)

// Task is a unit of best-effort work.
type Task func(ctx context.Context) error

// Outcome is reported to the observer once per submitted task.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeDropped   Outcome = "dropped"
)

type job struct {
	ctx  context.Context
	name string
	task Task
}

type options struct {
	workers   int
	queueSize int
	timeout   time.Duration
	logger    *slog.Logger
	observer  func(name string, outcome Outcome)
}

type Option func(*options)

// WithWorkers sets the number of concurrent workers. Default 4.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize sets how many tasks may wait before Submit starts dropping. Default 256.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithTaskTimeout bounds each task. Default 1 minute.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers a callback for task outcomes, e.g. for metrics.
func WithObserver(fn func(name string, outcome Outcome)) Option {
	return func(o *options) { o.observer = fn }
}

// Runner executes submitted tasks on a fixed worker pool.
type Runner struct {
	opts   options
	queue  chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewRunner starts the workers immediately.
func NewRunner(opts ...Option) *Runner {
	o := options{
		workers:   4,
		queueSize: 256,
		timeout:   time.Minute,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runner{opts: o, queue: make(chan job, o.queueSize)}
	r.wg.Add(o.workers)
	for range o.workers {
		go r.work()
	}
	return r
}

// Submit enqueues task without blocking. It returns false when the task was
// dropped because the queue is full or the runner is closed.
func (r *Runner) Submit(ctx context.Context, name string, task Task) bool {
	if task == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped(ctx, name, ErrRunnerClosed)
		return false
	}

	select {
	case r.queue <- job{ctx: context.WithoutCancel(ctx), name: name, task: task}:
		return true
	default:
		r.dropped(ctx, name, fmt.Errorf("queue full (%d)", cap(r.queue)))
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish or for ctx
// to expire.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) work() {
	defer r.wg.Done()
	for j := range r.queue {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, r.opts.timeout)
	defer cancel()

	start := time.Now()
	err := safeCall(ctx, j.task)
	if err != nil {
		r.opts.logger.LogAttrs(ctx, slog.LevelWarn, "background task failed",
			logger.Task(j.name),
			logger.Duration(time.Since(start)),
			logger.Error(err),
		)
		r.observe(j.name, OutcomeFailed)
		return
	}
	r.observe(j.name, OutcomeSucceeded)
}

func (r *Runner) dropped(ctx context.Context, name string, reason error) {
	r.opts.logger.LogAttrs(ctx, slog.LevelWarn, "background task dropped",
		logger.Task(name),
		logger.Error(reason),
	)
	r.observe(name, OutcomeDropped)
}

func (r *Runner) observe(name string, outcome Outcome) {
	if r.opts.observer != nil {
		r.opts.observer(name, outcome)
	}
}

func safeCall(ctx context.Context, task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, p)
		}
	}()
	return task(ctx)
}
