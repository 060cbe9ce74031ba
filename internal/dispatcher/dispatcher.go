// Package dispatcher runs crawl tasks on a fixed pool of workers fed by a
// non-blocking queue, and tracks outstanding work so callers can wait for
// the task graph to drain.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/depth-crawler/internal/crawler"
	"github.com/JakeFAU/depth-crawler/internal/metrics"
)

// ErrShutdown is returned by Submit once Shutdown has been called.
var ErrShutdown = errors.New("dispatcher shut down")

const defaultWorkers = 4

// Handler runs one task. submit is the dispatcher itself, for scheduling
// follow-up work.
type Handler func(ctx context.Context, task crawler.Task, submit crawler.Submitter)

// Config controls the pool size.
type Config struct {
	Workers int
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers int   `json:"workers"`
	Active  int64 `json:"active"`
	Queued  int   `json:"queued"`
	Pending int   `json:"pending"`
}

// Dispatcher fans queued tasks out to a fixed set of workers.
type Dispatcher struct {
	cfg     Config
	queue   crawler.Queue
	handler Handler
	logger  *zap.Logger

	mu       sync.Mutex
	pending  int
	idle     chan struct{}
	shutdown bool

	active  atomic.Int64
	started atomic.Bool
	wg      sync.WaitGroup
}

// New creates a Dispatcher. Workers do not run until Start.
func New(cfg Config, queue crawler.Queue, handler Handler, logger *zap.Logger) *Dispatcher {
	metrics.Init()
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	idle := make(chan struct{})
	close(idle)
	return &Dispatcher{
		cfg:     cfg,
		queue:   queue,
		handler: handler,
		logger:  logger,
		idle:    idle,
	}
}

// Start launches the workers. Calls after the first are no-ops.
func (d *Dispatcher) Start(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	for i := range d.cfg.Workers {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.work(ctx, id)
		}(i)
	}
	d.logger.Debug("dispatcher started", zap.Int("workers", d.cfg.Workers))
}

// Submit queues task without blocking.
func (d *Dispatcher) Submit(task crawler.Task) error {
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		metrics.ObserveSubmit(metrics.SubmitShutdown)
		return fmt.Errorf("submit %s: %w", task.URL, ErrShutdown)
	}
	if d.pending == 0 {
		d.idle = make(chan struct{})
	}
	d.pending++
	d.mu.Unlock()

	if err := d.queue.Enqueue(task); err != nil {
		d.finish()
		if errors.Is(err, crawler.ErrQueueClosed) {
			metrics.ObserveSubmit(metrics.SubmitShutdown)
			return fmt.Errorf("submit %s: %w", task.URL, ErrShutdown)
		}
		metrics.ObserveSubmit(metrics.SubmitFull)
		return fmt.Errorf("submit %s: %w", task.URL, err)
	}
	metrics.ObserveSubmit(metrics.SubmitAccepted)
	metrics.SetQueueDepth(d.queue.Len())
	return nil
}

// Wait blocks until every submitted task has finished or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for idle dispatcher: %w", ctx.Err())
	}
}

// Shutdown rejects further submissions. Queued tasks still run; it does not
// wait for them.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	already := d.shutdown
	d.shutdown = true
	d.mu.Unlock()
	if already {
		return
	}
	d.queue.Close()
	d.logger.Debug("dispatcher shutting down", zap.Int("queued", d.queue.Len()))
}

// Stop shuts down and waits for the workers to exit or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.Shutdown()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop dispatcher: %w", ctx.Err())
	}
}

// Stats reports the pool's current load.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	pending := d.pending
	d.mu.Unlock()
	return Stats{
		Workers: d.cfg.Workers,
		Active:  d.active.Load(),
		Queued:  d.queue.Len(),
		Pending: pending,
	}
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	logger := d.logger.With(zap.Int("worker", id))
	for {
		task, err := d.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, crawler.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		metrics.SetQueueDepth(d.queue.Len())
		d.run(ctx, task, logger)
	}
}

func (d *Dispatcher) run(ctx context.Context, task crawler.Task, logger *zap.Logger) {
	d.active.Add(1)
	metrics.IncActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task handler panicked",
				zap.String("url", task.URL),
				zap.Int("depth", task.Depth),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
		metrics.DecActiveWorkers()
		d.active.Add(-1)
		d.finish()
	}()
	d.handler(ctx, task, d)
}

// finish retires one outstanding task and releases waiters at zero.
func (d *Dispatcher) finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending--
	if d.pending == 0 {
		close(d.idle)
	}
}
