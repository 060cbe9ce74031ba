// Package memory provides the in-process task queue behind the dispatcher.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/depth-crawler/internal/crawler"
)

// Queue is a FIFO of crawl tasks. Enqueue never blocks: a bounded queue
// rejects with crawler.ErrQueueFull, a closed one with
// crawler.ErrQueueClosed. Dequeue blocks until work arrives.
type Queue struct {
	mu       sync.Mutex
	items    []crawler.Task
	capacity int
	closed   bool
	ready    chan struct{}
	done     chan struct{}
}

// NewQueue constructs a queue holding at most capacity tasks. A capacity of
// zero or less means unbounded.
func NewQueue(capacity int) *Queue {
	return &Queue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Enqueue appends a task.
func (q *Queue) Enqueue(task crawler.Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return crawler.ErrQueueClosed
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.mu.Unlock()
		return fmt.Errorf("%w: capacity %d", crawler.ErrQueueFull, q.capacity)
	}
	q.items = append(q.items, task)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Dequeue pops the oldest task. Once the queue is closed, remaining tasks are
// still handed out before crawler.ErrQueueClosed is returned.
func (q *Queue) Dequeue(ctx context.Context) (crawler.Task, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			task := q.items[0]
			q.items[0] = crawler.Task{}
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return crawler.Task{}, crawler.ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return crawler.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.ready:
		case <-q.done:
		}
	}
}

// Len reports the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further Enqueue calls and wakes blocked consumers. Safe to
// call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
