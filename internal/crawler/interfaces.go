package crawler

import (
	"context"
	"errors"
)

// Queue errors shared by queue implementations so callers can match them
// without importing a concrete queue.
var (
	ErrQueueFull   = errors.New("queue full")
	ErrQueueClosed = errors.New("queue closed")
)

// Fetcher retrieves and parses a page. Failures should be returned as
// *FetchError; other errors are wrapped into one by the caller.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Document, error)
}

// Frontier is the set of addresses already claimed for scheduling. Claim
// atomically inserts address and reports whether this caller inserted it.
type Frontier interface {
	Claim(ctx context.Context, address string) (bool, error)
}

// Submitter hands a task to the worker pool without blocking.
type Submitter interface {
	Submit(task Task) error
}

// Pool is a Submitter that can report when all submitted work has finished.
type Pool interface {
	Submitter
	Wait(ctx context.Context) error
}

// Queue holds tasks waiting for a worker.
type Queue interface {
	Enqueue(task Task) error
	Dequeue(ctx context.Context) (Task, error)
	Close()
	Len() int
}
