package crawler

import (
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of fetch-and-expand work. Depth counts hops from the seed,
// which runs at depth 0.
type Task struct {
	URL   string
	Depth int
}

// Child returns the task for a link discovered while running t.
func (t Task) Child(link string) Task {
	return Task{URL: link, Depth: t.Depth + 1}
}

// Document is a fetched page. Links yields the page's outbound absolute URLs
// lazily; the sequence is finite and can only be consumed once.
type Document interface {
	URL() string
	Links() iter.Seq[string]
}

// FetchError is the only failure a crawl task reports. It never stops sibling
// tasks and is not retried.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: unknown error", e.URL)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config holds the static knobs of a crawl run.
type Config struct {
	RunID    uuid.UUID
	MaxDepth int
}

// Snapshot is a point-in-time view of crawl counters.
type Snapshot struct {
	RunID     string `json:"run_id"`
	Seed      string `json:"seed"`
	MaxDepth  int    `json:"max_depth"`
	Claimed   int64  `json:"claimed"`
	Started   int64  `json:"started"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
	Rejected  int64  `json:"rejected"`
}

// Summary is returned once a run finishes.
type Summary struct {
	Snapshot
	Duration time.Duration `json:"duration"`
}

// String renders the summary as a single report line.
func (s Summary) String() string {
	return fmt.Sprintf(
		"Crawl finished: seed=%s max_depth=%d claimed=%d started=%d succeeded=%d failed=%d rejected=%d duration=%s",
		s.Seed, s.MaxDepth, s.Claimed, s.Started, s.Succeeded, s.Failed, s.Rejected, s.Duration.Round(time.Millisecond),
	)
}
