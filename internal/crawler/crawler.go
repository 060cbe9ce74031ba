package crawler

import (
	"context"
	"errors"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/depth-crawler/internal/progress"
)

// Crawler runs crawl tasks. Apart from observational counters it holds only
// its constructor parameters; the frontier and the pool are shared handles.
type Crawler struct {
	cfg      Config
	frontier Frontier
	fetcher  Fetcher
	emitter  progress.Emitter
	logger   *zap.Logger

	seed     atomic.Value
	counters counters
}

type counters struct {
	claimed   atomic.Int64
	started   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// New constructs a Crawler. A nil emitter discards progress events and a
// zero RunID is replaced with a fresh UUIDv7.
func New(cfg Config, frontier Frontier, fetcher Fetcher, emitter progress.Emitter, logger *zap.Logger) *Crawler {
	if cfg.RunID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		cfg.RunID = id
	}
	if emitter == nil {
		emitter = progress.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		cfg:      cfg,
		frontier: frontier,
		fetcher:  fetcher,
		emitter:  emitter,
		logger:   logger,
	}
}

// RunID identifies this crawl in progress events.
func (c *Crawler) RunID() uuid.UUID {
	return c.cfg.RunID
}

// Expand fetches task.URL and submits a child task for every link that is
// within the depth bound and not yet claimed. Failures stay local: a fetch
// error ends only this task, and a rejected submission is reported and
// skipped.
func (c *Crawler) Expand(ctx context.Context, task Task, submit Submitter) {
	if task.Depth > c.cfg.MaxDepth {
		return
	}
	c.counters.started.Add(1)
	c.emit(progress.Event{Stage: progress.StageTaskStart, URL: task.URL, Depth: task.Depth})

	start := time.Now()
	doc, err := c.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		c.fetchFailed(task, err)
		return
	}
	c.counters.succeeded.Add(1)

	links, children := 0, 0
	if task.Depth+1 <= c.cfg.MaxDepth {
		links, children = c.schedule(ctx, task, doc, submit)
	}

	c.emit(progress.Event{
		Stage:    progress.StageTaskDone,
		URL:      task.URL,
		Depth:    task.Depth,
		Links:    links,
		Children: children,
		Dur:      time.Since(start),
	})
}

// schedule claims and submits the document's links as children of task. It
// returns the number of candidate links seen and children submitted.
func (c *Crawler) schedule(ctx context.Context, task Task, doc Document, submit Submitter) (int, int) {
	links, children := 0, 0
	for link := range doc.Links() {
		if !isCandidate(link) {
			continue
		}
		links++
		child := task.Child(link)
		owned, err := c.frontier.Claim(ctx, link)
		if err != nil {
			c.logger.Warn("frontier claim failed", zap.String("url", link), zap.Error(err))
			c.emit(progress.Event{Stage: progress.StageClaimFailed, URL: link, Depth: child.Depth, Note: err.Error()})
			continue
		}
		if !owned {
			continue
		}
		c.counters.claimed.Add(1)
		if err := submit.Submit(child); err != nil {
			c.counters.rejected.Add(1)
			c.logger.Error("submit child task failed",
				zap.String("url", link),
				zap.Int("depth", child.Depth),
				zap.String("parent", task.URL),
				zap.Error(err),
			)
			c.emit(progress.Event{Stage: progress.StageSubmitRejected, URL: link, Depth: child.Depth, Note: err.Error()})
			continue
		}
		children++
	}
	return links, children
}

func (c *Crawler) fetchFailed(task Task, err error) {
	c.counters.failed.Add(1)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		fetchErr = &FetchError{URL: task.URL, Err: err}
	}
	note := err.Error()
	if fetchErr.Err != nil {
		note = fetchErr.Err.Error()
	}
	c.logger.Warn("fetch failed",
		zap.String("url", task.URL),
		zap.Int("depth", task.Depth),
		zap.Error(fetchErr),
	)
	c.emit(progress.Event{Stage: progress.StageFetchFailed, URL: task.URL, Depth: task.Depth, Note: note})
}

func (c *Crawler) emit(evt progress.Event) {
	evt.RunID = c.cfg.RunID
	evt.TS = time.Now().UTC()
	c.emitter.Emit(evt)
}

// isCandidate accepts any non-empty absolute URL. Scheme filtering belongs to
// the Document implementation.
func isCandidate(link string) bool {
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return u.IsAbs()
}
