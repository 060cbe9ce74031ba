package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/depth-crawler/internal/progress"
)

var (
	// ErrInvalidSeed is returned when the seed is not an absolute URL.
	ErrInvalidSeed = errors.New("seed must be a non-empty absolute URL")
	// ErrSeedClaimed is returned when the frontier already holds the seed,
	// e.g. a shared frontier reused across runs.
	ErrSeedClaimed = errors.New("seed already claimed")
)

// Run claims and submits the seed at depth 0, then blocks until pool reports
// that the task graph is exhausted or ctx ends. The returned Summary is valid
// even when an error is returned.
func (c *Crawler) Run(ctx context.Context, seed string, pool Pool) (Summary, error) {
	start := time.Now()
	c.seed.Store(seed)
	if !isCandidate(seed) {
		return c.summary(start), fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}

	c.logger.Info("crawl started",
		zap.String("run_id", c.cfg.RunID.String()),
		zap.String("seed", seed),
		zap.Int("max_depth", c.cfg.MaxDepth),
	)
	c.emit(progress.Event{Stage: progress.StageRunStart, URL: seed})

	owned, err := c.frontier.Claim(ctx, seed)
	if err != nil {
		return c.summary(start), fmt.Errorf("claim seed: %w", err)
	}
	if !owned {
		return c.summary(start), fmt.Errorf("%w: %s", ErrSeedClaimed, seed)
	}
	c.counters.claimed.Add(1)

	if err := pool.Submit(Task{URL: seed, Depth: 0}); err != nil {
		c.counters.rejected.Add(1)
		return c.summary(start), fmt.Errorf("submit seed: %w", err)
	}

	waitErr := pool.Wait(ctx)
	summary := c.summary(start)
	c.emit(progress.Event{Stage: progress.StageRunDone, URL: seed, Dur: summary.Duration})
	c.logger.Info("crawl finished",
		zap.String("run_id", c.cfg.RunID.String()),
		zap.Int64("claimed", summary.Claimed),
		zap.Int64("succeeded", summary.Succeeded),
		zap.Int64("failed", summary.Failed),
		zap.Int64("rejected", summary.Rejected),
		zap.Duration("duration", summary.Duration),
	)
	if waitErr != nil {
		return summary, fmt.Errorf("wait for crawl: %w", waitErr)
	}
	return summary, nil
}

// Snapshot returns the live counters.
func (c *Crawler) Snapshot() Snapshot {
	seed, _ := c.seed.Load().(string)
	return Snapshot{
		RunID:     c.cfg.RunID.String(),
		Seed:      seed,
		MaxDepth:  c.cfg.MaxDepth,
		Claimed:   c.counters.claimed.Load(),
		Started:   c.counters.started.Load(),
		Succeeded: c.counters.succeeded.Load(),
		Failed:    c.counters.failed.Load(),
		Rejected:  c.counters.rejected.Load(),
	}
}

func (c *Crawler) summary(start time.Time) Summary {
	return Summary{Snapshot: c.Snapshot(), Duration: time.Since(start)}
}
