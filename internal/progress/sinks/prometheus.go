package sinks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/depth-crawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus collectors.
type PrometheusSink struct {
	runsStarted    prometheus.Counter
	runsCompleted  prometheus.Counter
	tasksStarted   *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	fetchFailures  *prometheus.CounterVec
	claimFailures  prometheus.Counter
	rejected       prometheus.Counter
	linksSeen      prometheus.Counter
	taskDuration   prometheus.Histogram
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_runs_started_total",
			Help: "Crawl runs that have started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_runs_completed_total",
			Help: "Crawl runs whose task graph was exhausted or interrupted.",
		}),
		tasksStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_tasks_started_total",
			Help: "Crawl tasks started, partitioned by depth.",
		}, []string{"depth"}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_tasks_completed_total",
			Help: "Crawl tasks whose page was fetched, partitioned by depth.",
		}, []string{"depth"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_fetch_failures_total",
			Help: "Crawl tasks that failed to fetch, partitioned by depth.",
		}, []string{"depth"}),
		claimFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_frontier_claim_failures_total",
			Help: "Frontier claims that returned an error.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_submit_rejected_total",
			Help: "Claimed links the dispatcher refused to accept.",
		}),
		linksSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_links_seen_total",
			Help: "Candidate links extracted from fetched pages.",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_task_duration_seconds",
			Help:    "Wall time of successful crawl tasks.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.tasksStarted,
		s.tasksCompleted,
		s.fetchFailures,
		s.claimFailures,
		s.rejected,
		s.linksSeen,
		s.taskDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		depth := strconv.Itoa(evt.Depth)
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
		case progress.StageRunDone:
			s.runsCompleted.Inc()
		case progress.StageTaskStart:
			s.tasksStarted.WithLabelValues(depth).Inc()
		case progress.StageTaskDone:
			s.tasksCompleted.WithLabelValues(depth).Inc()
			s.linksSeen.Add(float64(evt.Links))
			if evt.Dur > 0 {
				s.taskDuration.Observe(evt.Dur.Seconds())
			}
		case progress.StageFetchFailed:
			s.fetchFailures.WithLabelValues(depth).Inc()
		case progress.StageClaimFailed:
			s.claimFailures.Inc()
		case progress.StageSubmitRejected:
			s.rejected.Inc()
		}
	}
	return nil
}

// Close implements progress.Sink; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
