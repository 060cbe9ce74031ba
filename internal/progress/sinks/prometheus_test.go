package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/depth-crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow the event stream.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := uuid.New()
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, URL: "https://a.test"},
		{RunID: runID, TS: now, Stage: progress.StageTaskStart, URL: "https://a.test"},
		{
			RunID:    runID,
			TS:       now,
			Stage:    progress.StageTaskDone,
			URL:      "https://a.test",
			Links:    3,
			Children: 2,
			Dur:      150 * time.Millisecond,
		},
		{RunID: runID, TS: now, Stage: progress.StageTaskStart, URL: "https://b.test", Depth: 1},
		{RunID: runID, TS: now, Stage: progress.StageFetchFailed, URL: "https://b.test", Depth: 1, Note: "404"},
		{RunID: runID, TS: now, Stage: progress.StageSubmitRejected, URL: "https://c.test", Depth: 1},
		{RunID: runID, TS: now, Stage: progress.StageClaimFailed, URL: "https://d.test", Depth: 1},
		{RunID: runID, TS: now, Stage: progress.StageRunDone},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasksStarted.WithLabelValues("0")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasksStarted.WithLabelValues("1")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasksCompleted.WithLabelValues("0")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.fetchFailures.WithLabelValues("1")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.rejected))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.claimFailures))
	require.InDelta(t, 3.0, testutil.ToFloat64(sink.linksSeen), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.taskDuration, "crawler_task_duration_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
