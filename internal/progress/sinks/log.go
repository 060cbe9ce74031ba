package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/depth-crawler/internal/progress"
)

// LogSink emits one debug entry per event. Failures are already logged at
// warn or error where they happen.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID.String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("url", evt.URL),
			zap.Int("depth", evt.Depth),
			zap.Bool("failure", evt.Failure()),
		}
		if evt.Stage == progress.StageTaskDone {
			fields = append(fields,
				zap.Int("links", evt.Links),
				zap.Int("children", evt.Children),
				zap.Duration("dur", evt.Dur),
			)
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close flushes the underlying logger.
func (s *LogSink) Close(context.Context) error {
	// Sync on a terminal stdout returns EINVAL; nothing useful to report.
	_ = s.logger.Sync()
	return nil
}
