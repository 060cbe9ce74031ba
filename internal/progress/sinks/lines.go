package sinks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/depth-crawler/internal/progress"
)

// LineSink writes the human-readable crawl report: one line per task start on
// out and one line per fetch failure or rejected submission on errOut.
type LineSink struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

// NewLineSink builds a LineSink. A nil errOut sends failures to out.
func NewLineSink(out, errOut io.Writer) *LineSink {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = out
	}
	return &LineSink{out: out, errOut: errOut}
}

// Consume renders each event of interest as a single line.
func (s *LineSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		var err error
		switch evt.Stage {
		case progress.StageTaskStart:
			_, err = fmt.Fprintf(s.out, "Crawling: %s | Depth: %d\n", evt.URL, evt.Depth)
		case progress.StageFetchFailed:
			_, err = fmt.Fprintf(s.errOut, "Failed to fetch: %s | %s\n", evt.URL, evt.Note)
		case progress.StageSubmitRejected:
			_, err = fmt.Fprintf(s.errOut, "Dropped: %s | Depth: %d | %s\n", evt.URL, evt.Depth, evt.Note)
		}
		if err != nil {
			return fmt.Errorf("write progress line: %w", err)
		}
	}
	return nil
}

// Close implements progress.Sink; it performs no action.
func (s *LineSink) Close(context.Context) error {
	return nil
}
