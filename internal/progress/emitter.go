package progress

import (
	"context"

	"go.uber.org/zap"
)

// Tee returns an Emitter that forwards every event to each emitter in order.
func Tee(emitters ...Emitter) Emitter {
	return tee(append([]Emitter(nil), emitters...))
}

type tee []Emitter

func (t tee) Emit(evt Event) {
	for _, e := range t {
		if e != nil {
			e.Emit(evt)
		}
	}
}

// Direct returns an Emitter that hands each valid event to sink as a
// one-event batch on the caller's goroutine. Nothing is buffered or dropped,
// so a slow sink slows the caller. The caller keeps ownership of sink.
func Direct(sink Sink, logger *zap.Logger) Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &direct{sink: sink, logger: logger}
}

type direct struct {
	sink   Sink
	logger *zap.Logger
}

func (d *direct) Emit(evt Event) {
	if err := evt.Validate(); err != nil {
		d.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultSinkTimeout)
	defer cancel()
	if err := d.sink.Consume(ctx, []Event{evt}); err != nil {
		d.logger.Warn("progress sink consume failed", zap.Error(err))
	}
}
