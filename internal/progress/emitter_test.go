package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestDirectDeliversEveryEvent checks that events sent past a saturated hub
// still reach a direct sink.
func TestDirectDeliversEveryEvent(t *testing.T) {
	t.Parallel()

	// Nothing reads the hub's channel, so every hub emit is dropped.
	hub := &Hub{events: make(chan Event), logger: zap.NewNop()}
	lineSink := newStubSink()
	emitter := Tee(hub, Direct(lineSink, nil))

	const n = 200
	for range n {
		emitter.Emit(sampleEvent(StageTaskStart))
	}

	require.Len(t, lineSink.Batches(), n)
	require.False(t, lineSink.Closed(), "direct sinks stay owned by the caller")
}

func TestDirectSkipsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	Direct(sink, nil).Emit(Event{Stage: StageTaskStart, URL: "https://a.test"})
	require.Empty(t, sink.Batches())
}

func TestTeeIgnoresNilEmitters(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	Tee(nil, Direct(sink, nil)).Emit(sampleEvent(StageFetchFailed))
	require.Len(t, sink.Batches(), 1)
}
