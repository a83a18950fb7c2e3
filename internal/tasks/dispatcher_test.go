package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu        sync.Mutex
	processed []int64
	done      chan struct{}
	want      int
}

func newRecordingHandler(want int) *recordingHandler {
	return &recordingHandler{done: make(chan struct{}), want: want}
}

func (h *recordingHandler) ProcessEvent(ctx context.Context, eventID int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processed = append(h.processed, eventID)
	if len(h.processed) == h.want {
		close(h.done)
	}
	return nil
}

func (h *recordingHandler) wait(t *testing.T) []int64 {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not receive expected events in time")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.processed...)
}

func TestDispatcher_ProcessesEnqueuedEvents(t *testing.T) {
	d := NewDispatcher(8, 2)
	h := newRecordingHandler(3)
	d.Start(h)
	defer d.Stop()

	for _, id := range []int64{1, 2, 3} {
		require.True(t, d.Enqueue(id))
	}

	processed := h.wait(t)
	assert.ElementsMatch(t, []int64{1, 2, 3}, processed)
}

func TestDispatcher_FullQueueRejects(t *testing.T) {
	// Never started: nothing drains the queue.
	d := NewDispatcher(1, 1)

	assert.True(t, d.Enqueue(1))
	assert.False(t, d.Enqueue(2))
}

func TestDispatcher_EnqueueAfterDelays(t *testing.T) {
	d := NewDispatcher(8, 1)
	h := newRecordingHandler(1)
	d.Start(h)
	defer d.Stop()

	start := time.Now()
	d.EnqueueAfter(7, 50*time.Millisecond)

	processed := h.wait(t)
	assert.Equal(t, []int64{7}, processed)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDispatcher_StopRejectsNewWork(t *testing.T) {
	d := NewDispatcher(8, 1)
	h := newRecordingHandler(1)
	d.Start(h)

	require.True(t, d.Enqueue(1))
	h.wait(t)

	d.Stop()
	assert.False(t, d.Enqueue(2))

	// Stop is idempotent.
	d.Stop()
}
