// Package tasks provides the in-process queue the webhook reconciler
// defers non-critical events to. It replaces fire-and-forget dispatch
// with an explicit bounded queue: enqueues are visible, retries are
// delayed deliberately, and anything dropped (full queue, restart) is
// recovered by the scheduled retry sweep over the webhook_events table.
package tasks

import (
	"context"
	"sync"
	"time"

	"deposit-backend/internal/logger"
)

// Handler processes one persisted webhook event by row id.
type Handler interface {
	ProcessEvent(ctx context.Context, eventID int64) error
}

type Dispatcher struct {
	queue   chan int64
	stop    chan struct{}
	wg      sync.WaitGroup
	workers int
	timeout time.Duration

	mu      sync.Mutex
	handler Handler
	started bool
}

func NewDispatcher(queueSize, workers int) *Dispatcher {
	return &Dispatcher{
		queue:   make(chan int64, queueSize),
		stop:    make(chan struct{}),
		workers: workers,
		timeout: 2 * time.Minute,
	}
}

// Start launches the worker goroutines. The handler is supplied here
// rather than at construction because the reconciler and the dispatcher
// reference each other.
func (d *Dispatcher) Start(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.handler = h
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	logger.Info("webhook dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case eventID := <-d.queue:
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			// Outcomes are recorded on the event row; the error return
			// is only worth a log line here.
			if err := d.handler.ProcessEvent(ctx, eventID); err != nil {
				logger.Debug("deferred webhook processing returned error", "event_id", eventID, "error", err)
			}
			cancel()
		}
	}
}

// Enqueue queues an event for processing. A full or stopped queue
// returns false; the caller leaves the row for the retry sweep.
func (d *Dispatcher) Enqueue(eventID int64) bool {
	select {
	case <-d.stop:
		return false
	default:
	}
	select {
	case d.queue <- eventID:
		return true
	default:
		logger.Warn("webhook queue full, leaving event for retry sweep", "event_id", eventID)
		return false
	}
}

// EnqueueAfter re-queues an event once the backoff delay elapses. The
// delay runs on a timer; if the process dies first, the persisted
// next_attempt_at lets the retry sweep pick the event up instead.
func (d *Dispatcher) EnqueueAfter(eventID int64, delay time.Duration) {
	time.AfterFunc(delay, func() {
		d.Enqueue(eventID)
	})
}

// Stop halts the workers. Queued events stay persisted and are recovered
// by the retry sweep on the next start.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return
	}
	close(d.stop)
	d.wg.Wait()
	d.started = false
	logger.Info("webhook dispatcher stopped")
}
