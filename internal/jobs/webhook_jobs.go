package jobs

import (
	"context"
	"time"

	"deposit-backend/internal/logger"
)

const retryBatchSize = 100

// RetryStalledWebhookEvents re-enqueues events whose scheduled retry
// was lost, typically after a restart dropped the in-memory queue.
func (jr *JobRunner) RetryStalledWebhookEvents() {
	jr.runWithRecovery("RetryStalledWebhookEvents", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		due, err := jr.store.WebhookEventRepository.ListDueForRetry(ctx, time.Now().UTC(), retryBatchSize)
		if err != nil {
			logger.Error("Listing stalled webhook events failed", "error", err)
			return
		}

		requeued := 0
		for _, event := range due {
			if jr.dispatcher.Enqueue(event.ID) {
				requeued++
			} else {
				logger.Warn("Dispatcher queue full, event left for next sweep", "event_id", event.ID)
			}
		}

		if len(due) > 0 {
			logger.Info("Stalled webhook events requeued", "found", len(due), "requeued", requeued)
		}
	})
}
