package jobs

import (
	"context"
	"time"

	"deposit-backend/internal/logger"
)

// AutoReleaseDeposits expires authorized deposits whose reservation
// check-out plus the configured grace period has passed.
func (jr *JobRunner) AutoReleaseDeposits() {
	jr.runWithRecovery("AutoReleaseDeposits", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		released, err := jr.deposits.ExpireStale(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("Auto-release sweep failed", "error", err)
			return
		}

		if released > 0 {
			logger.Info("Auto-release sweep finished", "released", released)
		}
	})
}
