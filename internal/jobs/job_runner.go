package jobs

import (
	"deposit-backend/internal/config"
	"deposit-backend/internal/logger"
	"deposit-backend/internal/repository/postgres"
	"deposit-backend/internal/service"
	"deposit-backend/internal/tasks"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	store      *postgres.Store
	deposits   service.DepositService
	dispatcher *tasks.Dispatcher
	config     *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(store *postgres.Store, deposits service.DepositService, dispatcher *tasks.Dispatcher, cfg *config.Config) *JobRunner {
	return &JobRunner{
		store:      store,
		deposits:   deposits,
		dispatcher: dispatcher,
		config:     cfg,
	}
}

// Config exposes the configuration for schedule registration
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.AutoReleaseDeposits()
	jr.RetryStalledWebhookEvents()
}
