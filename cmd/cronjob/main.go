package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"deposit-backend/internal/config"
	"deposit-backend/internal/jobs"
	"deposit-backend/internal/logger"
	"deposit-backend/internal/processor"
	"deposit-backend/internal/repository/postgres"
	"deposit-backend/internal/scheduler"
	"deposit-backend/internal/service"
	"deposit-backend/internal/tasks"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'auto-release-deposits', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Deposit Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Payment Gateway
	var gateway processor.Gateway
	testMode := cfg.Processor.Mode == "stub"
	if testMode {
		logger.Info("Using stub payment gateway")
		gateway = processor.NewStubGateway()
	} else {
		gateway = processor.NewStripeGateway(
			cfg.Processor.SecretKey,
			cfg.Processor.Currency,
			time.Duration(cfg.Processor.TimeoutSeconds)*time.Second,
		)
	}

	// Initialize Services
	depositSvc := service.NewDepositService(
		store.DepositRepository,
		store.ReservationRepository,
		gateway,
		testMode,
		time.Duration(cfg.Deposit.AutoReleaseAfterHours)*time.Hour,
	)

	alertSvc := service.NewAlertService(cfg.Alert.SendGridAPIKey, cfg.Alert.FromEmail, cfg.Alert.OpsEmail)
	verifier := processor.NewWebhookVerifier(cfg.Webhook.SigningSecret)
	dispatcher := tasks.NewDispatcher(cfg.Webhook.QueueSize, cfg.Webhook.Workers)

	reconciler := service.NewWebhookReconciler(
		store.WebhookEventRepository,
		store.DepositRepository,
		verifier,
		dispatcher,
		alertSvc,
		cfg.Webhook.MaxAttempts,
		time.Duration(cfg.Webhook.BackoffMinutes)*time.Minute,
	)
	dispatcher.Start(reconciler)
	defer dispatcher.Stop()

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store, depositSvc, dispatcher, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	if !cronScheduler.IsRunning() {
		logger.Error("No cron jobs registered, nothing to run")
		log.Fatal("No cron jobs registered, nothing to run")
	}
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "auto-release-deposits":
		jobRunner.AutoReleaseDeposits()
	case "retry-webhook-events":
		jobRunner.RetryStalledWebhookEvents()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - auto-release-deposits\n")
		fmt.Printf("  - retry-webhook-events\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
