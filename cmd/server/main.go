package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "deposit-backend/internal/api/http"
	"deposit-backend/internal/config"
	"deposit-backend/internal/logger"
	"deposit-backend/internal/processor"
	"deposit-backend/internal/repository/postgres"
	"deposit-backend/internal/security"
	"deposit-backend/internal/service"
	"deposit-backend/internal/tasks"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Deposit Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("Processor configuration", "mode", cfg.Processor.Mode, "currency", cfg.Processor.Currency)

	// Initialize Database
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

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.Auth.Secret)

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

	// Set up HTTP server
	router := httpapi.NewRouter(depositSvc, reconciler, tokenManager)
	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
}
