package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Processor ProcessorConfig `yaml:"processor"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Auth      AuthConfig      `yaml:"auth"`
	Alert     AlertConfig     `yaml:"alert"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Deposit   DepositConfig   `yaml:"deposit"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ProcessorConfig contains payment processor settings
type ProcessorConfig struct {
	Mode           string `yaml:"mode"` // "live" or "stub"
	SecretKey      string `yaml:"secret_key"`
	Currency       string `yaml:"currency"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// WebhookConfig contains webhook reconciliation settings
type WebhookConfig struct {
	SigningSecret  string `yaml:"signing_secret"`
	MaxAttempts    int    `yaml:"max_attempts"`
	BackoffMinutes int    `yaml:"backoff_minutes"`
	QueueSize      int    `yaml:"queue_size"`
	Workers        int    `yaml:"workers"`
}

// AuthConfig contains API token settings
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// AlertConfig contains operations alerting settings. Alerting is disabled
// when the API key is empty.
type AlertConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	OpsEmail       string `yaml:"ops_email"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	AutoReleaseDeposits string `yaml:"auto_release_deposits"`
	RetryWebhookEvents  string `yaml:"retry_webhook_events"`
}

// DepositConfig contains deposit lifecycle policy settings
type DepositConfig struct {
	AutoReleaseAfterHours int `yaml:"auto_release_after_hours"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Processor
	if val := os.Getenv("PROCESSOR_SECRET_KEY"); val != "" {
		c.Processor.SecretKey = val
	}
	if val := os.Getenv("PROCESSOR_MODE"); val != "" {
		c.Processor.Mode = val
	}
	if val := os.Getenv("WEBHOOK_SIGNING_SECRET"); val != "" {
		c.Webhook.SigningSecret = val
	}

	// Auth
	if val := os.Getenv("AUTH_SECRET"); val != "" {
		c.Auth.Secret = val
	}

	// Alerting
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Alert.SendGridAPIKey = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// Processor validation: credentials are a startup concern, never a
	// per-request one.
	if c.Processor.Mode == "" {
		c.Processor.Mode = "live"
	}
	if c.Processor.Mode != "live" && c.Processor.Mode != "stub" {
		return fmt.Errorf("invalid processor mode: %s", c.Processor.Mode)
	}
	if c.Processor.Mode == "live" && c.Processor.SecretKey == "" {
		return fmt.Errorf("processor secret key is required")
	}
	if c.Webhook.SigningSecret == "" {
		return fmt.Errorf("webhook signing secret is required")
	}
	if c.Processor.Currency == "" {
		c.Processor.Currency = "eur"
	}
	if c.Processor.TimeoutSeconds <= 0 {
		c.Processor.TimeoutSeconds = 15
	}

	// Auth validation
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	if len(c.Auth.Secret) < 32 {
		return fmt.Errorf("auth secret must be at least 32 characters")
	}

	// Webhook reconciliation defaults
	if c.Webhook.MaxAttempts <= 0 {
		c.Webhook.MaxAttempts = 3
	}
	if c.Webhook.BackoffMinutes <= 0 {
		c.Webhook.BackoffMinutes = 5
	}
	if c.Webhook.QueueSize <= 0 {
		c.Webhook.QueueSize = 256
	}
	if c.Webhook.Workers <= 0 {
		c.Webhook.Workers = 2
	}

	// Scheduler defaults
	if c.Scheduler.AutoReleaseDeposits == "" {
		c.Scheduler.AutoReleaseDeposits = "0 0 * * * *" // Hourly
	}
	if c.Scheduler.RetryWebhookEvents == "" {
		c.Scheduler.RetryWebhookEvents = "0 */10 * * * *" // Every 10 minutes
	}

	// Deposit policy defaults
	if c.Deposit.AutoReleaseAfterHours <= 0 {
		c.Deposit.AutoReleaseAfterHours = 24
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
