package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	App      AppConfig
	Engine   EngineConfig
	Email    EmailConfig
	CoreAPI  CoreAPIConfig
	Webhook  WebhookConfig
	Composer ComposerConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsPath  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level  string
	Format string // json or text
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment  string
	Version      string
	Name         string
	BusinessName string
}

// EngineConfig holds automation engine tuning knobs
type EngineConfig struct {
	EventQueueSize    int
	ScanInterval      time.Duration
	DispatchInterval  time.Duration
	DispatchBatchSize int
	DispatchWorkers   int
	DispatchLease     time.Duration
	MaxAttempts       int
	RetryBaseDelay    time.Duration
}

// EmailConfig holds SMTP configuration for the email executor
type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromAddress  string
}

// CoreAPIConfig holds the connection to the main application's internal API,
// which owns SMS delivery, loyalty, promotions, tasks and the client CRM.
type CoreAPIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// WebhookConfig holds outbound webhook executor configuration
type WebhookConfig struct {
	Timeout       time.Duration
	RatePerSecond float64
	RateBurst     int
}

// ComposerConfig holds the AI message composer configuration
type ComposerConfig struct {
	Enabled  bool
	Provider string // openai or anthropic
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// AuthConfig holds service authentication configuration
type AuthConfig struct {
	JWTSecret    string
	APIKeyHashes []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "automations"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Environment:  getEnv("APP_ENV", "development"),
			Version:      getEnv("APP_VERSION", "0.1.0"),
			Name:         getEnv("APP_NAME", "glowdesk-automations"),
			BusinessName: getEnv("APP_BUSINESS_NAME", "Glowdesk"),
		},
		Engine: EngineConfig{
			EventQueueSize:    getEnvAsInt("ENGINE_EVENT_QUEUE_SIZE", 1024),
			ScanInterval:      getEnvAsDuration("ENGINE_SCAN_INTERVAL", 1*time.Hour),
			DispatchInterval:  getEnvAsDuration("ENGINE_DISPATCH_INTERVAL", 15*time.Second),
			DispatchBatchSize: getEnvAsInt("ENGINE_DISPATCH_BATCH_SIZE", 100),
			DispatchWorkers:   getEnvAsInt("ENGINE_DISPATCH_WORKERS", 8),
			DispatchLease:     getEnvAsDuration("ENGINE_DISPATCH_LEASE", 10*time.Minute),
			MaxAttempts:       getEnvAsInt("ENGINE_MAX_ATTEMPTS", 5),
			RetryBaseDelay:    getEnvAsDuration("ENGINE_RETRY_BASE_DELAY", 30*time.Second),
		},
		Email: EmailConfig{
			Enabled:      getEnvAsBool("EMAIL_ENABLED", false),
			SMTPHost:     getEnv("EMAIL_SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnvAsInt("EMAIL_SMTP_PORT", 587),
			SMTPUser:     getEnv("EMAIL_SMTP_USER", ""),
			SMTPPassword: getEnv("EMAIL_SMTP_PASSWORD", ""),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "noreply@glowdesk.app"),
		},
		CoreAPI: CoreAPIConfig{
			BaseURL: getEnv("CORE_API_URL", "http://localhost:8081"),
			Token:   getEnv("CORE_API_TOKEN", ""),
			Timeout: getEnvAsDuration("CORE_API_TIMEOUT", 10*time.Second),
		},
		Webhook: WebhookConfig{
			Timeout:       getEnvAsDuration("WEBHOOK_TIMEOUT", 30*time.Second),
			RatePerSecond: getEnvAsFloat("WEBHOOK_RATE_PER_SECOND", 5),
			RateBurst:     getEnvAsInt("WEBHOOK_RATE_BURST", 10),
		},
		Composer: ComposerConfig{
			Enabled:  getEnvAsBool("COMPOSER_ENABLED", false),
			Provider: getEnv("COMPOSER_PROVIDER", "openai"),
			APIKey:   getEnv("COMPOSER_API_KEY", ""),
			Model:    getEnv("COMPOSER_MODEL", ""),
			Timeout:  getEnvAsDuration("COMPOSER_TIMEOUT", 20*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			APIKeyHashes: getEnvAsSlice("API_KEY_HASHES"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}

	if c.Engine.DispatchWorkers <= 0 {
		return fmt.Errorf("dispatch workers must be positive")
	}

	if c.Engine.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}

	if c.Engine.DispatchLease <= c.Webhook.Timeout {
		return fmt.Errorf("dispatch lease %s must exceed the webhook timeout %s", c.Engine.DispatchLease, c.Webhook.Timeout)
	}

	if c.App.Environment == "production" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}

	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
