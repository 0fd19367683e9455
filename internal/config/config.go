package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBDriver   string // postgres or sqlite
	DBPath     string // sqlite only
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Application
	AppEnv      string
	LogLevel    string
	MetricsAddr string

	// Matching
	MatchExpiry   time.Duration
	MaxDistanceKm float64

	// Jobs
	JobPollInterval       time.Duration
	JobLease              time.Duration
	JobMaxAttempts        int
	JobInitialBackoff     time.Duration
	JobMaxBackoff         time.Duration
	JobCompletedRetention time.Duration
	JobFailedRetention    time.Duration
	JobPurgeInterval      time.Duration

	// Recurring jobs
	RecalculateEvery  time.Duration
	RebuildIndexEvery time.Duration
	SweepExpiredEvery time.Duration

	// Chat service
	ChatServiceURL     string
	ChatServiceSecret  string
	ChatRequestTimeout time.Duration

	// Notifications
	NotifyBufferSize  int
	TelegramBotToken  string
	CallbackRateLimit int // button presses per user per minute
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBPath:     getEnv("DB_PATH", "roommate_match.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "roommate"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "roommate_match"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),

		MatchExpiry:   getEnvDuration("MATCH_EXPIRY", 7*24*time.Hour),
		MaxDistanceKm: getEnvFloat("MAX_DISTANCE_KM", 50),

		JobPollInterval:       getEnvDuration("JOB_POLL_INTERVAL", time.Second),
		JobLease:              getEnvDuration("JOB_LEASE", 5*time.Minute),
		JobMaxAttempts:        getEnvInt("JOB_MAX_ATTEMPTS", 3),
		JobInitialBackoff:     getEnvDuration("JOB_INITIAL_BACKOFF", 2*time.Second),
		JobMaxBackoff:         getEnvDuration("JOB_MAX_BACKOFF", time.Minute),
		JobCompletedRetention: getEnvDuration("JOB_COMPLETED_RETENTION", 24*time.Hour),
		JobFailedRetention:    getEnvDuration("JOB_FAILED_RETENTION", 7*24*time.Hour),
		JobPurgeInterval:      getEnvDuration("JOB_PURGE_INTERVAL", 10*time.Minute),

		RecalculateEvery:  getEnvDuration("RECALCULATE_EVERY", 24*time.Hour),
		RebuildIndexEvery: getEnvDuration("REBUILD_INDEX_EVERY", 7*24*time.Hour),
		SweepExpiredEvery: getEnvDuration("SWEEP_EXPIRED_EVERY", time.Hour),

		ChatServiceURL:     getEnv("CHAT_SERVICE_URL", ""),
		ChatServiceSecret:  getEnv("CHAT_SERVICE_SECRET", ""),
		ChatRequestTimeout: getEnvDuration("CHAT_REQUEST_TIMEOUT", 5*time.Second),

		NotifyBufferSize: getEnvInt("NOTIFY_BUFFER_SIZE", 256),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		CallbackRateLimit: getEnvInt("CALLBACK_RATE_LIMIT", 20),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "", "postgres":
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.ChatServiceURL != "" && len(c.ChatServiceSecret) < 32 {
		return fmt.Errorf("CHAT_SERVICE_SECRET must be at least 32 characters when CHAT_SERVICE_URL is set")
	}
	if c.MatchExpiry <= 0 {
		return fmt.Errorf("MATCH_EXPIRY must be positive")
	}
	if c.MaxDistanceKm <= 0 {
		return fmt.Errorf("MAX_DISTANCE_KM must be positive")
	}
	if c.JobMaxAttempts < 1 {
		return fmt.Errorf("JOB_MAX_ATTEMPTS must be at least 1")
	}
	if c.JobPollInterval <= 0 || c.JobLease <= 0 {
		return fmt.Errorf("JOB_POLL_INTERVAL and JOB_LEASE must be positive")
	}
	if c.CallbackRateLimit < 1 {
		return fmt.Errorf("CALLBACK_RATE_LIMIT must be at least 1")
	}
	if c.NotifyBufferSize < 1 {
		return fmt.Errorf("NOTIFY_BUFFER_SIZE must be at least 1")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.DBDriver == "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres in production")
	}
	if c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.ChatServiceURL == "" {
		return fmt.Errorf("CHAT_SERVICE_URL must be set in production")
	}
	if c.ChatServiceSecret == "your_chat_service_secret_minimum_32_chars" {
		return fmt.Errorf("CHAT_SERVICE_SECRET must be changed from default in production")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
