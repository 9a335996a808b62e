package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported lock store backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	// Redis configuration, used when LockBackend is "redis"
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// Lock configuration
	LockBackend           string
	LockTimeoutSeconds    int
	LockCleanupIntervalMS int
	ServiceName           string
	DefaultUser           string

	// Executor configuration
	ExecutorAttempts     int
	ExecutorRetryDelayMS int
	FingerprintNamespace string

	// Calendar configuration
	CalendarCode           string
	CalendarRefreshMinutes int
	// Holidays (YYYY-MM-DD) seeded into CalendarCode on startup
	Holidays []string

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string
	NotifyEmail  string

	// Notification configuration
	TelegramBotToken string
	TelegramChatID   string
}

// LockTTL returns the lease duration granted to every acquired lock.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// SweepInterval returns the period of the expired lock sweep.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.LockCleanupIntervalMS) * time.Millisecond
}

// RetryDelay returns the fixed wait between executor acquisition attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.ExecutorRetryDelayMS) * time.Millisecond
}

// CalendarRefresh returns how often the holiday cache is reloaded.
func (c *Config) CalendarRefresh() time.Duration {
	return time.Duration(c.CalendarRefreshMinutes) * time.Minute
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "lockguard"),

		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "lockguard:"),

		LockBackend:           strings.ToLower(getEnv("LOCK_BACKEND", BackendPostgres)),
		LockTimeoutSeconds:    getEnvAsInt("LOCK_TIMEOUT_SECONDS", 30),
		LockCleanupIntervalMS: getEnvAsInt("LOCK_CLEANUP_INTERVAL_MS", 300000),
		ServiceName:           getEnv("SERVICE_NAME", "defaultService"),
		DefaultUser:           getEnv("DEFAULT_USER", "SYSTEM"),

		ExecutorAttempts:     getEnvAsInt("EXECUTOR_ATTEMPTS", 3),
		ExecutorRetryDelayMS: getEnvAsInt("EXECUTOR_RETRY_DELAY_MS", 500),
		FingerprintNamespace: getEnv("FINGERPRINT_NAMESPACE", "certificacion"),

		CalendarCode:           getEnv("CALENDAR_CODE", "P00020"),
		CalendarRefreshMinutes: getEnvAsInt("CALENDAR_REFRESH_MINUTES", 60),
		Holidays:               getEnvAsList("HOLIDAYS"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),
		NotifyEmail:  getEnv("NOTIFY_EMAIL", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		APIPort: getEnvAsInt("API_PORT", 8080),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.LockTimeoutSeconds <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT_SECONDS must be positive, got %d", c.LockTimeoutSeconds)
	}

	if c.LockCleanupIntervalMS <= 0 {
		return fmt.Errorf("LOCK_CLEANUP_INTERVAL_MS must be positive, got %d", c.LockCleanupIntervalMS)
	}

	if c.ExecutorAttempts <= 0 {
		return fmt.Errorf("EXECUTOR_ATTEMPTS must be positive, got %d", c.ExecutorAttempts)
	}

	if c.ExecutorRetryDelayMS < 0 {
		return fmt.Errorf("EXECUTOR_RETRY_DELAY_MS cannot be negative, got %d", c.ExecutorRetryDelayMS)
	}

	if c.CalendarRefreshMinutes <= 0 {
		return fmt.Errorf("CALENDAR_REFRESH_MINUTES must be positive, got %d", c.CalendarRefreshMinutes)
	}

	if c.ServiceName == "" {
		return fmt.Errorf("SERVICE_NAME is required")
	}

	if c.DefaultUser == "" {
		return fmt.Errorf("DEFAULT_USER is required")
	}

	if c.FingerprintNamespace == "" {
		return fmt.Errorf("FINGERPRINT_NAMESPACE is required")
	}

	for _, day := range c.Holidays {
		if _, err := time.Parse(time.DateOnly, day); err != nil {
			return fmt.Errorf("HOLIDAYS entry %q is not a YYYY-MM-DD date", day)
		}
	}

	switch c.LockBackend {
	case BackendPostgres:
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when LOCK_BACKEND is postgres")
		}
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when LOCK_BACKEND is postgres")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when LOCK_BACKEND is redis")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty items.
func getEnvAsList(name string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(name), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
