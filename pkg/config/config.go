package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Docs       DocsConfig       `json:"docs"`
	Resilience ResilienceConfig `json:"resilience"`
	Logging    LoggingConfig    `json:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig contains the lesson store connection configuration
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DocsConfig contains the external documentation API configuration
type DocsConfig struct {
	BaseURL        string        `json:"base_url"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// ResilienceConfig contains retry, circuit breaker, health check and backup settings
type ResilienceConfig struct {
	Enabled bool `json:"enabled"`

	RetryEnabled bool          `json:"retry_enabled"`
	RetryAttempts int          `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
	RetryMaxDelay time.Duration `json:"retry_max_delay"`

	CircuitBreakerEnabled   bool          `json:"circuit_breaker_enabled"`
	CircuitBreakerThreshold int           `json:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `json:"circuit_breaker_timeout"`

	HealthCheckEnabled   bool          `json:"health_check_enabled"`
	HealthCheckInterval  time.Duration `json:"health_check_interval"`
	HealthProbeTimeout   time.Duration `json:"health_probe_timeout"`
	HealthCriticalAfter  int           `json:"health_critical_after"`

	BackupEnabled  bool          `json:"backup_enabled"`
	BackupInterval time.Duration `json:"backup_interval"`
	BackupDir      string        `json:"backup_dir"`

	StopGracePeriod time.Duration `json:"stop_grace_period"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "docfoundry"),
			User:            getEnvString("DB_USER", "docfoundry"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Docs: DocsConfig{
			BaseURL:        getEnvString("DOCS_API_BASE_URL", "https://docs.example.com/api"),
			RequestTimeout: getEnvDuration("DOCS_API_TIMEOUT", 10*time.Second),
		},
		Resilience: ResilienceConfig{
			Enabled:                 getEnvBool("RESILIENCE_ENABLED", true),
			RetryEnabled:            getEnvBool("RETRY_ENABLED", true),
			RetryAttempts:           getEnvInt("RETRY_ATTEMPTS", 3),
			RetryDelay:              getEnvDuration("RETRY_DELAY", 1*time.Second),
			RetryMaxDelay:           getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
			CircuitBreakerEnabled:   getEnvBool("CIRCUIT_BREAKER_ENABLED", true),
			CircuitBreakerThreshold: getEnvInt("CIRCUIT_BREAKER_THRESHOLD", 5),
			CircuitBreakerTimeout:   getEnvDuration("CIRCUIT_BREAKER_TIMEOUT", 30*time.Second),
			HealthCheckEnabled:      getEnvBool("HEALTH_CHECK_ENABLED", true),
			HealthCheckInterval:     getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
			HealthProbeTimeout:      getEnvDuration("HEALTH_PROBE_TIMEOUT", 5*time.Second),
			HealthCriticalAfter:     getEnvInt("HEALTH_CRITICAL_AFTER", 3),
			BackupEnabled:           getEnvBool("BACKUP_ENABLED", true),
			BackupInterval:          getEnvDuration("BACKUP_INTERVAL", 24*time.Hour),
			BackupDir:               getEnvString("BACKUP_DIR", "/var/lib/docfoundry/backups"),
			StopGracePeriod:         getEnvDuration("STOP_GRACE_PERIOD", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Resilience.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}

	if c.Resilience.CircuitBreakerThreshold < 1 {
		return fmt.Errorf("circuit breaker threshold must be at least 1")
	}

	if c.Resilience.HealthCheckInterval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}

	if c.Resilience.BackupInterval <= 0 {
		return fmt.Errorf("backup interval must be positive")
	}

	return nil
}

// DatabaseURL returns the database connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// RedisAddr returns the Redis host:port address
func (c *Config) RedisAddr() string {
	return c.Redis.Addr()
}

// Addr returns the host:port address for the Redis client
func (rc *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", rc.Host, rc.Port)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
