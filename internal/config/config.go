package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Mailgun   MailgunConfig
	Scheduler SchedulerConfig
	Delivery  DeliveryConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Services  ServicesConfig
	Server    ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// MailgunConfig holds delivery provider credentials and sender identity
type MailgunConfig struct {
	APIKey       string
	Domain       string
	BaseURL      string
	FromAddress  string
	ReplyTo      string
	TestMode     bool
}

// SchedulerConfig holds campaign scheduler timing parameters
type SchedulerConfig struct {
	TickInterval   time.Duration // how often the loop polls for due campaigns
	TickJitter     time.Duration // random addition per tick to desynchronize instances
	LeaseDuration  time.Duration // claim window on a due campaign
	FailureBackoff time.Duration // push-forward applied after a failed tick
}

// DeliveryConfig holds outbound send parameters
type DeliveryConfig struct {
	MaxRetries          int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration
	BatchSize           int
	Concurrency         int
	DelayBetweenBatches time.Duration
	BodyMaxBytes        int
	AuthCooldown        time.Duration
	BreakerThreshold    int
	BreakerCooldown     time.Duration
}

// KafkaConfig holds Kafka/event streaming configuration
type KafkaConfig struct {
	Brokers string
	Topic   string
}

// RedisConfig holds Redis connection settings for rate limiting
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// ServicesConfig holds external service API keys
type ServicesConfig struct {
	OpenAIAPIKey string
	WebAppURI    string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Delivery provider configuration
	if cfg.Mailgun.APIKey, err = requireEnv("MAILGUN_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.Mailgun.Domain, err = requireEnv("MAILGUN_DOMAIN"); err != nil {
		return nil, err
	}
	if cfg.Mailgun.FromAddress, err = requireEnv("MAILGUN_FROM_ADDRESS"); err != nil {
		return nil, err
	}
	cfg.Mailgun.BaseURL = getEnvWithDefault("MAILGUN_BASE_URL", "https://api.mailgun.net/v3")
	cfg.Mailgun.ReplyTo = os.Getenv("MAILGUN_REPLY_TO")
	cfg.Mailgun.TestMode = getEnvWithDefault("MAILGUN_TEST_MODE", "false") == "true"

	// Scheduler configuration
	if cfg.Scheduler.TickInterval, err = durationEnv("SCHEDULER_TICK_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Scheduler.TickJitter, err = durationEnv("SCHEDULER_TICK_JITTER", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Scheduler.LeaseDuration, err = durationEnv("CLAIM_LEASE_DURATION", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Scheduler.FailureBackoff, err = durationEnv("SCHEDULER_FAILURE_BACKOFF", 10*time.Minute); err != nil {
		return nil, err
	}

	// Delivery configuration
	if cfg.Delivery.MaxRetries, err = intEnv("SEND_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.Delivery.RetryBaseDelay, err = durationEnv("SEND_RETRY_BASE_DELAY", 300*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Delivery.RetryMaxDelay, err = durationEnv("SEND_RETRY_MAX_DELAY", 1500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Delivery.BatchSize, err = intEnv("SEND_BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.Delivery.Concurrency, err = intEnv("SEND_CONCURRENCY", 10); err != nil {
		return nil, err
	}
	if cfg.Delivery.DelayBetweenBatches, err = durationEnv("SEND_DELAY_BETWEEN_BATCHES", time.Second); err != nil {
		return nil, err
	}
	if cfg.Delivery.BodyMaxBytes, err = intEnv("SEND_BODY_MAX_BYTES", 500000); err != nil {
		return nil, err
	}
	if cfg.Delivery.AuthCooldown, err = durationEnv("SEND_AUTH_COOLDOWN", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Delivery.BreakerThreshold, err = intEnv("BREAKER_FAILURE_THRESHOLD", 4); err != nil {
		return nil, err
	}
	if cfg.Delivery.BreakerCooldown, err = durationEnv("BREAKER_COOLDOWN", 30*time.Second); err != nil {
		return nil, err
	}

	// Kafka configuration
	if cfg.Kafka.Brokers, err = requireEnv("KAFKA_BROKERS"); err != nil {
		return nil, err
	}
	cfg.Kafka.Topic = getEnvWithDefault("KAFKA_TOPIC", "outreach-events")

	// Redis configuration (optional, used for launch rate limiting)
	cfg.Redis.Enabled = getEnvWithDefault("REDIS_ENABLED", "false") == "true"
	if cfg.Redis.Enabled {
		if cfg.Redis.Host, err = requireEnv("REDIS_HOST"); err != nil {
			return nil, err
		}
		if cfg.Redis.Port, err = intEnv("REDIS_PORT", 6379); err != nil {
			return nil, err
		}
		cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
		if cfg.Redis.DB, err = intEnv("REDIS_DB", 0); err != nil {
			return nil, err
		}
	}

	// Services configuration
	if cfg.Services.OpenAIAPIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.Services.WebAppURI, err = requireEnv("WEBAPP_URI"); err != nil {
		return nil, err
	}

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// intEnv parses an integer environment variable with a default
func intEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return parsed, nil
}

// durationEnv parses a duration environment variable with a default
func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return parsed, nil
}
