package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Bootstrap BootstrapConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port        string
	ReadTimeout time.Duration
	IdleTimeout time.Duration
}

type DatabaseConfig struct {
	Driver           string // sqlite or postgres
	SQLitePath       string
	PostgresDSN      string
	MaxOpenConns     int
	MaxIdleConns     int
	MaxLifetime      time.Duration
	StorageTimeout   time.Duration
	ReadRetryBackoff time.Duration
	AutoMigrate      bool
}

type RedisConfig struct {
	Addr         string
	StandLockTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	VoteEvents      string
	AdminEvents     string
	IntegrityAlerts string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// BootstrapConfig seeds the first administrator when the admins table is empty.
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
	AdminRole     string
}

// RateLimitConfig caps requests per client IP over a fixed window.
type RateLimitConfig struct {
	Enabled        bool
	VotesPerWindow int
	VoteWindow     time.Duration
	APIPerWindow   int
	AdminPerWindow int
	APIWindow      time.Duration
}

const minSecretLength = 32

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", ":8080"),
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			SQLitePath:       getEnv("SQLITE_PATH", "event.db"),
			PostgresDSN:      getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:      time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			StorageTimeout:   time.Duration(getEnvInt("STORAGE_TIMEOUT_MS", 3000)) * time.Millisecond,
			ReadRetryBackoff: time.Duration(getEnvInt("READ_RETRY_BACKOFF_MS", 50)) * time.Millisecond,
			AutoMigrate:      getEnvBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", ""),
			StandLockTTL: time.Duration(getEnvInt("STAND_LOCK_TTL_SECONDS", 5)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				VoteEvents:      getEnv("KAFKA_TOPIC_VOTES", "voting.votes"),
				AdminEvents:     getEnv("KAFKA_TOPIC_ADMIN", "voting.admin"),
				IntegrityAlerts: getEnv("KAFKA_TOPIC_ALERTS", "voting.integrity.alerts"),
			},
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  time.Duration(getEnvInt("JWT_TTL_HOURS", 24)) * time.Hour,
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: getEnv("ADMIN_BOOTSTRAP_USERNAME", ""),
			AdminPassword: getEnv("ADMIN_BOOTSTRAP_PASSWORD", ""),
			AdminRole:     getEnv("ADMIN_BOOTSTRAP_ROLE", "superadmin"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			VotesPerWindow: getEnvInt("RATE_LIMIT_VOTES", 5),
			VoteWindow:     time.Duration(getEnvInt("RATE_LIMIT_VOTE_WINDOW_SECONDS", 60)) * time.Second,
			APIPerWindow:   getEnvInt("RATE_LIMIT_API", 100),
			AdminPerWindow: getEnvInt("RATE_LIMIT_ADMIN", 500),
			APIWindow:      time.Duration(getEnvInt("RATE_LIMIT_API_WINDOW_MINUTES", 15)) * time.Minute,
		},
	}
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength)
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return errors.New("SQLITE_PATH must be set for the sqlite driver")
		}
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.StorageTimeout <= 0 {
		return errors.New("STORAGE_TIMEOUT_MS must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.VotesPerWindow <= 0 || c.RateLimit.APIPerWindow <= 0 || c.RateLimit.AdminPerWindow <= 0) {
		return errors.New("rate limits must be positive when RATE_LIMIT_ENABLED is true")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS must be set when KAFKA_ENABLED is true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
