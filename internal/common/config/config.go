package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything a service needs at startup.
// NOTE: Loaded from environment variables; .env is read by the mains.
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Saga     SagaConfig
}

type ServiceConfig struct {
	Name string
	Port string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
}

type JWTConfig struct {
	// Secret enables JWT auth on HTTP routes when non-empty.
	Secret string
}

// SagaConfig tunes the saga engine workers.
type SagaConfig struct {
	// Timeout is the wall-clock deadline a transfer gets at initiation.
	Timeout time.Duration
	// OutboxPollInterval is the publisher tick period.
	OutboxPollInterval time.Duration
	// OutboxBatchSize caps records drained per tick.
	OutboxBatchSize int
	// RecoveryInterval is the stuck-saga scanner period (coordinator only).
	RecoveryInterval time.Duration
	// RefundMaxAttempts bounds in-process retries on the refund path.
	RefundMaxAttempts int
	// RefundInitialBackoff is the first retry delay on the refund path.
	RefundInitialBackoff time.Duration
}

// Load reads configuration for the named service ("coordinator" or "ledger").
// Service-scoped values (port, database name) use a <SERVICE>_ env prefix so
// both services can share one environment file.
func Load(service string) (*Config, error) {
	if service == "" {
		return nil, fmt.Errorf("service name is required")
	}
	prefix := strings.ToUpper(service) + "_"

	cfg := &Config{
		Service: ServiceConfig{
			Name: service,
			Port: getEnv(prefix+"PORT", defaultPort(service)),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv(prefix+"DB_NAME", "payflow_"+service),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "payflow-"+service),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Saga: SagaConfig{
			Timeout:              getEnvAsMillis("SAGA_TIMEOUT_MS", 60000),
			OutboxPollInterval:   getEnvAsMillis("OUTBOX_POLL_INTERVAL_MS", 50),
			OutboxBatchSize:      getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
			RecoveryInterval:     getEnvAsMillis("TIMEOUT_SCANNER_PERIOD_MS", 10000),
			RefundMaxAttempts:    getEnvAsInt("REFUND_RETRY_MAX_ATTEMPTS", 3),
			RefundInitialBackoff: getEnvAsMillis("REFUND_RETRY_INITIAL_BACKOFF_MS", 100),
		},
	}

	if cfg.Saga.OutboxBatchSize <= 0 {
		return nil, fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	if cfg.Saga.RefundMaxAttempts <= 0 {
		return nil, fmt.Errorf("REFUND_RETRY_MAX_ATTEMPTS must be positive")
	}

	return cfg, nil
}

func defaultPort(service string) string {
	switch service {
	case "coordinator":
		return "8080"
	case "ledger":
		return "8081"
	default:
		return "8000"
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultMillis int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultMillis)) * time.Millisecond
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr := getEnv(key, ""); valueStr != "" {
		if duration, err := time.ParseDuration(valueStr); err == nil {
			return duration
		}
	}
	return defaultValue
}
