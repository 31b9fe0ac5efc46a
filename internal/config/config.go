// Package config holds the runtime configuration of the monetization ledger.
// Values are layered from defaults, an optional .env file and the process
// environment, then validated once at startup.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config is the complete configuration shared by the API gateway and the
// background worker.
type Config struct {
	Application  ApplicationConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Kafka        KafkaConfig
	Postgres     PostgresConfig
	MongoDB      MongoDBConfig
	Redis        RedisConfig
	Outbox       OutboxConfig
	WorkerPool   WorkerPoolConfig
	Monetization MonetizationConfig
	Idempotency  IdempotencyConfig
	Risk         RiskConfig
	Lifecycle    LifecycleConfig
	Audit        AuditConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	PaymentTopic      string // provider confirmations consumed by the worker
	EventsTopic       string // monetization events published from the outbox
	CatalogTopic      string // content catalog updates consumed by the worker
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	DLQTopic          string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration. The audit trail lives here.
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains the shared counter store settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// MonetizationConfig contains the money movement settings
type MonetizationConfig struct {
	PlatformWalletID string
	HoldEarnings     bool          // credit creator earnings to pending instead of available
	RenewalCooldown  time.Duration // minimum gap between two renewals of one subscription
}

// IdempotencyConfig contains idempotency record settings
type IdempotencyConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// RiskConfig contains fraud guard settings
type RiskConfig struct {
	CounterBackend   string // memory or redis
	AutoFreezeEnable bool
}

// LifecycleConfig contains subscription expiry sweep settings
type LifecycleConfig struct {
	SweepInterval time.Duration
	BatchSize     int
}

// AuditConfig contains the async audit writer settings
type AuditConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
}

// validate collects every invalid setting into a single error
func (c *Config) validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT, SERVER_WRITE_TIMEOUT and SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	if c.Kafka.Brokers == "" {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.PaymentTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_PAYMENT_TOPIC is required")
	}
	if c.Kafka.CatalogTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_CATALOG_TOPIC is required")
	}
	if c.Kafka.EventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_EVENTS_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 || c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES and KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}

	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 || c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS and POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must not exceed POSTGRES_MAX_CONNS")
	}

	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}

	switch c.Risk.CounterBackend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			validationErrors = append(validationErrors, "REDIS_ADDR is required when RISK_COUNTER_BACKEND=redis")
		}
	default:
		validationErrors = append(validationErrors, "RISK_COUNTER_BACKEND must be one of memory, redis")
	}

	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if c.Monetization.PlatformWalletID == "" {
		validationErrors = append(validationErrors, "MONETIZATION_PLATFORM_WALLET_ID is required")
	}
	if c.Monetization.RenewalCooldown < 0 {
		validationErrors = append(validationErrors, "MONETIZATION_RENEWAL_COOLDOWN must not be negative")
	}

	if c.Idempotency.TTL <= 0 {
		validationErrors = append(validationErrors, "IDEMPOTENCY_TTL must be greater than 0")
	}
	if c.Idempotency.CleanupInterval <= 0 {
		validationErrors = append(validationErrors, "IDEMPOTENCY_CLEANUP_INTERVAL must be greater than 0")
	}

	if c.Lifecycle.SweepInterval <= 0 {
		validationErrors = append(validationErrors, "LIFECYCLE_SWEEP_INTERVAL must be greater than 0")
	}
	if c.Lifecycle.BatchSize <= 0 {
		validationErrors = append(validationErrors, "LIFECYCLE_BATCH_SIZE must be greater than 0")
	}

	if c.Audit.QueueSize <= 0 {
		validationErrors = append(validationErrors, "AUDIT_QUEUE_SIZE must be greater than 0")
	}
	if c.Audit.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "AUDIT_WRITE_TIMEOUT must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
