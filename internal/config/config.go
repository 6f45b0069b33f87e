// Package config provides configuration structures and validation for the ledger binaries.
// Values come from an optional .env file and the process environment, layered over defaults.
package config

import (
	"errors"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"

	LockDriverLocal = "local"
	LockDriverRedis = "redis"

	// minJWTSecretLength keeps HS256 keys at least as long as the hash output
	minJWTSecretLength = 32
)

// Config holds the complete configuration for the API and relay binaries.
// Each field represents one subsystem and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Auth        AuthConfig
	Store       StoreConfig
	Lock        LockConfig
	Redis       RedisConfig
	Ledger      LedgerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
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

// AuthConfig controls token verification in front of the ledger routes
type AuthConfig struct {
	TokenHeader string        // Header carrying the bearer token
	JWTSecret   string        // HS256 shared secret of the issuing collaborator
	Leeway      time.Duration // Clock skew tolerated on exp/nbf
	WriteKinds  []string      // Principal kinds allowed to create and adjust items
}

// StoreConfig selects the ledger store backend
type StoreConfig struct {
	Driver string
}

// LockConfig selects and tunes the per-item lock
type LockConfig struct {
	Driver        string
	TTL           time.Duration // Lease of a redis lock; bounds a crashed holder
	RetryInterval time.Duration // Poll interval while waiting for a redis lock
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LedgerConfig contains ledger service tuning
type LedgerConfig struct {
	MaxSaveAttempts    int  // Re-read and save attempts on optimistic conflicts
	StoreRetryAttempts int  // Attempts for reads failing with a store outage
	AllowNegative      bool // Permit deltas that drive a quantity below zero
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	EventTopic        string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
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

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig contains outbox relay configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// WorkerPoolConfig contains archive worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// validate collects every violation instead of stopping at the first one
func (c *Config) validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Server.Port > 0, "SERVER_PORT must be greater than 0")
	check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	check(c.Server.ReadTimeout > 0, "SERVER_READ_TIMEOUT must be greater than 0")
	check(c.Server.WriteTimeout > 0, "SERVER_WRITE_TIMEOUT must be greater than 0")
	check(c.Server.IdleTimeout > 0, "SERVER_IDLE_TIMEOUT must be greater than 0")

	check(c.Auth.TokenHeader != "", "AUTH_TOKEN_HEADER is required")
	check(len(c.Auth.JWTSecret) >= minJWTSecretLength, "JWT_SECRET must be at least 32 bytes")
	check(c.Auth.Leeway >= 0, "AUTH_LEEWAY must not be negative")
	check(len(c.Auth.WriteKinds) > 0, "AUTH_WRITE_KINDS is required")

	check(c.Store.Driver == StoreDriverPostgres || c.Store.Driver == StoreDriverMongo,
		"STORE_DRIVER must be one of postgres, mongo")

	check(c.Lock.Driver == LockDriverLocal || c.Lock.Driver == LockDriverRedis,
		"LOCK_DRIVER must be one of local, redis")
	if c.Lock.Driver == LockDriverRedis {
		check(c.Lock.TTL > 0, "LOCK_TTL must be greater than 0")
		check(c.Lock.RetryInterval > 0, "LOCK_RETRY_INTERVAL must be greater than 0")
		check(c.Redis.Addr != "", "REDIS_ADDR is required when LOCK_DRIVER=redis")
	}

	check(c.Ledger.MaxSaveAttempts > 0, "LEDGER_MAX_SAVE_ATTEMPTS must be greater than 0")
	check(c.Ledger.StoreRetryAttempts > 0, "LEDGER_STORE_RETRY_ATTEMPTS must be greater than 0")

	check(c.Kafka.Brokers != "", "KAFKA_BROKERS is required")
	check(c.Kafka.EventTopic != "", "KAFKA_EVENT_TOPIC is required")
	check(c.Kafka.ConsumerGroup != "", "KAFKA_CONSUMER_GROUP is required")
	check(c.Kafka.MinBytes > 0, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	check(c.Kafka.MaxBytes > 0, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	check(c.Kafka.MaxWait > 0, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	check(c.Kafka.DLQTopic != "", "KAFKA_DLQ_TOPIC is required")

	check(c.Postgres.URL != "", "POSTGRES_URL is required")
	check(c.Postgres.MaxConns > 0, "POSTGRES_MAX_CONNS must be greater than 0")
	check(c.Postgres.MinConns > 0, "POSTGRES_MIN_CONNS must be greater than 0")
	check(c.Postgres.ConnMaxLifetime > 0, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	check(c.Postgres.ConnMaxIdleTime > 0, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")

	check(c.MongoDB.URI != "", "MONGO_URI is required")
	check(c.MongoDB.Database != "", "MONGO_DATABASE is required")
	check(c.MongoDB.Timeout > 0, "MONGO_TIMEOUT must be greater than 0")
	check(c.MongoDB.MaxPoolSize > 0, "MONGO_MAX_POOL_SIZE must be greater than 0")
	check(c.MongoDB.MinPoolSize > 0, "MONGO_MIN_POOL_SIZE must be greater than 0")
	check(c.MongoDB.MaxConnIdleTime > 0, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")

	check(c.Outbox.PollingInterval > 0, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	check(c.Outbox.BatchSize > 0, "OUTBOX_BATCH_SIZE must be greater than 0")
	check(c.Outbox.MaxRetryAttempts > 0, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")

	check(c.WorkerPool.Size > 0, "WORKER_POOL_SIZE must be greater than 0")

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, ", "))
	}
	return nil
}
