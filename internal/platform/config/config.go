package config

import (
	"os"
	"strconv"
	"time"

	"onlinemon/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr       string
	AdminToken string
	// Catalogue is a YAML catalogue path; empty uses the built-in layout.
	Catalogue string
	// Source is a JSON-lines event file, "-" for stdin, empty for none.
	Source           string
	LogLevel         string
	LogFormat        string
	SnapshotInterval time.Duration
	// SnapshotTimeout bounds one store save, including the final publish on
	// shutdown.
	SnapshotTimeout time.Duration
	// SnapshotRetryInterval is how long a degraded store is skipped before
	// the publisher tries it again.
	SnapshotRetryInterval time.Duration
	Redis                 RedisConfig
	Postgres              PostgresConfig
	Kafka                 KafkaConfig
	Tracing               TracingConfig
}

// RedisConfig configures the snapshot Redis client. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SnapshotTTL  time.Duration
}

// PostgresConfig configures the snapshot database. An empty DSN disables it.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures the snapshot producer. No brokers disables it.
type KafkaConfig struct {
	Brokers         []string
	Topic           string
	ClientID        string
	DeliveryTimeout time.Duration
}

// TracingConfig selects the span exporter: "stdout", "otlp", or empty for
// no tracing.
type TracingConfig struct {
	Exporter    string
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:                  getEnv("ONLINEMON_ADDR", ":8080"),
		AdminToken:            os.Getenv("ONLINEMON_ADMIN_TOKEN"),
		Catalogue:             os.Getenv("ONLINEMON_CATALOGUE"),
		Source:                os.Getenv("ONLINEMON_SOURCE"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
		SnapshotInterval:      getDuration("SNAPSHOT_INTERVAL", 30*time.Second),
		SnapshotTimeout:       getDuration("SNAPSHOT_TIMEOUT", 10*time.Second),
		SnapshotRetryInterval: getDuration("SNAPSHOT_RETRY_INTERVAL", time.Minute),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			SnapshotTTL:  getDuration("REDIS_SNAPSHOT_TTL", 0),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:         strings.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
			Topic:           getEnv("KAFKA_TOPIC", "onlinemon.snapshots"),
			ClientID:        getEnv("KAFKA_CLIENT_ID", "onlinemon"),
			DeliveryTimeout: getDuration("KAFKA_DELIVERY_TIMEOUT", 10*time.Second),
		},
		Tracing: TracingConfig{
			Exporter:    os.Getenv("TRACING_EXPORTER"),
			Endpoint:    os.Getenv("TRACING_ENDPOINT"),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "onlinemon"),
			SampleRatio: getFloat("TRACING_SAMPLE_RATIO", 1),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
