package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ONLINEMON_ADDR", "SNAPSHOT_INTERVAL", "KAFKA_BROKERS", "REDIS_URL", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.SnapshotInterval)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, "onlinemon.snapshots", cfg.Kafka.Topic)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ONLINEMON_ADDR", ":9090")
	t.Setenv("SNAPSHOT_INTERVAL", "5s")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.SnapshotInterval)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}

func TestFromEnv_Timeouts(t *testing.T) {
	for _, k := range []string{"SNAPSHOT_TIMEOUT", "SNAPSHOT_RETRY_INTERVAL", "KAFKA_DELIVERY_TIMEOUT", "TRACING_EXPORTER", "TRACING_SAMPLE_RATIO"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, 10*time.Second, cfg.SnapshotTimeout)
	assert.Equal(t, time.Minute, cfg.SnapshotRetryInterval)
	assert.Equal(t, 10*time.Second, cfg.Kafka.DeliveryTimeout)
	assert.Empty(t, cfg.Tracing.Exporter)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)

	t.Setenv("SNAPSHOT_TIMEOUT", "250ms")
	t.Setenv("TRACING_EXPORTER", "stdout")
	t.Setenv("TRACING_SAMPLE_RATIO", "0.25")
	cfg = FromEnv()
	assert.Equal(t, 250*time.Millisecond, cfg.SnapshotTimeout)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRatio)
}
