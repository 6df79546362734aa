package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"onlinemon/internal/platform/config"
)

// Client wraps the franz-go client with topic provisioning.
type Client struct {
	*kgo.Client
	topic string
}

// New creates a Kafka client from the provided configuration.
// Returns nil if no brokers are configured (Kafka disabled).
func New(ctx context.Context, cfg config.KafkaConfig) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	// Without a delivery timeout ProduceSync retries an unreachable broker
	// forever.
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}

	return &Client{Client: cl, topic: cfg.Topic}, nil
}

// Topic returns the snapshot topic.
func (c *Client) Topic() string { return c.topic }

// EnsureTopic creates the snapshot topic if it does not exist yet.
func (c *Client) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(c.Client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, c.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", c.topic, err)
	}
	for _, t := range resp.Sorted() {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// Health checks the broker connection.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx)
}
