// Package kafka publishes snapshot batches as Kafka records, one record per
// histogram keyed by its unique ID. Scaler spills go to the same topic keyed
// spill-<seq>; the kind header tells the two apart.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"onlinemon/internal/scaler"
	"onlinemon/internal/snapshot"
)

// Values of the kind record header.
const (
	KindSnapshot = "snapshot"
	KindSpill    = "spill"
)

// Producer is the part of the franz-go client the store needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Store produces each snapshot synchronously to a topic.
type Store struct {
	producer Producer
	topic    string
}

// New returns a Kafka-backed snapshot store. An empty topic uses the
// client's default produce topic.
func New(producer Producer, topic string) *Store {
	return &Store{producer: producer, topic: topic}
}

// Name implements snapshot.Store.
func (s *Store) Name() string { return "kafka" }

// Save implements snapshot.Store.
func (s *Store) Save(ctx context.Context, batch []snapshot.Snapshot) error {
	if len(batch) == 0 {
		return nil
	}
	records, err := s.records(batch)
	if err != nil {
		return err
	}
	if err := s.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce snapshot batch: %w", err)
	}
	return nil
}

func (s *Store) records(batch []snapshot.Snapshot) ([]*kgo.Record, error) {
	records := make([]*kgo.Record, 0, len(batch))
	for _, snap := range batch {
		value, err := json.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("encode snapshot %s: %w", snap.Name, err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte(strconv.FormatInt(int64(snap.Unique), 10)),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "batch_id", Value: []byte(snap.BatchID.String())},
				{Key: "run", Value: []byte(strconv.Itoa(snap.Run))},
				{Key: "kind", Value: []byte(KindSnapshot)},
			},
			Timestamp: snap.TakenAt,
		})
	}
	return records, nil
}

// SaveSpills implements snapshot.SpillStore.
func (s *Store) SaveSpills(ctx context.Context, spills []scaler.Spill) error {
	if len(spills) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(spills))
	for _, sp := range spills {
		value, err := json.Marshal(sp)
		if err != nil {
			return fmt.Errorf("encode spill %d: %w", sp.Seq, err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte("spill-" + strconv.FormatUint(sp.Seq, 10)),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "run", Value: []byte(strconv.Itoa(sp.Run))},
				{Key: "kind", Value: []byte(KindSpill)},
			},
		})
	}
	if err := s.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce spills: %w", err)
	}
	return nil
}
