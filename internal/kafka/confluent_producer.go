package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/weiawesome/amen-live/pkg/log"
)

// ConfluentProducer implements LiveEventProducer using confluent-kafka-go.
type ConfluentProducer struct {
	producer *kafka.Producer
	topic    string
	instance string
	doneCh   chan struct{}
}

// NewConfluentProducer creates a new Kafka producer for live events.
func NewConfluentProducer(brokers, topic string, partitions int, instance string) (*ConfluentProducer, error) {
	if err := ensureTopic(brokers, topic, partitions); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic, may already exist")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return newConfluentProducer(p, topic, instance), nil
}

func newConfluentProducer(p *kafka.Producer, topic, instance string) *ConfluentProducer {
	cp := &ConfluentProducer{
		producer: p,
		topic:    topic,
		instance: instance,
		doneCh:   make(chan struct{}),
	}
	go cp.deliveryReportHandler()
	return cp
}

func ensureTopic(brokers, topic string, partitions int) error {
	if partitions <= 0 {
		partitions = 1
	}

	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		},
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}

	return nil
}

func (cp *ConfluentProducer) deliveryReportHandler() {
	l := pkglog.L()
	for e := range cp.producer.Events() {
		if ev, ok := e.(*kafka.Message); ok && ev.TopicPartition.Error != nil {
			l.Error().Err(ev.TopicPartition.Error).Msg("kafka delivery failed")
		}
	}
	close(cp.doneCh)
}

// produceEvent queues event for delivery. A done ctx aborts before anything
// is queued.
func (cp *ConfluentProducer) produceEvent(ctx context.Context, event *LiveEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("live event %s not produced: %w", event.Type, err)
	}
	event.Instance = cp.instance

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal live event: %w", err)
	}

	// stream id as key keeps start and stop on one partition
	err = cp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &cp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(event.StreamID),
		Value: value,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	return nil
}

// ProduceLiveStarted sends a live_started event to Kafka.
func (cp *ConfluentProducer) ProduceLiveStarted(ctx context.Context, streamID, broadcasterID string) error {
	return cp.produceEvent(ctx, &LiveEvent{
		Type:          EventLiveStarted,
		StreamID:      streamID,
		BroadcasterID: broadcasterID,
		Timestamp:     time.Now().UnixMilli(),
	})
}

// ProduceLiveStopped sends a live_stopped event to Kafka.
func (cp *ConfluentProducer) ProduceLiveStopped(ctx context.Context, streamID, broadcasterID, reason string, viewerCount int, durationMs int64) error {
	return cp.produceEvent(ctx, &LiveEvent{
		Type:          EventLiveStopped,
		StreamID:      streamID,
		BroadcasterID: broadcasterID,
		Reason:        reason,
		ViewerCount:   viewerCount,
		DurationMs:    durationMs,
		Timestamp:     time.Now().UnixMilli(),
	})
}

// Close flushes pending messages and closes the producer.
func (cp *ConfluentProducer) Close() error {
	cp.producer.Flush(5000)
	cp.producer.Close()
	<-cp.doneCh
	return nil
}
