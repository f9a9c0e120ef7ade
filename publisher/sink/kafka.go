package sink

import (
	"context"
	"fmt"
	"sort"

	"github.com/maxpert/auditsource/cfg"
	"github.com/maxpert/auditsource/publisher"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultKafkaBatchSize  = 100
	DefaultKafkaBatchBytes = 1 << 20 // 1MB
)

func init() {
	publisher.RegisterSink("kafka", func(config cfg.SinkConfiguration) (publisher.Sink, error) {
		kafkaConfig := DefaultKafkaConfig(config.Brokers)
		if config.BatchSize > 0 {
			kafkaConfig.BatchSize = config.BatchSize
		}
		return NewKafkaSink(kafkaConfig)
	})
}

// KafkaSink writes events to Kafka topics, keyed by cursor value
type KafkaSink struct {
	writer *kafka.Writer
}

// KafkaConfig tunes the Kafka writer
type KafkaConfig struct {
	Brokers          []string // host:port of at least one broker
	BatchSize        int      // messages per produce request
	BatchBytes       int64
	RequiredAcks     kafka.RequiredAcks
	AutoCreateTopics bool
}

// DefaultKafkaConfig waits for all in-sync replicas and creates missing topics
func DefaultKafkaConfig(brokers []string) KafkaConfig {
	return KafkaConfig{
		Brokers:          brokers,
		BatchSize:        DefaultKafkaBatchSize,
		BatchBytes:       DefaultKafkaBatchBytes,
		RequiredAcks:     kafka.RequireAll,
		AutoCreateTopics: true,
	}
}

// NewKafkaSink creates the writer; no connection is made until the first write
func NewKafkaSink(config KafkaConfig) (*KafkaSink, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultKafkaBatchSize
	}
	if config.BatchBytes <= 0 {
		config.BatchBytes = DefaultKafkaBatchBytes
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{}, // Same cursor value, same partition
		BatchSize:              config.BatchSize,
		BatchBytes:             config.BatchBytes,
		RequiredAcks:           config.RequiredAcks,
		Async:                  false, // Sync writes so a batch succeeds or fails as a whole
		AllowAutoTopicCreation: config.AutoCreateTopics,
	}

	return &KafkaSink{writer: writer}, nil
}

// Publish sends a single message to Kafka
//
// Note: Uses context.Background() because the polling driver owns retries
// and timeouts at the cycle level.
func (k *KafkaSink) Publish(topic, key string, value []byte, headers map[string]string) error {
	return k.writer.WriteMessages(context.Background(), kafkaMessage(topic, publisher.Message{
		Key:     key,
		Value:   value,
		Headers: headers,
	}))
}

// PublishBatch writes the whole batch in one synchronous call
func (k *KafkaSink) PublishBatch(ctx context.Context, topic string, messages []publisher.Message) error {
	if len(messages) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, len(messages))
	for i, m := range messages {
		msgs[i] = kafkaMessage(topic, m)
	}
	return k.writer.WriteMessages(ctx, msgs...)
}

func kafkaMessage(topic string, m publisher.Message) kafka.Message {
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(m.Key),
		Value:   m.Value,
		Headers: kafkaHeaders(m.Headers),
	}
}

// kafkaHeaders converts headers in key order so messages are deterministic
func kafkaHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafka.Header, len(keys))
	for i, k := range keys {
		out[i] = kafka.Header{Key: k, Value: []byte(headers[k])}
	}
	return out
}

// Close flushes and closes the writer
func (k *KafkaSink) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
