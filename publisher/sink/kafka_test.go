package sink

import (
	"testing"

	"github.com/maxpert/auditsource/cfg"
	"github.com/maxpert/auditsource/publisher"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKafkaConfig(t *testing.T) {
	config := DefaultKafkaConfig([]string{"localhost:9092", "localhost:9093"})

	require.Len(t, config.Brokers, 2)
	assert.Equal(t, "localhost:9092", config.Brokers[0])
	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, int64(1048576), config.BatchBytes)
	assert.Equal(t, kafka.RequireAll, config.RequiredAcks)
	assert.True(t, config.AutoCreateTopics)
}

func TestNewKafkaSink(t *testing.T) {
	sink, err := NewKafkaSink(KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		BatchSize:    50,
		BatchBytes:   2048,
		RequiredAcks: kafka.RequireOne,
	})
	require.NoError(t, err)
	require.NotNil(t, sink.writer)
	defer sink.Close()

	assert.Equal(t, 50, sink.writer.BatchSize)
	assert.Equal(t, int64(2048), sink.writer.BatchBytes)
	assert.Equal(t, kafka.RequireOne, sink.writer.RequiredAcks)
	assert.False(t, sink.writer.Async, "writes must be synchronous")
}

func TestNewKafkaSinkDefaults(t *testing.T) {
	sink, err := NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	defer sink.Close()

	assert.Equal(t, DefaultKafkaBatchSize, sink.writer.BatchSize)
	assert.Equal(t, int64(DefaultKafkaBatchBytes), sink.writer.BatchBytes)
}

func TestNewKafkaSinkEmptyBrokers(t *testing.T) {
	_, err := NewKafkaSink(KafkaConfig{})
	require.Error(t, err)
}

func TestKafkaSinkFactory(t *testing.T) {
	s, err := publisher.CreateSink(cfg.SinkConfiguration{
		Type:      "kafka",
		Brokers:   []string{"localhost:9092"},
		BatchSize: 25,
	})
	require.NoError(t, err)
	defer s.Close()

	ks, ok := s.(*KafkaSink)
	require.True(t, ok)
	assert.Equal(t, 25, ks.writer.BatchSize)

	_, err = publisher.CreateSink(cfg.SinkConfiguration{Type: "kafka"})
	require.Error(t, err)
}

func TestKafkaMessage(t *testing.T) {
	msg := kafkaMessage("audit", publisher.Message{
		Key:     "7",
		Value:   []byte(`{"ID":7}`),
		Headers: map[string]string{"table": "audit_data_table", "cursor": "7"},
	})

	assert.Equal(t, "audit", msg.Topic)
	assert.Equal(t, []byte("7"), msg.Key)
	assert.Equal(t, []byte(`{"ID":7}`), msg.Value)
	assert.Equal(t, []kafka.Header{
		{Key: "cursor", Value: []byte("7")},
		{Key: "table", Value: []byte("audit_data_table")},
	}, msg.Headers)

	assert.Nil(t, kafkaHeaders(nil))
}

func TestKafkaSinkClose(t *testing.T) {
	sink, err := NewKafkaSink(DefaultKafkaConfig([]string{"localhost:9092"}))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	require.NoError(t, (&KafkaSink{}).Close())
}
