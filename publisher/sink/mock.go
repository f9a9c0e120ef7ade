package sink

import (
	"context"
	"sync"

	"github.com/maxpert/auditsource/publisher"
)

// MockSink records what is published to it, failing with PublishErr when set
type MockSink struct {
	Messages   []MockMessage
	PublishErr error
	mu         sync.Mutex
}

// MockMessage is one recorded Publish call
type MockMessage struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Publish records the message unless PublishErr is set
func (m *MockSink) Publish(topic, key string, value []byte, headers map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return m.PublishErr
	}

	m.Messages = append(m.Messages, MockMessage{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: headers,
	})
	return nil
}

// MockBatchSink records whole batches
type MockBatchSink struct {
	MockSink
	Batches int
}

// PublishBatch records every message of the batch, or none on error
func (m *MockBatchSink) PublishBatch(ctx context.Context, topic string, messages []publisher.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return m.PublishErr
	}

	m.Batches++
	for _, msg := range messages {
		m.Messages = append(m.Messages, MockMessage{
			Topic:   topic,
			Key:     msg.Key,
			Value:   msg.Value,
			Headers: msg.Headers,
		})
	}
	return nil
}

// Close does nothing
func (m *MockSink) Close() error {
	return nil
}

// Count returns the number of recorded messages
func (m *MockSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// Reset forgets the recorded messages
func (m *MockSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = nil
}
