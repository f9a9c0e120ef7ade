package sink

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/maxpert/auditsource/cfg"
	"github.com/maxpert/auditsource/event"
	"github.com/maxpert/auditsource/publisher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredSinkTypes(t *testing.T) {
	types := publisher.SinkTypes()
	assert.Subset(t, types, []string{"kafka", "nats", "stdout"})
}

func TestMockSinkPublish(t *testing.T) {
	mock := &MockSink{}

	headers := map[string]string{"cursor": "1"}
	require.NoError(t, mock.Publish("test-topic", "1", []byte("value1"), headers))
	require.Equal(t, 1, mock.Count())

	msg := mock.Messages[0]
	assert.Equal(t, "test-topic", msg.Topic)
	assert.Equal(t, "1", msg.Key)
	assert.Equal(t, "value1", string(msg.Value))
	assert.Equal(t, headers, msg.Headers)

	mock.Reset()
	assert.Equal(t, 0, mock.Count())
}

func TestMockSinkPublishError(t *testing.T) {
	expected := errors.New("publish failed")
	mock := &MockSink{PublishErr: expected}

	err := mock.Publish("test-topic", "1", []byte("value1"), nil)
	require.ErrorIs(t, err, expected)
	assert.Equal(t, 0, mock.Count())
}

func TestMockBatchSink(t *testing.T) {
	mock := &MockBatchSink{}

	err := mock.PublishBatch(context.Background(), "audit", []publisher.Message{
		{Key: "1", Value: []byte("a")},
		{Key: "2", Value: []byte("b")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Batches)
	assert.Equal(t, 2, mock.Count())
	assert.Equal(t, "audit", mock.Messages[1].Topic)
}

func TestWriterSinkText(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	require.NoError(t, s.Publish("audit", "1", []byte(`{"ID":1}`), nil))
	require.NoError(t, s.Publish("audit", "2", []byte(`{"ID":2}`), nil))
	require.NoError(t, s.Close())

	assert.Equal(t, "{\"ID\":1}\n{\"ID\":2}\n", buf.String())
}

func TestWriterSinkBinary(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	body := []byte{0x83, 0xa2, 0xff, 0xfe}
	require.NoError(t, s.Publish("audit", "1", body, nil))

	assert.Equal(t, base64.StdEncoding.EncodeToString(body)+"\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriterSinkWriteError(t *testing.T) {
	s := NewWriterSink(failingWriter{})
	err := s.Publish("audit", "9", []byte("x"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9")
}

func TestStdoutSinkFactory(t *testing.T) {
	s, err := publisher.CreateSink(cfg.SinkConfiguration{Type: "stdout"})
	require.NoError(t, err)
	_, ok := s.(*WriterSink)
	assert.True(t, ok)
}

func TestNatsSinkFactoryRequiresURL(t *testing.T) {
	_, err := publisher.CreateSink(cfg.SinkConfiguration{Type: "nats"})
	require.Error(t, err)
}

func TestNatsMessage(t *testing.T) {
	msg := natsMessage("audit.events", "5", []byte("body"), map[string]string{"table": "t"})

	assert.Equal(t, "audit.events", msg.Subject)
	assert.Equal(t, []byte("body"), msg.Data)
	assert.Equal(t, "5", msg.Header.Get("key"))
	assert.Equal(t, "t", msg.Header.Get("table"))
}

func TestSanitizeStreamName(t *testing.T) {
	assert.Equal(t, "audit_events", sanitizeStreamName("audit.events"))
	assert.Equal(t, "audit__", sanitizeStreamName("audit.*"))
	assert.Equal(t, "audit_", sanitizeStreamName("audit>"))
	assert.Equal(t, "plain", sanitizeStreamName("plain"))
}

func TestChannelOverMockSinks(t *testing.T) {
	events := []event.Event{
		{Headers: map[string]string{event.HeaderCursor: "1"}, Body: []byte("a")},
		{Headers: map[string]string{event.HeaderCursor: "2"}, Body: []byte("b")},
	}

	single := &MockSink{}
	require.NoError(t, publisher.NewSinkChannel("mock", single, "audit").ProcessBatch(context.Background(), events))
	require.Equal(t, 2, single.Count())
	assert.Equal(t, "2", single.Messages[1].Key)

	batch := &MockBatchSink{}
	require.NoError(t, publisher.NewSinkChannel("mock", batch, "audit").ProcessBatch(context.Background(), events))
	assert.Equal(t, 1, batch.Batches)
	assert.Equal(t, 2, batch.Count())
}
