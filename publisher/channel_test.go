package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/maxpert/auditsource/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type recordingSink struct {
	messages []published
	failAt   int // 1-based publish call that fails, 0 never
	closed   bool
}

func (s *recordingSink) Publish(topic, key string, value []byte, headers map[string]string) error {
	if s.failAt > 0 && len(s.messages)+1 == s.failAt {
		return errors.New("publish failed")
	}
	s.messages = append(s.messages, published{topic, key, value, headers})
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

type recordingBatchSink struct {
	recordingSink
	batches int
	err     error
}

func (s *recordingBatchSink) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if s.err != nil {
		return s.err
	}
	s.batches++
	for _, m := range messages {
		s.messages = append(s.messages, published{topic, m.Key, m.Value, m.Headers})
	}
	return nil
}

func testEvents(cursors ...string) []event.Event {
	out := make([]event.Event, len(cursors))
	for i, c := range cursors {
		out[i] = event.Event{
			Headers: map[string]string{event.HeaderCursor: c, event.HeaderTable: "audit_data_table"},
			Body:    []byte("body-" + c),
		}
	}
	return out
}

func TestSinkChannelPublishesEachEvent(t *testing.T) {
	sink := &recordingSink{}
	ch := NewSinkChannel("mock", sink, "audit")

	require.NoError(t, ch.ProcessBatch(context.Background(), testEvents("1", "2")))
	require.Len(t, sink.messages, 2)

	assert.Equal(t, "audit", sink.messages[0].topic)
	assert.Equal(t, "1", sink.messages[0].key)
	assert.Equal(t, []byte("body-1"), sink.messages[0].value)
	assert.Equal(t, "audit_data_table", sink.messages[0].headers[event.HeaderTable])
	assert.Equal(t, "2", sink.messages[1].key)
}

func TestSinkChannelFailsWholeBatch(t *testing.T) {
	sink := &recordingSink{failAt: 2}
	ch := NewSinkChannel("mock", sink, "audit")

	err := ch.ProcessBatch(context.Background(), testEvents("1", "2", "3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 2 of 3")
	assert.Len(t, sink.messages, 1)
}

func TestSinkChannelStopsOnCancelledContext(t *testing.T) {
	sink := &recordingSink{}
	ch := NewSinkChannel("mock", sink, "audit")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ch.ProcessBatch(ctx, testEvents("1"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.messages)
}

func TestSinkChannelUsesBatchSink(t *testing.T) {
	sink := &recordingBatchSink{}
	ch := NewSinkChannel("mock", sink, "audit")

	require.NoError(t, ch.ProcessBatch(context.Background(), testEvents("1", "2", "3")))
	assert.Equal(t, 1, sink.batches)
	require.Len(t, sink.messages, 3)
	assert.Equal(t, "3", sink.messages[2].key)

	sink.err = errors.New("not enough replicas")
	err := ch.ProcessBatch(context.Background(), testEvents("4"))
	require.ErrorIs(t, err, sink.err)
}

func TestSinkChannelClose(t *testing.T) {
	sink := &recordingSink{}
	require.NoError(t, NewSinkChannel("mock", sink, "audit").Close())
	assert.True(t, sink.closed)
}
