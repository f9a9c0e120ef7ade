package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/maxpert/auditsource/event"
	"github.com/maxpert/auditsource/telemetry"
)

// SinkChannel delivers batches to a Sink. Every event goes to one topic,
// keyed by its cursor value. Sinks implementing BatchSink receive the whole
// batch in one call; otherwise events are published one by one and the
// first failure fails the batch.
type SinkChannel struct {
	name  string
	sink  Sink
	topic string
}

// NewSinkChannel wraps sink; name labels metrics
func NewSinkChannel(name string, sink Sink, topic string) *SinkChannel {
	return &SinkChannel{name: name, sink: sink, topic: topic}
}

func (c *SinkChannel) ProcessBatch(ctx context.Context, events []event.Event) error {
	start := time.Now()
	defer func() {
		telemetry.SinkPublishDurationSeconds.With(c.name).Observe(time.Since(start).Seconds())
	}()

	if bs, ok := c.sink.(BatchSink); ok {
		messages := make([]Message, len(events))
		for i, e := range events {
			messages[i] = Message{
				Key:     e.Headers[event.HeaderCursor],
				Value:   e.Body,
				Headers: e.Headers,
			}
		}

		if err := bs.PublishBatch(ctx, c.topic, messages); err != nil {
			telemetry.SinkPublishTotal.With(c.name, "failed").Inc()
			return fmt.Errorf("failed to publish %d events to %s: %w", len(events), c.topic, err)
		}
		telemetry.SinkPublishTotal.With(c.name, "success").Inc()
		return nil
	}

	for i, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.sink.Publish(c.topic, e.Headers[event.HeaderCursor], e.Body, e.Headers)
		if err != nil {
			telemetry.SinkPublishTotal.With(c.name, "failed").Inc()
			return fmt.Errorf("failed to publish event %d of %d to %s: %w", i+1, len(events), c.topic, err)
		}
		telemetry.SinkPublishTotal.With(c.name, "success").Inc()
	}
	return nil
}

// Close closes the sink
func (c *SinkChannel) Close() error {
	return c.sink.Close()
}
