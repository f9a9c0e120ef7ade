package publisher

import (
	"context"

	"github.com/maxpert/auditsource/event"
)

// Status is reported to the host after every cycle
type Status uint8

const (
	// Ready means the cycle delivered and committed its batch
	Ready Status = iota
	// Backoff means the cycle failed and nothing was committed
	Backoff
)

func (s Status) String() string {
	if s == Backoff {
		return "backoff"
	}
	return "ready"
}

// MarshalText renders the status in health reports
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// BatchReader produces batches of events and commits them once delivered
type BatchReader interface {
	// ReadBatch returns up to n events, possibly none
	ReadBatch(ctx context.Context, n int) ([]event.Event, error)
	// Commit marks every event read so far as delivered
	Commit() error
	// Rewind forgets everything read since the last commit, so the next
	// ReadBatch starts again after the committed value
	Rewind()
	// Committed returns the durable cursor value, nil when none
	Committed() *string
	// Close releases the reader
	Close() error
}

// Channel accepts a batch of events. A batch either succeeds as a whole or fails.
type Channel interface {
	ProcessBatch(ctx context.Context, events []event.Event) error
}

// Sink represents a destination for events (e.g., Kafka, NATS, stdout)
type Sink interface {
	// Publish sends one event payload to the sink
	Publish(topic string, key string, value []byte, headers map[string]string) error
	// Close releases any resources held by the sink
	Close() error
}

// Message is one entry of a batch publish
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

// BatchSink is implemented by sinks that can write a whole batch in one call
type BatchSink interface {
	PublishBatch(ctx context.Context, topic string, messages []Message) error
}
