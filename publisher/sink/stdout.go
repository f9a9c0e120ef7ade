package sink

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/maxpert/auditsource/cfg"
	"github.com/maxpert/auditsource/publisher"
)

func init() {
	publisher.RegisterSink("stdout", func(config cfg.SinkConfiguration) (publisher.Sink, error) {
		return NewWriterSink(os.Stdout), nil
	})
}

// WriterSink writes one line per event: text bodies as-is, binary bodies
// (msgpack, zstd) base64 encoded
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Publish(topic, key string, value []byte, headers map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if utf8.Valid(value) {
		_, err = fmt.Fprintf(s.w, "%s\n", value)
	} else {
		_, err = fmt.Fprintf(s.w, "%s\n", base64.StdEncoding.EncodeToString(value))
	}
	if err != nil {
		return fmt.Errorf("failed to write event %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the writer is owned by the caller
func (s *WriterSink) Close() error {
	return nil
}
