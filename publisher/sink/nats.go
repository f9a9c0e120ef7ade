package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/maxpert/auditsource/cfg"
	"github.com/maxpert/auditsource/publisher"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v3"
)

const natsPublishTimeout = 5 * time.Second

func init() {
	publisher.RegisterSink("nats", func(config cfg.SinkConfiguration) (publisher.Sink, error) {
		if config.NatsURL == "" {
			return nil, fmt.Errorf("nats: nats_url is not set")
		}
		return NewNatsSink(config.NatsURL)
	})
}

// NatsSink publishes events to JetStream subjects. Each subject gets its own
// file-backed stream, created on first use.
type NatsSink struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	streams *xsync.MapOf[string, struct{}] // subjects with an ensured stream
}

// NewNatsSink connects to url, reconnecting forever on failures
func NewNatsSink(url string) (*NatsSink, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats: jetstream: %w", err)
	}

	return &NatsSink{nc: nc, js: js, streams: xsync.NewMapOf[string, struct{}]()}, nil
}

// Publish waits for the JetStream ack. The cursor value travels in the "key"
// header since NATS messages carry no key.
func (n *NatsSink) Publish(topic, key string, value []byte, headers map[string]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), natsPublishTimeout)
	defer cancel()

	if err := n.ensureStream(ctx, topic); err != nil {
		return err
	}

	_, err := n.js.PublishMsg(ctx, natsMessage(topic, key, value, headers))
	if err != nil {
		return fmt.Errorf("nats: publish %s: %w", topic, err)
	}
	return nil
}

// ensureStream creates the stream for topic once per sink
func (n *NatsSink) ensureStream(ctx context.Context, topic string) error {
	if _, ok := n.streams.Load(topic); ok {
		return nil
	}

	streamName := sanitizeStreamName(topic)
	_, err := n.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{topic},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("nats: stream %s: %w", streamName, err)
	}

	n.streams.Store(topic, struct{}{})
	return nil
}

func natsMessage(topic, key string, value []byte, headers map[string]string) *nats.Msg {
	h := nats.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	h.Set("key", key)

	return &nats.Msg{
		Subject: topic,
		Data:    value,
		Header:  h,
	}
}

// Close drops the connection
func (n *NatsSink) Close() error {
	if n.nc != nil {
		n.nc.Close()
	}
	return nil
}

// sanitizeStreamName maps subject tokens and wildcards, which stream names
// may not contain, to underscores
func sanitizeStreamName(topic string) string {
	result := []byte(topic)
	for i, c := range result {
		if c == '.' || c == '*' || c == '>' {
			result[i] = '_'
		}
	}
	return string(result)
}
