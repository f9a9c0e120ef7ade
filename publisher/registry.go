package publisher

import (
	"fmt"
	"sort"

	"github.com/maxpert/auditsource/cfg"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
)

// SinkFactory builds a Sink from the sink section of the configuration
type SinkFactory func(cfg.SinkConfiguration) (Sink, error)

var sinkFactories = xsync.NewMapOf[string, SinkFactory]()

// RegisterSink makes a sink type available to CreateSink, replacing any
// factory already registered under that name
func RegisterSink(sinkType string, factory SinkFactory) {
	sinkFactories.Store(sinkType, factory)
}

// SinkTypes returns the registered sink types, sorted
func SinkTypes() []string {
	types := make([]string, 0, sinkFactories.Size())
	sinkFactories.Range(func(name string, _ SinkFactory) bool {
		types = append(types, name)
		return true
	})
	sort.Strings(types)
	return types
}

// CreateSink looks up config.Type and builds the sink
func CreateSink(config cfg.SinkConfiguration) (Sink, error) {
	factory, ok := sinkFactories.Load(config.Type)
	if !ok {
		return nil, fmt.Errorf("no sink registered for type %q", config.Type)
	}
	return factory(config)
}

// NewChannel creates the configured sink and wraps it in a SinkChannel
func NewChannel(config cfg.SinkConfiguration) (*SinkChannel, error) {
	snk, err := CreateSink(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sink: %w", err)
	}

	log.Info().
		Str("sink", config.Type).
		Str("topic", config.Topic).
		Msg("Sink ready")

	return NewSinkChannel(config.Type, snk, config.Topic), nil
}
