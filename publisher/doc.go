// Package publisher drives an audit table reader and delivers what it reads.
//
// # Cycle
//
// Source.Process runs one cycle in strict sequence:
//
//  1. ReadBatch up to BatchSize events from the reader
//  2. drop recent duplicates when an Interceptor is configured
//  3. ProcessBatch on the delivery Channel
//  4. Commit the reader
//
// A failure at any step returns Backoff, skips the commit and rewinds the
// reader, so the next cycle reads the same rows again (at-least-once).
// Fingerprints of a batch that failed delivery are forgotten by the
// interceptor.
//
// A successful cycle that finished in less than MinCycleInterval sleeps for
// the remainder. Slow cycles are not compensated. A signal on the Wake
// channel ends the sleep early.
//
// # Sinks
//
// SinkChannel adapts a Sink to the Channel interface. Sinks register a
// factory by type name, usually from an init function:
//
//	publisher.RegisterSink("kafka", func(config cfg.SinkConfiguration) (publisher.Sink, error) {
//		return sink.NewKafkaSink(sink.DefaultKafkaConfig(config.Brokers))
//	})
//
// and are created from configuration with CreateSink or NewChannel.
//
// # Thread Safety
//
// A Source is driven by a single goroutine. Health may be called from any
// goroutine.
package publisher
