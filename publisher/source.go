package publisher

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxpert/auditsource/dedup"
	"github.com/maxpert/auditsource/notify"
	"github.com/maxpert/auditsource/telemetry"
	"github.com/rs/zerolog/log"
)

const (
	// Default number of events read per cycle
	DefaultBatchSize = 100
	// Default minimum duration of a cycle, including the pacing sleep
	DefaultMinCycleInterval = 10 * time.Second
	// Wait between failed cycles when no minimum interval is configured
	fallbackRetryWait = time.Second
)

// SourceConfig configures the polling driver
type SourceConfig struct {
	Name             string               // Source name (for logs and health)
	Reader           BatchReader          // Event reader
	Channel          Channel              // Delivery channel
	Interceptor      *dedup.Interceptor   // Optional duplicate suppression
	BatchSize        int                  // Events per cycle
	MinCycleInterval time.Duration        // Pacing interval, 0 disables pacing
	Wake             <-chan notify.Signal // Optional, cuts pacing and retry waits short
}

// Health is a snapshot of the driver's progress
type Health struct {
	Status    Status    `json:"status"`
	Cycles    uint64    `json:"cycles"`
	Delivered uint64    `json:"delivered"`
	LastCycle time.Time `json:"last_cycle"`
	LastError string    `json:"last_error,omitempty"`
	Committed *string   `json:"committed"`
}

// Source drives a reader: one batch is read, delivered and committed per
// cycle, in strict sequence. It never retries on its own; a failed cycle
// returns Backoff and the host decides when to run the next one.
type Source struct {
	config      SourceConfig
	wake        <-chan notify.Signal
	stopCh      chan struct{} // Stop signal
	doneCh      chan struct{} // Done signal
	running     atomic.Bool
	lifecycleMu sync.Mutex // Protects Start/Stop lifecycle operations
	closeOnce   sync.Once

	healthMu sync.Mutex
	health   Health
}

// NewSource creates a new polling driver
func NewSource(config SourceConfig) (*Source, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("source name is required")
	}
	if config.Reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if config.Channel == nil {
		return nil, fmt.Errorf("channel is required")
	}
	if config.MinCycleInterval < 0 {
		return nil, fmt.Errorf("minimum cycle interval must be >= 0")
	}

	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	s := &Source{
		config: config,
		wake:   config.Wake,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	s.health.Committed = config.Reader.Committed()
	return s, nil
}

// BackoffSleepIncrement is zero: the driver applies no back-off of its own
func (s *Source) BackoffSleepIncrement() time.Duration {
	return 0
}

// MaxBackoffSleepInterval is zero: the driver applies no back-off of its own
func (s *Source) MaxBackoffSleepInterval() time.Duration {
	return 0
}

// Process runs one cycle: read a batch, drop duplicates, deliver, commit.
// Nothing is committed unless delivery succeeded, and a failed cycle rewinds
// the reader to the committed value. A successful cycle shorter
// than MinCycleInterval sleeps for the remainder.
func (s *Source) Process(ctx context.Context) (Status, error) {
	start := time.Now()

	events, err := s.config.Reader.ReadBatch(ctx, s.config.BatchSize)
	if err != nil {
		return s.fail(start, "read", err)
	}
	telemetry.EventsReadTotal.Add(float64(len(events)))
	telemetry.BatchSize.Observe(float64(len(events)))

	deliver := events
	if s.config.Interceptor != nil {
		deliver = s.config.Interceptor.InterceptBatch(events)
		if dropped := len(events) - len(deliver); dropped > 0 {
			telemetry.EventsDeduplicatedTotal.Add(float64(dropped))
		}
	}

	if len(deliver) > 0 {
		if err := s.config.Channel.ProcessBatch(ctx, deliver); err != nil {
			if s.config.Interceptor != nil {
				s.config.Interceptor.Forget(deliver)
			}
			return s.fail(start, "deliver", err)
		}
		telemetry.EventsDeliveredTotal.Add(float64(len(deliver)))
	}

	if err := s.config.Reader.Commit(); err != nil {
		telemetry.CommitsTotal.With("failed").Inc()
		return s.fail(start, "commit", err)
	}
	telemetry.CommitsTotal.With("success").Inc()

	committed := s.config.Reader.Committed()
	if committed != nil {
		if v, err := strconv.ParseFloat(*committed, 64); err == nil {
			telemetry.CommittedCursor.Set(v)
		}
	}

	elapsed := time.Since(start)
	telemetry.CycleDurationSeconds.Observe(elapsed.Seconds())
	telemetry.CyclesTotal.With(Ready.String()).Inc()

	s.healthMu.Lock()
	s.health.Status = Ready
	s.health.Cycles++
	s.health.Delivered += uint64(len(deliver))
	s.health.LastCycle = start
	s.health.LastError = ""
	s.health.Committed = committed
	s.healthMu.Unlock()

	log.Debug().
		Str("source", s.config.Name).
		Int("read", len(events)).
		Int("delivered", len(deliver)).
		Dur("elapsed", elapsed).
		Msg("Cycle complete")

	if remaining := s.config.MinCycleInterval - elapsed; remaining > 0 {
		s.sleep(ctx, remaining)
	}
	return Ready, nil
}

func (s *Source) fail(start time.Time, stage string, err error) (Status, error) {
	err = fmt.Errorf("%s: %w", stage, err)

	// The next cycle must start from the committed value again, never
	// after rows that were read but not delivered and committed
	s.config.Reader.Rewind()

	telemetry.CycleDurationSeconds.Observe(time.Since(start).Seconds())
	telemetry.CyclesTotal.With(Backoff.String()).Inc()

	s.healthMu.Lock()
	s.health.Status = Backoff
	s.health.Cycles++
	s.health.LastCycle = start
	s.health.LastError = err.Error()
	s.healthMu.Unlock()

	log.Error().
		Err(err).
		Str("source", s.config.Name).
		Str("stage", stage).
		Msg("Cycle failed, nothing committed")

	return Backoff, err
}

// Run re-invokes Process until ctx is done or Stop is called. After a failed
// cycle it waits MinCycleInterval before the next attempt. The reader is
// closed when Run returns.
func (s *Source) Run(ctx context.Context) error {
	defer s.closeReader()

	log.Info().
		Str("source", s.config.Name).
		Int("batch_size", s.config.BatchSize).
		Dur("min_cycle_interval", s.config.MinCycleInterval).
		Msg("Starting audit source")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		default:
		}

		status, _ := s.Process(ctx)
		if status == Backoff {
			wait := s.config.MinCycleInterval
			if wait <= 0 {
				wait = fallbackRetryWait
			}
			if !s.sleep(ctx, wait) {
				return nil
			}
		}
	}
}

// Start runs the driver in a goroutine
func (s *Source) Start() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.running.Load() {
		return // Already running
	}

	s.running.Store(true)
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)
		s.Run(context.Background())
	}()
}

// Stop stops a started driver, waiting for the current cycle to end, and
// closes the reader. Safe to call more than once.
func (s *Source) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.running.Load() {
		log.Info().Str("source", s.config.Name).Msg("Stopping audit source")

		close(s.stopCh)
		<-s.doneCh // Wait for goroutine to finish
		s.running.Store(false)
	}

	s.closeReader()
}

// Health returns a snapshot of the driver's progress
func (s *Source) Health() Health {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	h := s.health
	if h.Committed != nil {
		c := *h.Committed
		h.Committed = &c
	}
	return h
}

func (s *Source) closeReader() {
	s.closeOnce.Do(func() {
		if err := s.config.Reader.Close(); err != nil {
			log.Debug().Err(err).Str("source", s.config.Name).Msg("Unable to close reader")
		}
		if s.config.Interceptor != nil {
			s.config.Interceptor.Close()
		}
		log.Info().Str("source", s.config.Name).Msg("Audit source stopped")
	})
}

// sleep sleeps for the given duration, checking ctx, stopCh and wake
// Returns true if sleep completed or was woken, false if stopped
func (s *Source) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	case sig, ok := <-s.wake:
		if !ok {
			s.wake = nil // unsubscribed
			return true
		}
		log.Debug().Str("source", s.config.Name).Str("reason", sig.Reason).Msg("Woken before pacing interval")
		return true
	case <-timer.C:
		return true
	}
}
