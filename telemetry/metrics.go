package telemetry

// Histogram bucket definitions for different latency profiles
var (
	// CycleBuckets for a full read, deliver and commit cycle
	CycleBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

	// BatchSizeBuckets for events per cycle
	BatchSizeBuckets = []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000}
)

// Source Metrics
var (
	// EventsReadTotal counts rows read from the audit table
	EventsReadTotal Counter = NoopStat{}

	// EventsDeliveredTotal counts events accepted by the delivery channel
	EventsDeliveredTotal Counter = NoopStat{}

	// EventsDeduplicatedTotal counts events dropped as recent duplicates
	EventsDeduplicatedTotal Counter = NoopStat{}

	// CyclesTotal counts poll cycles by status (ready, backoff)
	CyclesTotal CounterVec = noopCounterVec{}

	// CycleDurationSeconds measures read+deliver+commit time, excluding pacing sleep
	CycleDurationSeconds Histogram = NoopStat{}

	// BatchSize measures events read per cycle
	BatchSize Histogram = NoopStat{}

	// CommitsTotal counts checkpoint commits by result (success, failed)
	CommitsTotal CounterVec = noopCounterVec{}

	// CommittedCursor tracks the committed cursor value when it is numeric
	CommittedCursor Gauge = NoopStat{}

	// SinkPublishTotal counts sink publish calls by sink type and result
	SinkPublishTotal CounterVec = noopCounterVec{}

	// SinkPublishDurationSeconds measures delivery of one batch by sink type
	SinkPublishDurationSeconds HistogramVec = noopHistogramVec{}
)

// InitMetrics initializes all Prometheus metrics.
// Must be called after the registry exists.
func InitMetrics() {
	EventsReadTotal = NewCounter(
		"events_read_total",
		"Total rows read from the audit table",
	)
	EventsDeliveredTotal = NewCounter(
		"events_delivered_total",
		"Total events accepted by the delivery channel",
	)
	EventsDeduplicatedTotal = NewCounter(
		"events_deduplicated_total",
		"Total events dropped as recent duplicates",
	)
	CyclesTotal = NewCounterVec(
		"cycles_total",
		"Poll cycles by status",
		[]string{"status"},
	)
	CycleDurationSeconds = NewHistogramWithBuckets(
		"cycle_duration_seconds",
		"Duration of read, deliver and commit per cycle",
		CycleBuckets,
	)
	BatchSize = NewHistogramWithBuckets(
		"batch_size",
		"Events read per cycle",
		BatchSizeBuckets,
	)
	CommitsTotal = NewCounterVec(
		"commits_total",
		"Checkpoint commits by result",
		[]string{"result"},
	)
	CommittedCursor = NewGauge(
		"committed_cursor",
		"Committed cursor value for numeric cursors",
	)
	SinkPublishTotal = NewCounterVec(
		"sink_publish_total",
		"Sink publish calls by sink type and result",
		[]string{"sink", "result"},
	)
	SinkPublishDurationSeconds = NewHistogramVec(
		"sink_publish_duration_seconds",
		"Time to deliver one batch to the sink",
		[]string{"sink"},
		CycleBuckets,
	)
}
