// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, distributed tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/jperram92/JamesConvoBot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// AgentDuration tracks external agent query latency.
	AgentDuration metric.Float64Histogram

	// --- Pipeline counters ---

	// FramesCaptured counts captured audio frames. Use with attribute:
	//   attribute.String("channel", ...)
	FramesCaptured metric.Int64Counter

	// FramesMalformed counts frames rejected by the segmenter.
	FramesMalformed metric.Int64Counter

	// SegmentsProduced counts speech segments emitted by the segmenter.
	SegmentsProduced metric.Int64Counter

	// SegmentsDiscarded counts segments dropped for being shorter than the
	// minimum duration.
	SegmentsDiscarded metric.Int64Counter

	// BackpressureStalls counts capture-worker stalls on a full segment queue.
	BackpressureStalls metric.Int64Counter

	// TranscriptEntries counts produced transcript entries. Use with attribute:
	//   attribute.String("status", ...)
	TranscriptEntries metric.Int64Counter

	// CommandsRecognized counts recognized commands. Use with attribute:
	//   attribute.String("verb", ...)
	CommandsRecognized metric.Int64Counter

	// WorkerRestarts counts pipeline worker restarts. Use with attribute:
	//   attribute.String("worker", ...)
	WorkerRestarts metric.Int64Counter

	// --- Provider counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// SegmentQueueDepth tracks the number of segments waiting for transcription.
	SegmentQueueDepth metric.Int64UpDownCounter

	// ActiveSessions tracks the number of live meeting sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("convobot.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("convobot.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AgentDuration, err = m.Float64Histogram("convobot.agent.duration",
		metric.WithDescription("Latency of external agent queries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Pipeline counters.
	if met.FramesCaptured, err = m.Int64Counter("convobot.frames.captured",
		metric.WithDescription("Total captured audio frames by channel."),
	); err != nil {
		return nil, err
	}
	if met.FramesMalformed, err = m.Int64Counter("convobot.frames.malformed",
		metric.WithDescription("Total frames rejected by the segmenter."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsProduced, err = m.Int64Counter("convobot.segments.produced",
		metric.WithDescription("Total speech segments emitted by the segmenter."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDiscarded, err = m.Int64Counter("convobot.segments.discarded",
		metric.WithDescription("Total segments dropped below the minimum duration."),
	); err != nil {
		return nil, err
	}
	if met.BackpressureStalls, err = m.Int64Counter("convobot.backpressure.stalls",
		metric.WithDescription("Total capture stalls on a full segment queue."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptEntries, err = m.Int64Counter("convobot.transcript.entries",
		metric.WithDescription("Total transcript entries by status."),
	); err != nil {
		return nil, err
	}
	if met.CommandsRecognized, err = m.Int64Counter("convobot.commands.recognized",
		metric.WithDescription("Total recognized commands by verb."),
	); err != nil {
		return nil, err
	}
	if met.WorkerRestarts, err = m.Int64Counter("convobot.worker.restarts",
		metric.WithDescription("Total pipeline worker restarts by worker name."),
	); err != nil {
		return nil, err
	}

	// Provider counters.
	if met.ProviderRequests, err = m.Int64Counter("convobot.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("convobot.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.SegmentQueueDepth, err = m.Int64UpDownCounter("convobot.segment_queue.depth",
		metric.WithDescription("Number of segments waiting for transcription."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("convobot.active_sessions",
		metric.WithDescription("Number of live meeting sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("convobot.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordEntry is a convenience method that records a transcript entry counter
// increment by status.
func (m *Metrics) RecordEntry(ctx context.Context, status string) {
	m.TranscriptEntries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordCommand is a convenience method that records a recognized command
// counter increment by verb.
func (m *Metrics) RecordCommand(ctx context.Context, verb string) {
	m.CommandsRecognized.Add(ctx, 1,
		metric.WithAttributes(attribute.String("verb", verb)),
	)
}

// RecordWorkerRestart is a convenience method that records a worker restart
// counter increment by worker name.
func (m *Metrics) RecordWorkerRestart(ctx context.Context, worker string) {
	m.WorkerRestarts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("worker", worker)),
	)
}
