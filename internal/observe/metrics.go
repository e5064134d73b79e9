// Package observe provides application-wide observability primitives for
// gingerd: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all gingerd metrics.
const meterName = "github.com/natea/conversational-reflection"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// DirectiveDuration tracks the time spent computing a voice directive,
	// including the emotional state fetch.
	DirectiveDuration metric.Float64Histogram

	// TurnDuration tracks the wall-clock length of a dialogue turn, from
	// bot_speech_started to bot_speech_stopped.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// DirectivesIssued counts directives realized per bot utterance. Use with
	// attributes:
	//   attribute.String("adapter", ...), attribute.String("tone", ...), attribute.String("kind", ...)
	DirectivesIssued metric.Int64Counter

	// UtterancesRecorded counts finalized utterances written to history. Use
	// with attribute:
	//   attribute.String("role", ...)
	UtterancesRecorded metric.Int64Counter

	// --- Error counters ---

	// EmotionSourceErrors counts failed or timed-out emotional state fetches.
	// Use with attribute:
	//   attribute.String("reason", ...)
	EmotionSourceErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live dialogue sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-turn latencies.
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
	if met.DirectiveDuration, err = m.Float64Histogram("gingerd.directive.duration",
		metric.WithDescription("Latency of computing a voice directive."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("gingerd.turn.duration",
		metric.WithDescription("Wall-clock length of a bot dialogue turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.DirectivesIssued, err = m.Int64Counter("gingerd.directives.issued",
		metric.WithDescription("Total voice directives issued by adapter, tone, and kind."),
	); err != nil {
		return nil, err
	}
	if met.UtterancesRecorded, err = m.Int64Counter("gingerd.utterances.recorded",
		metric.WithDescription("Total finalized utterances recorded to history by role."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.EmotionSourceErrors, err = m.Int64Counter("gingerd.emotion_source.errors",
		metric.WithDescription("Total failed or timed-out emotional state fetches by reason."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("gingerd.active_sessions",
		metric.WithDescription("Number of live dialogue sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("gingerd.http.request.duration",
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

// RecordDirective is a convenience method that records a directive counter
// increment with the standard attribute set.
func (m *Metrics) RecordDirective(ctx context.Context, adapter, tone, kind string) {
	m.DirectivesIssued.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("adapter", adapter),
			attribute.String("tone", tone),
			attribute.String("kind", kind),
		),
	)
}

// RecordUtterance is a convenience method that records an utterance counter
// increment.
func (m *Metrics) RecordUtterance(ctx context.Context, role string) {
	m.UtterancesRecorded.Add(ctx, 1,
		metric.WithAttributes(attribute.String("role", role)),
	)
}

// RecordEmotionSourceError is a convenience method that records a failed
// emotional state fetch.
func (m *Metrics) RecordEmotionSourceError(ctx context.Context, reason string) {
	m.EmotionSourceErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
