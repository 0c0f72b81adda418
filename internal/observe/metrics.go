// Package observe provides application-wide observability primitives for
// TutorVox: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all TutorVox metrics.
const meterName = "github.com/tutorvox/tutorvox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ConnectDuration tracks how long establishing a streaming session
	// takes, across all retry attempts.
	ConnectDuration metric.Float64Histogram

	// HTTPRequestDuration tracks ops-endpoint request processing time.
	// Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// ConnectAttempts counts individual connection attempts. Use with
	// attribute: attribute.String("status", "ok"|"error").
	ConnectAttempts metric.Int64Counter

	// SessionStarts counts sessions that reached the active state.
	SessionStarts metric.Int64Counter

	// SessionStops counts completed teardowns.
	SessionStops metric.Int64Counter

	// CaptureBlocks counts microphone blocks processed by the capture loop.
	CaptureBlocks metric.Int64Counter

	// SendFailures counts outbound audio chunks the transport rejected.
	SendFailures metric.Int64Counter

	// DecodeFailures counts inbound audio chunks that failed PCM decoding.
	DecodeFailures metric.Int64Counter

	// ChunksScheduled counts audio chunks handed to the playback scheduler.
	ChunksScheduled metric.Int64Counter

	// PlaybackHalts counts clips forcibly halted before natural completion.
	PlaybackHalts metric.Int64Counter

	// WatchdogFires counts silence-watchdog expirations.
	WatchdogFires metric.Int64Counter

	// ChatMessages counts committed chat records. Use with attribute:
	//   attribute.String("sender", ...)
	ChatMessages metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks whether a tutoring session is live (0 or 1).
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// connection establishment, which spans up to three attempts with backoff.
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
	if met.ConnectDuration, err = m.Float64Histogram("tutorvox.connect.duration",
		metric.WithDescription("Time to establish a streaming session, including retries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("tutorvox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ConnectAttempts, err = m.Int64Counter("tutorvox.connect.attempts",
		metric.WithDescription("Connection attempts to the speech model by status."),
	); err != nil {
		return nil, err
	}
	if met.SessionStarts, err = m.Int64Counter("tutorvox.session.starts",
		metric.WithDescription("Sessions that reached the active state."),
	); err != nil {
		return nil, err
	}
	if met.SessionStops, err = m.Int64Counter("tutorvox.session.stops",
		metric.WithDescription("Completed session teardowns."),
	); err != nil {
		return nil, err
	}
	if met.CaptureBlocks, err = m.Int64Counter("tutorvox.capture.blocks",
		metric.WithDescription("Microphone blocks processed by the capture loop."),
	); err != nil {
		return nil, err
	}
	if met.SendFailures, err = m.Int64Counter("tutorvox.capture.send_failures",
		metric.WithDescription("Outbound audio chunks rejected by the transport."),
	); err != nil {
		return nil, err
	}
	if met.DecodeFailures, err = m.Int64Counter("tutorvox.playback.decode_failures",
		metric.WithDescription("Inbound audio chunks that failed PCM decoding."),
	); err != nil {
		return nil, err
	}
	if met.ChunksScheduled, err = m.Int64Counter("tutorvox.playback.chunks_scheduled",
		metric.WithDescription("Audio chunks handed to the playback scheduler."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackHalts, err = m.Int64Counter("tutorvox.playback.halts",
		metric.WithDescription("Clips forcibly halted before natural completion."),
	); err != nil {
		return nil, err
	}
	if met.WatchdogFires, err = m.Int64Counter("tutorvox.watchdog.fires",
		metric.WithDescription("Silence watchdog expirations."),
	); err != nil {
		return nil, err
	}
	if met.ChatMessages, err = m.Int64Counter("tutorvox.chat.messages",
		metric.WithDescription("Committed chat records by sender."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("tutorvox.active_sessions",
		metric.WithDescription("Number of live tutoring sessions."),
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

// RecordConnectAttempt records one connection attempt with its outcome.
func (m *Metrics) RecordConnectAttempt(ctx context.Context, status string) {
	m.ConnectAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordChatMessage records one committed chat record by sender.
func (m *Metrics) RecordChatMessage(ctx context.Context, sender string) {
	m.ChatMessages.Add(ctx, 1,
		metric.WithAttributes(attribute.String("sender", sender)),
	)
}
