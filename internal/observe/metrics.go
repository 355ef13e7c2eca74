// Package observe provides application-wide observability primitives for
// Ariel: OpenTelemetry metrics and structured-logging setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Ariel metrics.
const meterName = "github.com/eqadir/ariel"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks how long each pipeline stage takes for the whole
	// record store. Use with attribute.String("stage", ...).
	StageDuration metric.Float64Histogram

	// CollaboratorRequests counts calls to external collaborators. Use with
	// attributes:
	//   attribute.String("collaborator", ...), attribute.String("status", ...)
	CollaboratorRequests metric.Int64Counter

	// CollaboratorErrors counts collaborator failures. Use with attribute:
	//   attribute.String("collaborator", ...)
	CollaboratorErrors metric.Int64Counter

	// UtterancesDubbed counts synthesised utterances, including
	// re-syntheses triggered by operator edits.
	UtterancesDubbed metric.Int64Counter

	// ReviewIterations counts passes through the operator review loop.
	ReviewIterations metric.Int64Counter

	// RecordsInStore tracks the current size of the utterance record store.
	RecordsInStore metric.Int64UpDownCounter
}

// stageBuckets defines histogram bucket boundaries (in seconds) sized for
// batch pipeline stages rather than interactive latencies.
var stageBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("ariel.stage.duration",
		metric.WithDescription("Duration of one pipeline stage over the full record store."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CollaboratorRequests, err = m.Int64Counter("ariel.collaborator.requests",
		metric.WithDescription("Total collaborator calls by collaborator and status."),
	); err != nil {
		return nil, err
	}
	if met.CollaboratorErrors, err = m.Int64Counter("ariel.collaborator.errors",
		metric.WithDescription("Total collaborator failures by collaborator."),
	); err != nil {
		return nil, err
	}
	if met.UtterancesDubbed, err = m.Int64Counter("ariel.utterances.dubbed",
		metric.WithDescription("Total synthesised utterances, including re-syntheses."),
	); err != nil {
		return nil, err
	}
	if met.ReviewIterations, err = m.Int64Counter("ariel.review.iterations",
		metric.WithDescription("Total passes through the operator review loop."),
	); err != nil {
		return nil, err
	}
	if met.RecordsInStore, err = m.Int64UpDownCounter("ariel.records.in_store",
		metric.WithDescription("Current number of records in the utterance store."),
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

// RecordStage records one stage execution with its duration.
func (m *Metrics) RecordStage(ctx context.Context, stage string, elapsed time.Duration) {
	m.StageDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordCollaborator records a collaborator call outcome. A nil err counts as
// success; a non-nil err additionally increments the error counter.
func (m *Metrics) RecordCollaborator(ctx context.Context, collaborator string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.CollaboratorErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("collaborator", collaborator)),
		)
	}
	m.CollaboratorRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("collaborator", collaborator),
			attribute.String("status", status),
		),
	)
}
