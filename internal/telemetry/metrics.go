// Package telemetry provides OpenTelemetry metrics for the coordinator.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of coordinator metrics
const MeterName = "github.com/jf-navica/hydroqc-ha/coordinator"

// Fetch outcomes recorded by RecordFetch
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeOffline = "offline"
)

// Metrics holds the OpenTelemetry instruments for the coordinator.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	tickDuration   metric.Float64Histogram
	fetches        metric.Int64Counter
	taskRuns       metric.Int64Counter
	taskDuration   metric.Float64Histogram
	peakEvents     metric.Int64Gauge
	offlineNotices metric.Int64Counter
}

// NewMetrics creates the instruments with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(MeterName)

	tickDuration, err := meter.Float64Histogram(
		"hydroqc_tick_duration_seconds",
		metric.WithDescription("Duration of coordinator update ticks in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	fetches, err := meter.Int64Counter(
		"hydroqc_source_fetches",
		metric.WithDescription("Upstream source fetch attempts by outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	taskRuns, err := meter.Int64Counter(
		"hydroqc_background_task_runs",
		metric.WithDescription("Background task runs by final state"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	taskDuration, err := meter.Float64Histogram(
		"hydroqc_background_task_duration_seconds",
		metric.WithDescription("Duration of background task runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 15, 30, 60, 300, 900, 1800),
	)
	if err != nil {
		return nil, err
	}

	peakEvents, err := meter.Int64Gauge(
		"hydroqc_peak_events",
		metric.WithDescription("Number of peak events announced by the public feed"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	offlineNotices, err := meter.Int64Counter(
		"hydroqc_portal_offline_checks",
		metric.WithDescription("Portal availability checks that reported the portal offline"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		tickDuration:   tickDuration,
		fetches:        fetches,
		taskRuns:       taskRuns,
		taskDuration:   taskDuration,
		peakEvents:     peakEvents,
		offlineNotices: offlineNotices,
	}, nil
}

// RecordTick records the duration of an update tick
func (m *Metrics) RecordTick(ctx context.Context, duration time.Duration, success bool) {
	if m == nil || m.tickDuration == nil {
		return
	}
	m.tickDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordFetch counts a fetch decision or attempt for a source
func (m *Metrics) RecordFetch(ctx context.Context, source, outcome string) {
	if m == nil || m.fetches == nil {
		return
	}
	m.fetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}

// RecordTaskEnd records a finished background task run
func (m *Metrics) RecordTaskEnd(ctx context.Context, task, state string, duration time.Duration) {
	if m == nil || m.taskRuns == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("state", state),
	)
	m.taskRuns.Add(ctx, 1, attrs)
	m.taskDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordPeakEvents records the number of announced peak events
func (m *Metrics) RecordPeakEvents(ctx context.Context, offer string, count int) {
	if m == nil || m.peakEvents == nil {
		return
	}
	m.peakEvents.Record(ctx, int64(count), metric.WithAttributes(attribute.String("offer", offer)))
}

// RecordPortalOffline counts an offline availability check
func (m *Metrics) RecordPortalOffline(ctx context.Context) {
	if m == nil || m.offlineNotices == nil {
		return
	}
	m.offlineNotices.Add(ctx, 1)
}
