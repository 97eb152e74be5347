// Package telemetry provides OpenTelemetry metrics for the watcher.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of every seatwatch instrument.
const MeterName = "github.com/marcin-skalski/seatwatch"

// Notification kinds.
const (
	KindAlert   = "alert"
	KindWelcome = "welcome"
)

// Metrics holds the instruments. A nil *Metrics records nothing.
type Metrics struct {
	fetches       metric.Int64Counter
	notifications metric.Int64Counter
	pollers       metric.Int64UpDownCounter
	reconcile     metric.Float64Histogram
}

// NewMetrics creates the instruments on provider.
// If provider is nil, it returns nil (no-op metrics).
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(MeterName)

	fetches, err := meter.Int64Counter(
		"seatwatch_fetches",
		metric.WithDescription("Seat page fetches by outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	notifications, err := meter.Int64Counter(
		"seatwatch_notifications",
		metric.WithDescription("Notifications sent by kind and outcome"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	pollers, err := meter.Int64UpDownCounter(
		"seatwatch_pollers_active",
		metric.WithDescription("Pollers currently running"),
		metric.WithUnit("{poller}"),
	)
	if err != nil {
		return nil, err
	}

	reconcile, err := meter.Float64Histogram(
		"seatwatch_reconcile_duration",
		metric.WithDescription("Duration of reconcile ticks in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		fetches:       fetches,
		notifications: notifications,
		pollers:       pollers,
		reconcile:     reconcile,
	}, nil
}

func (m *Metrics) RecordFetch(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.fetches.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func (m *Metrics) RecordNotification(ctx context.Context, kind string, success bool) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	))
}

func (m *Metrics) PollerStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.pollers.Add(ctx, 1)
}

func (m *Metrics) PollerStopped(ctx context.Context) {
	if m == nil {
		return
	}
	m.pollers.Add(ctx, -1)
}

func (m *Metrics) RecordReconcile(ctx context.Context, d time.Duration, success bool) {
	if m == nil {
		return
	}
	m.reconcile.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}
