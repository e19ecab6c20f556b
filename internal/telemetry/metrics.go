package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "storefront/sessioncore/session"

// Metrics counts session lifecycle outcomes.
type Metrics struct {
	resolutions metric.Int64Counter
	refreshes   metric.Int64Counter
	removals    metric.Int64Counter
}

// NewMetrics registers the session counters on mp. A nil provider yields no-op counters.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(meterName)
	resolutions, err := meter.Int64Counter("session.resolutions",
		metric.WithDescription("Session resolutions by routing verdict."))
	if err != nil {
		return nil, err
	}
	refreshes, err := meter.Int64Counter("session.refreshes",
		metric.WithDescription("Refresh attempts by outcome."))
	if err != nil {
		return nil, err
	}
	removals, err := meter.Int64Counter("session.removals",
		metric.WithDescription("Stored sessions removed, by reason."))
	if err != nil {
		return nil, err
	}
	return &Metrics{resolutions: resolutions, refreshes: refreshes, removals: removals}, nil
}

// Resolution records one Resolve outcome.
func (m *Metrics) Resolution(ctx context.Context, verdict string) {
	if m == nil {
		return
	}
	m.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
}

// Refresh records one refresh attempt.
func (m *Metrics) Refresh(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Removal records one deleted record.
func (m *Metrics) Removal(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.removals.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
