package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Resolution(context.Background(), "unauthenticated")
	m.Refresh(context.Background(), "ok")
	m.Removal(context.Background(), "expired")
}

func TestMetrics_NilProvider(t *testing.T) {
	m, err := NewMetrics(nil)
	if err != nil {
		t.Fatalf("NewMetrics(nil): %v", err)
	}
	m.Resolution(context.Background(), "authenticated(admin)")
}

func TestMetrics_RecordsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.Resolution(ctx, "pending_approval")
	m.Resolution(ctx, "pending_approval")
	m.Removal(ctx, "expired")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[md.Name] += dp.Value
			}
		}
	}
	if totals["session.resolutions"] != 2 {
		t.Errorf("session.resolutions = %d, want 2", totals["session.resolutions"])
	}
	if totals["session.removals"] != 1 {
		t.Errorf("session.removals = %d, want 1", totals["session.removals"])
	}
}
