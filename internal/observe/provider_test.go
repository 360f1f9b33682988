package observe

import (
	"context"
	"slices"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestLatencyViews_RebucketDurationHistograms(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(latencyViews()...),
	)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.LLMDuration.Record(ctx, 0.42)
	m.CascadeLayerDuration.Record(ctx, 0.008)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	for _, name := range []string{
		"ledgervoice.llm.duration",
		"ledgervoice.cascade.layer.duration",
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("%s: metric not found", name)
		}
		hist, ok := met.Data.(metricdata.Histogram[float64])
		if !ok {
			t.Fatalf("%s: not a histogram", name)
		}
		if len(hist.DataPoints) == 0 {
			t.Fatalf("%s: no data points", name)
		}
		if got := hist.DataPoints[0].Bounds; !slices.Equal(got, latencyBoundaries) {
			t.Errorf("%s: bounds = %v, want %v", name, got, latencyBoundaries)
		}
	}
}
