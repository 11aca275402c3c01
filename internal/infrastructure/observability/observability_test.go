package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRoundCoordinate(t *testing.T) {
	assert.Equal(t, -23.6, RoundCoordinate(-23.5505))
	assert.Equal(t, -46.6, RoundCoordinate(-46.6333))
	assert.Equal(t, 0.0, RoundCoordinate(0.04))
}

func TestRecordersAcceptNilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, nil, "GET", "/health", 200, time.Millisecond)
		RecordSearch(ctx, nil, true, false)
		RecordTravelTimeDowngrade(ctx, nil, "osrm")
		RecordCacheHit(ctx, nil, "travel_time")
		RecordCacheMiss(ctx, nil, "travel_time")
	})
}

func TestMetricsAreExported(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(previous)
		_ = provider.Shutdown(context.Background())
	})

	m, err := InitMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	RecordSearch(ctx, m, true, false)
	RecordSearch(ctx, m, false, false)
	RecordTravelTimeDowngrade(ctx, m, "google")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if sum, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[metric.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), totals["maternity.search.count"])
	assert.Equal(t, int64(1), totals["maternity.travel_time.downgrade.count"])
}
