package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func TestOverlayInstruments(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	o, err := NewOverlay(provider.Meter("test"))
	require.NoError(t, err)

	o.EventDropped(ctx, "s1", "mystery")
	o.InvalidEntries(ctx, "s1", 2)
	o.InvalidEntries(ctx, "s1", 0)
	o.Committed(ctx, "s1")
	o.Committed(ctx, "s2")
	o.DeliveryDropped(ctx, "s1")
	o.SessionOpened(ctx)
	o.SessionOpened(ctx)
	o.SessionClosed(ctx)

	got := collect(t, reader)
	assert.Equal(t, int64(1), got["overlay.events.dropped"])
	assert.Equal(t, int64(2), got["overlay.stack.invalid_entries"])
	assert.Equal(t, int64(2), got["overlay.commits"])
	assert.Equal(t, int64(1), got["overlay.deliveries.dropped"])
	assert.Equal(t, int64(1), got["overlay.sessions.open"])
}

func TestInitDisabled(t *testing.T) {
	p, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))

	var nilProvider *Provider
	assert.NoError(t, nilProvider.Shutdown(context.Background()))
	assert.NotNil(t, Default())
}
