package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMeterProvider(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	return provider, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumFor(t *testing.T, data metricdata.Aggregation, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)

	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestOTelMetrics_Auth(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	m, err := NewOTelMetrics(provider)
	require.NoError(t, err)

	m.RecordLogin("success")
	m.RecordLogin("invalid")
	m.RecordLogin("invalid")
	m.RecordLockout()
	m.RecordTokenValidation("expired")

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, data["pressroom.login.attempts"], attribute.String("outcome", "invalid")))
	assert.Equal(t, int64(1), sumFor(t, data["pressroom.login.attempts"], attribute.String("outcome", "success")))
	assert.Equal(t, int64(1), sumFor(t, data["pressroom.account.lockouts"]))
	assert.Equal(t, int64(1), sumFor(t, data["pressroom.token.validations"], attribute.String("result", "expired")))
}

func TestOTelMetrics_SweepAndUploads(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	m, err := NewOTelMetrics(provider)
	require.NoError(t, err)

	m.RecordSweep(4, nil)
	m.RecordSweep(0, errors.New("db down"))
	m.RecordUpload("alertImages", 1024, 5*time.Millisecond, nil)
	m.RecordUpload("alertImages", 0, time.Millisecond, errors.New("disk full"))
	m.RecordUploadDelete("unities", nil)

	data := collect(t, reader)
	assert.Equal(t, int64(4), sumFor(t, data["pressroom.token.swept"]))
	assert.Equal(t, int64(1), sumFor(t, data["pressroom.token.sweeps"], attribute.String("status", "error")))
	assert.Equal(t, int64(1), sumFor(t, data["pressroom.uploads"],
		attribute.String("collection", "alertImages"), attribute.String("status", "ok")))
	assert.Equal(t, int64(1), sumFor(t, data["pressroom.upload.deletes"],
		attribute.String("collection", "unities"), attribute.String("status", "ok")))

	sizes, ok := data["pressroom.upload.size"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, sizes.DataPoints, 1)
	assert.Equal(t, uint64(1), sizes.DataPoints[0].Count)
	assert.Equal(t, int64(1024), sizes.DataPoints[0].Sum)
}

func TestRecorders_FanOut(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	otelMetrics, err := NewOTelMetrics(provider)
	require.NoError(t, err)
	promMetrics := NewMetrics(prometheus.NewRegistry())

	recorders := Recorders{promMetrics, otelMetrics}
	recorders.RecordLogin("blocked")
	recorders.RecordLockout()

	assert.Equal(t, float64(1), testutil.ToFloat64(promMetrics.LoginAttemptsTotal.WithLabelValues("blocked")))
	assert.Equal(t, float64(1), testutil.ToFloat64(promMetrics.AccountLockoutsTotal))

	data := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, data["pressroom.login.attempts"], attribute.String("outcome", "blocked")))
	assert.Equal(t, int64(1), sumFor(t, data["pressroom.account.lockouts"]))
}
