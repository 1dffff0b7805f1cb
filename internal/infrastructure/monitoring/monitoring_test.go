package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kunay1/seal/internal/config"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/logger"
)

func TestZapLoggerEnrichesAndRedacts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewLoggerFromZap(zap.New(core)).WithComponent("test")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	ctx = context.WithValue(ctx, constants.ContextKeyRequestID, "req-42")

	log.Info(ctx, "released", logger.String("key_share", "00112233445566778899"), logger.Int("count", 2))
	log.Error(ctx, "failed", errors.New("boom"))

	require.Equal(t, 2, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "test", fields["component"])
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.Equal(t, "0011***8899", fields["key_share"])
	assert.EqualValues(t, 2, fields["count"])

	assert.Equal(t, "boom", logs.All()[1].ContextMap()["error"])
}

func TestNewZapLoggerFallsBackToInfo(t *testing.T) {
	log, err := NewZapLogger(&config.LogConfig{Level: "nonsense", Format: "console", OutputPath: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestMetricsRecordings(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordFetchKey(true, "", 2, 10*time.Millisecond)
	m.RecordFetchKey(false, "PolicyNotSatisfied", 1, time.Millisecond)
	m.RecordRateLimitHit("identity")
	m.RecordCacheAccess("key_share", true)
	m.RecordCacheAccess("key_share", false)
	m.RecordVaultAPI("read_master_secret", time.Millisecond, errors.New("sealed"))
	m.ObserveRequest("/v1/fetch_key", "POST", 403, time.Millisecond)
	m.ObserveRequest("/v1/fetch_key", "POST", 200, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchKeyRequests.WithLabelValues("success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchKeyRequests.WithLabelValues("failure", "PolicyNotSatisfied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitHits.WithLabelValues("identity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheAccess.WithLabelValues("key_share", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VaultErrors.WithLabelValues("read_master_secret")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestErrors.WithLabelValues("/v1/fetch_key", "POST", "403")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestErrors.WithLabelValues("/v1/fetch_key", "POST", "200")))

	m.ActiveRequestsInc("/health", "GET")
	m.ActiveRequestsDec("/health", "GET")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPActiveRequests.WithLabelValues("/health", "GET")))
}

func TestTracingDisabled(t *testing.T) {
	tm, err := NewTracingManager(&config.TracingConfig{Enabled: false}, logger.NewNoopLogger())
	require.NoError(t, err)

	ctx, span := tm.StartSpan(context.Background(), "noop")
	tm.RecordError(ctx, errors.New("ignored"))
	span.End()

	assert.Equal(t, "", TraceID(context.Background()))
	assert.NoError(t, tm.Shutdown(context.Background()))
}
