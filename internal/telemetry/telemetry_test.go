package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMetricsIncludesPassCounters(t *testing.T) {
	ObservePass("telemetry_test", 3*time.Millisecond, nil)
	ObservePass("telemetry_test", time.Millisecond, errors.New("boom"))
	CountDiagnostic("telemetry_test", "infeasible")

	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf))
	out := buf.String()
	assert.Contains(t, out, `qtranspile_pass_total{pass="telemetry_test",result="error"} 1`)
	assert.Contains(t, out, `qtranspile_diagnostics_total{pass="telemetry_test",reason="infeasible"} 1`)
	assert.Contains(t, out, "qtranspile_pass_duration_seconds")
}

func TestEnableTracingWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := EnableTracing(&buf)
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "telemetry.test")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "telemetry.test")
}

func TestSynthesisRecordersAreSafeWithoutProvider(t *testing.T) {
	ctx := context.Background()
	RecordSynthesisRequest(ctx, "euler", 1, time.Microsecond)
	RecordSynthesisOutcome(ctx, "applied")
}
