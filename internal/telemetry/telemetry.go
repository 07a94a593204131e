// Package telemetry holds the tracer, meter and Prometheus collectors shared
// by the transpiler passes.
package telemetry

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for pipeline operations.
var (
	tracer = otel.Tracer("qtranspile")
	meter  = otel.Meter("qtranspile")
)

// Tracer returns the pipeline tracer.
func Tracer() trace.Tracer { return tracer }

// Prometheus collectors.
var (
	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qtranspile_pass_duration_seconds",
		Help:    "Pass execution time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{"pass"})

	passTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qtranspile_pass_total",
		Help: "Pass executions by result",
	}, []string{"pass", "result"})

	diagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qtranspile_diagnostics_total",
		Help: "Diagnostics recorded by pass and reason",
	}, []string{"pass", "reason"})
)

// ObservePass records one pass execution.
func ObservePass(pass string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	passDuration.WithLabelValues(pass).Observe(d.Seconds())
	passTotal.WithLabelValues(pass, result).Inc()
}

// CountDiagnostic records one diagnostic.
func CountDiagnostic(pass, reason string) {
	diagnosticsTotal.WithLabelValues(pass, reason).Inc()
}

// OpenTelemetry instruments for synthesis, initialized lazily.
var (
	synthRequests metric.Int64Counter
	synthOutcomes metric.Int64Counter
	synthLatency  metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		synthRequests, err = meter.Int64Counter(
			"qtranspile_synthesis_requests_total",
			metric.WithDescription("Synthesis library requests issued"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		synthOutcomes, err = meter.Int64Counter(
			"qtranspile_synthesis_outcomes_total",
			metric.WithDescription("Synthesis block outcomes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		synthLatency, err = meter.Float64Histogram(
			"qtranspile_synthesis_duration_seconds",
			metric.WithDescription("Duration of one synthesis library call"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// RecordSynthesisRequest records one library call.
func RecordSynthesisRequest(ctx context.Context, library string, qubits int, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("library", library),
		attribute.Int("qubits", qubits),
	)
	synthRequests.Add(ctx, 1, attrs)
	synthLatency.Record(ctx, d.Seconds(), attrs)
}

// RecordSynthesisOutcome records how one block was resolved.
func RecordSynthesisOutcome(ctx context.Context, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	synthOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// EnableTracing installs a tracer provider that writes finished spans to w
// as JSON. The returned function flushes and stops it.
func EnableTracing(w io.Writer) (func(context.Context) error, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// WriteMetrics writes the default Prometheus registry in text exposition
// format.
func WriteMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
