package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests/jobs take
// - Traffic: Request/job throughput
// - Errors: Rate of failures
// - Saturation: Resource utilization (in-flight jobs, queue depth)
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Job metrics (Latency, Traffic, Errors, Saturation)
	JobDuration    metric.Float64Histogram
	JobsTotal      metric.Int64Counter
	JobErrorsTotal metric.Int64Counter
	JobsInFlight   metric.Int64UpDownCounter

	// Pipeline queue metrics (Saturation)
	QueueDepth   metric.Int64Gauge
	QueueDropped metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("videoforge")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Job metrics
	m.JobDuration, err = meter.Float64Histogram(
		"job_duration_seconds",
		metric.WithDescription("Job duration from submission to terminal state in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsTotal, err = meter.Int64Counter(
		"jobs_total",
		metric.WithDescription("Total number of video jobs submitted"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobErrorsTotal, err = meter.Int64Counter(
		"job_errors_total",
		metric.WithDescription("Total number of failed video jobs"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsInFlight, err = meter.Int64UpDownCounter(
		"jobs_in_flight",
		metric.WithDescription("Jobs waiting or rendering (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Pipeline queue metrics
	m.QueueDepth, err = meter.Int64Gauge(
		"pipeline_queue_depth",
		metric.WithDescription("Current number of pipelines buffered (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.QueueDropped, err = meter.Int64Counter(
		"pipeline_queue_dropped_total",
		metric.WithDescription("Total pipelines rejected because the buffer was full"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordJobCreated records a new job being submitted.
func (m *Metrics) RecordJobCreated(ctx context.Context) {
	m.JobsTotal.Add(ctx, 1)
	m.JobsInFlight.Add(ctx, 1)
}

// RecordJobCompleted records a job whose render was observed as done.
func (m *Metrics) RecordJobCompleted(ctx context.Context, durationSeconds float64) {
	m.JobDuration.Record(ctx, durationSeconds, metric.WithAttributes(successAttr(true)))
	m.JobsInFlight.Add(ctx, -1)
}

// RecordJobFailed records a job whose pipeline failed.
func (m *Metrics) RecordJobFailed(ctx context.Context, durationSeconds float64) {
	m.JobDuration.Record(ctx, durationSeconds, metric.WithAttributes(successAttr(false)))
	m.JobErrorsTotal.Add(ctx, 1)
	m.JobsInFlight.Add(ctx, -1)
}

// RecordQueueDepth records the current pipeline buffer depth.
func (m *Metrics) RecordQueueDepth(ctx context.Context, size int64) {
	m.QueueDepth.Record(ctx, size)
}

// RecordQueueDropped records a pipeline rejected by a full buffer.
func (m *Metrics) RecordQueueDropped(ctx context.Context) {
	m.QueueDropped.Add(ctx, 1)
}
