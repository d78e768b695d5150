package server

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Brownie44l1/rawhttp/internal/response"
)

// Metrics holds server runtime metrics. Counters are kept locally for
// Snapshot and mirrored to OpenTelemetry instruments for export.
type Metrics struct {
	RequestsTotal     atomic.Int64
	ActiveConnections atomic.Int64
	ErrorsTotal       atomic.Int64
	Errors4xx         atomic.Int64
	Errors5xx         atomic.Int64
	ParseErrors       atomic.Int64

	// Latency tracking (the histogram below carries the distribution)
	TotalLatencyNs atomic.Int64

	requests    metric.Int64Counter
	active      metric.Int64UpDownCounter
	duration    metric.Float64Histogram
	parseErrors metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.requests, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Requests answered, by method, route and status"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	m.active, err = meter.Int64UpDownCounter("http.server.active_connections",
		metric.WithDescription("Connections currently being served"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Time from accept to response written"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	m.parseErrors, err = meter.Int64Counter("http.server.parse_errors",
		metric.WithDescription("Connections dropped because the request could not be parsed"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) ConnOpened(ctx context.Context) {
	m.ActiveConnections.Add(1)
	m.active.Add(ctx, 1)
}

func (m *Metrics) ConnClosed(ctx context.Context) {
	m.ActiveConnections.Add(-1)
	m.active.Add(ctx, -1)
}

// RecordRequest records a completed request
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status response.StatusCode, duration time.Duration) {
	m.RequestsTotal.Add(1)
	m.TotalLatencyNs.Add(duration.Nanoseconds())

	if status.IsClientError() {
		m.Errors4xx.Add(1)
	} else if status.IsServerError() {
		m.Errors5xx.Add(1)
		m.ErrorsTotal.Add(1)
	}

	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", int(status)),
		attribute.String("http.response.status_class", status.Class()),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(duration)/float64(time.Millisecond), attrs)
}

func (m *Metrics) RecordParseError(ctx context.Context) {
	m.ParseErrors.Add(1)
	m.ErrorsTotal.Add(1)
	m.parseErrors.Add(ctx, 1)
}

// AverageLatency returns average request latency
func (m *Metrics) AverageLatency() time.Duration {
	totalReqs := m.RequestsTotal.Load()
	if totalReqs == 0 {
		return 0
	}

	avgNs := m.TotalLatencyNs.Load() / totalReqs
	return time.Duration(avgNs)
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	RequestsTotal     int64
	ActiveConnections int64
	ErrorsTotal       int64
	Errors4xx         int64
	Errors5xx         int64
	ParseErrors       int64
	AverageLatency    time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RequestsTotal:     m.RequestsTotal.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		ErrorsTotal:       m.ErrorsTotal.Load(),
		Errors4xx:         m.Errors4xx.Load(),
		Errors5xx:         m.Errors5xx.Load(),
		ParseErrors:       m.ParseErrors.Load(),
		AverageLatency:    m.AverageLatency(),
	}
}
