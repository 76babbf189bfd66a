package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const MeterName = "gigboard"

// Metrics holds the service's metric instruments.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requestCount    metric.Int64Counter
	accepted        metric.Int64Counter
	resolved        metric.Int64Counter
}

// NewMetrics builds instruments on mp. A nil mp uses the global provider,
// which is a no-op until an SDK is installed.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	// instrument creation only fails on invalid names; fall back to bare ones
	var err error
	m.requestDuration, err = meter.Float64Histogram(
		"gigboard.http.request.duration",
		metric.WithDescription("Duration of API requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.requestDuration, _ = meter.Float64Histogram("gigboard.http.request.duration")
	}

	m.requestCount, err = meter.Int64Counter(
		"gigboard.http.request.count",
		metric.WithDescription("Total number of API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.requestCount, _ = meter.Int64Counter("gigboard.http.request.count")
	}

	m.accepted, err = meter.Int64Counter(
		"gigboard.acceptance.created",
		metric.WithDescription("Jobs accepted"),
		metric.WithUnit("{acceptance}"),
	)
	if err != nil {
		m.accepted, _ = meter.Int64Counter("gigboard.acceptance.created")
	}

	m.resolved, err = meter.Int64Counter(
		"gigboard.acceptance.resolved",
		metric.WithDescription("Accepted tasks resolved, by outcome"),
		metric.WithUnit("{acceptance}"),
	)
	if err != nil {
		m.resolved, _ = meter.Int64Counter("gigboard.acceptance.resolved")
	}

	return m
}

func (m *Metrics) RecordRequest(ctx context.Context, route, method string, status int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.request.method", method),
		attribute.Int("http.status_code", status),
	)
	m.requestDuration.Record(ctx, float64(d.Milliseconds()), attrs)
	m.requestCount.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordAccepted(ctx context.Context, category string) {
	m.accepted.Add(ctx, 1, metric.WithAttributes(attribute.String("job.category", category)))
}

func (m *Metrics) RecordResolved(ctx context.Context, resolution string) {
	m.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("acceptance.resolution", resolution)))
}
