package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CallMetrics records outbound calls to content providers, dispatchers and
// the calendar gateway.
type CallMetrics struct {
	total   metric.Int64Counter
	errors  metric.Int64Counter
	latency metric.Float64Histogram
}

func NewCallMetrics(scope string) *CallMetrics {
	meter := otel.Meter(scope)

	total, _ := meter.Int64Counter("outbound.call.total")
	errs, _ := meter.Int64Counter("outbound.call.errors.total")
	latency, _ := meter.Float64Histogram("outbound.call.duration.ms")

	return &CallMetrics{total: total, errors: errs, latency: latency}
}

func (m *CallMetrics) Observe(ctx context.Context, service, op string, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("outbound.service", service),
		attribute.String("outbound.operation", op), // e.g. "discover", "send_sms"
	}

	m.total.Add(ctx, 1, metric.WithAttributes(attrs...))

	ms := float64(time.Since(start).Milliseconds())
	m.latency.Record(ctx, ms, metric.WithAttributes(attrs...))

	if err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// FlowMetrics counts API requests per endpoint and by the outcome the
// caller saw.
type FlowMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

func NewFlowMetrics(scope string) *FlowMetrics {
	return newFlowMetrics(otel.Meter(scope))
}

func newFlowMetrics(meter metric.Meter) *FlowMetrics {
	requests, _ := meter.Int64Counter("calflow.flow.requests",
		metric.WithDescription("Flow requests by endpoint and outcome"))
	latency, _ := meter.Float64Histogram("calflow.flow.duration.ms",
		metric.WithDescription("Flow handling time in milliseconds, provider and calendar calls included"))

	return &FlowMetrics{requests: requests, latency: latency}
}

// Outcome names the result class of a flow response status.
func Outcome(status int) string {
	switch {
	case status == http.StatusCreated:
		return "created"
	case status < 300:
		return "ok"
	case status == http.StatusUnauthorized:
		return "unauthenticated"
	case status == http.StatusNotFound:
		return "not_found"
	case status < 500:
		return "rejected"
	case status == http.StatusServiceUnavailable:
		return "not_configured"
	default:
		return "failed"
	}
}

func (m *FlowMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("calflow.endpoint", endpoint),
			attribute.String("calflow.outcome", Outcome(c.Writer.Status())),
		)

		ctx := c.Request.Context()
		m.requests.Add(ctx, 1, attrs)
		m.latency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	}
}
