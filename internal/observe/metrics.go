// Package observe provides observability primitives for Fathom: OpenTelemetry
// metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via a standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Fathom metrics.
const meterName = "github.com/fathom-mcp/fathom"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ToolDuration tracks end-to-end tool invocation latency. Use with
	// attributes: attribute.String("tool", ...), attribute.String("status", ...)
	ToolDuration metric.Float64Histogram

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// RetryAttempts counts retries scheduled by the executor. Use with
	// attribute: attribute.String("op", ...)
	RetryAttempts metric.Int64Counter

	// ResearchPolls counts status retrievals performed by the research poll
	// loop. Use with attribute: attribute.String("model", ...)
	ResearchPolls metric.Int64Counter

	// TokensBilled counts tokens reported by the remote. Use with attributes:
	//   attribute.String("model", ...), attribute.String("direction", "input"|"output")
	TokensBilled metric.Int64Counter

	// CostTotal accumulates computed USD cost. Use with attributes:
	//   attribute.String("model", ...), attribute.String("operation", ...),
	//   attribute.Bool("estimated", ...)
	CostTotal metric.Float64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// model calls that range from sub-second searches to half-hour research jobs.
var latencyBuckets = []float64{
	0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800, 3600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ToolDuration, err = m.Float64Histogram("fathom.tool.duration",
		metric.WithDescription("End-to-end latency of tool invocations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("fathom.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.RetryAttempts, err = m.Int64Counter("fathom.retry.attempts",
		metric.WithDescription("Retries scheduled by the retry executor, by operation."),
	); err != nil {
		return nil, err
	}
	if met.ResearchPolls, err = m.Int64Counter("fathom.research.polls",
		metric.WithDescription("Status retrievals performed by the research poll loop."),
	); err != nil {
		return nil, err
	}
	if met.TokensBilled, err = m.Int64Counter("fathom.tokens",
		metric.WithDescription("Tokens reported by the remote, by model and direction."),
	); err != nil {
		return nil, err
	}
	if met.CostTotal, err = m.Float64Counter("fathom.cost.usd",
		metric.WithDescription("Accumulated computed cost in USD."),
		metric.WithUnit("USD"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordUsage records billed tokens and computed cost for one terminal
// operation with the standard attribute sets.
func (m *Metrics) RecordUsage(ctx context.Context, model, operation string, inputTokens, outputTokens int, costUSD float64, estimated bool) {
	m.TokensBilled.Add(ctx, int64(inputTokens),
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("direction", "input"),
		),
	)
	m.TokensBilled.Add(ctx, int64(outputTokens),
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("direction", "output"),
		),
	)
	m.CostTotal.Add(ctx, costUSD,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("operation", operation),
			attribute.Bool("estimated", estimated),
		),
	)
}
