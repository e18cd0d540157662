package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestToolDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ToolDuration.Record(ctx, 0.8,
		metric.WithAttributes(
			attribute.String("tool", "generate_text"),
			attribute.String("status", "ok"),
		),
	)
	m.ToolDuration.Record(ctx, 412.5,
		metric.WithAttributes(
			attribute.String("tool", "deep_research"),
			attribute.String("status", "ok"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "fathom.tool.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 2 {
		t.Errorf("sample count = %d, want 2", total)
	}
}

func TestToolCallsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "web_search", "ok")
	m.RecordToolCall(ctx, "web_search", "ok")
	m.RecordToolCall(ctx, "web_search", "error")

	rm := collect(t, reader)
	met := findMetric(rm, "fathom.tool.calls")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	// Find the data point with status=ok.
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "status" && kv.Value.AsString() == "ok" {
				if dp.Value != 2 {
					t.Errorf("counter value = %d, want 2", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with status=ok not found")
}

func TestRecordUsage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUsage(ctx, "gpt-5.1", "generate_text", 1000, 2000, 0.021250, false)

	rm := collect(t, reader)

	tokens := findMetric(rm, "fathom.tokens")
	if tokens == nil {
		t.Fatal("tokens metric not found")
	}
	sum, ok := tokens.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("tokens metric is not a sum")
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3000 {
		t.Errorf("total billed tokens = %d, want 3000", total)
	}

	cost := findMetric(rm, "fathom.cost.usd")
	if cost == nil {
		t.Fatal("cost metric not found")
	}
	costSum, ok := cost.Data.(metricdata.Sum[float64])
	if !ok {
		t.Fatal("cost metric is not a sum")
	}
	if len(costSum.DataPoints) == 0 {
		t.Fatal("no cost data points")
	}
	if got := costSum.DataPoints[0].Value; got != 0.021250 {
		t.Errorf("cost value = %v, want 0.021250", got)
	}
}

func TestRetryAndPollCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RetryAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "generate")))
	m.ResearchPolls.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "in_progress")))
	m.ResearchPolls.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "completed")))

	rm := collect(t, reader)

	for _, name := range []string{"fathom.retry.attempts", "fathom.research.polls"} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("metric %q not found", name)
		}
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
