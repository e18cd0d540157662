// Package engine contains the two controllers behind Fathom's tool surface:
// the synchronous generation/search controller and the deep-research job
// lifecycle controller.
//
// Both controllers validate locally before any network call, classify every
// upstream failure into the closed taxonomy, and record one ledger entry per
// terminal billable operation. The research controller is the only component
// with an internal loop; its client-side timeout is a budget, never a remote
// cancellation.
package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fathom-mcp/fathom/internal/fault"
	"github.com/fathom-mcp/fathom/internal/ledger"
	"github.com/fathom-mcp/fathom/internal/observe"
	"github.com/fathom-mcp/fathom/internal/pricing"
	"github.com/fathom-mcp/fathom/internal/retry"
	"github.com/fathom-mcp/fathom/pkg/provider/llm"
)

// Operation kinds recorded in the ledger. They match the tool names so cost
// summaries group the way clients see the surface.
const (
	OpGenerate = "generate_text"
	OpSearch   = "web_search"
	OpResearch = "deep_research"
)

// Synchronous call tuning. High reasoning effort can legitimately run close
// to an hour, so the per-attempt deadline is generous and the retry budget
// small and restricted to transport-transient signals.
const (
	generateAttemptTimeout = time.Hour
	generateMaxRetries     = 2
)

// Engine executes tool operations against a [llm.Remote], recording cost in
// the ledger and classified failures at the boundary. Construct one per
// process and share it; all methods are safe for concurrent use.
type Engine struct {
	remote  llm.Remote
	ledger  *ledger.Ledger
	metrics *observe.Metrics
	logger  *slog.Logger

	// pollInterval is the research poll cadence. Set once at construction.
	pollInterval time.Duration
}

// New constructs an Engine. metrics and logger may be nil, in which case the
// process-wide defaults are used.
func New(remote llm.Remote, led *ledger.Ledger, metrics *observe.Metrics, logger *slog.Logger) *Engine {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		remote:       remote,
		ledger:       led,
		metrics:      metrics,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
}

// Result is the normalised outcome of a successful operation.
type Result struct {
	// Text is the output text. Empty string when the model returned none.
	Text string

	// Model is the model that served the request.
	Model string

	// Usage is the reported token accounting, or nil when the remote
	// omitted it.
	Usage *llm.Usage

	// Cost is the computed breakdown that was recorded in the ledger.
	Cost pricing.Breakdown

	// Sources lists cited web sources in report order. Nil when none were
	// found or citation was not requested.
	Sources []llm.Source

	// ResponseID is the remote response identifier, when one is known.
	ResponseID string
}

// warnIfUnpriced logs once per call when the chosen model is absent from the
// price table, since its ledger entries will be costed at the fallback tier.
func (e *Engine) warnIfUnpriced(op, model string) {
	if pricing.Known(model) {
		return
	}
	e.logger.Warn("model not in the price table, costing at the fallback tier",
		"operation", op,
		"model", model,
	)
}

// generatePolicy is the retry policy for synchronous calls.
func (e *Engine) generatePolicy(op string) retry.Policy {
	return retry.Policy{
		MaxRetries:        generateMaxRetries,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		RetryablePatterns: retry.TransientPatterns,
		PerAttemptTimeout: generateAttemptTimeout,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			e.metrics.RetryAttempts.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("op", op)))
		},
	}
}

// recordSuccess costs the usage, appends the ledger entry, and updates
// metrics. When the remote reported no usage the cost is zero and flagged
// estimated, since any figure would be a pure guess.
func (e *Engine) recordSuccess(ctx context.Context, op, model string, usage *llm.Usage, elapsed time.Duration) pricing.Breakdown {
	var in, out int
	if usage != nil {
		in, out = usage.InputTokens, usage.OutputTokens
	}
	cost := pricing.Cost(model, in, out)
	if usage == nil {
		cost.Estimated = true
	}

	e.ledger.Record(ledger.Entry{
		Timestamp:    time.Now().UTC(),
		Model:        model,
		Operation:    op,
		InputTokens:  in,
		OutputTokens: out,
		Cost:         cost,
	})

	e.metrics.RecordUsage(ctx, model, op, in, out, cost.TotalCost, cost.Estimated)
	e.metrics.RecordToolCall(ctx, op, "ok")
	e.metrics.ToolDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("tool", op), attribute.String("status", "ok")))

	e.logger.Info("operation completed",
		"operation", op,
		"model", model,
		"input_tokens", in,
		"output_tokens", out,
		"cost_usd", cost.TotalCost,
		"estimated", cost.Estimated,
		"elapsed", elapsed,
	)
	return cost
}

// recordFailure appends an operational ledger entry for a hard failure.
// No tokens were billably consumed unless the remote reported partial usage,
// in which case that partial usage is costed.
func (e *Engine) recordFailure(ctx context.Context, op, model string, usage *llm.Usage, ferr *fault.Error, elapsed time.Duration) {
	var in, out int
	var cost pricing.Breakdown
	if usage != nil {
		in, out = usage.InputTokens, usage.OutputTokens
		cost = pricing.Cost(model, in, out)
	} else {
		// Same rule as the success path: no usage means any figure is a
		// guess, so the entry is flagged estimated.
		cost.Estimated = true
	}

	e.ledger.Record(ledger.Entry{
		Timestamp:    time.Now().UTC(),
		Model:        model,
		Operation:    op,
		InputTokens:  in,
		OutputTokens: out,
		Cost:         cost,
		Failed:       true,
		Error:        ferr.Error(),
	})

	if usage != nil {
		e.metrics.RecordUsage(ctx, model, op, in, out, cost.TotalCost, cost.Estimated)
	}
	e.metrics.RecordToolCall(ctx, op, "error")
	e.metrics.ToolDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("tool", op), attribute.String("status", "error")))

	e.logger.Warn("operation failed",
		"operation", op,
		"model", model,
		"kind", ferr.Kind,
		"err", ferr.Message,
		"elapsed", elapsed,
	)
}
