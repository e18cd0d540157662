package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fathom-mcp/fathom/internal/fault"
	"github.com/fathom-mcp/fathom/pkg/provider/llm"
)

// Deep-research timeout bounds, in minutes. The caller's timeout_minutes is
// clamped into this range; it is a client-side waiting budget, the remote job
// itself is never cancelled.
const (
	DefaultResearchTimeout = 60
	MinResearchTimeout     = 5
	MaxResearchTimeout     = 120
)

// defaultPollInterval is the delay between status retrievals of a running
// research job.
const defaultPollInterval = 15 * time.Second

// researchInstructions is the fixed preamble sent with every research job.
// Research models plan their own tool use; the preamble only pins the output
// contract.
const researchInstructions = "You are a research assistant. Produce a thorough, well-structured " +
	"report with inline citations for every substantive claim. Prefer primary sources. " +
	"Finish with a short summary of the key findings."

// ResearchInput is the argument set of the deep-research operation.
type ResearchInput struct {
	Query          string
	Model          string
	TimeoutMinutes int
	AllowedDomains []string
}

// Research starts a background deep-research job and polls it until it
// reaches a terminal state or the client-side budget runs out. The Create
// call is not retried: a duplicate submission would start a second billable
// job that nobody is tracking.
func (e *Engine) Research(ctx context.Context, in ResearchInput) (*Result, error) {
	start := time.Now()

	if strings.TrimSpace(in.Query) == "" {
		return nil, fault.New(fault.KindValidation, "query must not be empty")
	}
	model, err := resolveResearchModel(in.Model)
	if err != nil {
		return nil, err
	}
	if err := ValidateDomains(in.AllowedDomains); err != nil {
		return nil, err
	}
	timeout := clampTimeout(in.TimeoutMinutes)

	req := llm.Request{
		Input:          in.Query,
		Instructions:   researchInstructions,
		Model:          model,
		WebSearch:      true,
		AllowedDomains: in.AllowedDomains,
		CodeExecution:  true,
		Background:     true,
	}

	resp, err := e.remote.Create(ctx, req)
	if err != nil {
		ferr := fault.Classify(err)
		e.recordFailure(ctx, OpResearch, model, nil, ferr, time.Since(start))
		return nil, ferr
	}
	if resp.ID == "" {
		ferr := fault.New(fault.KindAPI, "remote accepted the research job but returned no job id")
		e.recordFailure(ctx, OpResearch, model, nil, ferr, time.Since(start))
		return nil, ferr
	}

	e.logger.Info("research job started",
		"job_id", resp.ID,
		"model", model,
		"timeout_minutes", timeout,
	)

	return e.awaitResearch(ctx, model, resp.ID, time.Duration(timeout)*time.Minute, start)
}

// awaitResearch polls a research job until it completes, fails, or the
// waiting budget is exhausted. Transport errors during polling are logged and
// retried on the next tick; only the budget ends the loop for a job the
// remote still considers alive.
func (e *Engine) awaitResearch(ctx context.Context, model, jobID string, budget time.Duration, start time.Time) (*Result, error) {
	deadline := start.Add(budget)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ferr := fault.New(fault.KindTimeout,
				"cancelled while waiting for research job %s; the job may still complete, poll it with check_research", jobID)
			e.recordFailure(ctx, OpResearch, model, nil, ferr, time.Since(start))
			return nil, ferr
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			ferr := fault.New(fault.KindTimeout,
				"research job %s exceeded the %s waiting budget; the job is still running remotely, poll it with check_research", jobID, budget)
			e.recordFailure(ctx, OpResearch, model, nil, ferr, time.Since(start))
			return nil, ferr
		}

		e.metrics.ResearchPolls.Add(ctx, 1, metric.WithAttributes(attribute.String("model", model)))

		resp, err := e.remote.Retrieve(ctx, jobID)
		if err != nil {
			e.logger.Warn("research poll failed, will retry",
				"job_id", jobID,
				"err", err,
			)
			continue
		}

		switch resp.State {
		case llm.StateInProgress:
			continue
		case llm.StateCompleted:
			if strings.TrimSpace(resp.Text) == "" {
				ferr := fault.New(fault.KindAPI, "research job %s completed without a report", jobID)
				e.recordFailure(ctx, OpResearch, model, resp.Usage, ferr, time.Since(start))
				return nil, ferr
			}
			cost := e.recordSuccess(ctx, OpResearch, model, resp.Usage, time.Since(start))
			return &Result{
				Text:       resp.Text,
				Model:      model,
				Usage:      resp.Usage,
				Cost:       cost,
				Sources:    resp.Sources,
				ResponseID: jobID,
			}, nil
		case llm.StateFailed:
			var ferr *fault.Error
			if resp.FailureMessage != "" {
				inner := fault.Classify(errors.New(resp.FailureMessage))
				if inner.Kind == fault.KindAPI {
					ferr = fault.New(fault.KindResearchFailed, "research job %s failed: %s", jobID, resp.FailureMessage)
				} else {
					ferr = inner
				}
			} else {
				ferr = fault.New(fault.KindResearchFailed, "research job %s failed without detail", jobID)
			}
			e.recordFailure(ctx, OpResearch, model, resp.Usage, ferr, time.Since(start))
			return nil, ferr
		default:
			// Unknown state: treat like in_progress and poll again. The
			// budget bounds how long this can go on.
			e.logger.Warn("research job in unrecognised state",
				"job_id", jobID,
				"state", resp.State,
			)
		}
	}
}

// ResearchStatus is the point-in-time view of a research job returned by
// CheckResearch.
type ResearchStatus struct {
	JobID   string
	State   llm.State
	Model   string
	Text    string
	Usage   *llm.Usage
	Sources []llm.Source
	Failure string
}

// CheckResearch retrieves the current state of a research job. It is a pure
// read: nothing is recorded in the ledger, so checking a job that the
// Research call already billed never double-counts.
func (e *Engine) CheckResearch(ctx context.Context, jobID string) (*ResearchStatus, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fault.New(fault.KindValidation, "job_id must not be empty")
	}

	resp, err := e.remote.Retrieve(ctx, jobID)
	if err != nil {
		return nil, fault.Classify(err)
	}

	return &ResearchStatus{
		JobID:   jobID,
		State:   resp.State,
		Model:   resp.Model,
		Text:    resp.Text,
		Usage:   resp.Usage,
		Sources: resp.Sources,
		Failure: resp.FailureMessage,
	}, nil
}

// clampTimeout normalises a timeout_minutes argument into the supported
// range, substituting the default for zero.
func clampTimeout(minutes int) int {
	switch {
	case minutes == 0:
		return DefaultResearchTimeout
	case minutes < MinResearchTimeout:
		return MinResearchTimeout
	case minutes > MaxResearchTimeout:
		return MaxResearchTimeout
	}
	return minutes
}
