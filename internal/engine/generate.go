package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fathom-mcp/fathom/internal/fault"
	"github.com/fathom-mcp/fathom/internal/retry"
	"github.com/fathom-mcp/fathom/pkg/provider/llm"
)

// GenerateInput is the validated-by-Generate argument set of the synchronous
// text generation operation.
type GenerateInput struct {
	Prompt        string
	Instructions  string
	Model         string
	Params        llm.ParameterSet
	CodeExecution bool
}

// Generate runs one synchronous text generation, retrying transient upstream
// failures within the policy budget. It returns a classified *fault.Error on
// failure.
func (e *Engine) Generate(ctx context.Context, in GenerateInput) (*Result, error) {
	start := time.Now()

	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fault.New(fault.KindValidation, "prompt must not be empty")
	}
	model, err := resolveModel(in.Model)
	if err != nil {
		return nil, err
	}
	if err := ValidateParams(model, in.Params); err != nil {
		return nil, err
	}
	e.warnIfUnpriced(OpGenerate, model)

	req := llm.Request{
		Input:         in.Prompt,
		Instructions:  in.Instructions,
		Model:         model,
		Params:        in.Params,
		CodeExecution: in.CodeExecution,
	}

	resp, err := retry.Do(ctx, OpGenerate, e.generatePolicy(OpGenerate), func(ctx context.Context) (*llm.Response, error) {
		return e.remote.Create(ctx, req)
	})
	if err != nil {
		ferr := fault.Classify(err)
		e.recordFailure(ctx, OpGenerate, model, nil, ferr, time.Since(start))
		return nil, ferr
	}

	return e.finishSync(ctx, OpGenerate, model, resp, start)
}

// finishSync turns a terminal synchronous response into a Result, recording
// the outcome either way. The remote can report a completed envelope that
// carries a failure state; that path is billed when partial usage exists.
func (e *Engine) finishSync(ctx context.Context, op, model string, resp *llm.Response, start time.Time) (*Result, error) {
	switch resp.State {
	case llm.StateCompleted:
		cost := e.recordSuccess(ctx, op, model, resp.Usage, time.Since(start))
		return &Result{
			Text:       resp.Text,
			Model:      model,
			Usage:      resp.Usage,
			Cost:       cost,
			Sources:    resp.Sources,
			ResponseID: resp.ID,
		}, nil
	case llm.StateFailed:
		var ferr *fault.Error
		if resp.FailureMessage != "" {
			// Classify from the remote's own wording so safety and
			// rate-limit refusals keep their kind.
			ferr = fault.Classify(errors.New(resp.FailureMessage))
		} else {
			ferr = fault.New(fault.KindAPI, "upstream reported failure without detail")
		}
		e.recordFailure(ctx, op, model, resp.Usage, ferr, time.Since(start))
		return nil, ferr
	default:
		ferr := fault.New(fault.KindAPI, "unexpected response state %q for synchronous call", resp.State)
		e.recordFailure(ctx, op, model, resp.Usage, ferr, time.Since(start))
		return nil, ferr
	}
}
