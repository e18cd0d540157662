package engine

import (
	"context"
	"strings"
	"time"

	"github.com/fathom-mcp/fathom/internal/fault"
	"github.com/fathom-mcp/fathom/internal/retry"
	"github.com/fathom-mcp/fathom/pkg/provider/llm"
)

// SearchInput is the argument set of the web-search operation.
type SearchInput struct {
	Query          string
	Model          string
	AllowedDomains []string
	Params         llm.ParameterSet
}

// Search runs one web-search-grounded generation. The model is offered the
// hosted web-search tool and the result carries the cited sources in report
// order.
func (e *Engine) Search(ctx context.Context, in SearchInput) (*Result, error) {
	start := time.Now()

	if strings.TrimSpace(in.Query) == "" {
		return nil, fault.New(fault.KindValidation, "query must not be empty")
	}
	model, err := resolveModel(in.Model)
	if err != nil {
		return nil, err
	}
	if err := ValidateParams(model, in.Params); err != nil {
		return nil, err
	}
	if err := ValidateDomains(in.AllowedDomains); err != nil {
		return nil, err
	}
	e.warnIfUnpriced(OpSearch, model)

	req := llm.Request{
		Input:          in.Query,
		Model:          model,
		Params:         in.Params,
		WebSearch:      true,
		AllowedDomains: in.AllowedDomains,
	}

	resp, err := retry.Do(ctx, OpSearch, e.generatePolicy(OpSearch), func(ctx context.Context) (*llm.Response, error) {
		return e.remote.Create(ctx, req)
	})
	if err != nil {
		ferr := fault.Classify(err)
		e.recordFailure(ctx, OpSearch, model, nil, ferr, time.Since(start))
		return nil, ferr
	}

	return e.finishSync(ctx, OpSearch, model, resp, start)
}
