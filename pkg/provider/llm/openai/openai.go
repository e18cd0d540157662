// Package openai implements [llm.Remote] on top of the OpenAI Responses API.
//
// This is the only package that touches openai-go response structures; the
// rest of Fathom sees the normalised [llm.Response] union. Keep any "reach
// into an arbitrary structure" logic here.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/responses"
	"github.com/openai/openai-go/v2/shared"

	"github.com/fathom-mcp/fathom/pkg/provider/llm"
)

// Remote implements llm.Remote using the OpenAI API.
type Remote struct {
	client oai.Client
}

// Compile-time interface assertion.
var _ llm.Remote = (*Remote)(nil)

// config holds optional configuration for the remote.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option is a functional option for Remote.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout. The Responses API can hold a
// synchronous request open for a long time at high reasoning effort, so this
// should be generous; per-attempt deadlines are normally imposed by the
// caller's context instead.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a Remote backed by the OpenAI API.
func New(apiKey string, opts ...Option) (*Remote, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Remote{client: oai.NewClient(reqOpts...)}, nil
}

// Create implements llm.Remote.
func (r *Remote) Create(ctx context.Context, req llm.Request) (*llm.Response, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("openai: build params: %w", err)
	}

	resp, err := r.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: create response: %w", err)
	}
	return translate(resp), nil
}

// Retrieve implements llm.Remote.
func (r *Remote) Retrieve(ctx context.Context, id string) (*llm.Response, error) {
	if id == "" {
		return nil, fmt.Errorf("openai: response id must not be empty")
	}

	resp, err := r.client.Responses.Get(ctx, id, responses.ResponseGetParams{})
	if err != nil {
		return nil, fmt.Errorf("openai: retrieve response %s: %w", id, err)
	}
	return translate(resp), nil
}

// buildParams converts an llm.Request into OpenAI SDK params. Instructions go
// into the dedicated instructions field so they form a separate leading
// segment ahead of the user input.
func buildParams(req llm.Request) (responses.ResponseNewParams, error) {
	if req.Input == "" {
		return responses.ResponseNewParams{}, fmt.Errorf("input must not be empty")
	}
	if req.Model == "" {
		return responses.ResponseNewParams{}, fmt.Errorf("model must not be empty")
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(req.Model),
		Input: responses.ResponseNewParamsInputUnion{OfString: param.NewOpt(req.Input)},
	}

	if req.Instructions != "" {
		params.Instructions = param.NewOpt(req.Instructions)
	}
	if req.Params.MaxOutputTokens > 0 {
		params.MaxOutputTokens = param.NewOpt(int64(req.Params.MaxOutputTokens))
	}
	if req.Params.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Params.Temperature)
	}

	if eff := req.Params.Effort; eff != "" && eff != llm.EffortNone {
		params.Reasoning.Effort = shared.ReasoningEffort(eff)
		if s := req.Params.Summary; s != "" && s != llm.SummaryOff {
			params.Reasoning.Summary = shared.ReasoningSummary(s)
		}
	}

	if v := req.Params.Verbosity; v != "" {
		params.Text.Verbosity = responses.ResponseTextConfigVerbosity(v)
	}

	if req.Params.JSONSchema != nil {
		name := req.Params.SchemaName
		if name == "" {
			name = "result"
		}
		params.Text.Format = responses.ResponseFormatTextConfigUnionParam{
			OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
				Name:   name,
				Schema: req.Params.JSONSchema,
				Strict: param.NewOpt(true),
			},
		}
	}

	if req.WebSearch {
		ws := &responses.WebSearchToolParam{
			Type: responses.WebSearchToolTypeWebSearch,
		}
		if len(req.AllowedDomains) > 0 {
			ws.Filters.AllowedDomains = req.AllowedDomains
		}
		params.Tools = append(params.Tools, responses.ToolUnionParam{OfWebSearch: ws})
	}

	if req.CodeExecution {
		params.Tools = append(params.Tools, responses.ToolUnionParam{
			OfCodeInterpreter: &responses.ToolCodeInterpreterParam{
				Container: responses.ToolCodeInterpreterContainerUnionParam{
					OfCodeInterpreterContainerAuto: &responses.ToolCodeInterpreterContainerCodeInterpreterContainerAutoParam{},
				},
			},
		})
	}

	if req.Background {
		params.Background = param.NewOpt(true)
	}

	return params, nil
}

// translate maps an SDK response onto the llm.Response union. Unrecognised
// statuses map to StateUnknown so callers can re-poll defensively instead of
// failing on an upstream status this client predates.
func translate(resp *responses.Response) *llm.Response {
	out := &llm.Response{ID: resp.ID, Model: string(resp.Model)}

	switch resp.Status {
	case responses.ResponseStatusCompleted:
		out.State = llm.StateCompleted
		out.Text = resp.OutputText()
		out.Usage = usageOf(resp)
		out.Sources = sourcesOf(resp)

	case responses.ResponseStatusFailed:
		out.State = llm.StateFailed
		out.FailureMessage = resp.Error.Message
		out.Usage = usageOf(resp) // partial usage is still billable

	case responses.ResponseStatusIncomplete:
		out.State = llm.StateFailed
		out.FailureMessage = "response incomplete: " + string(resp.IncompleteDetails.Reason)
		out.Usage = usageOf(resp)

	case responses.ResponseStatusCancelled:
		out.State = llm.StateFailed
		out.FailureMessage = "response was cancelled remotely"

	case responses.ResponseStatusInProgress, responses.ResponseStatusQueued:
		out.State = llm.StateInProgress

	default:
		out.State = llm.StateUnknown
	}

	return out
}

// usageOf extracts token accounting, or nil when the remote reported none.
// Background jobs regularly complete without usage, so absence is normal.
func usageOf(resp *responses.Response) *llm.Usage {
	u := resp.Usage
	if u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0 {
		return nil
	}
	return &llm.Usage{
		InputTokens:  int(u.InputTokens),
		OutputTokens: int(u.OutputTokens),
		TotalTokens:  int(u.TotalTokens),
	}
}

// sourcesOf walks the output items and collects url_citation annotations in
// report order. Duplicates are preserved; a response without citations yields
// nil, not an empty slice.
func sourcesOf(resp *responses.Response) []llm.Source {
	var sources []llm.Source
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type != "output_text" {
				continue
			}
			for _, ann := range part.Annotations {
				if ann.Type != "url_citation" {
					continue
				}
				sources = append(sources, llm.Source{
					URL:   ann.URL,
					Title: ann.Title,
				})
			}
		}
	}
	return sources
}
