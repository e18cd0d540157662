// Package mcptools exposes Fathom's operations as MCP tools.
//
// Each tool handler decodes typed arguments, applies the documented defaults,
// delegates to the engine, and renders the outcome: a text payload plus a
// _meta block with the model id, token usage, and cost on success, or an
// IsError result carrying a single "<KIND>: <message>" line on failure.
// Handlers never return a Go error for a domain failure; protocol errors are
// reserved for malformed calls, which the SDK rejects before the handler
// runs.
package mcptools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fathom-mcp/fathom/internal/engine"
	"github.com/fathom-mcp/fathom/internal/fault"
	"github.com/fathom-mcp/fathom/internal/ledger"
	"github.com/fathom-mcp/fathom/internal/pricing"
	"github.com/fathom-mcp/fathom/pkg/provider/llm"
)

// defaultMaxOutputTokens caps generation output when the caller does not set
// max_output_tokens.
const defaultMaxOutputTokens = 8192

// Deps carries the shared state behind the tool surface.
type Deps struct {
	Engine *engine.Engine
	Ledger *ledger.Ledger
	Logger *slog.Logger
}

// logger returns the configured logger, or the process default when none
// was set.
func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// AddTools registers every Fathom tool on the given server.
func AddTools(server *mcp.Server, deps Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "generate_text",
		Description: "Generate text with an OpenAI reasoning model. Supports system prompts, " +
			"reasoning effort control, structured JSON output, and optional code execution.",
	}, deps.generateText)

	mcp.AddTool(server, &mcp.Tool{
		Name: "web_search",
		Description: "Answer a query using live web search. Returns a grounded answer with " +
			"cited sources, optionally restricted to a list of allowed domains.",
	}, deps.webSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name: "deep_research",
		Description: "Run a long-form deep-research job and wait for the report. The call blocks " +
			"up to timeout_minutes; on timeout the job keeps running remotely and can be " +
			"polled with check_research.",
	}, deps.deepResearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_research",
		Description: "Check the status of a deep-research job by response id and fetch the report once it completes.",
	}, deps.checkResearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_models",
		Description: "List the supported models with pricing and capability flags.",
	}, deps.listModels)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cost_summary",
		Description: "Report accumulated API cost for this session, grouped by model and operation. Optionally reset the in-memory counters.",
	}, deps.getCostSummary)
}

// errorResult renders err as an IsError tool result. The text is always the
// single kind-prefixed line; internals stay in the structured log.
func errorResult(err error) *mcp.CallToolResult {
	ferr := fault.Classify(err)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: ferr.Error()}},
	}
}

// successResult renders text plus the out-of-band accounting block.
func successResult(text string, res *engine.Result) *mcp.CallToolResult {
	var in, out int
	if res.Usage != nil {
		in, out = res.Usage.InputTokens, res.Usage.OutputTokens
	}
	meta := mcp.Meta{
		"model":         res.Model,
		"input_tokens":  in,
		"output_tokens": out,
		"cost_usd":      res.Cost.TotalCost,
		"estimated":     res.Cost.Estimated,
	}
	if res.ResponseID != "" {
		meta["response_id"] = res.ResponseID
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		Meta:    meta,
	}
}

// textResult renders a plain informational payload without accounting.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// GenerateTextArgs are the arguments of the generate_text tool.
type GenerateTextArgs struct {
	Prompt           string         `json:"prompt" jsonschema:"the text prompt to send to the model"`
	SystemPrompt     string         `json:"system_prompt,omitempty" jsonschema:"optional system/developer instructions, sent before the prompt"`
	Model            string         `json:"model,omitempty" jsonschema:"model identifier, defaults to gpt-5.1"`
	ReasoningEffort  string         `json:"reasoning_effort,omitempty" jsonschema:"reasoning effort: none, low, medium, high, or xhigh (default none)"`
	Verbosity        string         `json:"verbosity,omitempty" jsonschema:"answer verbosity: low, medium, or high (default medium)"`
	ReasoningSummary string         `json:"reasoning_summary,omitempty" jsonschema:"reasoning summary mode: off, auto, or detailed (default off)"`
	MaxOutputTokens  int            `json:"max_output_tokens,omitempty" jsonschema:"maximum output tokens (default 8192)"`
	Temperature      *float64       `json:"temperature,omitempty" jsonschema:"sampling temperature in [0,2]; only valid with reasoning_effort none"`
	JSONSchema       map[string]any `json:"json_schema,omitempty" jsonschema:"JSON Schema the output must conform to; requires a structured-output model"`
	CodeExecution    bool           `json:"code_execution,omitempty" jsonschema:"offer the hosted code-execution tool to the model"`
}

func (d Deps) generateText(ctx context.Context, req *mcp.CallToolRequest, args GenerateTextArgs) (*mcp.CallToolResult, any, error) {
	params := llm.ParameterSet{
		Effort:          llm.ReasoningEffort(args.ReasoningEffort),
		Verbosity:       llm.Verbosity(args.Verbosity),
		Summary:         llm.ReasoningSummary(args.ReasoningSummary),
		MaxOutputTokens: args.MaxOutputTokens,
		Temperature:     args.Temperature,
		JSONSchema:      args.JSONSchema,
	}
	if params.Effort == "" {
		params.Effort = llm.EffortNone
	}
	if params.Verbosity == "" {
		params.Verbosity = llm.VerbosityMedium
	}
	if params.Summary == "" {
		params.Summary = llm.SummaryOff
	}
	if params.MaxOutputTokens == 0 {
		params.MaxOutputTokens = defaultMaxOutputTokens
	}

	res, err := d.Engine.Generate(ctx, engine.GenerateInput{
		Prompt:        args.Prompt,
		Instructions:  args.SystemPrompt,
		Model:         args.Model,
		Params:        params,
		CodeExecution: args.CodeExecution,
	})
	if err != nil {
		return errorResult(err), nil, nil
	}
	return successResult(res.Text, res), nil, nil
}

// WebSearchArgs are the arguments of the web_search tool.
type WebSearchArgs struct {
	Query          string   `json:"query" jsonschema:"the search query"`
	Model          string   `json:"model,omitempty" jsonschema:"model identifier, defaults to gpt-5.1"`
	AllowedDomains []string `json:"allowed_domains,omitempty" jsonschema:"restrict search results to these domains (at most 100, bare hostnames)"`
	IncludeSources *bool    `json:"include_sources,omitempty" jsonschema:"append the cited sources to the answer (default true)"`
}

func (d Deps) webSearch(ctx context.Context, req *mcp.CallToolRequest, args WebSearchArgs) (*mcp.CallToolResult, any, error) {
	res, err := d.Engine.Search(ctx, engine.SearchInput{
		Query:          args.Query,
		Model:          args.Model,
		AllowedDomains: args.AllowedDomains,
	})
	if err != nil {
		return errorResult(err), nil, nil
	}

	text := res.Text
	if args.IncludeSources == nil || *args.IncludeSources {
		text += renderSources(res.Sources)
	}
	return successResult(text, res), nil, nil
}

// renderSources formats cited sources as a numbered list in report order.
// Empty when there are no sources.
func renderSources(sources []llm.Source) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nSources:\n")
	for i, s := range sources {
		if s.Title != "" {
			fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, s.Title, s.URL)
		} else {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, s.URL)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// DeepResearchArgs are the arguments of the deep_research tool.
type DeepResearchArgs struct {
	Query          string   `json:"query" jsonschema:"the research question"`
	Model          string   `json:"model,omitempty" jsonschema:"research model identifier, defaults to o3-deep-research"`
	TimeoutMinutes int      `json:"timeout_minutes,omitempty" jsonschema:"how long to wait for the report, 5 to 120 minutes (default 60)"`
	AllowedDomains []string `json:"allowed_domains,omitempty" jsonschema:"restrict web research to these domains (at most 100, bare hostnames)"`
}

func (d Deps) deepResearch(ctx context.Context, req *mcp.CallToolRequest, args DeepResearchArgs) (*mcp.CallToolResult, any, error) {
	res, err := d.Engine.Research(ctx, engine.ResearchInput{
		Query:          args.Query,
		Model:          args.Model,
		TimeoutMinutes: args.TimeoutMinutes,
		AllowedDomains: args.AllowedDomains,
	})
	if err != nil {
		return errorResult(err), nil, nil
	}

	text := res.Text + renderSources(res.Sources)
	return successResult(text, res), nil, nil
}

// CheckResearchArgs are the arguments of the check_research tool.
type CheckResearchArgs struct {
	ResponseID string `json:"response_id" jsonschema:"the research job id reported by deep_research"`
}

func (d Deps) checkResearch(ctx context.Context, req *mcp.CallToolRequest, args CheckResearchArgs) (*mcp.CallToolResult, any, error) {
	st, err := d.Engine.CheckResearch(ctx, args.ResponseID)
	if err != nil {
		return errorResult(err), nil, nil
	}

	switch st.State {
	case llm.StateCompleted:
		result := textResult(st.Text + renderSources(st.Sources))
		result.Meta = statusMeta(st)
		var in, out int
		if st.Usage != nil {
			in, out = st.Usage.InputTokens, st.Usage.OutputTokens
		}
		cost := pricing.Cost(st.Model, in, out)
		if st.Usage == nil {
			cost.Estimated = true
		}
		result.Meta["input_tokens"] = in
		result.Meta["output_tokens"] = out
		result.Meta["cost_usd"] = cost.TotalCost
		result.Meta["estimated"] = cost.Estimated
		return result, nil, nil
	case llm.StateFailed:
		msg := st.Failure
		if msg == "" {
			msg = "job failed without detail"
		}
		return errorResult(fault.New(fault.KindResearchFailed, "research job %s failed: %s", st.JobID, msg)), nil, nil
	default:
		result := textResult(fmt.Sprintf("Research job %s is still running. Check again later.", st.JobID))
		result.Meta = statusMeta(st)
		return result, nil, nil
	}
}

// statusMeta is the base metadata block of a check_research result.
func statusMeta(st *engine.ResearchStatus) mcp.Meta {
	meta := mcp.Meta{
		"response_id": st.JobID,
		"status":      string(st.State),
	}
	if st.Model != "" {
		meta["model"] = st.Model
	}
	return meta
}

// ListModelsArgs are the arguments of the list_models tool. It takes none.
type ListModelsArgs struct{}

// ModelListing is the structured payload of list_models.
type ModelListing struct {
	Models []pricing.ModelInfo `json:"models"`
}

func (d Deps) listModels(ctx context.Context, req *mcp.CallToolRequest, args ListModelsArgs) (*mcp.CallToolResult, ModelListing, error) {
	models := pricing.List()

	var b strings.Builder
	b.WriteString("Supported models (USD per 1M input/output tokens):\n")
	for _, m := range models {
		fmt.Fprintf(&b, "- %s: $%.2f / $%.2f", m.Name, m.InputPerMTok, m.OutputPerMTok)
		var notes []string
		if m.StructuredOutput {
			notes = append(notes, "structured output")
		}
		if m.Research {
			notes = append(notes, "deep research")
		}
		if m.RequiresEffortFloor {
			notes = append(notes, "requires reasoning effort medium or above")
		}
		if len(notes) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(notes, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Defaults: %s for generation and search, %s for deep research.",
		pricing.DefaultModel, pricing.DefaultResearchModel)

	return textResult(b.String()), ModelListing{Models: models}, nil
}

// CostSummaryArgs are the arguments of the get_cost_summary tool.
type CostSummaryArgs struct {
	Reset bool `json:"reset,omitempty" jsonschema:"clear the in-memory counters after reporting (the durable log is never truncated)"`
}

func (d Deps) getCostSummary(ctx context.Context, req *mcp.CallToolRequest, args CostSummaryArgs) (*mcp.CallToolResult, ledger.Summary, error) {
	sum := d.Ledger.Summary()
	if args.Reset {
		d.Ledger.Reset()
		d.logger().Info("cost ledger reset by tool call")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total cost: $%.6f across %d calls since %s.\n",
		sum.TotalCost, sum.CallCount, sum.Since.Format("2006-01-02 15:04:05 MST"))
	if sum.EstimatedCost > 0 {
		fmt.Fprintf(&b, "Of which estimated (unknown pricing or missing usage): $%.6f.\n", sum.EstimatedCost)
	}
	if len(sum.ByModel) > 0 {
		b.WriteString("By model:\n")
		for _, model := range sortedKeys(sum.ByModel) {
			fmt.Fprintf(&b, "- %s: $%.6f\n", model, sum.ByModel[model])
		}
	}
	if len(sum.ByOperation) > 0 {
		b.WriteString("By operation:\n")
		for _, op := range sortedKeys(sum.ByOperation) {
			fmt.Fprintf(&b, "- %s: $%.6f\n", op, sum.ByOperation[op])
		}
	}
	if args.Reset {
		b.WriteString("Counters have been reset.")
	}

	return textResult(strings.TrimRight(b.String(), "\n")), sum, nil
}

// sortedKeys returns m's keys in ascending order for stable rendering.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
