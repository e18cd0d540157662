// Package pricing maps (model, token counts) to a cost breakdown using a
// static per-model price table.
//
// All monetary values are USD. Per-token prices are quoted per 1,000,000
// tokens and every computed field is rounded to 1e-6 dollars so that sums of
// breakdowns do not accumulate floating-point drift.
package pricing

import (
	"math"
	"sort"
)

// precision is the rounding unit for all cost fields: one millionth of a
// dollar.
const precision = 1e6

// Model identifiers understood by Fathom.
const (
	// DefaultModel is the generation and web-search default.
	DefaultModel = "gpt-5.1"

	// ProModel requires reasoning effort medium, high, or xhigh.
	ProModel = "gpt-5-pro"

	// DefaultResearchModel is the deep-research default.
	DefaultResearchModel = "o3-deep-research"
)

// ModelInfo describes one entry of the price table.
type ModelInfo struct {
	// Name is the upstream model identifier.
	Name string `json:"name"`

	// InputPerMTok is the USD price per 1M input tokens.
	InputPerMTok float64 `json:"input_per_mtok"`

	// OutputPerMTok is the USD price per 1M output tokens.
	OutputPerMTok float64 `json:"output_per_mtok"`

	// StructuredOutput indicates the model accepts a JSON schema constraint.
	StructuredOutput bool `json:"structured_output"`

	// Research indicates the model is a deep-research model.
	Research bool `json:"research"`

	// RequiresEffortFloor indicates the model rejects reasoning effort
	// below medium (the pro variant).
	RequiresEffortFloor bool `json:"requires_effort_floor"`
}

// table is the static price list. Unknown models fall back to the most
// expensive entry so estimates never understate cost.
var table = map[string]ModelInfo{
	"gpt-5.1":                {Name: "gpt-5.1", InputPerMTok: 1.25, OutputPerMTok: 10, StructuredOutput: true},
	"gpt-5":                  {Name: "gpt-5", InputPerMTok: 1.25, OutputPerMTok: 10, StructuredOutput: true},
	"gpt-5-mini":             {Name: "gpt-5-mini", InputPerMTok: 0.25, OutputPerMTok: 2, StructuredOutput: true},
	"gpt-5-nano":             {Name: "gpt-5-nano", InputPerMTok: 0.05, OutputPerMTok: 0.40, StructuredOutput: true},
	"gpt-5-pro":              {Name: "gpt-5-pro", InputPerMTok: 15, OutputPerMTok: 120, RequiresEffortFloor: true},
	"o3":                     {Name: "o3", InputPerMTok: 2, OutputPerMTok: 8},
	"o4-mini":                {Name: "o4-mini", InputPerMTok: 1.10, OutputPerMTok: 4.40},
	"o3-deep-research":       {Name: "o3-deep-research", InputPerMTok: 10, OutputPerMTok: 40, Research: true},
	"o4-mini-deep-research":  {Name: "o4-mini-deep-research", InputPerMTok: 1.10, OutputPerMTok: 4.40, Research: true},
}

// Breakdown is the cost of one operation, each field independently rounded
// to 1e-6 dollars.
type Breakdown struct {
	// InputCost is the USD cost of the input tokens.
	InputCost float64 `json:"input_cost"`

	// OutputCost is the USD cost of the output tokens.
	OutputCost float64 `json:"output_cost"`

	// TotalCost is InputCost + OutputCost, rounded independently.
	TotalCost float64 `json:"total_cost"`

	// Estimated is true when the model's price was unknown and the
	// conservative fallback rate was used. Callers also force it true when
	// no usage was reported at all.
	Estimated bool `json:"estimated"`
}

// Cost computes the breakdown for the given model and token counts. Unknown
// models are charged at the highest rate in the table and flagged estimated.
func Cost(model string, inputTokens, outputTokens int) Breakdown {
	info, ok := table[model]
	if !ok {
		info = fallback()
	}

	in := Round(float64(inputTokens) / 1_000_000 * info.InputPerMTok)
	out := Round(float64(outputTokens) / 1_000_000 * info.OutputPerMTok)
	return Breakdown{
		InputCost:  in,
		OutputCost: out,
		TotalCost:  Round(in + out),
		Estimated:  !ok,
	}
}

// Round rounds a USD amount to 1e-6 dollars. Idempotent.
func Round(v float64) float64 {
	return math.Round(v*precision) / precision
}

// Known reports whether model has an entry in the price table.
func Known(model string) bool {
	_, ok := table[model]
	return ok
}

// SupportsStructuredOutput reports whether model accepts a JSON schema.
// Unknown models report false so validation rejects the combination.
func SupportsStructuredOutput(model string) bool {
	return table[model].StructuredOutput
}

// IsResearch reports whether model is a deep-research model.
func IsResearch(model string) bool {
	return table[model].Research
}

// RequiresEffortFloor reports whether model rejects reasoning effort below
// medium.
func RequiresEffortFloor(model string) bool {
	return table[model].RequiresEffortFloor
}

// List returns the price table sorted by model name.
func List() []ModelInfo {
	out := make([]ModelInfo, 0, len(table))
	for _, info := range table {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// fallback returns the most expensive table entry, chosen deterministically.
// Falling back high means an unknown model's estimate never understates what
// the caller may be billed.
func fallback() ModelInfo {
	var best ModelInfo
	for _, info := range table {
		if info.OutputPerMTok > best.OutputPerMTok ||
			(info.OutputPerMTok == best.OutputPerMTok && info.InputPerMTok > best.InputPerMTok) {
			best = info
		}
	}
	return best
}
