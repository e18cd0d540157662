package engine

import (
	"strings"

	"github.com/fathom-mcp/fathom/internal/fault"
	"github.com/fathom-mcp/fathom/internal/pricing"
	"github.com/fathom-mcp/fathom/pkg/provider/llm"
)

// maxAllowedDomains caps the web-search domain filter list.
const maxAllowedDomains = 100

// ValidateParams checks a parameter set against the capabilities of the
// chosen model. It runs before any network call, so every violation costs
// nothing and surfaces as VALIDATION_ERROR.
func ValidateParams(model string, p llm.ParameterSet) error {
	if p.Effort != "" && !p.Effort.IsValid() {
		return fault.New(fault.KindValidation, "unknown reasoning effort %q (expected none, low, medium, high, or xhigh)", p.Effort)
	}
	if p.Verbosity != "" && !p.Verbosity.IsValid() {
		return fault.New(fault.KindValidation, "unknown verbosity %q (expected low, medium, or high)", p.Verbosity)
	}
	if p.Summary != "" && !p.Summary.IsValid() {
		return fault.New(fault.KindValidation, "unknown reasoning summary %q (expected off, auto, or detailed)", p.Summary)
	}
	if p.MaxOutputTokens < 0 {
		return fault.New(fault.KindValidation, "max_output_tokens must not be negative, got %d", p.MaxOutputTokens)
	}

	effort := p.Effort
	if effort == "" {
		effort = llm.EffortNone
	}

	if p.Temperature != nil {
		if effort != llm.EffortNone {
			return fault.New(fault.KindValidation, "temperature requires reasoning effort none, got %q", effort)
		}
		if *p.Temperature < 0 || *p.Temperature > 2 {
			return fault.New(fault.KindValidation, "temperature must be in [0, 2], got %g", *p.Temperature)
		}
	}

	if pricing.RequiresEffortFloor(model) {
		switch effort {
		case llm.EffortMedium, llm.EffortHigh, llm.EffortXHigh:
		default:
			return fault.New(fault.KindValidation, "model %s requires reasoning effort medium, high, or xhigh, got %q", model, effort)
		}
	}

	if p.JSONSchema != nil && !pricing.SupportsStructuredOutput(model) {
		return fault.New(fault.KindValidation, "model %s does not support structured output", model)
	}
	return nil
}

// ValidateDomains checks a web-search domain filter list. Entries are plain
// hostnames, optionally with a path suffix, never full URLs.
func ValidateDomains(domains []string) error {
	if len(domains) > maxAllowedDomains {
		return fault.New(fault.KindValidation, "at most %d allowed domains, got %d", maxAllowedDomains, len(domains))
	}
	for _, d := range domains {
		if strings.TrimSpace(d) == "" {
			return fault.New(fault.KindValidation, "allowed domains must not contain empty entries")
		}
		if strings.Contains(d, "://") {
			return fault.New(fault.KindValidation, "allowed domain %q must be a bare hostname, not a URL", d)
		}
	}
	return nil
}

// resolveModel applies the default and rejects research models on the
// synchronous paths, where their multi-minute latency would stall the caller.
func resolveModel(model string) (string, error) {
	if model == "" {
		return pricing.DefaultModel, nil
	}
	if pricing.IsResearch(model) {
		return "", fault.New(fault.KindValidation, "model %s is a deep-research model; use the deep_research tool", model)
	}
	return model, nil
}

// resolveResearchModel applies the research default and requires a research
// model.
func resolveResearchModel(model string) (string, error) {
	if model == "" {
		return pricing.DefaultResearchModel, nil
	}
	if !pricing.IsResearch(model) {
		return "", fault.New(fault.KindValidation, "model %s is not a deep-research model", model)
	}
	return model, nil
}
