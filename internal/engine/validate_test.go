package engine

import (
	"strings"
	"testing"

	"github.com/fathom-mcp/fathom/internal/fault"
	"github.com/fathom-mcp/fathom/internal/pricing"
	"github.com/fathom-mcp/fathom/pkg/provider/llm"
)

func f64(v float64) *float64 { return &v }

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		params  llm.ParameterSet
		wantErr bool
	}{
		{name: "zero value", model: "gpt-5.1"},
		{name: "effort high", model: "gpt-5.1", params: llm.ParameterSet{Effort: llm.EffortHigh}},
		{name: "unknown effort", model: "gpt-5.1", params: llm.ParameterSet{Effort: "extreme"}, wantErr: true},
		{name: "unknown verbosity", model: "gpt-5.1", params: llm.ParameterSet{Verbosity: "max"}, wantErr: true},
		{name: "unknown summary", model: "gpt-5.1", params: llm.ParameterSet{Summary: "full"}, wantErr: true},
		{name: "negative max tokens", model: "gpt-5.1", params: llm.ParameterSet{MaxOutputTokens: -1}, wantErr: true},
		{name: "temperature with effort none", model: "gpt-5.1", params: llm.ParameterSet{Effort: llm.EffortNone, Temperature: f64(0.7)}},
		{name: "temperature with empty effort", model: "gpt-5.1", params: llm.ParameterSet{Temperature: f64(1.0)}},
		{name: "temperature with reasoning", model: "gpt-5.1", params: llm.ParameterSet{Effort: llm.EffortLow, Temperature: f64(0.7)}, wantErr: true},
		{name: "temperature out of range", model: "gpt-5.1", params: llm.ParameterSet{Temperature: f64(2.5)}, wantErr: true},
		{name: "pro with medium effort", model: pricing.ProModel, params: llm.ParameterSet{Effort: llm.EffortMedium}},
		{name: "pro with xhigh effort", model: pricing.ProModel, params: llm.ParameterSet{Effort: llm.EffortXHigh}},
		{name: "pro with low effort", model: pricing.ProModel, params: llm.ParameterSet{Effort: llm.EffortLow}, wantErr: true},
		{name: "pro with default effort", model: pricing.ProModel, wantErr: true},
		{name: "schema on structured model", model: "gpt-5.1", params: llm.ParameterSet{JSONSchema: map[string]any{"type": "object"}}},
		{name: "schema on unsupported model", model: "o3", params: llm.ParameterSet{JSONSchema: map[string]any{"type": "object"}}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateParams(tc.model, tc.params)
			if tc.wantErr && err == nil {
				t.Fatal("ValidateParams() = nil, want error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("ValidateParams() = %v, want nil", err)
			}
			if err != nil {
				if got := fault.KindOf(err); got != fault.KindValidation {
					t.Errorf("KindOf(err) = %v, want %v", got, fault.KindValidation)
				}
			}
		})
	}
}

func TestValidateDomains(t *testing.T) {
	if err := ValidateDomains(nil); err != nil {
		t.Errorf("ValidateDomains(nil) = %v, want nil", err)
	}
	if err := ValidateDomains([]string{"example.com", "docs.example.com/api"}); err != nil {
		t.Errorf("ValidateDomains(hostnames) = %v, want nil", err)
	}
	if err := ValidateDomains([]string{"https://example.com"}); err == nil {
		t.Error("ValidateDomains(URL) = nil, want error")
	}
	if err := ValidateDomains([]string{" "}); err == nil {
		t.Error("ValidateDomains(blank entry) = nil, want error")
	}

	many := make([]string, maxAllowedDomains+1)
	for i := range many {
		many[i] = "example.com"
	}
	err := ValidateDomains(many)
	if err == nil {
		t.Fatal("ValidateDomains(101 entries) = nil, want error")
	}
	if !strings.Contains(err.Error(), "100") {
		t.Errorf("error %q does not mention the limit", err)
	}
}

func TestResolveModelDefaults(t *testing.T) {
	got, err := resolveModel("")
	if err != nil || got != pricing.DefaultModel {
		t.Errorf("resolveModel(\"\") = %q, %v, want %q, nil", got, err, pricing.DefaultModel)
	}
	got, err = resolveResearchModel("")
	if err != nil || got != pricing.DefaultResearchModel {
		t.Errorf("resolveResearchModel(\"\") = %q, %v, want %q, nil", got, err, pricing.DefaultResearchModel)
	}
	// Unknown models pass through; pricing falls back conservatively.
	got, err = resolveModel("gpt-6-preview")
	if err != nil || got != "gpt-6-preview" {
		t.Errorf("resolveModel(unknown) = %q, %v, want passthrough", got, err)
	}
}
