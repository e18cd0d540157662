package llm

// ReasoningEffort controls how much internal deliberation the model performs
// before answering. EffortNone omits the reasoning parameter entirely, which
// is the only mode in which sampling temperature may be set.
type ReasoningEffort string

const (
	EffortNone   ReasoningEffort = "none"
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
	EffortXHigh  ReasoningEffort = "xhigh"
)

// IsValid reports whether e is a recognised reasoning effort.
func (e ReasoningEffort) IsValid() bool {
	switch e {
	case EffortNone, EffortLow, EffortMedium, EffortHigh, EffortXHigh:
		return true
	}
	return false
}

// Verbosity controls the target length and density of the model's answer.
type Verbosity string

const (
	VerbosityLow    Verbosity = "low"
	VerbosityMedium Verbosity = "medium"
	VerbosityHigh   Verbosity = "high"
)

// IsValid reports whether v is a recognised verbosity level.
func (v Verbosity) IsValid() bool {
	return v == VerbosityLow || v == VerbosityMedium || v == VerbosityHigh
}

// ReasoningSummary selects whether the model emits a summary of its internal
// reasoning alongside the answer. SummaryOff omits the parameter.
type ReasoningSummary string

const (
	SummaryOff      ReasoningSummary = "off"
	SummaryAuto     ReasoningSummary = "auto"
	SummaryDetailed ReasoningSummary = "detailed"
)

// IsValid reports whether s is a recognised reasoning-summary mode.
func (s ReasoningSummary) IsValid() bool {
	return s == SummaryOff || s == SummaryAuto || s == SummaryDetailed
}

// ParameterSet carries the optional tuning knobs of a [Request]. The zero
// value means "provider defaults for everything". Parameter-compatibility
// invariants (effort vs temperature, pro-model effort floor, structured
// output support) are enforced by the engine before a request is sent; see
// engine.ValidateParams.
type ParameterSet struct {
	// Effort is the reasoning effort. Empty is treated as EffortNone.
	Effort ReasoningEffort

	// Verbosity is the answer verbosity. Empty means the provider default.
	Verbosity Verbosity

	// Summary is the reasoning-summary mode. Empty or SummaryOff omits it.
	Summary ReasoningSummary

	// MaxOutputTokens caps generated tokens. Zero means the provider default.
	MaxOutputTokens int

	// Temperature is the sampling temperature. Nil means unset. Only legal
	// when Effort is none.
	Temperature *float64

	// JSONSchema, when non-nil, constrains the output to validate against
	// this JSON Schema (structured output). Only legal on models that
	// support structured output.
	JSONSchema map[string]any

	// SchemaName labels the schema in the upstream request. Defaults to
	// "result" when JSONSchema is set and SchemaName is empty.
	SchemaName string
}

// Request is the immutable value object handed to [Remote.Create]. Construct
// it per call and discard it afterwards.
type Request struct {
	// Input is the user content. Must be non-empty.
	Input string

	// Instructions is an optional developer/system preamble. When present it
	// is encoded as a separate leading instruction segment, distinct from and
	// ordered before the user content.
	Instructions string

	// Model is the upstream model identifier.
	Model string

	// Params holds the optional tuning knobs.
	Params ParameterSet

	// WebSearch offers the hosted web-search tool to the model.
	WebSearch bool

	// AllowedDomains restricts web search to these domains. Only meaningful
	// when WebSearch is true.
	AllowedDomains []string

	// CodeExecution offers the hosted code-execution tool to the model.
	CodeExecution bool

	// Background starts the request as a remote background job instead of
	// waiting for the answer inline.
	Background bool
}

// State is the lifecycle state of a remote response.
type State string

const (
	// StateInProgress means the job has not reached a terminal state and
	// must be re-polled. Queued and other non-terminal upstream statuses
	// map here.
	StateInProgress State = "in_progress"

	// StateCompleted means the job finished and Text carries the output.
	StateCompleted State = "completed"

	// StateFailed means the job failed remotely; FailureMessage carries the
	// remote-supplied reason when one was given.
	StateFailed State = "failed"

	// StateUnknown is the defensive mapping for statuses this client does
	// not recognise. Callers treat it like StateInProgress.
	StateUnknown State = "unknown"
)

// Usage holds token accounting reported by the remote service. The remote
// may omit usage entirely, including on completed jobs, which is why
// [Response.Usage] is a pointer.
type Usage struct {
	// InputTokens is the number of tokens consumed by the input segments.
	InputTokens int

	// OutputTokens is the number of tokens generated, including any hidden
	// reasoning tokens the provider bills for.
	OutputTokens int

	// TotalTokens is InputTokens + OutputTokens as reported upstream.
	TotalTokens int
}

// Source is one cited web source, in the order the remote reported it.
// Duplicates are preserved.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Response is the normalised tagged union returned by [Remote]. Exactly which
// fields are meaningful depends on State:
//
//   - StateInProgress / StateUnknown: only ID.
//   - StateCompleted: ID, Text, optionally Usage and Sources.
//   - StateFailed: ID, FailureMessage (may be empty if the remote gave
//     none), and optionally Usage when the remote billed partial work.
type Response struct {
	// ID is the remote response identifier. For background jobs this is the
	// job handle the caller must retain across a client-side timeout.
	ID string

	// State is the lifecycle state at the time of the call.
	State State

	// Model is the model identifier the remote reports for this response.
	// Empty when the remote omitted it.
	Model string

	// Text is the concatenated output text. Never meaningful outside
	// StateCompleted.
	Text string

	// Usage is the reported token accounting, or nil if the remote omitted it.
	Usage *Usage

	// Sources lists cited web sources in report order, or nil if none.
	Sources []Source

	// FailureMessage is the remote-supplied failure reason for StateFailed.
	FailureMessage string
}
