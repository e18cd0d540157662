// Package mock provides a test double for the llm.Remote interface.
//
// Use Remote in unit tests to verify that the engine builds correct Requests
// and to feed controlled response sequences without a live backend. All
// fields are safe to set before calling any method; mutating them during a
// concurrent call is the caller's responsibility.
//
// Example:
//
//	r := &mock.Remote{
//	    CreateResponse: &llm.Response{ID: "resp_1", State: llm.StateInProgress},
//	}
//	resp, err := r.Create(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/fathom-mcp/fathom/pkg/provider/llm"
)

// CreateCall records a single invocation of Create.
type CreateCall struct {
	// Ctx is the context passed to Create.
	Ctx context.Context
	// Req is the Request passed to Create.
	Req llm.Request
}

// RetrieveCall records a single invocation of Retrieve.
type RetrieveCall struct {
	// Ctx is the context passed to Retrieve.
	Ctx context.Context
	// ID is the response identifier passed to Retrieve.
	ID string
}

// RetrieveStep is one scripted outcome for Retrieve. Exactly one of Response
// or Err should be set.
type RetrieveStep struct {
	Response *llm.Response
	Err      error
}

// Remote is a mock implementation of llm.Remote.
// Zero values for response fields cause methods to return zero values and nil
// errors. Set Err fields to inject errors.
type Remote struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// CreateResponse is returned by Create. May be nil (returns nil, nil).
	CreateResponse *llm.Response

	// CreateErr, if non-nil, is returned as the error from Create.
	CreateErr error

	// RetrieveScript is the ordered sequence of outcomes returned by
	// successive Retrieve calls. Once exhausted, the last step repeats.
	RetrieveScript []RetrieveStep

	// --- Call records (read after test) ---

	// CreateCalls records every invocation of Create in order.
	CreateCalls []CreateCall

	// RetrieveCalls records every invocation of Retrieve in order.
	RetrieveCalls []RetrieveCall
}

// Create records the call and returns CreateResponse, CreateErr.
func (r *Remote) Create(ctx context.Context, req llm.Request) (*llm.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CreateCalls = append(r.CreateCalls, CreateCall{Ctx: ctx, Req: req})
	return r.CreateResponse, r.CreateErr
}

// Retrieve records the call and returns the next scripted step. When the
// script is exhausted the final step repeats; an empty script returns an
// in_progress response so poll loops keep spinning until their deadline.
func (r *Remote) Retrieve(ctx context.Context, id string) (*llm.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RetrieveCalls = append(r.RetrieveCalls, RetrieveCall{Ctx: ctx, ID: id})

	if len(r.RetrieveScript) == 0 {
		return &llm.Response{ID: id, State: llm.StateInProgress}, nil
	}
	idx := len(r.RetrieveCalls) - 1
	if idx >= len(r.RetrieveScript) {
		idx = len(r.RetrieveScript) - 1
	}
	step := r.RetrieveScript[idx]
	return step.Response, step.Err
}

// Reset clears all recorded calls. Thread-safe.
func (r *Remote) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CreateCalls = nil
	r.RetrieveCalls = nil
}

// Ensure Remote implements llm.Remote at compile time.
var _ llm.Remote = (*Remote)(nil)
