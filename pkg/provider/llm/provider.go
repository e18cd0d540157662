// Package llm defines the Remote interface over the upstream model API.
//
// Fathom talks to exactly one kind of backend: a "responses"-style API that
// can either answer a request synchronously or start a background job that is
// later queried by identifier. The Remote interface models both shapes with
// two calls, Create and Retrieve, and a single tagged-union [Response] so
// that all "reach into an arbitrary provider structure" logic stays inside
// the implementing package (see the openai sub-package).
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Remote is the narrow boundary to the upstream model service.
//
// Create issues one request. For a synchronous request the returned Response
// is already terminal (StateCompleted or StateFailed). For a background
// request (Request.Background == true) the Response typically carries only an
// ID and StateInProgress; callers poll it via Retrieve.
//
// Retrieve fetches the current state of a previously created response by its
// identifier. It never blocks waiting for completion.
//
// Both methods return an error only for transport-level or API-level
// failures; a remotely failed job is reported as StateFailed, not as an
// error.
type Remote interface {
	Create(ctx context.Context, req Request) (*Response, error)
	Retrieve(ctx context.Context, id string) (*Response, error)
}
