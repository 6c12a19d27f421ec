package browser

import (
	"context"
)

// Session is a live browser-automation context. Implementations drive a real
// browser (see the chromium package) or stand in for one in tests.
//
// A Session must be initialized with Init before its first use. Sessions are
// safe to share across tools; overlapping calls are serialized by the
// implementation, not by callers.
type Session interface {
	// Init prepares the session for use. It must be called (and must
	// succeed) before any other operation.
	Init(ctx context.Context) error

	// Goto navigates the session's page to the given URL.
	Goto(ctx context.Context, url string) error

	// Act performs a natural-language UI action ("click the login button").
	// A negative outcome is reported through ActResult.Success, not through
	// the error; the error is reserved for engine-level faults.
	Act(ctx context.Context, args ActArgs) (*ActResult, error)

	// Extract pulls structured data off the current page according to the
	// instruction, shaped and validated by the compiled schema.
	Extract(ctx context.Context, args ExtractArgs) (map[string]any, error)

	// Observe returns the possible actions on the current page, optionally
	// narrowed by an instruction. A nil instruction means "everything".
	Observe(ctx context.Context, args ObserveArgs) ([]Action, error)

	// Close releases the session's resources. Callers that did not create
	// the session must not close it.
	Close() error
}

// Factory constructs a not-yet-initialized Session. Tools use a Factory to
// create a private session on first use when none was supplied.
type Factory func() Session

// ActArgs carries the input of an Act call.
type ActArgs struct {
	Action string `json:"action"`
}

// ActResult is the structured outcome of an Act call. Success=false is a
// normal result ("the button is disabled"), distinct from an engine fault.
type ActResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ExtractArgs carries the input of an Extract call.
type ExtractArgs struct {
	Instruction string
	Schema      *Validator
}

// ObserveArgs carries the input of an Observe call. Instruction is nil when
// the caller supplied none; an empty string is never passed through.
type ObserveArgs struct {
	Instruction *string
}

// Action describes one possible interaction observed on a page.
type Action struct {
	Selector    string   `json:"selector"`
	Description string   `json:"description"`
	Method      string   `json:"method,omitempty"`
	Arguments   []string `json:"arguments,omitempty"`
}
