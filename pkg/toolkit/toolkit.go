// Package toolkit exposes browser automation to an LLM agent as four
// string-in/string-out tools: navigate, act, extract and observe.
//
// Each tool satisfies the langchaingo tools.Tool interface and never returns
// an error from Call: every failure mode is rendered into the returned
// string, so the agent framework treats all outcomes uniformly.
//
// The tools share a browser.Session when one is supplied via WithSession;
// otherwise each tool lazily creates and owns a private chromium session on
// its first invocation.
package toolkit

import (
	"context"

	"github.com/rahul/browsekit/pkg/browser"
	"github.com/rahul/browsekit/pkg/browser/chromium"
	"github.com/tmc/langchaingo/tools"
)

// defaultFactory builds the session a tool owns privately when none was
// shared: a local headless chromium with result caching enabled.
func defaultFactory() browser.Session {
	return chromium.New(chromium.WithCaching(true))
}

// Toolkit is the fixed collection of the four browser tools. Constructing it
// with WithSession makes all four operate on the same browser state.
type Toolkit struct {
	Navigate *NavigateTool
	Act      *ActTool
	Extract  *ExtractTool
	Observe  *ObserveTool
}

// New builds the toolkit. Purely compositional: the options are handed to
// each tool unchanged.
func New(opts ...Option) *Toolkit {
	return &Toolkit{
		Navigate: NewNavigateTool(opts...),
		Act:      NewActTool(opts...),
		Extract:  NewExtractTool(opts...),
		Observe:  NewObserveTool(opts...),
	}
}

// Load is the asynchronous-factory form of New, kept for symmetry with
// frameworks that expect toolkit construction to take a context. It performs
// no extra work.
func Load(ctx context.Context, opts ...Option) (*Toolkit, error) {
	_ = ctx
	return New(opts...), nil
}

// Tools returns the tools in their fixed order.
func (tk *Toolkit) Tools() []tools.Tool {
	return []tools.Tool{tk.Navigate, tk.Act, tk.Extract, tk.Observe}
}

// Close shuts down any sessions the toolkit's tools created for themselves.
// A session supplied via WithSession belongs to the caller and is never
// closed here.
func (tk *Toolkit) Close() error {
	providers := []*sessionProvider{
		tk.Navigate.provider,
		tk.Act.provider,
		tk.Extract.provider,
		tk.Observe.provider,
	}

	var firstErr error
	for _, p := range providers {
		if err := p.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
