package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rahul/browsekit/pkg/browser"
	"github.com/tmc/langchaingo/tools"
)

// ObserveTool lists the possible actions on the current page.
type ObserveTool struct {
	provider *sessionProvider
}

var _ tools.Tool = (*ObserveTool)(nil)

func NewObserveTool(opts ...Option) *ObserveTool {
	return &ObserveTool{provider: newSessionProvider(opts)}
}

func (t *ObserveTool) Name() string {
	return "browser_observe"
}

func (t *ObserveTool) Description() string {
	return "Observe the current web page and list the actions that can be taken on it. Input is optional: leave it empty for a full observation, or describe what to look for (e.g. 'find the search form')."
}

func (t *ObserveTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"instruction": map[string]any{
				"type":        "string",
				"description": "Optional: what to look for on the page",
			},
		},
	}
}

// Call normalizes an empty input to an absent instruction; the engine never
// sees an empty string.
func (t *ObserveTool) Call(ctx context.Context, input string) (string, error) {
	var args browser.ObserveArgs
	if input != "" {
		args.Instruction = &input
	}

	sess, err := t.provider.session(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to observe: %v", err), nil
	}

	actions, err := sess.Observe(ctx, args)
	if err != nil {
		return fmt.Sprintf("Failed to observe: %v", err), nil
	}

	out, err := json.Marshal(actions)
	if err != nil {
		return fmt.Sprintf("Failed to observe: %v", err), nil
	}
	return string(out), nil
}
