package toolkit

import (
	"context"
	"fmt"

	"github.com/rahul/browsekit/pkg/browser"
	"github.com/tmc/langchaingo/tools"
)

// ActTool performs a single natural-language action on the current page.
type ActTool struct {
	provider *sessionProvider
}

var _ tools.Tool = (*ActTool)(nil)

func NewActTool(opts ...Option) *ActTool {
	return &ActTool{provider: newSessionProvider(opts)}
}

func (t *ActTool) Name() string {
	return "browser_act"
}

func (t *ActTool) Description() string {
	return "Perform an action on the current web page, described in natural language (e.g. 'click the login button', 'type hello into the search box'). One atomic action per call."
}

func (t *ActTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "The action to perform, in natural language",
			},
		},
		"required": []string{"action"},
	}
}

// Call maps the engine's structured outcome onto the textual channel: a
// success flag of false is a normal result, phrased differently from an
// engine fault, and neither surfaces as an error.
func (t *ActTool) Call(ctx context.Context, input string) (string, error) {
	sess, err := t.provider.session(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to perform action: %v", err), nil
	}

	result, err := sess.Act(ctx, browser.ActArgs{Action: input})
	if err != nil {
		return fmt.Sprintf("Failed to perform action: %v", err), nil
	}

	if result.Success {
		return fmt.Sprintf("Action completed successfully: %s", result.Message), nil
	}
	return fmt.Sprintf("Action was not successful: %s", result.Message), nil
}
