package toolkit

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/tools"
)

// NavigateTool points the browser at a URL. The input is the URL itself; no
// validation is applied beyond what the engine enforces.
type NavigateTool struct {
	provider *sessionProvider
}

var _ tools.Tool = (*NavigateTool)(nil)

func NewNavigateTool(opts ...Option) *NavigateTool {
	return &NavigateTool{provider: newSessionProvider(opts)}
}

func (t *NavigateTool) Name() string {
	return "browser_navigate"
}

func (t *NavigateTool) Description() string {
	return "Navigate the browser to a URL. Input must be a single valid URL string, including the protocol (e.g. https://example.com)."
}

func (t *NavigateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to navigate to",
			},
		},
		"required": []string{"url"},
	}
}

// Call never returns a non-nil error; every failure is rendered into the
// result string so the calling agent can treat all tools uniformly.
func (t *NavigateTool) Call(ctx context.Context, input string) (string, error) {
	sess, err := t.provider.session(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to navigate: %v", err), nil
	}

	if err := sess.Goto(ctx, input); err != nil {
		return fmt.Sprintf("Failed to navigate: %v", err), nil
	}

	return fmt.Sprintf("Successfully navigated to %s", input), nil
}
