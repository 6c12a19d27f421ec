package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rahul/browsekit/pkg/browser"
	"github.com/tmc/langchaingo/tools"
)

// Diagnostics returned for malformed extract input. These are fixed strings
// on purpose: the calling agent reads them and corrects its next attempt.
const (
	extractInvalidInputMsg  = "Invalid input. Please provide a JSON string with an 'instruction' field and a 'schema' field."
	extractMissingFieldsMsg = "Input must include both an 'instruction' string and a non-empty 'schema' object mapping field names to types."
)

// ExtractTool pulls structured data off the current page. Unlike the other
// tools its input is itself structured: a JSON payload carrying the
// extraction instruction and a schema description, e.g.
//
//	{"instruction": "extract the product", "schema": {"title": "string", "price": "number"}}
type ExtractTool struct {
	provider *sessionProvider
}

var _ tools.Tool = (*ExtractTool)(nil)

func NewExtractTool(opts ...Option) *ExtractTool {
	return &ExtractTool{provider: newSessionProvider(opts)}
}

func (t *ExtractTool) Name() string {
	return "browser_extract"
}

func (t *ExtractTool) Description() string {
	return "Extract structured data from the current web page. Input must be a JSON string with an 'instruction' field describing what to extract and a 'schema' object mapping field names to types (string, number, boolean, string[])."
}

func (t *ExtractTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"instruction": map[string]any{
				"type":        "string",
				"description": "What to extract from the page",
			},
			"schema": map[string]any{
				"type":        "object",
				"description": "Field name to type descriptor (string, number, boolean, string[])",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
		},
		"required": []string{"instruction", "schema"},
	}
}

// Call validates the payload in two stages (syntactic, then semantic) before
// touching the session, so a malformed instruction can never crash the
// caller; every later failure is likewise flattened to a string.
func (t *ExtractTool) Call(ctx context.Context, input string) (string, error) {
	var payload struct {
		Instruction string         `json:"instruction"`
		Schema      browser.Schema `json:"schema"`
	}
	if err := json.Unmarshal([]byte(input), &payload); err != nil {
		return extractInvalidInputMsg, nil
	}

	if payload.Instruction == "" || len(payload.Schema) == 0 {
		return extractMissingFieldsMsg, nil
	}

	validator, err := payload.Schema.Compile()
	if err != nil {
		return fmt.Sprintf("Failed to extract data: %v", err), nil
	}

	sess, err := t.provider.session(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to extract data: %v", err), nil
	}

	result, err := sess.Extract(ctx, browser.ExtractArgs{
		Instruction: payload.Instruction,
		Schema:      validator,
	})
	if err != nil {
		return fmt.Sprintf("Failed to extract data: %v", err), nil
	}

	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("Failed to extract data: %v", err), nil
	}
	return string(out), nil
}
