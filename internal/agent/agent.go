package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/rahul/browsekit/internal/governance"
	"github.com/rahul/browsekit/internal/observability"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools"
)

// HistoryStore persists the conversation across tasks.
type HistoryStore interface {
	AddMessage(chatID string, role string, content string) error
	GetHistory(chatID string, limit int) ([]llms.MessageContent, error)
}

// parameterized is implemented by tools that publish a JSON schema for
// their arguments; anything else is exposed with a plain input string.
type parameterized interface {
	Parameters() map[string]any
}

// Agent runs a tool-calling loop over the browser tools: the model decides
// which tool to call, the policy engine vets each call, and the loop feeds
// results back until the model answers in plain text.
type Agent struct {
	Model    llms.Model
	Tools    []tools.Tool
	Policy   governance.PolicyEngine
	History  HistoryStore
	Prompts  *PromptManager
	Logger   *observability.Logger
	MaxSteps int
}

func New(model llms.Model, toolset []tools.Tool, policy governance.PolicyEngine, history HistoryStore, prompts *PromptManager, logger *observability.Logger) *Agent {
	return &Agent{
		Model:    model,
		Tools:    toolset,
		Policy:   policy,
		History:  history,
		Prompts:  prompts,
		Logger:   logger,
		MaxSteps: 10,
	}
}

func (a *Agent) Run(ctx context.Context, chatID string, input string) (string, error) {
	observability.SetStatus(observability.StateThinking, input)
	defer observability.SetStatus(observability.StateIdle, "")

	systemPrompt, err := a.Prompts.GetSystemPrompt()
	if err != nil {
		log.Printf("Warning: Failed to load system prompt: %v", err)
	}

	var messages []llms.MessageContent
	if systemPrompt != "" {
		messages = append(messages, llms.MessageContent{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		})
	}

	if a.History != nil {
		history, herr := a.History.GetHistory(chatID, 5)
		if herr != nil {
			log.Printf("Warning: Failed to load history: %v", herr)
		} else {
			messages = append(messages, history...)
		}
	}

	messages = append(messages, llms.MessageContent{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.TextPart(input),
		},
	})

	var llmTools []llms.Tool
	for _, t := range a.Tools {
		params := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input": map[string]any{"type": "string"},
			},
			"required": []string{"input"},
		}
		if p, ok := t.(parameterized); ok {
			params = p.Parameters()
		}
		llmTools = append(llmTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}

	var finalResponse string

	for i := 0; i < a.MaxSteps; i++ {
		resp, err := a.Model.GenerateContent(ctx, messages, llms.WithTools(llmTools))
		if err != nil {
			return "", err
		}

		choice := resp.Choices[0]

		if a.Logger != nil {
			a.Logger.LogLLM(chatID, "", fmt.Sprintf("step %d", i+1), choice.Content, choice.ToolCalls)
			if pt, ct, ok := tokenUsage(choice.GenerationInfo); ok {
				a.Logger.LogCost(chatID, "", pt, ct, "")
			}
		}

		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}

		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		// If no tool calls, this is the final answer
		if len(choice.ToolCalls) == 0 {
			finalResponse = choice.Content
			break
		}

		for _, tc := range choice.ToolCalls {
			result := a.dispatch(ctx, chatID, i+1, tc.FunctionCall.Name, tc.FunctionCall.Arguments)

			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	if finalResponse == "" {
		finalResponse = "Thinking too much... I've reached the maximum reasoning steps. Please try a simpler request."
	}

	if a.History != nil {
		if err := a.History.AddMessage(chatID, "human", input); err != nil {
			log.Printf("Warning: Failed to save history: %v", err)
		}
		if err := a.History.AddMessage(chatID, "ai", finalResponse); err != nil {
			log.Printf("Warning: Failed to save history: %v", err)
		}
	}

	return finalResponse, nil
}

// dispatch vets and executes a single tool call, flattening every failure
// into a result string the model can read.
func (a *Agent) dispatch(ctx context.Context, chatID string, step int, name, rawArgs string) string {
	tool := a.find(name)
	if tool == nil {
		return fmt.Sprintf("Error: Tool %s not found", name)
	}

	if a.Policy != nil {
		res, err := a.Policy.Evaluate(ctx, governance.Request{
			Tool:      name,
			Arguments: rawArgs,
			ChatID:    chatID,
		})
		if err != nil {
			return fmt.Sprintf("Error: policy evaluation failed: %v", err)
		}
		if a.Logger != nil {
			a.Logger.LogPolicyCheck(chatID, name, string(res.Effect), res.Reason)
		}
		if res.Effect == governance.EffectDeny {
			return fmt.Sprintf("Denied: %s", res.Reason)
		}
	}

	input := unwrapArgs(name, rawArgs)

	observability.CountToolCall()
	observability.SetStatus(observability.StateBrowsing, fmt.Sprintf("%s: %s", name, input))
	if a.Logger != nil {
		a.Logger.LogToolCall(chatID, "", name, input)
	}
	log.Printf("[Step %d] Executing tool %s with args: %s", step, name, input)

	result, err := tool.Call(ctx, input)
	if err != nil {
		result = fmt.Sprintf("Error: %v", err)
	}
	log.Printf("[Step %d] Tool %s returned: %s", step, name, result)

	if name == "browser_navigate" && strings.HasPrefix(result, "Successfully navigated") {
		observability.CountPageVisit()
	}

	if a.Logger != nil {
		a.Logger.LogToolResult(chatID, "", name, result)
	}
	observability.SetStatus(observability.StateThinking, "")
	return result
}

// tokenUsage reads the token counts some providers attach to a generation.
func tokenUsage(info map[string]any) (prompt, completion int, ok bool) {
	if info == nil {
		return 0, 0, false
	}
	p, pok := info["PromptTokens"].(int)
	c, cok := info["CompletionTokens"].(int)
	return p, c, pok || cok
}

func (a *Agent) find(name string) tools.Tool {
	for _, t := range a.Tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// unwrapArgs converts the model's JSON arguments into the string the tool
// expects. The extraction tool takes its JSON payload verbatim; the others
// take a bare string, so a single-field object is unwrapped to its value.
func unwrapArgs(name, rawArgs string) string {
	if name == "browser_extract" {
		return rawArgs
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &obj); err != nil || len(obj) != 1 {
		return rawArgs
	}
	for _, v := range obj {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return rawArgs
}
