package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var ErrAgentSteps = errors.New("agent exceeded step limit")

// Tool is a function the model may call. Parameters is a JSON schema,
// usually a jsonschema.Definition.
type Tool struct {
	Name        string
	Description string
	Parameters  any
	Call        func(ctx context.Context, args json.RawMessage) (string, error)
}

// Agent runs a tool-calling loop until the model answers in plain text.
type Agent struct {
	Model        *Model
	SystemPrompt string
	Tools        []Tool
	MaxSteps     int
}

func (a *Agent) tools() []openai.Tool {
	out := make([]openai.Tool, 0, len(a.Tools))
	for _, t := range a.Tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func (a *Agent) find(name string) (Tool, bool) {
	for _, t := range a.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Run sends the conversation and returns the final assistant message.
func (a *Agent) Run(ctx context.Context, msgs ...openai.ChatCompletionMessage) (string, error) {
	maxSteps := a.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 10
	}

	conversation := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if a.SystemPrompt != "" {
		conversation = append(conversation, System(a.SystemPrompt))
	}
	conversation = append(conversation, msgs...)

	for step := 0; step < maxSteps; step++ {
		req := a.Model.request(conversation)
		if len(a.Tools) > 0 {
			req.Tools = a.tools()
		}
		reply, err := a.Model.complete(ctx, req)
		if err != nil {
			return "", err
		}
		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		conversation = append(conversation, reply)
		for _, call := range reply.ToolCalls {
			result := a.call(ctx, call)
			conversation = append(conversation, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}
	return "", fmt.Errorf("%w (%d)", ErrAgentSteps, maxSteps)
}

func (a *Agent) call(ctx context.Context, call openai.ToolCall) string {
	tool, ok := a.find(call.Function.Name)
	if !ok {
		return fmt.Sprintf("Error: %s is not a valid tool.", call.Function.Name)
	}
	a.Model.logger.Debug("tool call",
		zap.String("tool", tool.Name),
		zap.String("arguments", call.Function.Arguments))

	args := json.RawMessage(call.Function.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	out, err := tool.Call(ctx, args)
	if err != nil {
		return "Error: " + err.Error()
	}
	return out
}
