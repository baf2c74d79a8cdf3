package task

import (
	"context"

	"github.com/hearthai/hearth/pkg/engine"
	"github.com/hearthai/hearth/pkg/herrors"
	"github.com/hearthai/hearth/pkg/modeltypes"
)

// runToolLoop drives req through the engine, invoking and continuing a
// round of locally-executable tool calls at a time. A round that includes
// any call whose tool has no local Execute func is surfaced to the caller
// as-is, with FinishReasonFunctionCall, rather than partially executed.
func (t *Task) runToolLoop(ctx context.Context, req engine.ChatCompletionRequest, cfg Config) (modeltypes.GenerateResult, error) {
	maxSteps := cfg.MaxToolSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxToolSteps
	}

	current := req
	for step := 0; step < maxSteps; step++ {
		result, err := t.Instance.Engine.RunChatCompletion(ctx, t.Instance.Handle, current, cfg.OnChunk)
		if err != nil {
			return result, err
		}
		if result.FinishReason != modeltypes.FinishReasonFunctionCall || len(result.ToolCalls) == 0 {
			return result, nil
		}

		allLocal, err := allCallsExecutable(current.Tools, result.ToolCalls)
		if err != nil {
			return result, err
		}
		if !allLocal {
			return result, nil
		}

		toolResults, err := executeTools(ctx, current.Tools, result.ToolCalls)
		if err != nil {
			return result, err
		}

		current.Messages = appendToolRound(current.Messages, result.Text, toolResults)
		current.NewMessagesOnly = true
	}

	return modeltypes.GenerateResult{FinishReason: modeltypes.FinishReasonMaxTokens}, nil
}

// allCallsExecutable reports whether every call names a tool declared on
// the request with a local Execute func. A call naming a tool that was
// never declared is a hard error; a call naming a declared but
// provider-only tool (Execute == nil) just means this round surfaces
// instead of auto-resolving.
func allCallsExecutable(tools map[string]modeltypes.Tool, calls []modeltypes.ToolCall) (bool, error) {
	for _, call := range calls {
		tool, declared := tools[call.ToolName]
		if !declared {
			return false, herrors.NewToolExecutionError(call.ToolName, call.ID, "tool not declared on the request", herrors.ErrToolNotFound)
		}
		if tool.Execute == nil {
			return false, nil
		}
	}
	return true, nil
}

func executeTools(ctx context.Context, tools map[string]modeltypes.Tool, calls []modeltypes.ToolCall) ([]modeltypes.ToolResult, error) {
	results := make([]modeltypes.ToolResult, 0, len(calls))
	for _, call := range calls {
		tool := tools[call.ToolName]
		out, err := tool.Execute(ctx, call.Arguments, modeltypes.ToolExecutionOptions{ToolCallID: call.ID})
		if err != nil {
			return nil, herrors.NewToolExecutionError(call.ToolName, call.ID, "tool execution failed", err)
		}
		results = append(results, modeltypes.ToolResult{ToolCallID: call.ID, ToolName: call.ToolName, Result: out})
	}
	return results, nil
}

// appendToolRound appends the assistant's tool-calling turn and the
// resulting tool messages, so the next engine call can continue generation
// with NewMessagesOnly set.
func appendToolRound(messages []modeltypes.Message, assistantText string, results []modeltypes.ToolResult) []modeltypes.Message {
	out := make([]modeltypes.Message, len(messages), len(messages)+1+len(results))
	copy(out, messages)

	assistant := modeltypes.Message{Role: modeltypes.RoleAssistant}
	if assistantText != "" {
		assistant.Content = []modeltypes.ContentPart{modeltypes.TextContent{Text: assistantText}}
	}
	out = append(out, assistant)

	for _, r := range results {
		errText := ""
		if r.Error != nil {
			errText = r.Error.Error()
		}
		out = append(out, modeltypes.Message{
			Role: modeltypes.RoleTool,
			Content: []modeltypes.ContentPart{modeltypes.ToolResultContent{
				ToolCallID: r.ToolCallID,
				ToolName:   r.ToolName,
				Result:     r.Result,
				Error:      errText,
			}},
		})
	}
	return out
}
