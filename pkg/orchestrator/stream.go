package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/provider"
	"github.com/inkwell-ai/chatcore/pkg/toolruntime"
)

// mapFinishReason normalizes a provider's raw finish reason onto the
// handful of values this core persists, grounded on the teacher's
// mapFinishReason (pkg/connector/streaming.go), generalized from the
// teacher's wire-specific spellings to this core's own normalized set.
func mapFinishReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "tool_loop_exceeded":
		return "tool_loop_exceeded"
	case "stop", "end_turn", "end-turn", "":
		return "stop"
	case "length", "max_output_tokens", "max_tokens":
		return "length"
	case "content_filter", "content-filter":
		return "content-filter"
	case "tool_calls", "tool-calls", "tool_use", "tool-use", "tooluse":
		return "tool-calls"
	case "error":
		return "error"
	default:
		return "other"
	}
}

// shouldContinueToolLoop decides whether the terminal chunk of a streaming
// round warrants another resume (§4.11 step on detecting pending tool
// calls), grounded on the teacher's shouldContinueChatToolLoop.
func shouldContinueToolLoop(finishReason string, toolCallCount int) bool {
	if toolCallCount <= 0 {
		return false
	}
	return mapFinishReason(finishReason) == "tool-calls" || finishReason == ""
}

// stream drives Streaming -> [ToolPending -> ToolExecuting -> Streaming]* ->
// Finalizing for one submitTurn/swipe invocation, writing PublicChunk
// frames to out as it goes. persist appends the terminal assistant message
// event (submitTurn appends a plain message; swipe appends one carrying
// swipe-group metadata) and is always called with context.WithoutCancel,
// since §5 requires a canceled turn's partial content to still be recorded.
func (o *Orchestrator) stream(
	ctx context.Context,
	chatID chatid.ID,
	profile domain.ConnectionProfile,
	adapter provider.Provider,
	cred provider.Credential,
	messages []provider.Message,
	persist func(ctx context.Context, content, finishReason string) chatid.ID,
	out chan<- PublicChunk,
) {
	tools := o.toolDefinitions()

	content := ""
	finishReason := ""
	var failedAttachments []provider.FailedAttachment
	loop := 0

	for {
		handle, err := adapter.StreamMessage(ctx, cred, sendParams(profile, messages, tools))
		if err != nil {
			persist(context.WithoutCancel(ctx), content, "error")
			appendError(out, err)
			return
		}

		cancelWatch, stopWatch := context.WithCancel(ctx)
		go func() {
			select {
			case <-ctx.Done():
				handle.Cancel()
			case <-cancelWatch.Done():
			}
		}()

		var toolCallsThisRound []provider.ToolCall
		var streamErr error
		for chunk := range handle.Chunks {
			switch chunk.Kind {
			case provider.ChunkDelta:
				content += chunk.Delta
				out <- PublicChunk{Kind: PublicChunkDelta, Delta: chunk.Delta}
			case provider.ChunkToolCall:
				if chunk.ToolCall != nil {
					toolCallsThisRound = append(toolCallsThisRound, *chunk.ToolCall)
				}
			case provider.ChunkComplete:
				finishReason = chunk.FinishReason
				if len(chunk.Attachments.Failed) > 0 {
					failedAttachments = append(failedAttachments, chunk.Attachments.Failed...)
				}
			case provider.ChunkError:
				streamErr = chunk.Err
			}
		}
		stopWatch()

		if ctx.Err() != nil {
			eventID := persist(context.WithoutCancel(ctx), content, "cancelled")
			out <- PublicChunk{Kind: PublicChunkDone, EventID: eventID, Content: content, FinishReason: "cancelled", FailedAttachments: failedAttachments}
			return
		}
		if streamErr != nil {
			persist(context.WithoutCancel(ctx), content, "error")
			appendError(out, streamErr)
			return
		}

		if !shouldContinueToolLoop(finishReason, len(toolCallsThisRound)) {
			break
		}
		loop++
		if loop > o.maxToolLoops() {
			finishReason = "tool_loop_exceeded"
			break
		}

		assistantTurn := provider.Message{Role: provider.RoleAssistant, Text: content}
		toolResults := o.runTools(ctx, chatID, toolCallsThisRound, out)
		messages = append(append(append([]provider.Message{}, messages...), assistantTurn), toolResults...)
	}

	eventID := persist(context.WithoutCancel(ctx), content, mapFinishReason(finishReason))
	out <- PublicChunk{Kind: PublicChunkDone, EventID: eventID, Content: content, FinishReason: mapFinishReason(finishReason), FailedAttachments: failedAttachments}
}

// runTools executes each tool call in sequence (§4.11: "the core's policy
// is sequential to preserve deterministic re-injection order"), appending
// a tool-invocation event per completed call and emitting tool-started/
// tool-finished PublicChunks around each.
func (o *Orchestrator) runTools(ctx context.Context, chatID chatid.ID, calls []provider.ToolCall, out chan<- PublicChunk) []provider.Message {
	executor := toolruntime.NewExecutor(o.Tools)
	results := make([]provider.Message, 0, len(calls))
	for _, call := range calls {
		out <- PublicChunk{Kind: PublicChunkToolStarted, ToolCallID: call.ID, ToolName: call.Name}

		var args map[string]any
		_ = json.Unmarshal([]byte(call.Arguments), &args)

		res, err := executor.Execute(ctx, call.Name, args)
		status := domain.ToolStatusSuccess
		resultText := ""
		errText := ""
		switch {
		case err != nil:
			status = domain.ToolStatusFailure
			errText = err.Error()
			resultText = errText
		case res.Status == toolruntime.ResultError:
			status = domain.ToolStatusFailure
			errText = res.Text
			resultText = res.Text
		default:
			resultText = res.Text
		}

		_, _ = o.Log.Append(ctx, domain.ChatEvent{
			ChatID: chatID,
			Kind:   domain.EventKindToolInvocation,
			ToolInvocation: &domain.ToolInvocationEvent{
				ToolName:  call.Name,
				Arguments: args,
				Status:    status,
				ErrorText: errText,
			},
		})
		out <- PublicChunk{Kind: PublicChunkToolFinished, ToolCallID: call.ID, ToolName: call.Name, ToolResult: resultText}

		results = append(results, provider.Message{Role: provider.RoleTool, Text: resultText, ToolCallID: call.ID})
	}
	return results
}
