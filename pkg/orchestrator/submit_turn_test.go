package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/provider"
	"github.com/inkwell-ai/chatcore/pkg/toolruntime"
)

var noopTool = toolruntime.Tool{
	Definition: toolruntime.Definition{Name: "noop", Description: "does nothing"},
	Execute: func(ctx context.Context, args map[string]any) (*toolruntime.Result, error) {
		return &toolruntime.Result{Status: toolruntime.ResultSuccess, Text: "ok"}, nil
	},
}

func TestSubmitTurnStreamsDeltasAndPersistsFinalMessage(t *testing.T) {
	adapter := &scriptedProvider{rounds: [][]provider.Chunk{
		{
			{Kind: provider.ChunkDelta, Delta: "Hello"},
			{Kind: provider.ChunkDelta, Delta: ", world"},
			{Kind: provider.ChunkComplete, FinishReason: "stop"},
		},
	}}
	fx := newFixture(t, adapter)

	ch, err := fx.orchestrator.SubmitTurn(context.Background(), fx.chatID, fx.userID, SubmitTurnInput{Text: "hi"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	chunks := drain(t, ch, 2*time.Second)

	var content string
	var done bool
	for _, c := range chunks {
		if c.Kind == PublicChunkDelta {
			content += c.Delta
		}
		if c.Kind == PublicChunkDone {
			done = true
			if c.Content != "Hello, world" {
				t.Fatalf("done content = %q, want %q", c.Content, "Hello, world")
			}
			if c.FinishReason != "stop" {
				t.Fatalf("finish reason = %q, want stop", c.FinishReason)
			}
		}
	}
	if !done {
		t.Fatal("expected a PublicChunkDone frame")
	}
	if content != "Hello, world" {
		t.Fatalf("accumulated deltas = %q, want %q", content, "Hello, world")
	}

	events, err := fx.log.GetMessages(context.Background(), fx.chatID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events (user + assistant), got %d", len(events))
	}
	if events[0].Message.Role != domain.RoleUser {
		t.Fatalf("first event role = %v, want USER", events[0].Message.Role)
	}
	if events[1].Message.Content != "Hello, world" {
		t.Fatalf("second event content = %q", events[1].Message.Content)
	}
}

func TestSubmitTurnIsIdempotentOnRepeatedClientRequestID(t *testing.T) {
	adapter := &scriptedProvider{rounds: [][]provider.Chunk{
		{{Kind: provider.ChunkDelta, Delta: "once"}, {Kind: provider.ChunkComplete, FinishReason: "stop"}},
	}}
	fx := newFixture(t, adapter)

	first, err := fx.orchestrator.SubmitTurn(context.Background(), fx.chatID, fx.userID, SubmitTurnInput{Text: "hi", ClientRequestID: "req-1"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	drain(t, first, 2*time.Second)

	second, err := fx.orchestrator.SubmitTurn(context.Background(), fx.chatID, fx.userID, SubmitTurnInput{Text: "hi", ClientRequestID: "req-1"})
	if err != nil {
		t.Fatalf("SubmitTurn (replay): %v", err)
	}
	chunks := drain(t, second, 2*time.Second)

	if len(chunks) != 1 || chunks[0].Kind != PublicChunkDone {
		t.Fatalf("expected a single Done chunk on replay, got %v", chunks)
	}
	if adapter.calls != 1 {
		t.Fatalf("expected the provider to be called exactly once, got %d", adapter.calls)
	}

	events, err := fx.log.GetMessages(context.Background(), fx.chatID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("replay must not append new events, got %d events", len(events))
	}
}

func TestSubmitTurnResumesOnToolCallsAndAppendsToolEvent(t *testing.T) {
	toolCall := provider.ToolCall{ID: "call-1", Name: "noop", Arguments: "{}"}
	adapter := &scriptedProvider{rounds: [][]provider.Chunk{
		{
			{Kind: provider.ChunkToolCall, ToolCall: &toolCall},
			{Kind: provider.ChunkComplete, FinishReason: "tool_calls"},
		},
		{
			{Kind: provider.ChunkDelta, Delta: "done after tool"},
			{Kind: provider.ChunkComplete, FinishReason: "stop"},
		},
	}}
	fx := newFixture(t, adapter)
	fx.orchestrator.Tools.Register(&noopTool)

	ch, err := fx.orchestrator.SubmitTurn(context.Background(), fx.chatID, fx.userID, SubmitTurnInput{Text: "use the tool"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	chunks := drain(t, ch, 2*time.Second)

	var sawStarted, sawFinished bool
	for _, c := range chunks {
		if c.Kind == PublicChunkToolStarted {
			sawStarted = true
		}
		if c.Kind == PublicChunkToolFinished {
			sawFinished = true
		}
	}
	if !sawStarted || !sawFinished {
		t.Fatalf("expected tool-started and tool-finished chunks, got %v", chunks)
	}
	if adapter.calls != 2 {
		t.Fatalf("expected 2 provider rounds (initial + resume), got %d", adapter.calls)
	}

	events, err := fx.log.GetMessages(context.Background(), fx.chatID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	var sawToolEvent bool
	for _, ev := range events {
		if ev.Kind == domain.EventKindToolInvocation {
			sawToolEvent = true
		}
	}
	if !sawToolEvent {
		t.Fatalf("expected a persisted tool-invocation event, events=%v", events)
	}
}

func TestSubmitTurnExceedsToolLoopBound(t *testing.T) {
	toolCall := provider.ToolCall{ID: "call-1", Name: "noop", Arguments: "{}"}
	round := []provider.Chunk{
		{Kind: provider.ChunkToolCall, ToolCall: &toolCall},
		{Kind: provider.ChunkComplete, FinishReason: "tool_calls"},
	}
	adapter := &scriptedProvider{rounds: [][]provider.Chunk{round, round, round, round}}
	fx := newFixture(t, adapter)
	fx.orchestrator.MaxToolLoops = 2
	fx.orchestrator.Tools.Register(&noopTool)

	ch, err := fx.orchestrator.SubmitTurn(context.Background(), fx.chatID, fx.userID, SubmitTurnInput{Text: "loop forever"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	chunks := drain(t, ch, 2*time.Second)

	last := chunks[len(chunks)-1]
	if last.Kind != PublicChunkDone {
		t.Fatalf("expected a terminal Done chunk, got %v", last)
	}
	if last.FinishReason != "tool_loop_exceeded" {
		t.Fatalf("finish reason = %q, want tool_loop_exceeded", last.FinishReason)
	}
}

func TestSubmitTurnPersistsUserMessageOnContextOverflow(t *testing.T) {
	adapter := &scriptedProvider{rounds: [][]provider.Chunk{
		{{Kind: provider.ChunkDelta, Delta: "unreachable"}, {Kind: provider.ChunkComplete, FinishReason: "stop"}},
	}}
	fx := newFixture(t, adapter)

	huge := ""
	for i := 0; i < 10000; i++ {
		huge += "word "
	}
	if _, err := fx.orchestrator.Characters.Update(context.Background(), fx.characterID, func(c *domain.Character) {
		c.Description = huge
	}); err != nil {
		t.Fatalf("update character: %v", err)
	}

	ch, err := fx.orchestrator.SubmitTurn(context.Background(), fx.chatID, fx.userID, SubmitTurnInput{Text: "hi"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	chunks := drain(t, ch, 2*time.Second)

	if len(chunks) != 1 || chunks[0].Kind != PublicChunkError {
		t.Fatalf("expected a single error chunk for context overflow, got %v", chunks)
	}
	if adapter.calls != 0 {
		t.Fatalf("expected the provider to never be called, got %d calls", adapter.calls)
	}

	events, err := fx.log.GetMessages(context.Background(), fx.chatID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the user turn to be persisted, got %d events", len(events))
	}
	if events[0].Message.Role != domain.RoleUser || events[0].Message.Content != "hi" {
		t.Fatalf("expected the persisted event to be the user's turn, got %#v", events[0].Message)
	}
}

func TestSubmitTurnPersistsPartialContentOnCancellation(t *testing.T) {
	adapter := &blockingProvider{}
	fx := newFixture(t, adapter)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := fx.orchestrator.SubmitTurn(ctx, fx.chatID, fx.userID, SubmitTurnInput{Text: "hi"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}

	// Let the delta land, then cancel mid-stream.
	time.Sleep(20 * time.Millisecond)
	cancel()

	chunks := drain(t, ch, 2*time.Second)
	last := chunks[len(chunks)-1]
	if last.Kind != PublicChunkDone || last.FinishReason != "cancelled" {
		t.Fatalf("expected a cancelled Done chunk, got %v", last)
	}
	if last.Content != "partial" {
		t.Fatalf("expected partial content to survive cancellation, got %q", last.Content)
	}

	events, err := fx.log.GetMessages(context.Background(), fx.chatID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	foundPartial := false
	for _, ev := range events {
		if ev.Kind == domain.EventKindMessage && ev.Message != nil && ev.Message.Content == "partial" {
			foundPartial = true
		}
	}
	if !foundPartial {
		t.Fatal("expected the partial assistant content to be persisted despite cancellation")
	}
}
