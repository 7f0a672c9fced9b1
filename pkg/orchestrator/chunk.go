package orchestrator

import (
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/provider"
)

// PublicChunkKind discriminates the frames submitTurn/swipe stream to the
// caller (§4.11: "emits PublicChunk frames to the caller: text deltas,
// tool-started, tool-finished, done").
type PublicChunkKind string

const (
	PublicChunkDelta       PublicChunkKind = "delta"
	PublicChunkToolStarted PublicChunkKind = "tool-started"
	PublicChunkToolFinished PublicChunkKind = "tool-finished"
	PublicChunkDone        PublicChunkKind = "done"
	PublicChunkError       PublicChunkKind = "error"
)

// PublicChunk is one frame of a submitTurn/swipe stream.
type PublicChunk struct {
	Kind PublicChunkKind

	Delta string // set on PublicChunkDelta

	ToolCallID string // set on tool-started/tool-finished
	ToolName   string
	ToolResult string // set on tool-finished

	// Set on PublicChunkDone: the persisted assistant event, the final
	// content, and the finish reason the turn terminated with.
	EventID      chatid.ID
	Content      string
	FinishReason string

	// FailedAttachments lists any attachments the adapter stripped from the
	// request because its Capabilities didn't support their kind (§4.8).
	FailedAttachments []provider.FailedAttachment

	Err error // set on PublicChunkError
}
