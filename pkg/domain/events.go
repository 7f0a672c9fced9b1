package domain

import (
	"time"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
)

// MessageRole is the role of a message sender in the append-only log,
// distinct from the wire-level roles a provider adapter speaks (see
// pkg/provider.MessageRole) — the log only ever stores USER/ASSISTANT/SYSTEM.
type MessageRole string

const (
	RoleUser      MessageRole = "USER"
	RoleAssistant MessageRole = "ASSISTANT"
	RoleSystem    MessageRole = "SYSTEM"
)

// ToolInvocationStatus is the lifecycle state of a tool-invocation event.
type ToolInvocationStatus string

const (
	ToolStatusPending ToolInvocationStatus = "pending"
	ToolStatusSuccess ToolInvocationStatus = "success"
	ToolStatusFailure ToolInvocationStatus = "failure"
)

// ChatEventKind discriminates the chat event union (§3).
type ChatEventKind string

const (
	EventKindMessage        ChatEventKind = "message"
	EventKindToolInvocation ChatEventKind = "tool-invocation"
	EventKindContextSummary ChatEventKind = "context-summary"

	// EventKindEdit, EventKindTombstone, EventKindSwipeGroupAssigned,
	// EventKindSwipeSelected, and EventKindSwipeStaled are superseding
	// events (§3): each references a prior event by ID instead of mutating
	// it. ChatLog.GetMessages folds them forward into the materialized view
	// it returns; they are never themselves surfaced to callers.
	EventKindEdit               ChatEventKind = "edit"
	EventKindTombstone          ChatEventKind = "tombstone"
	EventKindSwipeGroupAssigned ChatEventKind = "swipe-group-assigned"
	EventKindSwipeSelected      ChatEventKind = "swipe-selected"
	EventKindSwipeStaled        ChatEventKind = "swipe-staled"
)

// Attachment references a FileEntry attached to a message.
type Attachment struct {
	FileID   chatid.ID
	MimeType string
}

// MessageEvent is a message in the append-only chat log.
type MessageEvent struct {
	Role         MessageRole
	Content      string
	Attachments  []Attachment
	SwipeGroupID *chatid.ID
	SwipeIndex   *int
	TokenCount   *int
	RawResponseRef string
	FinishReason string

	// Selected marks, within a swipe group, which index is currently shown.
	// Only meaningful when SwipeGroupID is set; metadata-only (§4.11 selectSwipe).
	Selected bool

	// Edited records that editMessage (§4.11) rewrote Content; PriorContents
	// preserves the history of superseded content, oldest first.
	Edited        bool
	PriorContents []string

	// Stale marks a swipe of a message whose sibling was later edited
	// (§4.11 editMessage: "swipes of the edited message are preserved but
	// flagged as stale").
	Stale bool

	// Deleted marks a tombstoned message: the event remains for history but
	// is excluded from context assembly (§4.11 deleteMessage).
	Deleted bool

	// ClientRequestID supports submitTurn idempotence (§4.11).
	ClientRequestID string
}

// ToolInvocationEvent records a tool call and its outcome.
type ToolInvocationEvent struct {
	ToolName  string
	Arguments map[string]any
	Status    ToolInvocationStatus
	ResultRef string
	ErrorText string
}

// ContextSummaryEvent stands in for a discarded history prefix (§4.10 step 6).
type ContextSummaryEvent struct {
	SummarizesUpToEventID chatid.ID
	Content               string
	TokenCount            int
}

// EditEvent supersedes a prior message's content without mutating it
// (§4.11 editMessage: "record an edit event referencing the prior content").
type EditEvent struct {
	TargetEventID chatid.ID
	NewContent    string
}

// TombstoneEvent supersedes a prior message, marking it deleted without
// mutating it (§4.11 deleteMessage: "record a tombstone event").
type TombstoneEvent struct {
	TargetEventID chatid.ID
}

// SwipeGroupAssignedEvent retroactively folds an ungrouped assistant message
// into a swipe group as its index-0 member, the first time it is swiped.
type SwipeGroupAssignedEvent struct {
	TargetEventID chatid.ID
	GroupID       chatid.ID
}

// SwipeSelectedEvent marks which member of a swipe group is currently
// visible, superseding any earlier selection recorded for the same group.
type SwipeSelectedEvent struct {
	GroupID         chatid.ID
	SelectedEventID chatid.ID
}

// SwipeStaledEvent flags a batch of swipe siblings as stale after one member
// of their group was edited (§4.11 editMessage).
type SwipeStaledEvent struct {
	EventIDs []chatid.ID
}

// ChatEvent is a single immutable entry in a chat's append-only log. It is a
// tagged variant over Message/ToolInvocation/ContextSummary, following the
// capability-flag-over-virtual-dispatch style the spec prescribes for
// providers (§9) applied here to the log's own discriminated union.
type ChatEvent struct {
	ID        chatid.ID
	ChatID    chatid.ID
	Kind      ChatEventKind
	Seq       int // insertion position; log order, NOT CreatedAt order
	CreatedAt time.Time

	// OriginalCreatedAt is shared by every event in a swipe group (invariant
	// #2 in §8): all swipes of one turn carry the timestamp of the first.
	OriginalCreatedAt time.Time

	Message        *MessageEvent
	ToolInvocation *ToolInvocationEvent
	ContextSummary *ContextSummaryEvent

	// Edit, Tombstone, SwipeGroupAssigned, SwipeSelected, and SwipeStaled
	// populate only when Kind is the matching superseding kind above.
	Edit               *EditEvent
	Tombstone          *TombstoneEvent
	SwipeGroupAssigned *SwipeGroupAssignedEvent
	SwipeSelected      *SwipeSelectedEvent
	SwipeStaled        *SwipeStaledEvent
}

// IsAssistantMessage reports whether e is a non-deleted assistant message.
func (e *ChatEvent) IsAssistantMessage() bool {
	return e.Kind == EventKindMessage && e.Message != nil && e.Message.Role == RoleAssistant && !e.Message.Deleted
}

// IsUserMessage reports whether e is a non-deleted user message.
func (e *ChatEvent) IsUserMessage() bool {
	return e.Kind == EventKindMessage && e.Message != nil && e.Message.Role == RoleUser && !e.Message.Deleted
}
