package repo

import (
	"context"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
)

// ChatLog is the per-chat append log C2 mandates in place of a general
// table, so that chat history stays cheaply ordered (§4.2, "to preserve
// order cheaply"). Append is the only write path: edits, tombstones, and
// swipe-selection changes are modeled as new events that reference the
// event they supersede (§3), never as in-place mutation. GetMessages,
// GetEvent, and FindByClientRequestID return the materialized view — raw
// events folded forward through repo.Materialize — not the raw log.
type ChatLog interface {
	// Append adds event to chatID's log, assigning Seq as the next
	// insertion position, and returns the stored copy.
	Append(ctx context.Context, event domain.ChatEvent) (domain.ChatEvent, error)

	// GetMessages returns chatID's materialized event view in insertion
	// order (§4.2's getMessages contract).
	GetMessages(ctx context.Context, chatID chatid.ID) ([]domain.ChatEvent, error)

	// FindByClientRequestID looks up the most recent message event in
	// chatID's materialized view carrying clientRequestID, for submitTurn's
	// idempotence check (§4.11).
	FindByClientRequestID(ctx context.Context, chatID chatid.ID, clientRequestID string) (domain.ChatEvent, bool, error)

	// GetEvent returns a single event, by id, from the materialized view.
	GetEvent(ctx context.Context, chatID, eventID chatid.ID) (domain.ChatEvent, error)
}

// ChatRepo is the Chat entity's repository, following Repository[T] plus
// the chat-specific title/participant bookkeeping the orchestrator and
// post-turn jobs need.
type ChatRepo = Repository[domain.Chat]
