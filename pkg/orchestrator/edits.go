package orchestrator

import (
	"context"
	"time"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/contextassembler"
	"github.com/inkwell-ai/chatcore/pkg/domain"
)

// Swipe re-runs a turn for messageID, an existing assistant message,
// producing a new event in the same swipe group (§4.11 swipe). Context
// assembly uses the same inputs the original turn used: history up to but
// excluding messageID and every one of its siblings.
func (o *Orchestrator) Swipe(ctx context.Context, chatID, userID, messageID chatid.ID) (<-chan PublicChunk, error) {
	release, ok := o.chatQueueLazy().Acquire(ctx, chatID)
	if !ok {
		return nil, ctx.Err()
	}

	chat, err := o.Chats.FindByID(ctx, chatID)
	if err != nil {
		release()
		return nil, err
	}
	target, err := o.Log.GetEvent(ctx, chatID, messageID)
	if err != nil {
		release()
		return nil, err
	}
	if target.Kind != domain.EventKindMessage || target.Message == nil || target.Message.Role != domain.RoleAssistant {
		release()
		return nil, &chaterrors.ValidationError{Fields: []string{"messageId: swipe is only valid for assistant messages"}}
	}

	groupID := target.Message.SwipeGroupID
	if groupID == nil {
		id := chatid.New()
		groupID = &id
		if _, err := o.Log.Append(ctx, domain.ChatEvent{
			ChatID:             chatID,
			Kind:               domain.EventKindSwipeGroupAssigned,
			SwipeGroupAssigned: &domain.SwipeGroupAssignedEvent{TargetEventID: messageID, GroupID: *groupID},
		}); err != nil {
			release()
			return nil, err
		}
		target.Message.SwipeGroupID = groupID
	}

	events, err := o.Log.GetMessages(ctx, chatID)
	if err != nil {
		release()
		return nil, err
	}
	nextIndex, excludeUpTo := swipeGroupState(events, *groupID)
	priorEvents := events[:excludeUpTo]
	originalCreatedAt := target.OriginalCreatedAt

	out := make(chan PublicChunk, 8)
	go func() {
		defer release()
		defer close(out)
		o.runSwipe(ctx, chat, userID, priorEvents, *groupID, nextIndex, originalCreatedAt, out)
	}()
	return out, nil
}

// swipeGroupState returns the next swipe index for groupID and the index in
// events up to (but excluding) which history should be assembled: the
// position of the earliest event belonging to the group, so every sibling
// swipe is excluded from the new turn's own context.
func swipeGroupState(events []domain.ChatEvent, groupID chatid.ID) (nextIndex int, excludeUpTo int) {
	excludeUpTo = len(events)
	maxIndex := -1
	for i, ev := range events {
		if ev.Kind != domain.EventKindMessage || ev.Message == nil || ev.Message.SwipeGroupID == nil {
			continue
		}
		if *ev.Message.SwipeGroupID != groupID {
			continue
		}
		if i < excludeUpTo {
			excludeUpTo = i
		}
		if ev.Message.SwipeIndex != nil && *ev.Message.SwipeIndex > maxIndex {
			maxIndex = *ev.Message.SwipeIndex
		}
	}
	return maxIndex + 1, excludeUpTo
}

// runSwipe re-assembles context against priorEvents (the swiped message's
// siblings excluded) and streams a new turn, persisting the result tagged
// with the shared swipe group's metadata instead of as a plain message.
func (o *Orchestrator) runSwipe(ctx context.Context, chat domain.Chat, userID chatid.ID, priorEvents []domain.ChatEvent, groupID chatid.ID, swipeIndex int, originalCreatedAt time.Time, out chan<- PublicChunk) {
	profile, err := o.resolveConnectionProfile(ctx, userID, nil)
	if err != nil {
		appendError(out, err)
		return
	}
	adapter, err := o.Factory.Build(profile.Provider)
	if err != nil {
		appendError(out, err)
		return
	}
	cred, err := o.resolveCredential(ctx, userID, profile)
	if err != nil {
		appendError(out, err)
		return
	}
	character, persona, err := o.resolveParticipants(ctx, chat)
	if err != nil {
		appendError(out, err)
		return
	}

	pendingText := ""
	history := priorEvents
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Kind == domain.EventKindMessage && last.Message != nil && last.Message.Role == domain.RoleUser {
			pendingText = last.Message.Content
			history = history[:n-1]
		}
	}

	assembled, err := o.Assembler.Assemble(ctx, contextassembler.Input{
		Chat:            chat,
		Character:       character,
		Persona:         persona,
		Provider:        adapter.TokenProvider(),
		ContextLimit:    o.contextLimit(profile),
		Pending:         contextassembler.PendingTurn{Text: pendingText},
		HistoryOverride: history,
	})
	if err != nil {
		appendError(out, err)
		return
	}

	o.stream(ctx, chat.ID, profile, adapter, cred, assembled.Messages, o.persistSwipe(chat.ID, groupID, swipeIndex, originalCreatedAt), out)
	o.runPostTurn(ctx, chat.ID, userID)
}

// persistSwipe returns a persist callback that appends a new event sharing
// groupID's swipe group: same createdAt as the first variant, the next
// swipe index, and a swipe-selected event pointing at it so it becomes the
// group's visible variant (§4.11: "creates a new event with the same
// swipeGroupId... swipeIndex = max(existing) + 1, same original createdAt").
// Both the message and the selection are appended, never a mutation of an
// earlier event (§3).
func (o *Orchestrator) persistSwipe(chatID chatid.ID, groupID chatid.ID, swipeIndex int, originalCreatedAt time.Time) func(ctx context.Context, content, finishReason string) chatid.ID {
	return func(ctx context.Context, content, finishReason string) chatid.ID {
		saved, err := o.Log.Append(ctx, domain.ChatEvent{
			ChatID:            chatID,
			Kind:              domain.EventKindMessage,
			OriginalCreatedAt: originalCreatedAt,
			Message: &domain.MessageEvent{
				Role:         domain.RoleAssistant,
				Content:      content,
				FinishReason: finishReason,
				SwipeGroupID: &groupID,
				SwipeIndex:   intPtr(swipeIndex),
				Selected:     true,
			},
		})
		if err != nil {
			o.Logger.Error().Err(err).Str("chat_id", chatID.String()).Msg("failed to persist swipe")
			return chatid.Nil
		}
		if _, err := o.Log.Append(ctx, domain.ChatEvent{
			ChatID:        chatID,
			Kind:          domain.EventKindSwipeSelected,
			SwipeSelected: &domain.SwipeSelectedEvent{GroupID: groupID, SelectedEventID: saved.ID},
		}); err != nil {
			o.Logger.Error().Err(err).Str("chat_id", chatID.String()).Msg("failed to record swipe selection")
		}
		return saved.ID
	}
}

// SelectSwipe marks messageID as the visible variant within its swipe
// group by appending a swipe-selected event; every sibling's Selected flag
// is derived by folding that event forward, not mutated (§4.11 selectSwipe).
func (o *Orchestrator) SelectSwipe(ctx context.Context, chatID, messageID chatid.ID) error {
	target, err := o.Log.GetEvent(ctx, chatID, messageID)
	if err != nil {
		return err
	}
	if target.Kind != domain.EventKindMessage || target.Message == nil || target.Message.SwipeGroupID == nil {
		return &chaterrors.ValidationError{Fields: []string{"messageId: not part of a swipe group"}}
	}

	_, err = o.Log.Append(ctx, domain.ChatEvent{
		ChatID:        chatID,
		Kind:          domain.EventKindSwipeSelected,
		SwipeSelected: &domain.SwipeSelectedEvent{GroupID: *target.Message.SwipeGroupID, SelectedEventID: messageID},
	})
	return err
}

// EditMessage records an edit event referencing messageID's prior content
// and, if messageID belongs to a swipe group, a single swipe-staled event
// naming its siblings, since they were generated against the content now
// superseded (§4.11 editMessage). Neither messageID nor its siblings are
// mutated; folding the new events forward is what makes the edit and the
// staleness visible.
func (o *Orchestrator) EditMessage(ctx context.Context, chatID, messageID chatid.ID, newContent string) error {
	target, err := o.Log.GetEvent(ctx, chatID, messageID)
	if err != nil {
		return err
	}
	if target.Kind != domain.EventKindMessage || target.Message == nil {
		return &chaterrors.ValidationError{Fields: []string{"messageId: not a message event"}}
	}

	if _, err := o.Log.Append(ctx, domain.ChatEvent{
		ChatID: chatID,
		Kind:   domain.EventKindEdit,
		Edit:   &domain.EditEvent{TargetEventID: messageID, NewContent: newContent},
	}); err != nil {
		return err
	}

	if target.Message.SwipeGroupID == nil {
		return nil
	}
	groupID := *target.Message.SwipeGroupID
	events, err := o.Log.GetMessages(ctx, chatID)
	if err != nil {
		return err
	}
	var siblings []chatid.ID
	for _, ev := range events {
		if ev.ID == messageID || ev.Kind != domain.EventKindMessage || ev.Message == nil {
			continue
		}
		if ev.Message.SwipeGroupID == nil || *ev.Message.SwipeGroupID != groupID {
			continue
		}
		siblings = append(siblings, ev.ID)
	}
	if len(siblings) == 0 {
		return nil
	}
	_, err = o.Log.Append(ctx, domain.ChatEvent{
		ChatID:      chatID,
		Kind:        domain.EventKindSwipeStaled,
		SwipeStaled: &domain.SwipeStaledEvent{EventIDs: siblings},
	})
	return err
}

// DeleteMessage records a tombstone event referencing messageID, leaving
// the original event untouched: sequence numbers and swipe-group
// bookkeeping stay intact, and folding applies Deleted on read (§4.11
// deleteMessage).
func (o *Orchestrator) DeleteMessage(ctx context.Context, chatID, messageID chatid.ID) error {
	_, err := o.Log.Append(ctx, domain.ChatEvent{
		ChatID:    chatID,
		Kind:      domain.EventKindTombstone,
		Tombstone: &domain.TombstoneEvent{TargetEventID: messageID},
	})
	return err
}

func intPtr(n int) *int { return &n }
