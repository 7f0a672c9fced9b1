package inmemory

import (
	"context"
	"errors"
	"testing"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
)

func TestCharacterRepoCreateAssignsID(t *testing.T) {
	repo := NewCharacterRepo()
	created, err := repo.Create(context.Background(), domain.Character{UserID: chatid.New(), Name: "Aria"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == chatid.Nil {
		t.Fatalf("expected an assigned id")
	}
}

func TestCharacterRepoValidationRejectsEmptyName(t *testing.T) {
	repo := NewCharacterRepo()
	_, err := repo.Create(context.Background(), domain.Character{UserID: chatid.New()})
	var valErr *chaterrors.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCharacterRepoUpdatePreservesIDAndRefreshesUpdatedAt(t *testing.T) {
	repo := NewCharacterRepo()
	created, _ := repo.Create(context.Background(), domain.Character{UserID: chatid.New(), Name: "Aria"})
	before := created.UpdatedAt

	updated, err := repo.Update(context.Background(), created.ID, func(c *domain.Character) { c.Name = "Aria 2" })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("expected id preserved, got %s vs %s", updated.ID, created.ID)
	}
	if !updated.UpdatedAt.After(before) && updated.UpdatedAt != before {
		t.Fatalf("expected UpdatedAt to be refreshed")
	}
}

func TestCharacterRepoFindByIDNotFound(t *testing.T) {
	repo := NewCharacterRepo()
	_, err := repo.FindByID(context.Background(), chatid.New())
	var notFound *chaterrors.NotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestConnectionProfileSetDefaultUnsetsOthers(t *testing.T) {
	repo := NewConnectionProfileRepo()
	userID := chatid.New()
	a, _ := repo.Create(context.Background(), domain.ConnectionProfile{UserID: userID, Provider: "openai", ModelName: "gpt-4", IsDefault: true})
	b, _ := repo.Create(context.Background(), domain.ConnectionProfile{UserID: userID, Provider: "anthropic", ModelName: "claude", IsDefault: false})

	if err := repo.SetDefault(context.Background(), userID, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refreshedA, _ := repo.FindByID(context.Background(), a.ID)
	refreshedB, _ := repo.FindByID(context.Background(), b.ID)
	if refreshedA.IsDefault {
		t.Fatalf("expected a's default to be unset")
	}
	if !refreshedB.IsDefault {
		t.Fatalf("expected b to be the new default")
	}
}

func TestConnectionProfileSetDefaultDoesNotAffectOtherUsers(t *testing.T) {
	repo := NewConnectionProfileRepo()
	userA, userB := chatid.New(), chatid.New()
	a, _ := repo.Create(context.Background(), domain.ConnectionProfile{UserID: userA, Provider: "openai", ModelName: "gpt-4", IsDefault: true})
	b, _ := repo.Create(context.Background(), domain.ConnectionProfile{UserID: userB, Provider: "openai", ModelName: "gpt-4", IsDefault: true})

	if err := repo.SetDefault(context.Background(), userA, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refreshedB, _ := repo.FindByID(context.Background(), b.ID)
	if !refreshedB.IsDefault {
		t.Fatalf("expected other user's default to be untouched")
	}
}

func TestChatLogGetMessagesReturnsInsertionOrder(t *testing.T) {
	log := NewChatLog()
	chatID := chatid.New()
	first, _ := log.Append(context.Background(), domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleUser, Content: "hi"}})
	second, _ := log.Append(context.Background(), domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleAssistant, Content: "hello"}})

	events, err := log.GetMessages(context.Background(), chatID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].ID != first.ID || events[1].ID != second.ID {
		t.Fatalf("expected insertion order [first, second], got %#v", events)
	}
}

func TestChatLogFindByClientRequestIDFindsLatest(t *testing.T) {
	log := NewChatLog()
	chatID := chatid.New()
	_, _ = log.Append(context.Background(), domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Content: "first", ClientRequestID: "req-1"}})
	second, _ := log.Append(context.Background(), domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Content: "second", ClientRequestID: "req-1"}})

	found, ok, err := log.FindByClientRequestID(context.Background(), chatID, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected to find event by client request id")
	}
	if found.Message.ClientRequestID != "req-1" {
		t.Fatalf("expected matching client request id")
	}
	if found.ID != second.ID {
		t.Fatalf("expected the latest event with req-1, got %#v", found)
	}
}

func TestChatLogFindByClientRequestIDMissing(t *testing.T) {
	log := NewChatLog()
	_, ok, err := log.FindByClientRequestID(context.Background(), chatid.New(), "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no match")
	}
}

func TestChatLogEditEventSupersedesWithoutMutatingTheOriginal(t *testing.T) {
	log := NewChatLog()
	chatID := chatid.New()
	ev, _ := log.Append(context.Background(), domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Content: "original"}})

	if _, err := log.Append(context.Background(), domain.ChatEvent{
		ChatID: chatID, Kind: domain.EventKindEdit,
		Edit: &domain.EditEvent{TargetEventID: ev.ID, NewContent: "edited"},
	}); err != nil {
		t.Fatalf("append edit event: %v", err)
	}

	refetched, err := log.GetEvent(context.Background(), chatID, ev.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refetched.Message.Content != "edited" || !refetched.Message.Edited {
		t.Fatalf("expected the materialized view to reflect the edit, got %#v", refetched.Message)
	}
	if len(refetched.Message.PriorContents) != 1 || refetched.Message.PriorContents[0] != "original" {
		t.Fatalf("expected PriorContents to preserve the superseded text, got %v", refetched.Message.PriorContents)
	}

	// The raw, stored copy of the original event is never mutated: only a
	// new event was appended.
	raw := log.rawEvents(chatID)
	if raw[0].Message.Content != "original" {
		t.Fatalf("expected the original stored event to keep its original content, got %q", raw[0].Message.Content)
	}
	if len(raw) != 2 {
		t.Fatalf("expected the edit to be a distinct log entry, got %d raw events", len(raw))
	}
}

func TestMemoryRepoFindByCharacter(t *testing.T) {
	repo := NewMemoryRepo()
	characterID := chatid.New()
	_, _ = repo.Create(context.Background(), domain.Memory{CharacterID: characterID, Content: "likes tea"})
	_, _ = repo.Create(context.Background(), domain.Memory{CharacterID: chatid.New(), Content: "unrelated"})

	found, err := repo.FindByCharacter(context.Background(), characterID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 || found[0].Content != "likes tea" {
		t.Fatalf("expected one memory for character, got %#v", found)
	}
}
