package filebacked

import (
	"context"
	"testing"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
)

func TestCharacterRepoPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewCharacterRepo(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userID := chatid.New()
	created, err := repo.Create(context.Background(), domain.Character{UserID: userID, Name: "Aria"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, err := NewCharacterRepo(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found, err := reopened.FindByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("expected persisted character to be found, got error: %v", err)
	}
	if found.Name != "Aria" {
		t.Fatalf("expected name Aria, got %q", found.Name)
	}
}

func TestCharacterRepoDeletePersists(t *testing.T) {
	dir := t.TempDir()
	repo, _ := NewCharacterRepo(dir)
	created, _ := repo.Create(context.Background(), domain.Character{UserID: chatid.New(), Name: "Aria"})

	if err := repo.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, _ := NewCharacterRepo(dir)
	if _, err := reopened.FindByID(context.Background(), created.ID); err == nil {
		t.Fatalf("expected deleted character to be gone after reopen")
	}
}

func TestConnectionProfileSetDefaultPersists(t *testing.T) {
	dir := t.TempDir()
	repo, _ := NewConnectionProfileRepo(dir)
	userID := chatid.New()
	a, _ := repo.Create(context.Background(), domain.ConnectionProfile{UserID: userID, Provider: "openai", IsDefault: true})
	b, _ := repo.Create(context.Background(), domain.ConnectionProfile{UserID: userID, Provider: "anthropic", IsDefault: false})

	if err := repo.SetDefault(context.Background(), userID, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, _ := NewConnectionProfileRepo(dir)
	refreshedA, _ := reopened.FindByID(context.Background(), a.ID)
	refreshedB, _ := reopened.FindByID(context.Background(), b.ID)
	if refreshedA.IsDefault {
		t.Fatalf("expected a's default unset after reopen")
	}
	if !refreshedB.IsDefault {
		t.Fatalf("expected b to be default after reopen")
	}
}

func TestChatLogAppendAndGetMessagesPersist(t *testing.T) {
	dir := t.TempDir()
	log := NewChatLog(dir)
	chatID := chatid.New()

	first, err := log.Append(context.Background(), domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := log.Append(context.Background(), domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleAssistant, Content: "hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened := NewChatLog(dir)
	events, err := reopened.GetMessages(context.Background(), chatID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].ID != first.ID || events[1].ID != second.ID {
		t.Fatalf("expected persisted insertion order, got %#v", events)
	}
}

func TestChatLogTombstoneEventPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	log := NewChatLog(dir)
	chatID := chatid.New()
	ev, _ := log.Append(context.Background(), domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Content: "original"}})

	if _, err := log.Append(context.Background(), domain.ChatEvent{
		ChatID: chatID, Kind: domain.EventKindTombstone,
		Tombstone: &domain.TombstoneEvent{TargetEventID: ev.ID},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened := NewChatLog(dir)
	refetched, err := reopened.GetEvent(context.Background(), chatID, ev.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !refetched.Message.Deleted {
		t.Fatalf("expected tombstone to persist across reopen")
	}
}
