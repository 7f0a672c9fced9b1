package sqlbacked

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(context.Background(), SQLite, filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCharacterRepoCreateFindUpdateDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo, err := NewCharacterRepo(ctx, db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userID := chatid.New()
	created, err := repo.Create(ctx, domain.Character{UserID: userID, Name: "Aria"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == chatid.Nil {
		t.Fatalf("expected an id to be assigned")
	}

	found, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.Name != "Aria" {
		t.Fatalf("expected name Aria, got %q", found.Name)
	}

	updated, err := repo.Update(ctx, created.ID, func(c *domain.Character) { c.Name = "Aria Renamed" })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "Aria Renamed" {
		t.Fatalf("expected renamed character, got %q", updated.Name)
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var notFound *chaterrors.NotFound
	if _, err := repo.FindByID(ctx, created.ID); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestCharacterRepoValidationRejectsEmptyName(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo, _ := NewCharacterRepo(ctx, db)

	var valErr *chaterrors.ValidationError
	_, err := repo.Create(ctx, domain.Character{UserID: chatid.New()})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestConnectionProfileSetDefaultUnsetsOthers(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo, err := NewConnectionProfileRepo(ctx, db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userID := chatid.New()
	a, _ := repo.Create(ctx, domain.ConnectionProfile{UserID: userID, Provider: "openai", ModelName: "gpt-5", IsDefault: true})
	b, _ := repo.Create(ctx, domain.ConnectionProfile{UserID: userID, Provider: "anthropic", ModelName: "claude", IsDefault: false})

	if err := repo.SetDefault(ctx, userID, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refreshedA, _ := repo.FindByID(ctx, a.ID)
	refreshedB, _ := repo.FindByID(ctx, b.ID)
	if refreshedA.IsDefault {
		t.Fatalf("expected a's default unset")
	}
	if !refreshedB.IsDefault {
		t.Fatalf("expected b to be default")
	}
}

func TestFindByUserIDScopesToOwner(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo, _ := NewCharacterRepo(ctx, db)

	userA, userB := chatid.New(), chatid.New()
	_, _ = repo.Create(ctx, domain.Character{UserID: userA, Name: "A1"})
	_, _ = repo.Create(ctx, domain.Character{UserID: userA, Name: "A2"})
	_, _ = repo.Create(ctx, domain.Character{UserID: userB, Name: "B1"})

	found, err := repo.FindByUserID(ctx, userA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 characters for userA, got %d", len(found))
	}
}

func TestChatLogAppendAssignsIncreasingSeq(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	log, err := NewChatLog(ctx, db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chatID := chatid.New()

	first, err := log.Append(ctx, domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := log.Append(ctx, domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleAssistant, Content: "hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Seq != 0 || second.Seq != 1 {
		t.Fatalf("expected seq 0 then 1, got %d then %d", first.Seq, second.Seq)
	}

	events, err := log.GetMessages(ctx, chatID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].ID != first.ID || events[1].ID != second.ID {
		t.Fatalf("expected insertion order, got %#v", events)
	}
}

func TestChatLogFindByClientRequestIDReturnsLatest(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	log, _ := NewChatLog(ctx, db)
	chatID := chatid.New()

	_, _ = log.Append(ctx, domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Content: "first", ClientRequestID: "req-1"}})
	second, _ := log.Append(ctx, domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Content: "second", ClientRequestID: "req-1"}})

	found, ok, err := log.FindByClientRequestID(ctx, chatID, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || found.ID != second.ID {
		t.Fatalf("expected to find the latest event with req-1, got %#v", found)
	}
}

func TestChatLogTombstoneEventSupersedesWithoutMutatingTheOriginal(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	log, _ := NewChatLog(ctx, db)
	chatID := chatid.New()

	ev, _ := log.Append(ctx, domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Content: "original"}})

	if _, err := log.Append(ctx, domain.ChatEvent{
		ChatID: chatID, Kind: domain.EventKindTombstone,
		Tombstone: &domain.TombstoneEvent{TargetEventID: ev.ID},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refetched, err := log.GetEvent(ctx, chatID, ev.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !refetched.Message.Deleted {
		t.Fatalf("expected tombstone to persist")
	}

	raw, err := log.rawEvents(ctx, chatID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw[0].Message.Deleted {
		t.Fatalf("expected the original stored event to remain unmutated")
	}
	if len(raw) != 2 {
		t.Fatalf("expected the tombstone to be a distinct row, got %d raw events", len(raw))
	}
}
