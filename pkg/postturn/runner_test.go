package postturn

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/contextassembler"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/memory"
	"github.com/inkwell-ai/chatcore/pkg/models"
	"github.com/inkwell-ai/chatcore/pkg/provider"
	"github.com/inkwell-ai/chatcore/pkg/repo/inmemory"
	"github.com/inkwell-ai/chatcore/pkg/tokencount"
)

// scriptedProvider returns a fixed SendResult for every SendMessage call
// and records the messages it was asked to send, so tests can assert on
// the prompt a job constructed.
type scriptedProvider struct {
	result  provider.SendResult
	lastReq []provider.Message
}

func (p *scriptedProvider) Name() string                      { return "scripted" }
func (p *scriptedProvider) TokenProvider() tokencount.Provider { return tokencount.ProviderOpenAI }
func (p *scriptedProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{}
}
func (p *scriptedProvider) ValidateCredential(context.Context, provider.Credential) error { return nil }
func (p *scriptedProvider) ListModels(context.Context, provider.Credential) ([]models.Info, error) {
	return nil, nil
}
func (p *scriptedProvider) GenerateImage(context.Context, provider.Credential, provider.ImageParams) (provider.ImageResult, error) {
	return provider.ImageResult{}, nil
}
func (p *scriptedProvider) SendMessage(ctx context.Context, cred provider.Credential, params provider.SendParams) (provider.SendResult, error) {
	p.lastReq = params.Messages
	return p.result, nil
}
func (p *scriptedProvider) StreamMessage(ctx context.Context, cred provider.Credential, params provider.SendParams) (*provider.StreamHandle, error) {
	return nil, nil
}

type fakeFactory struct{ adapter provider.Provider }

func (f fakeFactory) Build(name string) (provider.Provider, error) { return f.adapter, nil }

type noopCredentials struct{}

func (noopCredentials) Resolve(ctx context.Context, userID, credentialID chatid.ID) (provider.Credential, error) {
	return provider.Credential{}, nil
}

type runnerFixture struct {
	runner      *Runner
	adapter     *scriptedProvider
	chats       *inmemory.ChatRepo
	log         *inmemory.ChatLog
	characterID chatid.ID
	userID      chatid.ID
}

func newRunnerFixture(t *testing.T) runnerFixture {
	t.Helper()
	ctx := context.Background()

	chats := inmemory.NewChatRepo()
	characters := inmemory.NewCharacterRepo()
	personas := inmemory.NewPersonaRepo()
	profiles := inmemory.NewConnectionProfileRepo()
	memories := inmemory.NewMemoryRepo()
	log := inmemory.NewChatLog()

	userID := chatid.New()
	character, err := characters.Create(ctx, domain.Character{UserID: userID, Name: "Aria"})
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	if _, err := profiles.Create(ctx, domain.ConnectionProfile{
		UserID: userID, Provider: "scripted", ModelName: "big-model", IsDefault: true,
	}); err != nil {
		t.Fatalf("create default profile: %v", err)
	}
	if _, err := profiles.Create(ctx, domain.ConnectionProfile{
		UserID: userID, Provider: "scripted", ModelName: "cheap-model", IsCheap: true,
	}); err != nil {
		t.Fatalf("create cheap profile: %v", err)
	}
	chat, err := chats.Create(ctx, domain.Chat{
		UserID: userID,
		Title:  "original title",
		Participants: []domain.Participant{
			{Kind: domain.ParticipantCharacter, RefID: &character.ID, IsActive: true},
		},
	})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	adapter := &scriptedProvider{result: provider.SendResult{Content: "A New Title"}}

	runner := &Runner{
		Log:                log,
		Chats:              chats,
		Characters:         characters,
		Personas:           personas,
		ConnectionProfiles: profiles,
		Memories:           &memory.Engine{Repo: memories, Log: zerolog.Nop()},
		Assembler:          &contextassembler.Assembler{Log: log, Logger: zerolog.Nop()},
		Factory:            fakeFactory{adapter: adapter},
		Credentials:        noopCredentials{},
		Logger:             zerolog.Nop(),
	}

	return runnerFixture{runner: runner, adapter: adapter, chats: chats, log: log, characterID: character.ID, userID: userID}
}

func appendInterchanges(t *testing.T, f runnerFixture, chatID chatid.ID, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if _, err := f.log.Append(ctx, domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleUser, Content: "hi"}}); err != nil {
			t.Fatalf("append user: %v", err)
		}
		if _, err := f.log.Append(ctx, domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleAssistant, Content: "hello"}}); err != nil {
			t.Fatalf("append assistant: %v", err)
		}
	}
}

func TestRefreshTitleUpdatesAtACheckpoint(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()
	chats, _ := f.chats.FindAll(ctx)
	chat := chats[0]

	appendInterchanges(t, f, chat.ID, 2) // lands on checkpoint 2

	if err := f.runner.refreshTitle(ctx, chat); err != nil {
		t.Fatalf("refreshTitle: %v", err)
	}

	updated, err := f.chats.FindByID(ctx, chat.ID)
	if err != nil {
		t.Fatalf("find chat: %v", err)
	}
	if updated.Title != "A New Title" {
		t.Errorf("Title = %q, want %q", updated.Title, "A New Title")
	}
	if updated.TitleLastCheckedAtInterchange == nil || *updated.TitleLastCheckedAtInterchange != 2 {
		t.Errorf("TitleLastCheckedAtInterchange = %v, want 2", updated.TitleLastCheckedAtInterchange)
	}
}

func TestRefreshTitleSkipsOffCheckpoint(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()
	chats, _ := f.chats.FindAll(ctx)
	chat := chats[0]

	appendInterchanges(t, f, chat.ID, 1) // interchange 1 is not a checkpoint

	if err := f.runner.refreshTitle(ctx, chat); err != nil {
		t.Fatalf("refreshTitle: %v", err)
	}
	updated, err := f.chats.FindByID(ctx, chat.ID)
	if err != nil {
		t.Fatalf("find chat: %v", err)
	}
	if updated.Title != "original title" {
		t.Errorf("Title changed to %q on a non-checkpoint interchange", updated.Title)
	}
}

func TestRefreshTitleSkipsWhenAlreadyCheckedAtCheckpoint(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()
	chats, _ := f.chats.FindAll(ctx)
	chat := chats[0]
	appendInterchanges(t, f, chat.ID, 2)

	checked := 2
	chat.TitleLastCheckedAtInterchange = &checked
	if _, err := f.chats.Update(ctx, chat.ID, func(c *domain.Chat) { c.TitleLastCheckedAtInterchange = &checked }); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}
	chat, err := f.chats.FindByID(ctx, chat.ID)
	if err != nil {
		t.Fatalf("find chat: %v", err)
	}

	if err := f.runner.refreshTitle(ctx, chat); err != nil {
		t.Fatalf("refreshTitle: %v", err)
	}
	if f.adapter.lastReq != nil {
		t.Errorf("expected refreshTitle to skip the provider call entirely")
	}
}

func TestExtractMemoriesPersistsParsedCandidates(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()
	chats, _ := f.chats.FindAll(ctx)
	chat := chats[0]
	appendInterchanges(t, f, chat.ID, 1)

	f.adapter.result = provider.SendResult{Content: `[{"content": "Aria loves tea", "summary": "tea preference", "keywords": ["tea"], "importance": 0.6}]`}

	if err := f.runner.extractMemories(ctx, chat, f.userID); err != nil {
		t.Fatalf("extractMemories: %v", err)
	}

	found, err := f.runner.Memories.Search(ctx, f.characterID, f.userID, "tea", memory.SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("len(found) = %d, want 1", len(found))
	}
	if found[0].Memory.Content != "Aria loves tea" {
		t.Errorf("Content = %q, want %q", found[0].Memory.Content, "Aria loves tea")
	}
	if found[0].Memory.ChatID == nil || *found[0].Memory.ChatID != chat.ID {
		t.Errorf("ChatID not set to the source chat")
	}
}

func TestExtractMemoriesSkipsOnEmptyArray(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()
	chats, _ := f.chats.FindAll(ctx)
	chat := chats[0]
	appendInterchanges(t, f, chat.ID, 1)

	f.adapter.result = provider.SendResult{Content: "[]"}

	if err := f.runner.extractMemories(ctx, chat, f.userID); err != nil {
		t.Fatalf("extractMemories: %v", err)
	}
	found, err := f.runner.Memories.Search(ctx, f.characterID, f.userID, "anything", memory.SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("len(found) = %d, want 0", len(found))
	}
}

func TestSummarizeIfDroppingNoOpsBelowThreshold(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()
	chats, _ := f.chats.FindAll(ctx)
	chat := chats[0]
	appendInterchanges(t, f, chat.ID, 1)

	if err := f.runner.summarizeIfDropping(ctx, chat, f.userID); err != nil {
		t.Fatalf("summarizeIfDropping: %v", err)
	}
	events, err := f.log.GetMessages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	for _, ev := range events {
		if ev.Kind == domain.EventKindContextSummary {
			t.Fatalf("unexpected context-summary event with history well under budget")
		}
	}
}
