package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/contextassembler"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/models"
	"github.com/inkwell-ai/chatcore/pkg/provider"
	"github.com/inkwell-ai/chatcore/pkg/repo/inmemory"
	"github.com/inkwell-ai/chatcore/pkg/tokencount"
	"github.com/inkwell-ai/chatcore/pkg/toolruntime"
)

// scriptedProvider replays a fixed sequence of StreamMessage results, one
// per call, so tests can drive multi-round tool-loop behavior without a
// real wire adapter.
type scriptedProvider struct {
	rounds [][]provider.Chunk
	calls  int
}

func (p *scriptedProvider) Name() string                        { return "scripted" }
func (p *scriptedProvider) TokenProvider() tokencount.Provider   { return tokencount.ProviderOpenAI }
func (p *scriptedProvider) Capabilities() provider.Capabilities { return provider.Capabilities{Tools: true} }
func (p *scriptedProvider) ValidateCredential(context.Context, provider.Credential) error {
	return nil
}
func (p *scriptedProvider) ListModels(context.Context, provider.Credential) ([]models.Info, error) {
	return nil, nil
}
func (p *scriptedProvider) GenerateImage(context.Context, provider.Credential, provider.ImageParams) (provider.ImageResult, error) {
	return provider.ImageResult{}, nil
}
func (p *scriptedProvider) SendMessage(context.Context, provider.Credential, provider.SendParams) (provider.SendResult, error) {
	return provider.SendResult{}, nil
}

func (p *scriptedProvider) StreamMessage(ctx context.Context, cred provider.Credential, params provider.SendParams) (*provider.StreamHandle, error) {
	round := p.rounds[p.calls]
	p.calls++
	ch := make(chan provider.Chunk, len(round))
	for _, c := range round {
		ch <- c
	}
	close(ch)
	return &provider.StreamHandle{Chunks: ch, Cancel: func() {}}, nil
}

// blockingProvider streams one delta then blocks until ctx is canceled, to
// exercise the cancellation path.
type blockingProvider struct{ scriptedProvider }

func (p *blockingProvider) StreamMessage(ctx context.Context, cred provider.Credential, params provider.SendParams) (*provider.StreamHandle, error) {
	ch := make(chan provider.Chunk, 1)
	ch <- provider.Chunk{Kind: provider.ChunkDelta, Delta: "partial"}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return &provider.StreamHandle{Chunks: ch, Cancel: func() {}}, nil
}

// fakeFactory always returns the same pre-scripted adapter, regardless of
// the requested wire shape.
type fakeFactory struct{ adapter provider.Provider }

func (f fakeFactory) Build(name string) (provider.Provider, error) { return f.adapter, nil }

type noopCredentials struct{}

func (noopCredentials) Resolve(ctx context.Context, userID, credentialID chatid.ID) (provider.Credential, error) {
	return provider.Credential{}, nil
}

// testFixture bundles the repos and ids a fresh Orchestrator test needs.
type testFixture struct {
	orchestrator *Orchestrator
	chatID       chatid.ID
	userID       chatid.ID
	characterID  chatid.ID
	log          *inmemory.ChatLog
}

func newFixture(t *testing.T, adapter provider.Provider) testFixture {
	t.Helper()
	ctx := context.Background()

	chats := inmemory.NewChatRepo()
	characters := inmemory.NewCharacterRepo()
	personas := inmemory.NewPersonaRepo()
	profiles := inmemory.NewConnectionProfileRepo()
	log := inmemory.NewChatLog()

	userID := chatid.New()
	character, err := characters.Create(ctx, domain.Character{UserID: userID, Name: "Aria", SystemPrompt: "Be {{char}}."})
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	profile, err := profiles.Create(ctx, domain.ConnectionProfile{
		UserID: userID, Provider: "scripted", ModelName: "test-model", IsDefault: true,
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	chat, err := chats.Create(ctx, domain.Chat{
		UserID: userID,
		Title:  "test chat",
		Participants: []domain.Participant{
			{Kind: domain.ParticipantCharacter, RefID: &character.ID, IsActive: true, ConnectionProfileID: &profile.ID},
		},
	})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	o := &Orchestrator{
		Log:                log,
		Chats:              chats,
		Characters:         characters,
		Personas:           personas,
		ConnectionProfiles: profiles,
		Credentials:        noopCredentials{},
		Factory:            fakeFactory{adapter: adapter},
		Assembler:          &contextassembler.Assembler{Log: log, Logger: zerolog.Nop()},
		Tools:              toolruntime.NewRegistry(),
		Logger:             zerolog.Nop(),
		MaxToolLoops:       2,
	}
	return testFixture{orchestrator: o, chatID: chat.ID, userID: userID, characterID: character.ID, log: log}
}

func mustNewID(t *testing.T) chatid.ID {
	t.Helper()
	return chatid.New()
}

func drain(t *testing.T, ch <-chan PublicChunk, timeout time.Duration) []PublicChunk {
	t.Helper()
	var out []PublicChunk
	deadline := time.After(timeout)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, c)
		case <-deadline:
			t.Fatal("timed out draining chunks")
		}
	}
}
