package toolruntime

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/memory"
)

type fakeMemoryRepo struct {
	memories []domain.Memory
}

func (f *fakeMemoryRepo) FindByCharacter(ctx context.Context, characterID chatid.ID) ([]domain.Memory, error) {
	return f.memories, nil
}
func (f *fakeMemoryRepo) Get(ctx context.Context, id chatid.ID) (domain.Memory, error) {
	for _, m := range f.memories {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Memory{}, &missingParamError{key: "id"}
}
func (f *fakeMemoryRepo) Create(ctx context.Context, mem domain.Memory) (domain.Memory, error) {
	f.memories = append(f.memories, mem)
	return mem, nil
}
func (f *fakeMemoryRepo) Update(ctx context.Context, id chatid.ID, mutate func(*domain.Memory)) (domain.Memory, error) {
	for i := range f.memories {
		if f.memories[i].ID == id {
			mutate(&f.memories[i])
			return f.memories[i], nil
		}
	}
	return domain.Memory{}, nil
}
func (f *fakeMemoryRepo) Delete(ctx context.Context, id chatid.ID) error { return nil }

func TestSearchMemoriesToolReturnsTextSummary(t *testing.T) {
	characterID := chatid.New()
	userID := chatid.New()
	repo := &fakeMemoryRepo{memories: []domain.Memory{
		{ID: chatid.New(), CharacterID: characterID, Content: "likes hiking in the mountains", Importance: 0.6},
		{ID: chatid.New(), CharacterID: characterID, Content: "unrelated fact about cooking", Importance: 0.2},
	}}
	engine := &memory.Engine{Repo: repo, Log: zerolog.Nop()}

	tool := NewSearchMemoriesTool(engine, characterID, userID)
	result, err := tool.Execute(context.Background(), map[string]any{"query": "hiking mountains"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ResultSuccess {
		t.Fatalf("expected success, got %s: %s", result.Status, result.Text)
	}
	if result.Text == "" {
		t.Fatalf("expected non-empty summary text")
	}
}

func TestSearchMemoriesToolNoResults(t *testing.T) {
	characterID := chatid.New()
	userID := chatid.New()
	repo := &fakeMemoryRepo{}
	engine := &memory.Engine{Repo: repo, Log: zerolog.Nop()}

	tool := NewSearchMemoriesTool(engine, characterID, userID)
	result, err := tool.Execute(context.Background(), map[string]any{"query": "anything"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ResultSuccess {
		t.Fatalf("expected success status even with no matches, got %s", result.Status)
	}
}

func TestSearchMemoriesToolRequiresQuery(t *testing.T) {
	engine := &memory.Engine{Repo: &fakeMemoryRepo{}, Log: zerolog.Nop()}
	tool := NewSearchMemoriesTool(engine, chatid.New(), chatid.New())

	result, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ResultError {
		t.Fatalf("expected error for missing query")
	}
}
