package contextassembler

import (
	"context"
	"testing"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/memory"
	"github.com/inkwell-ai/chatcore/pkg/provider"
	"github.com/inkwell-ai/chatcore/pkg/template"
	"github.com/inkwell-ai/chatcore/pkg/tokencount"
)

type fakeChatLog struct {
	events map[chatid.ID][]domain.ChatEvent
}

func newFakeChatLog() *fakeChatLog { return &fakeChatLog{events: map[chatid.ID][]domain.ChatEvent{}} }

func (f *fakeChatLog) Append(ctx context.Context, event domain.ChatEvent) (domain.ChatEvent, error) {
	event.Seq = len(f.events[event.ChatID])
	f.events[event.ChatID] = append(f.events[event.ChatID], event)
	return event, nil
}

func (f *fakeChatLog) GetMessages(ctx context.Context, chatID chatid.ID) ([]domain.ChatEvent, error) {
	return f.events[chatID], nil
}

func (f *fakeChatLog) FindByClientRequestID(ctx context.Context, chatID chatid.ID, clientRequestID string) (domain.ChatEvent, bool, error) {
	return domain.ChatEvent{}, false, nil
}

func (f *fakeChatLog) GetEvent(ctx context.Context, chatID, eventID chatid.ID) (domain.ChatEvent, error) {
	for _, ev := range f.events[chatID] {
		if ev.ID == eventID {
			return ev, nil
		}
	}
	return domain.ChatEvent{}, nil
}

func TestAssembleOrdersFixedBlocksAndAppendsPendingTurn(t *testing.T) {
	log := newFakeChatLog()
	chat := domain.Chat{ID: chatid.New(), UserID: chatid.New()}
	_, _ = log.Append(context.Background(), domain.ChatEvent{ChatID: chat.ID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleUser, Content: "hello there"}})
	_, _ = log.Append(context.Background(), domain.ChatEvent{ChatID: chat.ID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleAssistant, Content: "hi, how can I help?"}})

	asm := &Assembler{Log: log}
	result, err := asm.Assemble(context.Background(), Input{
		Chat:         chat,
		Character:    domain.Character{Name: "Aria", SystemPrompt: "You are {{char}}.", Description: "A helpful assistant."},
		UserName:     "Dana",
		Provider:     tokencount.ProviderOpenAI,
		ContextLimit: 8000,
		Pending:      PendingTurn{Text: "what's next?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Messages) < 4 {
		t.Fatalf("expected at least system+character+history(2)+pending, got %d messages", len(result.Messages))
	}
	last := result.Messages[len(result.Messages)-1]
	if last.Role != provider.RoleUser || last.Text != "what's next?" {
		t.Fatalf("expected pending turn last, got %#v", last)
	}
	if result.Messages[0].Role != provider.RoleSystem {
		t.Fatalf("expected system prompt first, got %#v", result.Messages[0])
	}
}

func TestAssembleFailsWithContextOverflowWhenNonNegotiableBlocksTooLarge(t *testing.T) {
	log := newFakeChatLog()
	chat := domain.Chat{ID: chatid.New(), UserID: chatid.New()}
	asm := &Assembler{Log: log}

	hugeDescription := ""
	for i := 0; i < 10000; i++ {
		hugeDescription += "word "
	}

	_, err := asm.Assemble(context.Background(), Input{
		Chat:         chat,
		Character:    domain.Character{Name: "Aria", Description: hugeDescription},
		Provider:     tokencount.ProviderOpenAI,
		ContextLimit: 100,
		Pending:      PendingTurn{Text: "hi"},
	})
	if err == nil {
		t.Fatalf("expected a ContextOverflow error")
	}
}

func TestParseExampleDialoguesSplitsOnStartMarkersAndPrefixes(t *testing.T) {
	raw := "<START>\n{{user}}: hi there\n{{char}}: hello!\n<START>\n{{user}}: how are you\n{{char}}: great, thanks"
	msgs := parseExampleDialogues(raw, templateVars(Input{Character: domain.Character{Name: "Aria"}, UserName: "Dana"}))
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d: %#v", len(msgs), msgs)
	}
	if msgs[0].Role != provider.RoleUser || msgs[0].Text != "hi there" {
		t.Fatalf("unexpected first message: %#v", msgs[0])
	}
	if msgs[1].Role != provider.RoleAssistant || msgs[1].Text != "hello!" {
		t.Fatalf("unexpected second message: %#v", msgs[1])
	}
}

func TestParseExampleDialoguesEmptyInput(t *testing.T) {
	if msgs := parseExampleDialogues("", template.Vars{}); msgs != nil {
		t.Fatalf("expected nil for empty input, got %#v", msgs)
	}
}

func TestSelectVisibleMessagesDropsDeletedAndUnselectedSwipes(t *testing.T) {
	groupID := chatid.New()
	idxA, idxB := 0, 1
	events := []domain.ChatEvent{
		{Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleUser, Content: "hi"}},
		{Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleAssistant, Content: "deleted", Deleted: true}},
		{Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleAssistant, Content: "swipe A", SwipeGroupID: &groupID, SwipeIndex: &idxA, Selected: false}},
		{Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleAssistant, Content: "swipe B", SwipeGroupID: &groupID, SwipeIndex: &idxB, Selected: true}},
	}
	visible := selectVisibleMessages(events)
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible messages, got %d: %#v", len(visible), visible)
	}
	if visible[0].Message.Content != "hi" || visible[1].Message.Content != "swipe B" {
		t.Fatalf("unexpected visible messages: %#v", visible)
	}
}

func TestAdmitWithinBudgetDropsOldestMemoriesFirstDownToFloor(t *testing.T) {
	ranked := []memory.RankedMemory{
		{Memory: domain.Memory{Content: "memory one"}},
		{Memory: domain.Memory{Content: "memory two"}},
		{Memory: domain.Memory{Content: "memory three"}},
		{Memory: domain.Memory{Content: "memory four"}},
	}
	history := []provider.Message{
		{Role: provider.RoleUser, Text: "earlier message"},
		{Role: provider.RoleAssistant, Text: "earlier reply"},
	}
	admitted, dropped, _ := admitWithinBudget(ranked, history, tokencount.ProviderOpenAI, 20)
	if dropped == 0 {
		t.Fatalf("expected some memories to be dropped under a tight budget")
	}
	if len(admitted) == 0 {
		t.Fatalf("expected at least the most recent history admitted")
	}
}

func TestAdmitWithinBudgetKeepsEverythingWhenBudgetIsGenerous(t *testing.T) {
	ranked := []memory.RankedMemory{{Memory: domain.Memory{Content: "a memory"}}}
	history := []provider.Message{{Role: provider.RoleUser, Text: "hi"}, {Role: provider.RoleAssistant, Text: "hello"}}
	admitted, dropped, _ := admitWithinBudget(ranked, history, tokencount.ProviderOpenAI, 5000)
	if dropped != 0 {
		t.Fatalf("expected no memories dropped, got %d", dropped)
	}
	if len(admitted) != 3 {
		t.Fatalf("expected memory block + 2 history messages, got %d", len(admitted))
	}
}
