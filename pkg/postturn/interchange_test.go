package postturn

import (
	"testing"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
)

func TestIsCheckpointMatchesTheSpecifiedTable(t *testing.T) {
	checkpoints := map[int]bool{
		0: false, 1: false, 2: true, 3: true, 4: false, 5: true,
		6: false, 7: true, 8: false, 9: false, 10: true,
		11: false, 19: false, 20: true, 25: false, 30: true, 40: true,
	}
	for n, want := range checkpoints {
		if got := isCheckpoint(n); got != want {
			t.Errorf("isCheckpoint(%d) = %v, want %v", n, got, want)
		}
	}
}

func msgEvent(role domain.MessageRole, content string) domain.ChatEvent {
	return domain.ChatEvent{
		ID:   chatid.New(),
		Kind: domain.EventKindMessage,
		Message: &domain.MessageEvent{
			Role:    role,
			Content: content,
		},
	}
}

func TestCountInterchangesCountsUserAssistantPairs(t *testing.T) {
	events := []domain.ChatEvent{
		msgEvent(domain.RoleUser, "hi"),
		msgEvent(domain.RoleAssistant, "hello"),
		msgEvent(domain.RoleUser, "how are you"),
		msgEvent(domain.RoleAssistant, "great"),
		msgEvent(domain.RoleUser, "tell me a story"),
	}
	if got := countInterchanges(events); got != 2 {
		t.Fatalf("countInterchanges() = %d, want 2", got)
	}
}

func TestCountInterchangesSkipsDeletedAndUnselectedSwipes(t *testing.T) {
	groupID := chatid.New()
	user := msgEvent(domain.RoleUser, "hi")
	tombstoned := msgEvent(domain.RoleAssistant, "oops")
	tombstoned.Message.Deleted = true
	rejected := msgEvent(domain.RoleAssistant, "bad swipe")
	rejected.Message.SwipeGroupID = &groupID
	rejected.Message.Selected = false
	accepted := msgEvent(domain.RoleAssistant, "good swipe")
	accepted.Message.SwipeGroupID = &groupID
	accepted.Message.Selected = true

	events := []domain.ChatEvent{user, tombstoned, rejected, accepted}
	if got := countInterchanges(events); got != 1 {
		t.Fatalf("countInterchanges() = %d, want 1", got)
	}
}

func TestVisibleMessagesPreservesChronologicalOrder(t *testing.T) {
	events := []domain.ChatEvent{
		msgEvent(domain.RoleUser, "first"),
		msgEvent(domain.RoleAssistant, "second"),
		msgEvent(domain.RoleUser, "third"),
	}
	visible := visibleMessages(events)
	if len(visible) != 3 {
		t.Fatalf("len(visible) = %d, want 3", len(visible))
	}
	for i, want := range []string{"first", "second", "third"} {
		if visible[i].Message.Content != want {
			t.Errorf("visible[%d].Content = %q, want %q", i, visible[i].Message.Content, want)
		}
	}
}
