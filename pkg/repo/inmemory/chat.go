package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// ChatRepo stores domain.Chat.
type ChatRepo struct{ *Collection[domain.Chat] }

func NewChatRepo() *ChatRepo {
	return &ChatRepo{NewCollection("chat", repo.Accessors[domain.Chat]{
		ID:      func(c domain.Chat) chatid.ID { return c.ID },
		SetID:   func(c *domain.Chat, id chatid.ID) { c.ID = id },
		OwnerID: func(c domain.Chat) chatid.ID { return c.UserID },
		Touch:   func(c *domain.Chat) { c.UpdatedAt = time.Now() },
	})}
}

// ChatLog is an in-memory, mutex-guarded per-chat append log implementing
// repo.ChatLog (§4.2's "per-chat append log, not a general table").
type ChatLog struct {
	mu    sync.RWMutex
	byID  map[chatid.ID]map[chatid.ID]domain.ChatEvent // chatID -> eventID -> event
	order map[chatid.ID][]chatid.ID                    // chatID -> event ids in insertion order
}

// NewChatLog returns an empty ChatLog.
func NewChatLog() *ChatLog {
	return &ChatLog{
		byID:  make(map[chatid.ID]map[chatid.ID]domain.ChatEvent),
		order: make(map[chatid.ID][]chatid.ID),
	}
}

func (l *ChatLog) Append(ctx context.Context, event domain.ChatEvent) (domain.ChatEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.ID == chatid.Nil {
		event.ID = chatid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.OriginalCreatedAt.IsZero() {
		event.OriginalCreatedAt = event.CreatedAt
	}
	events := l.byID[event.ChatID]
	if events == nil {
		events = make(map[chatid.ID]domain.ChatEvent)
		l.byID[event.ChatID] = events
	}
	event.Seq = len(l.order[event.ChatID])
	events[event.ID] = event
	l.order[event.ChatID] = append(l.order[event.ChatID], event.ID)
	return event, nil
}

// rawEvents returns chatID's stored events sorted by Seq. Callers must hold
// l.mu.
func (l *ChatLog) rawEvents(chatID chatid.ID) []domain.ChatEvent {
	ids := l.order[chatID]
	out := make([]domain.ChatEvent, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.byID[chatID][id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (l *ChatLog) GetMessages(ctx context.Context, chatID chatid.ID) ([]domain.ChatEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return repo.Materialize(l.rawEvents(chatID)), nil
}

func (l *ChatLog) FindByClientRequestID(ctx context.Context, chatID chatid.ID, clientRequestID string) (domain.ChatEvent, bool, error) {
	if clientRequestID == "" {
		return domain.ChatEvent{}, false, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	events := repo.Materialize(l.rawEvents(chatID))
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Kind == domain.EventKindMessage && ev.Message != nil && ev.Message.ClientRequestID == clientRequestID {
			return ev, true, nil
		}
	}
	return domain.ChatEvent{}, false, nil
}

func (l *ChatLog) GetEvent(ctx context.Context, chatID, eventID chatid.ID) (domain.ChatEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.byID[chatID]; !ok {
		return domain.ChatEvent{}, &chaterrors.NotFound{Kind: "chat_event", ID: eventID.String()}
	}
	for _, ev := range repo.Materialize(l.rawEvents(chatID)) {
		if ev.ID == eventID {
			return ev, nil
		}
	}
	return domain.ChatEvent{}, &chaterrors.NotFound{Kind: "chat_event", ID: eventID.String()}
}
