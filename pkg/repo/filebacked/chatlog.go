package filebacked

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// ChatLog persists one append-only JSON-lines file per chat, under
// <root>/chatlogs/<chatId>.jsonl, the same per-entity file-per-key layout
// pkg/filestore uses for blobs (sharded by key rather than held in one
// giant table). xid stamps each on-disk record with a sortable,
// monotonic-within-a-process id, giving the log a natural secondary sort
// key alongside Seq for any external tailing/replication tooling.
type ChatLog struct {
	mu   sync.Mutex
	root string
}

// NewChatLog returns a ChatLog rooted at root/chatlogs.
func NewChatLog(root string) *ChatLog {
	return &ChatLog{root: filepath.Join(root, "chatlogs")}
}

// onDiskEvent wraps a domain.ChatEvent with its xid stamp.
type onDiskEvent struct {
	XID   string           `json:"xid"`
	Event domain.ChatEvent `json:"event"`
}

func (l *ChatLog) path(chatID chatid.ID) string {
	return filepath.Join(l.root, chatID.String()+".jsonl")
}

func (l *ChatLog) readAll(chatID chatid.ID) ([]onDiskEvent, error) {
	f, err := os.Open(l.path(chatID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &chaterrors.StorageError{Kind: "chatlog.read", Err: err}
	}
	defer f.Close()

	var out []onDiskEvent
	dec := json.NewDecoder(f)
	for {
		var rec onDiskEvent
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, &chaterrors.StorageError{Kind: "chatlog.decode", Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (l *ChatLog) writeAll(chatID chatid.ID, records []onDiskEvent) error {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return &chaterrors.StorageError{Kind: "chatlog.mkdir", Err: err}
	}
	path := l.path(chatID)
	tmp := path + ".tmp-" + xid.New().String()
	f, err := os.Create(tmp)
	if err != nil {
		return &chaterrors.StorageError{Kind: "chatlog.write", Err: err}
	}
	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			os.Remove(tmp)
			return &chaterrors.StorageError{Kind: "chatlog.write", Err: err}
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &chaterrors.StorageError{Kind: "chatlog.sync", Err: err}
	}
	if err := f.Close(); err != nil {
		return &chaterrors.StorageError{Kind: "chatlog.close", Err: err}
	}
	return os.Rename(tmp, path)
}

// Append appends a single event by reading the whole log, adding the new
// record, and rewriting atomically. Append-only logs are usually opened
// for pure append, but the write-temp-then-rename idiom is kept for
// consistency with every other backend in this package and to guarantee
// no torn record is ever left on disk after a crash mid-write.
func (l *ChatLog) Append(ctx context.Context, event domain.ChatEvent) (domain.ChatEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readAll(event.ChatID)
	if err != nil {
		return domain.ChatEvent{}, err
	}

	if event.ID == chatid.Nil {
		event.ID = chatid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.OriginalCreatedAt.IsZero() {
		event.OriginalCreatedAt = event.CreatedAt
	}
	event.Seq = len(records)

	records = append(records, onDiskEvent{XID: xid.New().String(), Event: event})
	if err := l.writeAll(event.ChatID, records); err != nil {
		return domain.ChatEvent{}, err
	}
	return event, nil
}

func (l *ChatLog) GetMessages(ctx context.Context, chatID chatid.ID) ([]domain.ChatEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readAll(chatID)
	if err != nil {
		return nil, err
	}
	raw := make([]domain.ChatEvent, 0, len(records))
	for _, rec := range records {
		raw = append(raw, rec.Event)
	}
	return repo.Materialize(raw), nil
}

func (l *ChatLog) FindByClientRequestID(ctx context.Context, chatID chatid.ID, clientRequestID string) (domain.ChatEvent, bool, error) {
	if clientRequestID == "" {
		return domain.ChatEvent{}, false, nil
	}
	l.mu.Lock()
	records, err := l.readAll(chatID)
	l.mu.Unlock()
	if err != nil {
		return domain.ChatEvent{}, false, err
	}
	raw := make([]domain.ChatEvent, 0, len(records))
	for _, rec := range records {
		raw = append(raw, rec.Event)
	}
	events := repo.Materialize(raw)
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Kind == domain.EventKindMessage && ev.Message != nil && ev.Message.ClientRequestID == clientRequestID {
			return ev, true, nil
		}
	}
	return domain.ChatEvent{}, false, nil
}

func (l *ChatLog) GetEvent(ctx context.Context, chatID, eventID chatid.ID) (domain.ChatEvent, error) {
	l.mu.Lock()
	records, err := l.readAll(chatID)
	l.mu.Unlock()
	if err != nil {
		return domain.ChatEvent{}, err
	}
	raw := make([]domain.ChatEvent, 0, len(records))
	for _, rec := range records {
		raw = append(raw, rec.Event)
	}
	for _, ev := range repo.Materialize(raw) {
		if ev.ID == eventID {
			return ev, nil
		}
	}
	return domain.ChatEvent{}, &chaterrors.NotFound{Kind: "chat_event", ID: eventID.String()}
}
