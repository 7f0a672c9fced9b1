package sqlbacked

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// ChatLog stores every chat's events in one "chat_events" table with id as
// the primary key and an index on (chat_id, seq). GetEvent reads the chat's
// whole materialized log and picks the event out of it. Rows are never
// updated after insert;
// edits, tombstones, and swipe-selection changes are their own rows, folded
// into the materialized view by repo.Materialize on read.
type ChatLog struct {
	db *DB
}

// NewChatLog creates the chat_events table if needed and returns a
// ready ChatLog.
func NewChatLog(ctx context.Context, db *DB) (*ChatLog, error) {
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS chat_events (id TEXT PRIMARY KEY, chat_id TEXT NOT NULL, seq INTEGER NOT NULL, client_request_id TEXT, data %s NOT NULL)`,
		db.jsonColumnType(),
	)
	if _, err := db.Conn.ExecContext(ctx, ddl); err != nil {
		return nil, &chaterrors.StorageError{Kind: "chatlog.migrate", Err: err}
	}
	indexDDL := `CREATE INDEX IF NOT EXISTS idx_chat_events_chat_seq ON chat_events (chat_id, seq)`
	if _, err := db.Conn.ExecContext(ctx, indexDDL); err != nil {
		return nil, &chaterrors.StorageError{Kind: "chatlog.migrate_index", Err: err}
	}
	return &ChatLog{db: db}, nil
}

func (l *ChatLog) Append(ctx context.Context, event domain.ChatEvent) (domain.ChatEvent, error) {
	if event.ID == chatid.Nil {
		event.ID = chatid.New()
	}
	var count int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM chat_events WHERE chat_id = %s`, l.db.placeholder(1))
	if err := l.db.Conn.QueryRowContext(ctx, countQuery, event.ChatID.String()).Scan(&count); err != nil {
		return domain.ChatEvent{}, &chaterrors.StorageError{Kind: "chatlog.count", Err: err}
	}
	event.Seq = count

	var clientRequestID string
	if event.Message != nil {
		clientRequestID = event.Message.ClientRequestID
	}
	data, err := json.Marshal(event)
	if err != nil {
		return domain.ChatEvent{}, &chaterrors.StorageError{Kind: "chatlog.encode", Err: err}
	}
	insert := fmt.Sprintf(`INSERT INTO chat_events (id, chat_id, seq, client_request_id, data) VALUES (%s, %s, %s, %s, %s)`,
		l.db.placeholder(1), l.db.placeholder(2), l.db.placeholder(3), l.db.placeholder(4), l.db.placeholder(5))
	if _, err := l.db.Conn.ExecContext(ctx, insert, event.ID.String(), event.ChatID.String(), event.Seq, clientRequestID, data); err != nil {
		return domain.ChatEvent{}, &chaterrors.StorageError{Kind: "chatlog.insert", Err: err}
	}
	return event, nil
}

func (l *ChatLog) rawEvents(ctx context.Context, chatID chatid.ID) ([]domain.ChatEvent, error) {
	query := fmt.Sprintf(`SELECT data FROM chat_events WHERE chat_id = %s ORDER BY seq ASC`, l.db.placeholder(1))
	rows, err := l.db.Conn.QueryContext(ctx, query, chatID.String())
	if err != nil {
		return nil, &chaterrors.StorageError{Kind: "chatlog.query", Err: err}
	}
	defer rows.Close()

	var out []domain.ChatEvent
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, &chaterrors.StorageError{Kind: "chatlog.scan", Err: err}
		}
		var ev domain.ChatEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &chaterrors.StorageError{Kind: "chatlog.decode", Err: err}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (l *ChatLog) GetMessages(ctx context.Context, chatID chatid.ID) ([]domain.ChatEvent, error) {
	raw, err := l.rawEvents(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return repo.Materialize(raw), nil
}

func (l *ChatLog) FindByClientRequestID(ctx context.Context, chatID chatid.ID, clientRequestID string) (domain.ChatEvent, bool, error) {
	if clientRequestID == "" {
		return domain.ChatEvent{}, false, nil
	}
	events, err := l.GetMessages(ctx, chatID)
	if err != nil {
		return domain.ChatEvent{}, false, err
	}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Kind == domain.EventKindMessage && ev.Message != nil && ev.Message.ClientRequestID == clientRequestID {
			return ev, true, nil
		}
	}
	return domain.ChatEvent{}, false, nil
}

func (l *ChatLog) GetEvent(ctx context.Context, chatID, eventID chatid.ID) (domain.ChatEvent, error) {
	events, err := l.GetMessages(ctx, chatID)
	if err != nil {
		return domain.ChatEvent{}, err
	}
	for _, ev := range events {
		if ev.ID == eventID {
			return ev, nil
		}
	}
	return domain.ChatEvent{}, &chaterrors.NotFound{Kind: "chat_event", ID: eventID.String()}
}
