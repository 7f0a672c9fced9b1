package docbacked

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// ChatLog stores every chat's events in one "chat_events" collection,
// each document carrying chatid and seq fields so GetMessages can serve
// an indexed, sorted query instead of scanning per-chat files the way the
// file-backed variant does.
type ChatLog struct {
	coll *mongo.Collection
}

type chatEventDoc struct {
	ID     string           `bson:"_id"`
	ChatID string           `bson:"chatid"`
	Seq    int              `bson:"seq"`
	Event  domain.ChatEvent `bson:"event"`
}

// NewChatLog returns a ChatLog backed by db.Collection("chat_events"),
// with a compound index on (chatid, seq) for ordered retrieval.
func NewChatLog(ctx context.Context, db *mongo.Database) (*ChatLog, error) {
	coll := db.Collection("chat_events")
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chatid", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		return nil, &chaterrors.StorageError{Kind: "chatlog.index", Err: err}
	}
	return &ChatLog{coll: coll}, nil
}

func (l *ChatLog) Append(ctx context.Context, event domain.ChatEvent) (domain.ChatEvent, error) {
	if event.ID == chatid.Nil {
		event.ID = chatid.New()
	}
	count, err := l.coll.CountDocuments(ctx, bson.M{"chatid": event.ChatID.String()})
	if err != nil {
		return domain.ChatEvent{}, &chaterrors.StorageError{Kind: "chatlog.count", Err: err}
	}
	event.Seq = int(count)

	doc := chatEventDoc{ID: event.ID.String(), ChatID: event.ChatID.String(), Seq: event.Seq, Event: event}
	if _, err := l.coll.InsertOne(ctx, doc); err != nil {
		return domain.ChatEvent{}, &chaterrors.StorageError{Kind: "chatlog.insert", Err: err}
	}
	return event, nil
}

// rawEvents returns chatID's stored events in seq order, before folding
// superseding events into the materialized view.
func (l *ChatLog) rawEvents(ctx context.Context, chatID chatid.ID) ([]domain.ChatEvent, error) {
	cur, err := l.coll.Find(ctx, bson.M{"chatid": chatID.String()}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, &chaterrors.StorageError{Kind: "chatlog.find", Err: err}
	}
	defer cur.Close(ctx)

	var out []domain.ChatEvent
	for cur.Next(ctx) {
		var doc chatEventDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, &chaterrors.StorageError{Kind: "chatlog.decode", Err: err}
		}
		out = append(out, doc.Event)
	}
	return out, cur.Err()
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
