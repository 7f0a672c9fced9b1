// Package docbacked implements the Entity Repositories (C2) against a
// MongoDB document store, the "document-store backend" variant §6 names
// explicitly alongside the file-backed one. Each entity kind lives in its
// own collection, keyed by its UUID stringified into the `_id` field;
// owner-scoped lookups use an indexed `userid` field.
package docbacked

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// Collection is a generic Repository[T] backed by one Mongo collection.
// T is marshaled to/from BSON directly (struct field names become the
// document's field names), the same "store the Go struct as the document"
// approach the teacher's own Mongo-adjacent stores use for entity blobs.
type Collection[T any] struct {
	coll      *mongo.Collection
	kind      string
	accessors repo.Accessors[T]
}

// NewCollection returns a Collection backed by db.Collection(name),
// creating a background index on "userid" for owner-scoped lookups.
func NewCollection[T any](ctx context.Context, db *mongo.Database, name, kind string, accessors repo.Accessors[T]) (*Collection[T], error) {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userid", Value: 1}},
	})
	if err != nil {
		return nil, &chaterrors.StorageError{Kind: kind + ".index", Err: err}
	}
	return &Collection[T]{coll: coll, kind: kind, accessors: accessors}, nil
}

type docEnvelope[T any] struct {
	ID     string `bson:"_id"`
	UserID string `bson:"userid"`
	Entity T      `bson:"entity"`
}

func (c *Collection[T]) FindByID(ctx context.Context, id chatid.ID) (T, error) {
	var zero T
	var doc docEnvelope[T]
	err := c.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return zero, &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
	}
	if err != nil {
		return zero, &chaterrors.StorageError{Kind: c.kind + ".find", Err: err}
	}
	return doc.Entity, nil
}

func (c *Collection[T]) FindByUserID(ctx context.Context, userID chatid.ID) ([]T, error) {
	cur, err := c.coll.Find(ctx, bson.M{"userid": userID.String()})
	if err != nil {
		return nil, &chaterrors.StorageError{Kind: c.kind + ".find", Err: err}
	}
	defer cur.Close(ctx)
	return decodeAll[T](ctx, cur, c.kind)
}

func (c *Collection[T]) FindAll(ctx context.Context) ([]T, error) {
	cur, err := c.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, &chaterrors.StorageError{Kind: c.kind + ".find", Err: err}
	}
	defer cur.Close(ctx)
	return decodeAll[T](ctx, cur, c.kind)
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor, kind string) ([]T, error) {
	var out []T
	for cur.Next(ctx) {
		var doc docEnvelope[T]
		if err := cur.Decode(&doc); err != nil {
			return nil, &chaterrors.StorageError{Kind: kind + ".decode", Err: err}
		}
		out = append(out, doc.Entity)
	}
	if err := cur.Err(); err != nil {
		return nil, &chaterrors.StorageError{Kind: kind + ".cursor", Err: err}
	}
	return out, nil
}

func (c *Collection[T]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	if c.accessors.Validate != nil {
		if problems := c.accessors.Validate(entity); len(problems) > 0 {
			return zero, &chaterrors.ValidationError{Fields: problems}
		}
	}
	id := c.accessors.ID(entity)
	if id == chatid.Nil {
		id = chatid.New()
		c.accessors.SetID(&entity, id)
	}
	doc := docEnvelope[T]{ID: id.String(), UserID: c.accessors.OwnerID(entity).String(), Entity: entity}
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return zero, &chaterrors.StorageError{Kind: c.kind + ".insert", Err: err}
	}
	return entity, nil
}

func (c *Collection[T]) Update(ctx context.Context, id chatid.ID, patch func(*T)) (T, error) {
	var zero T
	current, err := c.FindByID(ctx, id)
	if err != nil {
		return zero, err
	}
	patch(&current)
	c.accessors.SetID(&current, id)
	if c.accessors.Touch != nil {
		c.accessors.Touch(&current)
	}
	if c.accessors.Validate != nil {
		if problems := c.accessors.Validate(current); len(problems) > 0 {
			return current, &chaterrors.ValidationError{Fields: problems}
		}
	}
	doc := docEnvelope[T]{ID: id.String(), UserID: c.accessors.OwnerID(current).String(), Entity: current}
	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id.String()}, doc)
	if err != nil {
		return zero, &chaterrors.StorageError{Kind: c.kind + ".replace", Err: err}
	}
	if res.MatchedCount == 0 {
		return zero, &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
	}
	return current, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id chatid.ID) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return &chaterrors.StorageError{Kind: c.kind + ".delete", Err: err}
	}
	if res.DeletedCount == 0 {
		return &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
	}
	return nil
}

// SetDefault implements §4.2's read-unset-others-then-set ordering using
// two statements rather than a transaction, matching the fallback the
// spec explicitly sanctions for transactionless backends; Mongo's
// single-document atomicity still makes each individual unset/set
// operation itself atomic.
func (c *Collection[T]) SetDefault(ctx context.Context, userID, id chatid.ID, isDefault func(T) bool, setDefault func(*T, bool)) error {
	others, err := c.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, other := range others {
		otherID := c.accessors.ID(other)
		if otherID == id || !isDefault(other) {
			continue
		}
		if _, err := c.Update(ctx, otherID, func(v *T) { setDefault(v, false) }); err != nil {
			return err
		}
	}
	_, err = c.Update(ctx, id, func(v *T) { setDefault(v, true) })
	return err
}
