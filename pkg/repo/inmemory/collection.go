// Package inmemory implements the Entity Repositories (C2) over plain Go
// maps guarded by a mutex. It is the default backend for tests and local
// development, grounded on the teacher's pattern of a small mutex-guarded
// map for cheap in-process stores (pkg/connector/reaction_store.go,
// pkg/connector/agentstore.go) generalized here into one reusable generic
// collection shared by every simple owned entity.
package inmemory

import (
	"context"
	"sync"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// Collection is a generic, mutex-guarded in-memory Repository[T].
type Collection[T any] struct {
	mu        sync.RWMutex
	items     map[chatid.ID]T
	kind      string
	accessors repo.Accessors[T]
}

// NewCollection returns an empty Collection for entity kind (used in
// NotFound error messages), driven by accessors.
func NewCollection[T any](kind string, accessors repo.Accessors[T]) *Collection[T] {
	return &Collection[T]{
		items:     make(map[chatid.ID]T),
		kind:      kind,
		accessors: accessors,
	}
}

func (c *Collection[T]) FindByID(ctx context.Context, id chatid.ID) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	if !ok {
		var zero T
		return zero, &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
	}
	return v, nil
}

func (c *Collection[T]) FindByUserID(ctx context.Context, userID chatid.ID) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []T
	for _, v := range c.items {
		if c.accessors.OwnerID(v) == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *Collection[T]) FindAll(ctx context.Context) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T]) Create(ctx context.Context, entity T) (T, error) {
	if c.accessors.Validate != nil {
		if problems := c.accessors.Validate(entity); len(problems) > 0 {
			var zero T
			return zero, &chaterrors.ValidationError{Fields: problems}
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.accessors.ID(entity)
	if id == chatid.Nil {
		id = chatid.New()
		c.accessors.SetID(&entity, id)
	}
	c.items[id] = entity
	return entity, nil
}

func (c *Collection[T]) Update(ctx context.Context, id chatid.ID, patch func(*T)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[id]
	if !ok {
		var zero T
		return zero, &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
	}
	patch(&v)
	c.accessors.SetID(&v, id) // id is immutable across updates (§4.2 key contract)
	if c.accessors.Touch != nil {
		c.accessors.Touch(&v)
	}
	if c.accessors.Validate != nil {
		if problems := c.accessors.Validate(v); len(problems) > 0 {
			return v, &chaterrors.ValidationError{Fields: problems}
		}
	}
	c.items[id] = v
	return v, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id chatid.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
	}
	delete(c.items, id)
	return nil
}

// SetDefault implements repo.DefaultPartition: unset every other default
// owned by userID, then set id's, read-unset-then-set per §4.2 (this
// backend has no transactions to begin with, so the ordering is the whole
// of the contract).
func (c *Collection[T]) SetDefault(ctx context.Context, userID, id chatid.ID, isDefault func(T) bool, setDefault func(*T, bool)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
	}
	for otherID, v := range c.items {
		if c.accessors.OwnerID(v) != userID || otherID == id {
			continue
		}
		if isDefault(v) {
			setDefault(&v, false)
			c.items[otherID] = v
		}
	}
	target := c.items[id]
	setDefault(&target, true)
	c.items[id] = target
	return nil
}
