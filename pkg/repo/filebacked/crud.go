package filebacked

import (
	"context"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
)

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
	if err := c.persist(); err != nil {
		delete(c.items, id)
		var zero T
		return zero, err
	}
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
	previous := v
	patch(&v)
	c.accessors.SetID(&v, id)
	if c.accessors.Touch != nil {
		c.accessors.Touch(&v)
	}
	if c.accessors.Validate != nil {
		if problems := c.accessors.Validate(v); len(problems) > 0 {
			return v, &chaterrors.ValidationError{Fields: problems}
		}
	}
	c.items[id] = v
	if err := c.persist(); err != nil {
		c.items[id] = previous
		return previous, err
	}
	return v, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id chatid.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous, ok := c.items[id]
	if !ok {
		return &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
	}
	delete(c.items, id)
	if err := c.persist(); err != nil {
		c.items[id] = previous
		return err
	}
	return nil
}

// SetDefault implements the read-unset-others-then-set ordering of §4.2's
// default-partition contract in memory, then writes both changes with one
// persist call (write-temp-then-rename), so a crash leaves either the old
// or the new defaults on disk.
func (c *Collection[T]) SetDefault(ctx context.Context, userID, id chatid.ID, isDefault func(T) bool, setDefault func(*T, bool)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
	}
	for otherID, v := range c.items {
		if c.accessors.OwnerID(v) != userID || otherID == id || !isDefault(v) {
			continue
		}
		setDefault(&v, false)
		c.items[otherID] = v
	}
	target := c.items[id]
	setDefault(&target, true)
	c.items[id] = target
	return c.persist()
}
