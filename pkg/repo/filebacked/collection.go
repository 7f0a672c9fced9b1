// Package filebacked implements the Entity Repositories (C2) as one
// JSON-lines file per entity kind, rewritten whole on every mutation via
// write-temp-then-rename, the same atomicity contract pkg/filestore's
// persistIndex uses for its own index file. It is the "file-backed JSON"
// variant named explicitly in spec §6's pluggable-backend requirement.
package filebacked

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/xid"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// Collection is a generic Repository[T] backed by one JSON-lines file.
type Collection[T any] struct {
	mu        sync.RWMutex
	path      string
	kind      string
	items     map[chatid.ID]T
	accessors repo.Accessors[T]
}

// NewCollection opens (or creates) the JSON-lines file at path and loads
// its contents into memory; every subsequent mutation rewrites the whole
// file atomically, same as pkg/filestore.Store.persistIndex.
func NewCollection[T any](path, kind string, accessors repo.Accessors[T]) (*Collection[T], error) {
	c := &Collection[T]{
		path:      path,
		kind:      kind,
		items:     make(map[chatid.ID]T),
		accessors: accessors,
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection[T]) load() error {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &chaterrors.StorageError{Kind: c.kind + ".load", Err: err}
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	for {
		var v T
		if err := dec.Decode(&v); err != nil {
			if err == io.EOF {
				break
			}
			return &chaterrors.StorageError{Kind: c.kind + ".decode", Err: err}
		}
		c.items[c.accessors.ID(v)] = v
	}
	return nil
}

// persist rewrites the whole file via write-temp-then-rename. Must be
// called with c.mu held for write.
func (c *Collection[T]) persist() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &chaterrors.StorageError{Kind: c.kind + ".mkdir", Err: err}
	}
	tmp := c.path + ".tmp-" + xid.New().String()
	f, err := os.Create(tmp)
	if err != nil {
		return &chaterrors.StorageError{Kind: c.kind + ".write", Err: err}
	}
	enc := json.NewEncoder(f)
	for _, v := range c.items {
		if err := enc.Encode(v); err != nil {
			f.Close()
			os.Remove(tmp)
			return &chaterrors.StorageError{Kind: c.kind + ".write", Err: err}
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &chaterrors.StorageError{Kind: c.kind + ".sync", Err: err}
	}
	if err := f.Close(); err != nil {
		return &chaterrors.StorageError{Kind: c.kind + ".close", Err: err}
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return &chaterrors.StorageError{Kind: c.kind + ".rename", Err: err}
	}
	return nil
}
