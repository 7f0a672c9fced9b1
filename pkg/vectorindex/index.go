// Package vectorindex implements the per-character flat Vector Index (C6,
// §4.6): not an ANN index, expected cardinality is at most a few thousand
// memories per character, so a brute-force cosine scan is sufficient. Each
// index enforces a dimension invariant established by its first insert and
// persists via write-temp-then-rename, the same atomicity contract the
// teacher's repositories use for file-backed writes (§6).
package vectorindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/embedding"
)

// Entry is one vector plus minimal metadata, keyed by memory id (§3).
type Entry struct {
	ID       chatid.ID      `json:"id"`
	Vector   []float64      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// snapshot is the on-disk/persisted shape of an Index (§4.6 save/load).
type snapshot struct {
	Dimensions int     `json:"dimensions"`
	Entries    []Entry `json:"entries"`
}

// Index is a per-character vector store. Guarded by a per-character lock
// (§5): readers (Search) may overlap, writers serialize.
type Index struct {
	CharacterID chatid.ID

	mu         sync.RWMutex
	dimensions int // 0 until the first insert
	entries    map[chatid.ID]Entry
	path       string
}

// New creates an empty, unpersisted index for characterID.
func New(characterID chatid.ID, path string) *Index {
	return &Index{
		CharacterID: characterID,
		entries:     make(map[chatid.ID]Entry),
		path:        path,
	}
}

// Dimensions returns the established vector dimension, or 0 if no vector
// has been added yet.
func (idx *Index) Dimensions() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimensions
}

// Add inserts or replaces the vector for id. The first Add establishes
// Dimensions; every subsequent Add must match it exactly, or it is a hard
// error — never silent truncation (§3, §8 invariant 3).
func (idx *Index) Add(id chatid.ID, vector []float64, metadata map[string]any) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.dimensions == 0 {
		idx.dimensions = len(vector)
	} else if len(vector) != idx.dimensions {
		return fmt.Errorf("vector dimension mismatch: index is %d-dimensional, got %d", idx.dimensions, len(vector))
	}
	idx.entries[id] = Entry{ID: id, Vector: vector, Metadata: metadata}
	return nil
}

// Update replaces the vector for an existing id, same dimension contract as Add.
func (idx *Index) Update(id chatid.ID, vector []float64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	existing, ok := idx.entries[id]
	if !ok {
		return fmt.Errorf("vectorindex: no entry %s to update", id)
	}
	if len(vector) != idx.dimensions {
		return fmt.Errorf("vector dimension mismatch: index is %d-dimensional, got %d", idx.dimensions, len(vector))
	}
	existing.Vector = vector
	idx.entries[id] = existing
	return nil
}

// Remove deletes id from the index, if present.
func (idx *Index) Remove(id chatid.ID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, id)
}

// Clear empties the index but preserves the established Dimensions.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[chatid.ID]Entry)
}

// Len returns the number of entries currently held.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Scored is a search hit with its cosine similarity score.
type Scored struct {
	ID       chatid.ID
	Score    float64
	Metadata map[string]any
}

// Filter predicates a candidate's metadata for inclusion in search results.
type Filter func(metadata map[string]any) bool

// Search scores query against every entry (optionally narrowed by filter)
// and returns the top-k by descending score (§4.6).
func (idx *Index) Search(query []float64, k int, filter Filter) ([]Scored, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(query) != idx.dimensions && idx.dimensions != 0 {
		return nil, fmt.Errorf("vectorindex: query dimension %d does not match index dimension %d", len(query), idx.dimensions)
	}

	results := make([]Scored, 0, len(idx.entries))
	for _, e := range idx.entries {
		if filter != nil && !filter(e.Metadata) {
			continue
		}
		score, err := embedding.Cosine(query, e.Vector)
		if err != nil {
			continue
		}
		results = append(results, Scored{ID: e.ID, Score: score, Metadata: e.Metadata})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// All returns a snapshot copy of every entry currently held, for callers
// that need pairwise comparisons across the whole set (e.g. housekeeping's
// merge pass) rather than a top-k search against one query.
func (idx *Index) All() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	return out
}

// Save persists the index atomically via write-temp-then-rename.
func (idx *Index) Save() error {
	idx.mu.RLock()
	snap := snapshot{Dimensions: idx.dimensions, Entries: make([]Entry, 0, len(idx.entries))}
	for _, e := range idx.entries {
		snap.Entries = append(snap.Entries, e)
	}
	idx.mu.RUnlock()

	if idx.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(idx.path), 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, idx.path)
}

// Load reads a previously Save()d index from path, if it exists. Absence of
// the file is not an error: it means the index starts empty.
func Load(characterID chatid.ID, path string) (*Index, error) {
	idx := New(characterID, path)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	idx.dimensions = snap.Dimensions
	for _, e := range snap.Entries {
		idx.entries[e.ID] = e
	}
	return idx, nil
}
