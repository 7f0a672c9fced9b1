package vectorindex

import (
	"path/filepath"
	"sync"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
)

// Manager owns one Index per character, loading it from disk on first
// access and caching it thereafter. It is the unit that the Memory Engine
// (C7) depends on; the Tool Runtime's search_memories (C9) reaches it only
// through the engine.
type Manager struct {
	root string

	mu      sync.Mutex
	indexes map[chatid.ID]*Index
}

// NewManager creates a Manager rooted at dir; each character's index is
// persisted at dir/<characterID>.json.
func NewManager(dir string) *Manager {
	return &Manager{root: dir, indexes: make(map[chatid.ID]*Index)}
}

func (m *Manager) pathFor(characterID chatid.ID) string {
	return filepath.Join(m.root, characterID.String()+".json")
}

// For returns the Index for characterID, loading it from disk on first
// access.
func (m *Manager) For(characterID chatid.ID) (*Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.indexes[characterID]; ok {
		return idx, nil
	}
	idx, err := Load(characterID, m.pathFor(characterID))
	if err != nil {
		return nil, err
	}
	m.indexes[characterID] = idx
	return idx, nil
}
