// Package models holds model capability metadata and a small generic
// registry, grounded on the teacher's pkg/aimodels/model_info.go and
// pkg/core/shared/registry/registry.go. The orchestrator and the post-turn
// runner read Info.ContextWindow as a model's context limit for token
// budgeting. Provider adapters check tool and attachment support against
// their own provider.Capabilities, not against the flags here.
package models

// Info describes a single model's capabilities and limits.
type Info struct {
	ID                  string
	Name                string
	Provider            string
	Description         string
	SupportsVision      bool
	SupportsToolCalling bool
	SupportsPDF         bool
	SupportsAudio       bool
	SupportsVideo       bool
	SupportsImageGen    bool
	ContextWindow       int
	MaxOutputTokens     int
}

// Key satisfies Named, keyed by model id.
func (i Info) Key() string { return i.ID }

// Named is a constraint for values that can identify themselves by a
// registry key.
type Named interface {
	Key() string
}

// Registry is a generic, non-concurrency-safe store for named values. The
// spec's adapters are statically registered at process start (§9,
// "static registration: every known adapter is compiled in"), so no
// internal locking is needed; callers needing concurrent access add their
// own synchronization, same contract as the teacher's registry.
type Registry[T Named] struct {
	items map[string]T
}

// NewRegistry creates an empty Registry.
func NewRegistry[T Named]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Register adds or replaces an item, keyed by its Key().
func (r *Registry[T]) Register(item T) {
	if r.items == nil {
		r.items = make(map[string]T)
	}
	r.items[item.Key()] = item
}

// Get returns the item registered under name, or the zero value and false.
func (r *Registry[T]) Get(name string) (T, bool) {
	v, ok := r.items[name]
	return v, ok
}

// All returns every registered item, in no particular order.
func (r *Registry[T]) All() []T {
	out := make([]T, 0, len(r.items))
	for _, v := range r.items {
		out = append(out, v)
	}
	return out
}
