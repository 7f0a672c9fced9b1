// Package repo defines the storage contract of the Entity Repositories
// (C2, §4.2): a uniform CRUD shape shared by every owned entity
// (findById, findByUserId, findAll, create, update, delete), plus the
// per-chat append log the orchestrator reads and writes. Three backends
// implement it: pkg/repo/inmemory (tests and the default dev runtime),
// pkg/repo/filebacked (JSON files, grounded on pkg/filestore's
// write-temp-then-rename durability idiom), and the pluggable
// document/SQL backends named in §6 (pkg/repo/docbacked,
// pkg/repo/sqlbacked).
package repo

import (
	"context"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
)

// Accessors lets a generic backend operate on an entity type T without T
// needing repo-aware methods of its own; each entity's concrete repo
// constructor supplies these once, mirroring how pkg/models.Registry[T]
// only requires a Key() method rather than a full interface.
type Accessors[T any] struct {
	ID       func(T) chatid.ID
	SetID    func(*T, chatid.ID)
	OwnerID  func(T) chatid.ID
	Touch    func(*T) // refresh UpdatedAt/similar bookkeeping; nil if the entity has none
	Validate func(T) []string
}

// Repository is the uniform CRUD shape C2 specifies for every owned
// entity kind.
type Repository[T any] interface {
	FindByID(ctx context.Context, id chatid.ID) (T, error)
	FindByUserID(ctx context.Context, userID chatid.ID) ([]T, error)
	FindAll(ctx context.Context) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, id chatid.ID, patch func(*T)) (T, error)
	Delete(ctx context.Context, id chatid.ID) error
}

// DefaultPartition is implemented by repositories over entities that carry
// an IsDefault flag scoped to (userId, kind) — ConnectionProfile,
// EmbeddingProfile, ImageGenerationProfile. SetDefault atomically unsets
// every other default in the partition before setting id's; on a backend
// without transactions the unset-then-set ordering is still followed, and
// the brief window with zero defaults is tolerated (idempotent on retry),
// per §4.2's key contract.
type DefaultPartition interface {
	SetDefault(ctx context.Context, userID, id chatid.ID) error
}
