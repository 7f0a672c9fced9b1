package sqlbacked

import (
	"context"
	"time"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// CharacterRepo stores domain.Character in the "characters" table.
type CharacterRepo struct{ *Collection[domain.Character] }

func NewCharacterRepo(ctx context.Context, db *DB) (*CharacterRepo, error) {
	col, err := NewCollection(ctx, db, "characters", "character", repo.Accessors[domain.Character]{
		ID:      func(c domain.Character) chatid.ID { return c.ID },
		SetID:   func(c *domain.Character, id chatid.ID) { c.ID = id },
		OwnerID: func(c domain.Character) chatid.ID { return c.UserID },
		Touch:   func(c *domain.Character) { c.UpdatedAt = time.Now() },
		Validate: func(c domain.Character) []string {
			var problems []string
			if c.Name == "" {
				problems = append(problems, "name")
			}
			return problems
		},
	})
	if err != nil {
		return nil, err
	}
	return &CharacterRepo{col}, nil
}

// PersonaRepo stores domain.Persona in the "personas" table.
type PersonaRepo struct{ *Collection[domain.Persona] }

func NewPersonaRepo(ctx context.Context, db *DB) (*PersonaRepo, error) {
	col, err := NewCollection(ctx, db, "personas", "persona", repo.Accessors[domain.Persona]{
		ID:      func(p domain.Persona) chatid.ID { return p.ID },
		SetID:   func(p *domain.Persona, id chatid.ID) { p.ID = id },
		OwnerID: func(p domain.Persona) chatid.ID { return p.UserID },
		Touch:   func(p *domain.Persona) { p.UpdatedAt = time.Now() },
		Validate: func(p domain.Persona) []string {
			var problems []string
			if p.Name == "" {
				problems = append(problems, "name")
			}
			return problems
		},
	})
	if err != nil {
		return nil, err
	}
	return &PersonaRepo{col}, nil
}

// UserRepo stores domain.User in the "users" table.
type UserRepo struct{ *Collection[domain.User] }

func NewUserRepo(ctx context.Context, db *DB) (*UserRepo, error) {
	col, err := NewCollection(ctx, db, "users", "user", repo.Accessors[domain.User]{
		ID:      func(u domain.User) chatid.ID { return u.ID },
		SetID:   func(u *domain.User, id chatid.ID) { u.ID = id },
		OwnerID: func(u domain.User) chatid.ID { return u.ID },
		Validate: func(u domain.User) []string {
			var problems []string
			if u.Email == "" {
				problems = append(problems, "email")
			}
			return problems
		},
	})
	if err != nil {
		return nil, err
	}
	return &UserRepo{col}, nil
}

// TagRepo stores domain.Tag in the "tags" table.
type TagRepo struct{ *Collection[domain.Tag] }

func NewTagRepo(ctx context.Context, db *DB) (*TagRepo, error) {
	col, err := NewCollection(ctx, db, "tags", "tag", repo.Accessors[domain.Tag]{
		ID:      func(t domain.Tag) chatid.ID { return t.ID },
		SetID:   func(t *domain.Tag, id chatid.ID) { t.ID = id },
		OwnerID: func(t domain.Tag) chatid.ID { return t.UserID },
		Validate: func(t domain.Tag) []string {
			var problems []string
			if t.Name == "" {
				problems = append(problems, "name")
			}
			return problems
		},
	})
	if err != nil {
		return nil, err
	}
	return &TagRepo{col}, nil
}

// APICredentialRepo stores domain.APICredential in the "api_credentials" table.
type APICredentialRepo struct{ *Collection[domain.APICredential] }

func NewAPICredentialRepo(ctx context.Context, db *DB) (*APICredentialRepo, error) {
	col, err := NewCollection(ctx, db, "api_credentials", "api_credential", repo.Accessors[domain.APICredential]{
		ID:      func(c domain.APICredential) chatid.ID { return c.ID },
		SetID:   func(c *domain.APICredential, id chatid.ID) { c.ID = id },
		OwnerID: func(c domain.APICredential) chatid.ID { return c.UserID },
		Validate: func(c domain.APICredential) []string {
			var problems []string
			if c.Provider == "" {
				problems = append(problems, "provider")
			}
			return problems
		},
	})
	if err != nil {
		return nil, err
	}
	return &APICredentialRepo{col}, nil
}

// ChatRepo stores domain.Chat in the "chats" table.
type ChatRepo struct{ *Collection[domain.Chat] }

func NewChatRepo(ctx context.Context, db *DB) (*ChatRepo, error) {
	col, err := NewCollection(ctx, db, "chats", "chat", repo.Accessors[domain.Chat]{
		ID:      func(c domain.Chat) chatid.ID { return c.ID },
		SetID:   func(c *domain.Chat, id chatid.ID) { c.ID = id },
		OwnerID: func(c domain.Chat) chatid.ID { return c.UserID },
		Touch:   func(c *domain.Chat) { c.UpdatedAt = time.Now() },
	})
	if err != nil {
		return nil, err
	}
	return &ChatRepo{col}, nil
}

// ConnectionProfileRepo stores domain.ConnectionProfile in the
// "connection_profiles" table.
type ConnectionProfileRepo struct{ *Collection[domain.ConnectionProfile] }

func NewConnectionProfileRepo(ctx context.Context, db *DB) (*ConnectionProfileRepo, error) {
	col, err := NewCollection(ctx, db, "connection_profiles", "connection_profile", repo.Accessors[domain.ConnectionProfile]{
		ID:      func(p domain.ConnectionProfile) chatid.ID { return p.ID },
		SetID:   func(p *domain.ConnectionProfile, id chatid.ID) { p.ID = id },
		OwnerID: func(p domain.ConnectionProfile) chatid.ID { return p.UserID },
		Validate: func(p domain.ConnectionProfile) []string {
			var problems []string
			if p.Provider == "" {
				problems = append(problems, "provider")
			}
			if p.ModelName == "" {
				problems = append(problems, "modelName")
			}
			return problems
		},
	})
	if err != nil {
		return nil, err
	}
	return &ConnectionProfileRepo{col}, nil
}

func (r *ConnectionProfileRepo) SetDefault(ctx context.Context, userID, id chatid.ID) error {
	return r.Collection.SetDefault(ctx, userID, id,
		func(p domain.ConnectionProfile) bool { return p.IsDefault },
		func(p *domain.ConnectionProfile, v bool) { p.IsDefault = v },
	)
}

// EmbeddingProfileRepo stores domain.EmbeddingProfile in the
// "embedding_profiles" table.
type EmbeddingProfileRepo struct{ *Collection[domain.EmbeddingProfile] }

func NewEmbeddingProfileRepo(ctx context.Context, db *DB) (*EmbeddingProfileRepo, error) {
	col, err := NewCollection(ctx, db, "embedding_profiles", "embedding_profile", repo.Accessors[domain.EmbeddingProfile]{
		ID:      func(p domain.EmbeddingProfile) chatid.ID { return p.ID },
		SetID:   func(p *domain.EmbeddingProfile, id chatid.ID) { p.ID = id },
		OwnerID: func(p domain.EmbeddingProfile) chatid.ID { return p.UserID },
		Validate: func(p domain.EmbeddingProfile) []string {
			var problems []string
			if p.ModelName == "" {
				problems = append(problems, "modelName")
			}
			return problems
		},
	})
	if err != nil {
		return nil, err
	}
	return &EmbeddingProfileRepo{col}, nil
}

func (r *EmbeddingProfileRepo) SetDefault(ctx context.Context, userID, id chatid.ID) error {
	return r.Collection.SetDefault(ctx, userID, id,
		func(p domain.EmbeddingProfile) bool { return p.IsDefault },
		func(p *domain.EmbeddingProfile, v bool) { p.IsDefault = v },
	)
}

// ImageGenerationProfileRepo stores domain.ImageGenerationProfile in the
// "image_generation_profiles" table.
type ImageGenerationProfileRepo struct{ *Collection[domain.ImageGenerationProfile] }

func NewImageGenerationProfileRepo(ctx context.Context, db *DB) (*ImageGenerationProfileRepo, error) {
	col, err := NewCollection(ctx, db, "image_generation_profiles", "image_generation_profile", repo.Accessors[domain.ImageGenerationProfile]{
		ID:      func(p domain.ImageGenerationProfile) chatid.ID { return p.ID },
		SetID:   func(p *domain.ImageGenerationProfile, id chatid.ID) { p.ID = id },
		OwnerID: func(p domain.ImageGenerationProfile) chatid.ID { return p.UserID },
		Validate: func(p domain.ImageGenerationProfile) []string {
			var problems []string
			if p.ModelName == "" {
				problems = append(problems, "modelName")
			}
			return problems
		},
	})
	if err != nil {
		return nil, err
	}
	return &ImageGenerationProfileRepo{col}, nil
}

func (r *ImageGenerationProfileRepo) SetDefault(ctx context.Context, userID, id chatid.ID) error {
	return r.Collection.SetDefault(ctx, userID, id,
		func(p domain.ImageGenerationProfile) bool { return p.IsDefault },
		func(p *domain.ImageGenerationProfile, v bool) { p.IsDefault = v },
	)
}

// MemoryRepo stores domain.Memory and satisfies pkg/memory.Repo, which
// looks memories up by CharacterID rather than UserID.
type MemoryRepo struct {
	col *Collection[domain.Memory]
}

func NewMemoryRepo(ctx context.Context, db *DB) (*MemoryRepo, error) {
	col, err := NewCollection(ctx, db, "memories", "memory", repo.Accessors[domain.Memory]{
		ID:      func(m domain.Memory) chatid.ID { return m.ID },
		SetID:   func(m *domain.Memory, id chatid.ID) { m.ID = id },
		OwnerID: func(m domain.Memory) chatid.ID { return m.CharacterID },
	})
	if err != nil {
		return nil, err
	}
	return &MemoryRepo{col: col}, nil
}

func (r *MemoryRepo) FindByCharacter(ctx context.Context, characterID chatid.ID) ([]domain.Memory, error) {
	return r.col.FindByUserID(ctx, characterID)
}

func (r *MemoryRepo) Get(ctx context.Context, id chatid.ID) (domain.Memory, error) {
	return r.col.FindByID(ctx, id)
}

func (r *MemoryRepo) Create(ctx context.Context, mem domain.Memory) (domain.Memory, error) {
	return r.col.Create(ctx, mem)
}

func (r *MemoryRepo) Update(ctx context.Context, id chatid.ID, mutate func(*domain.Memory)) (domain.Memory, error) {
	return r.col.Update(ctx, id, mutate)
}

func (r *MemoryRepo) Delete(ctx context.Context, id chatid.ID) error {
	return r.col.Delete(ctx, id)
}
