package inmemory

import (
	"context"
	"time"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// UserRepo stores domain.User. Users have no owner other than themselves;
// FindByUserID returns the single matching user, if any.
type UserRepo struct{ *Collection[domain.User] }

func NewUserRepo() *UserRepo {
	return &UserRepo{NewCollection("user", repo.Accessors[domain.User]{
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
	})}
}

// CharacterRepo stores domain.Character.
type CharacterRepo struct{ *Collection[domain.Character] }

func NewCharacterRepo() *CharacterRepo {
	return &CharacterRepo{NewCollection("character", repo.Accessors[domain.Character]{
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
	})}
}

// PersonaRepo stores domain.Persona.
type PersonaRepo struct{ *Collection[domain.Persona] }

func NewPersonaRepo() *PersonaRepo {
	return &PersonaRepo{NewCollection("persona", repo.Accessors[domain.Persona]{
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
	})}
}

// TagRepo stores domain.Tag.
type TagRepo struct{ *Collection[domain.Tag] }

func NewTagRepo() *TagRepo {
	return &TagRepo{NewCollection("tag", repo.Accessors[domain.Tag]{
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
	})}
}

// APICredentialRepo stores domain.APICredential.
type APICredentialRepo struct{ *Collection[domain.APICredential] }

func NewAPICredentialRepo() *APICredentialRepo {
	return &APICredentialRepo{NewCollection("api_credential", repo.Accessors[domain.APICredential]{
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
	})}
}

// ConnectionProfileRepo stores domain.ConnectionProfile and partitions
// IsDefault by (UserID, Provider).
type ConnectionProfileRepo struct{ *Collection[domain.ConnectionProfile] }

func NewConnectionProfileRepo() *ConnectionProfileRepo {
	return &ConnectionProfileRepo{NewCollection("connection_profile", repo.Accessors[domain.ConnectionProfile]{
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
	})}
}

func (r *ConnectionProfileRepo) SetDefault(ctx context.Context, userID, id chatid.ID) error {
	return r.Collection.SetDefault(ctx, userID, id,
		func(p domain.ConnectionProfile) bool { return p.IsDefault },
		func(p *domain.ConnectionProfile, v bool) { p.IsDefault = v },
	)
}

// EmbeddingProfileRepo stores domain.EmbeddingProfile, default-partitioned
// per user.
type EmbeddingProfileRepo struct{ *Collection[domain.EmbeddingProfile] }

func NewEmbeddingProfileRepo() *EmbeddingProfileRepo {
	return &EmbeddingProfileRepo{NewCollection("embedding_profile", repo.Accessors[domain.EmbeddingProfile]{
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
	})}
}

func (r *EmbeddingProfileRepo) SetDefault(ctx context.Context, userID, id chatid.ID) error {
	return r.Collection.SetDefault(ctx, userID, id,
		func(p domain.EmbeddingProfile) bool { return p.IsDefault },
		func(p *domain.EmbeddingProfile, v bool) { p.IsDefault = v },
	)
}

// ImageGenerationProfileRepo stores domain.ImageGenerationProfile,
// default-partitioned per user.
type ImageGenerationProfileRepo struct{ *Collection[domain.ImageGenerationProfile] }

func NewImageGenerationProfileRepo() *ImageGenerationProfileRepo {
	return &ImageGenerationProfileRepo{NewCollection("image_generation_profile", repo.Accessors[domain.ImageGenerationProfile]{
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
	})}
}

func (r *ImageGenerationProfileRepo) SetDefault(ctx context.Context, userID, id chatid.ID) error {
	return r.Collection.SetDefault(ctx, userID, id,
		func(p domain.ImageGenerationProfile) bool { return p.IsDefault },
		func(p *domain.ImageGenerationProfile, v bool) { p.IsDefault = v },
	)
}

// MemoryRepo stores domain.Memory and satisfies pkg/memory.Repo (which
// looks entities up by CharacterID rather than UserID, so it wraps
// Collection directly instead of embedding it).
type MemoryRepo struct {
	col *Collection[domain.Memory]
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{col: NewCollection("memory", repo.Accessors[domain.Memory]{
		ID:      func(m domain.Memory) chatid.ID { return m.ID },
		SetID:   func(m *domain.Memory, id chatid.ID) { m.ID = id },
		OwnerID: func(m domain.Memory) chatid.ID { return m.CharacterID },
	})}
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
