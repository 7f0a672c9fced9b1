package filebacked

import (
	"context"
	"path/filepath"
	"time"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// CharacterRepo stores domain.Character in characters.jsonl under root.
type CharacterRepo struct{ *Collection[domain.Character] }

func NewCharacterRepo(root string) (*CharacterRepo, error) {
	col, err := NewCollection(filepath.Join(root, "characters.jsonl"), "character", repo.Accessors[domain.Character]{
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

// PersonaRepo stores domain.Persona in personas.jsonl under root.
type PersonaRepo struct{ *Collection[domain.Persona] }

func NewPersonaRepo(root string) (*PersonaRepo, error) {
	col, err := NewCollection(filepath.Join(root, "personas.jsonl"), "persona", repo.Accessors[domain.Persona]{
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

// UserRepo stores domain.User in users.jsonl under root.
type UserRepo struct{ *Collection[domain.User] }

func NewUserRepo(root string) (*UserRepo, error) {
	col, err := NewCollection(filepath.Join(root, "users.jsonl"), "user", repo.Accessors[domain.User]{
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

// TagRepo stores domain.Tag in tags.jsonl under root.
type TagRepo struct{ *Collection[domain.Tag] }

func NewTagRepo(root string) (*TagRepo, error) {
	col, err := NewCollection(filepath.Join(root, "tags.jsonl"), "tag", repo.Accessors[domain.Tag]{
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

// ConnectionProfileRepo stores domain.ConnectionProfile in
// connection_profiles.jsonl under root.
type ConnectionProfileRepo struct{ *Collection[domain.ConnectionProfile] }

func NewConnectionProfileRepo(root string) (*ConnectionProfileRepo, error) {
	col, err := NewCollection(filepath.Join(root, "connection_profiles.jsonl"), "connection_profile", repo.Accessors[domain.ConnectionProfile]{
		ID:      func(p domain.ConnectionProfile) chatid.ID { return p.ID },
		SetID:   func(p *domain.ConnectionProfile, id chatid.ID) { p.ID = id },
		OwnerID: func(p domain.ConnectionProfile) chatid.ID { return p.UserID },
		Validate: func(p domain.ConnectionProfile) []string {
			var problems []string
			if p.Provider == "" {
				problems = append(problems, "provider")
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

// ChatRepo stores domain.Chat in chats.jsonl under root.
type ChatRepo struct{ *Collection[domain.Chat] }

func NewChatRepo(root string) (*ChatRepo, error) {
	col, err := NewCollection(filepath.Join(root, "chats.jsonl"), "chat", repo.Accessors[domain.Chat]{
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
