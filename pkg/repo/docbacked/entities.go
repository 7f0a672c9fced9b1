package docbacked

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// CharacterRepo stores domain.Character in the "characters" collection.
type CharacterRepo struct{ *Collection[domain.Character] }

func NewCharacterRepo(ctx context.Context, db *mongo.Database) (*CharacterRepo, error) {
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

// PersonaRepo stores domain.Persona in the "personas" collection.
type PersonaRepo struct{ *Collection[domain.Persona] }

func NewPersonaRepo(ctx context.Context, db *mongo.Database) (*PersonaRepo, error) {
	col, err := NewCollection(ctx, db, "personas", "persona", repo.Accessors[domain.Persona]{
		ID:      func(p domain.Persona) chatid.ID { return p.ID },
		SetID:   func(p *domain.Persona, id chatid.ID) { p.ID = id },
		OwnerID: func(p domain.Persona) chatid.ID { return p.UserID },
		Touch:   func(p *domain.Persona) { p.UpdatedAt = time.Now() },
	})
	if err != nil {
		return nil, err
	}
	return &PersonaRepo{col}, nil
}

// UserRepo stores domain.User in the "users" collection.
type UserRepo struct{ *Collection[domain.User] }

func NewUserRepo(ctx context.Context, db *mongo.Database) (*UserRepo, error) {
	col, err := NewCollection(ctx, db, "users", "user", repo.Accessors[domain.User]{
		ID:      func(u domain.User) chatid.ID { return u.ID },
		SetID:   func(u *domain.User, id chatid.ID) { u.ID = id },
		OwnerID: func(u domain.User) chatid.ID { return u.ID },
	})
	if err != nil {
		return nil, err
	}
	return &UserRepo{col}, nil
}

// ChatRepo stores domain.Chat in the "chats" collection.
type ChatRepo struct{ *Collection[domain.Chat] }

func NewChatRepo(ctx context.Context, db *mongo.Database) (*ChatRepo, error) {
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
// "connection_profiles" collection.
type ConnectionProfileRepo struct{ *Collection[domain.ConnectionProfile] }

func NewConnectionProfileRepo(ctx context.Context, db *mongo.Database) (*ConnectionProfileRepo, error) {
	col, err := NewCollection(ctx, db, "connection_profiles", "connection_profile", repo.Accessors[domain.ConnectionProfile]{
		ID:      func(p domain.ConnectionProfile) chatid.ID { return p.ID },
		SetID:   func(p *domain.ConnectionProfile, id chatid.ID) { p.ID = id },
		OwnerID: func(p domain.ConnectionProfile) chatid.ID { return p.UserID },
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
