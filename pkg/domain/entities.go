// Package domain holds the data model of §3: the entities every other
// component (repositories, the context assembler, the orchestrator) reads
// and writes. Ownership is strict — every child entity carries the owning
// UserID (directly, or transitively through its parent) and repository
// lookups are expected to gate on it.
package domain

import (
	"time"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
)

// User owns everything. The core never destroys a User; that is an
// administrative action outside this module's scope.
type User struct {
	ID                  chatid.ID
	Email               string
	DisplayName         string
	PasswordHash        string
	TOTPSecretCiphertext []byte
	CreatedAt           time.Time
}

// APICredential stores a provider key encrypted at rest. Plaintext never
// leaves the process boundary except as a provider auth header (§3).
type APICredential struct {
	ID         chatid.ID
	UserID     chatid.ID
	Provider   string
	Label      string
	Ciphertext []byte
	IV         []byte
	AuthTag    []byte
	IsActive   bool
	LastUsedAt *time.Time
}

// ConnectionProfile bundles a provider, model, optional credential, and
// provider-agnostic sampling hints.
type ConnectionProfile struct {
	ID              chatid.ID
	UserID          chatid.ID
	Provider        string
	ModelName       string
	APICredentialID *chatid.ID
	BaseURL         string
	Parameters      ProfileParameters
	IsDefault       bool
	IsCheap         bool
	Tags            []string
}

// ProfileParameters is the provider-agnostic sampling/timeout hint bag
// carried by a ConnectionProfile (§3, §5 "configurable per connection
// profile via parameters").
type ProfileParameters struct {
	Temperature       *float64
	MaxTokens         *int
	TopP              *float64
	ReasoningEffort   string
	ChatTimeoutSec    int
	NoProgressSec     int
	EmbeddingTimeoutSec int
	ToolTimeoutSec    int
}

// AvatarOverride pins an alternate image for a character or persona.
// Invariant: ImageID must reference a FileEntry with category IMAGE or
// AVATAR and the same UserID (enforced by the repository layer).
type AvatarOverride struct {
	ImageID chatid.ID
	Label   string
}

// Character is a roleplay persona the user talks to. All text fields may
// contain template variables (§4.4).
type Character struct {
	ID               chatid.ID
	UserID           chatid.ID
	Name             string
	Description      string
	Personality      string
	Scenario         string
	FirstMessage     string
	ExampleDialogues string
	SystemPrompt     string
	DefaultImageID   *chatid.ID
	IsFavorite       bool
	AvatarOverrides  []AvatarOverride
	Tags             []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CharacterLink lets a Persona express a preference for a specific Character.
type CharacterLink struct {
	CharacterID chatid.ID
	Preferred   bool
}

// Persona is the user's self-representation in a chat; same general shape
// as Character minus firstMessage/scenario/exampleDialogues.
type Persona struct {
	ID              chatid.ID
	UserID          chatid.ID
	Name            string
	Description     string
	Personality     string
	SystemPrompt    string
	DefaultImageID  *chatid.ID
	IsFavorite      bool
	AvatarOverrides []AvatarOverride
	Tags            []string
	CharacterLinks  []CharacterLink
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Tag is a user-scoped label. Invariant: (UserID, NameLower) is unique.
type Tag struct {
	ID        chatid.ID
	UserID    chatid.ID
	Name      string
	NameLower string
	QuickHide bool
}

// ParticipantKind discriminates the three kinds of chat participant.
type ParticipantKind string

const (
	ParticipantUser      ParticipantKind = "USER"
	ParticipantCharacter ParticipantKind = "CHARACTER"
	ParticipantPersona   ParticipantKind = "PERSONA"
)

// Participant is one member of a Chat.
type Participant struct {
	Kind                 ParticipantKind
	RefID                *chatid.ID // Character or Persona id; nil for USER
	IsActive             bool
	ConnectionProfileID  *chatid.ID
	ImageProfileID       *chatid.ID
}

// Chat is a conversation owned by a user. The MVP common case is one
// character participant plus an optional persona; the model allows more.
type Chat struct {
	ID                            chatid.ID
	UserID                        chatid.ID
	Title                         string
	Participants                  []Participant
	CreatedAt                     time.Time
	UpdatedAt                     time.Time
	TitleLastCheckedAtInterchange *int
}

// ActiveCharacter returns the RefID of the first active CHARACTER
// participant, if any.
func (c *Chat) ActiveCharacter() (chatid.ID, bool) {
	for _, p := range c.Participants {
		if p.Kind == ParticipantCharacter && p.IsActive && p.RefID != nil {
			return *p.RefID, true
		}
	}
	return chatid.Nil, false
}

// ActivePersona returns the RefID of the first active PERSONA participant, if any.
func (c *Chat) ActivePersona() (chatid.ID, bool) {
	for _, p := range c.Participants {
		if p.Kind == ParticipantPersona && p.IsActive && p.RefID != nil {
			return *p.RefID, true
		}
	}
	return chatid.Nil, false
}

// FileCategory classifies stored blobs.
type FileCategory string

const (
	FileCategoryImage      FileCategory = "IMAGE"
	FileCategoryAvatar     FileCategory = "AVATAR"
	FileCategoryAttachment FileCategory = "ATTACHMENT"
	FileCategoryGenerated  FileCategory = "GENERATED"
)

// FileSource records how a FileEntry came to exist.
type FileSource string

const (
	FileSourceUploaded FileSource = "UPLOADED"
	FileSourceImported FileSource = "IMPORTED"
	FileSourceGenerated FileSource = "GENERATED"
)

// FileEntry is the metadata-index half of the file store (§4.1). A file
// with LinkedTo empty may be garbage-collected; while nonempty it is
// pinned.
type FileEntry struct {
	ID               chatid.ID
	UserID           chatid.ID
	SHA256           string
	OriginalFilename string
	MimeType         string
	Size             int64
	Width            *int
	Height           *int
	Category         FileCategory
	Source           FileSource
	StorageKey       string
	LinkedTo         []chatid.ID
	CreatedAt        time.Time
}

// HasLink reports whether entityID is already present in LinkedTo.
func (f *FileEntry) HasLink(entityID chatid.ID) bool {
	for _, id := range f.LinkedTo {
		if id == entityID {
			return true
		}
	}
	return false
}

// EmbeddingProviderKind names the wire shape an EmbeddingProfile targets.
type EmbeddingProviderKind string

const (
	EmbeddingProviderOpenAI EmbeddingProviderKind = "OPENAI"
	EmbeddingProviderOllama EmbeddingProviderKind = "OLLAMA"
)

// EmbeddingProfile configures text-to-vector embedding for a user.
type EmbeddingProfile struct {
	ID              chatid.ID
	UserID          chatid.ID
	Provider        EmbeddingProviderKind
	ModelName       string
	Dimensions      int
	APICredentialID *chatid.ID
	BaseURL         string
	IsDefault       bool
}

// ImageGenProviderKind names the wire shape an ImageGenerationProfile targets.
type ImageGenProviderKind string

const (
	ImageGenProviderOpenAI       ImageGenProviderKind = "OPENAI"
	ImageGenProviderGrok         ImageGenProviderKind = "GROK"
	ImageGenProviderGoogleImagen ImageGenProviderKind = "GOOGLE_IMAGEN"
)

// ImageGenerationProfile configures a user's default image-generation backend.
type ImageGenerationProfile struct {
	ID              chatid.ID
	UserID          chatid.ID
	Provider        ImageGenProviderKind
	ModelName       string
	APICredentialID *chatid.ID
	Parameters      map[string]any
	IsDefault       bool
}

// Memory is a long-term, character-scoped factoid (§3, §4.7).
type Memory struct {
	ID             chatid.ID
	CharacterID    chatid.ID
	Content        string
	Summary        string
	Keywords       []string
	Tags           []string
	Importance     float64
	PersonaID      *chatid.ID
	ChatID         *chatid.ID
	LastAccessedAt time.Time
	CreatedAt      time.Time
}
