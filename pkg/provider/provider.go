// Package provider implements the Provider Adapter Layer (C8, §4.8): a
// single Provider interface normalized over seven wire shapes, following
// the teacher's pkg/connector.AIProvider contract (GenerateStream/Generate/
// ListModels/ValidateModel) but generalized to the chat platform's domain
// types and error taxonomy.
//
// Capability differences between wire shapes are expressed as a plain
// Capabilities struct rather than interface type assertions, per the
// tagged-variant-over-virtual-dispatch preference recorded in DESIGN.md.
package provider

import (
	"context"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/models"
	"github.com/inkwell-ai/chatcore/pkg/tokencount"
)

// Credential is the decrypted secret material a Provider call needs.
type Credential struct {
	APIKey  string
	BaseURL string // overrides the adapter's default endpoint when set
}

// Capabilities flags what a concrete adapter can do, checked by callers
// before attempting an operation the adapter cannot serve.
type Capabilities struct {
	Vision   bool
	Tools    bool
	PDF      bool
	Audio    bool
	Video    bool
	ImageGen bool
}

// MessageRole mirrors domain.MessageRole without importing the domain
// package, keeping this package usable against any message source.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleTool      MessageRole = "tool"
)

// AttachmentKind identifies the media type carried by an Attachment.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentPDF   AttachmentKind = "pdf"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentVideo AttachmentKind = "video"
)

// Attachment is a resolved, inline media blob ready to send on the wire.
type Attachment struct {
	FileID   chatid.ID
	Kind     AttachmentKind
	MimeType string
	Data     []byte // already base64-free raw bytes; adapters encode as needed
	URL      string // used instead of Data when the adapter accepts a URL
}

// FailedAttachment records an attachment an adapter refused to send because
// its kind or MIME type falls outside that adapter's Capabilities (§4.8:
// "the adapter strips that attachment... and the turn continues").
type FailedAttachment struct {
	FileID   chatid.ID
	MimeType string
	Reason   string
}

// AttachmentResults separates the attachments an adapter actually sent from
// the ones it stripped, so callers can surface the difference to the user
// instead of silently dropping content.
type AttachmentResults struct {
	Failed []FailedAttachment
}

// Message is one turn of the unified conversation shape every adapter
// consumes.
type Message struct {
	Role        MessageRole
	Text        string
	Attachments []Attachment
	ToolCallID  string // set on RoleTool messages, echoing the call being answered
}

// ToolDefinition is a single callable tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// ToolCall is a model-issued request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// Usage reports token accounting as returned by the wire API, distinct from
// this module's own pre-flight tokencount.Estimate.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// SendParams parameterizes both SendMessage and StreamMessage.
type SendParams struct {
	Model           string
	Messages        []Message
	SystemPrompt    string
	Temperature     *float64
	TopP            *float64
	MaxTokens       *int
	ReasoningEffort string
	Tools           []ToolDefinition
}

// SendResult is the outcome of a non-streaming SendMessage call.
type SendResult struct {
	Content      string
	FinishReason string
	ToolCalls    []ToolCall
	Usage        Usage
	Attachments  AttachmentResults
}

// ChunkKind identifies the kind of a single streamed Chunk.
type ChunkKind string

const (
	ChunkDelta    ChunkKind = "delta"
	ChunkToolCall ChunkKind = "tool_call"
	ChunkComplete ChunkKind = "complete"
	ChunkError    ChunkKind = "error"
)

// Chunk is a single unit from a streaming response, normalized across every
// adapter's own wire framing (§4.8). Attachments is only populated on the
// terminal ChunkComplete, alongside FinishReason and Usage, since attachment
// support is resolved once when the request is built.
type Chunk struct {
	Kind         ChunkKind
	Delta        string
	ToolCall     *ToolCall
	FinishReason string
	Usage        *Usage
	Attachments  AttachmentResults
	Err          error
}

// StreamHandle is the iterator-plus-cancellation handle StreamMessage
// returns: callers range over Chunks and may call Cancel to abort the
// underlying request early (§5 cancellation semantics).
type StreamHandle struct {
	Chunks <-chan Chunk
	Cancel context.CancelFunc
}

// ImageParams requests a single generated image.
type ImageParams struct {
	Model  string
	Prompt string
	Size   string
}

// ImageResult is a single generated image, inline or by reference.
type ImageResult struct {
	MimeType string
	Data     []byte
	URL      string
}

// Provider is the unified contract every wire-shape adapter implements
// (§4.8): sendMessage, streamMessage, validateCredential, listModels, and
// generateImage.
type Provider interface {
	Name() string
	TokenProvider() tokencount.Provider
	Capabilities() Capabilities

	SendMessage(ctx context.Context, cred Credential, params SendParams) (SendResult, error)
	StreamMessage(ctx context.Context, cred Credential, params SendParams) (*StreamHandle, error)
	ValidateCredential(ctx context.Context, cred Credential) error
	ListModels(ctx context.Context, cred Credential) ([]models.Info, error)
	GenerateImage(ctx context.Context, cred Credential, params ImageParams) (ImageResult, error)
}

// FilterAttachments partitions atts into what caps supports and what it
// doesn't, per §4.8's common contract: an attachment whose kind the adapter
// cannot accept is stripped and reported rather than failing the whole turn.
// Every adapter's SendMessage/StreamMessage calls this on each Message's
// Attachments before building wire content.
func FilterAttachments(caps Capabilities, atts []Attachment) ([]Attachment, []FailedAttachment) {
	if len(atts) == 0 {
		return atts, nil
	}
	kept := make([]Attachment, 0, len(atts))
	var failed []FailedAttachment
	for _, a := range atts {
		supported, reason := caps.supports(a.Kind)
		if supported {
			kept = append(kept, a)
			continue
		}
		failed = append(failed, FailedAttachment{FileID: a.FileID, MimeType: a.MimeType, Reason: reason})
	}
	return kept, failed
}

// FilterMessageAttachments applies FilterAttachments across every message in
// messages, returning a copy with unsupported attachments stripped plus the
// aggregated failures across the whole request.
func FilterMessageAttachments(caps Capabilities, messages []Message) ([]Message, []FailedAttachment) {
	var allFailed []FailedAttachment
	copied := false
	out := messages
	for i, m := range messages {
		if len(m.Attachments) == 0 {
			continue
		}
		kept, failed := FilterAttachments(caps, m.Attachments)
		if len(failed) == 0 {
			continue
		}
		if !copied {
			out = append([]Message(nil), messages...)
			copied = true
		}
		out[i].Attachments = kept
		allFailed = append(allFailed, failed...)
	}
	return out, allFailed
}

// supports reports whether caps accepts an attachment of the given kind, and
// the reason to surface when it does not.
func (caps Capabilities) supports(kind AttachmentKind) (bool, string) {
	switch kind {
	case AttachmentImage:
		if caps.Vision {
			return true, ""
		}
		return false, "this provider does not support image attachments"
	case AttachmentPDF:
		if caps.PDF {
			return true, ""
		}
		return false, "this provider does not support PDF attachments"
	case AttachmentAudio:
		if caps.Audio {
			return true, ""
		}
		return false, "this provider does not support audio attachments"
	case AttachmentVideo:
		if caps.Video {
			return true, ""
		}
		return false, "this provider does not support video attachments"
	default:
		return false, "this provider does not support this attachment type"
	}
}

// errImageGenUnsupported is returned by GenerateImage on adapters whose
// Capabilities().ImageGen is false.
func errImageGenUnsupported(name string) error {
	return &chaterrors.InvalidRequestError{Provider: name, Detail: "this provider does not support image generation"}
}

// errToolsUnsupported is returned when tools are passed to an adapter whose
// Capabilities().Tools is false.
func errToolsUnsupported(name string) error {
	return &chaterrors.InvalidRequestError{Provider: name, Detail: "this provider does not support tool calling"}
}
