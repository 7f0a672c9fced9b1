// Package orchestrator implements the Chat Orchestrator (C11, §4.11): the
// turn state machine driving submitTurn/swipe/selectSwipe/editMessage/
// deleteMessage, streaming fan-out with tool-call detection and a bounded
// resume loop, and the per-chat serialization §5 mandates. The streaming
// loop's finish-reason normalization and tool-loop continuation decision
// are grounded on the teacher's pkg/connector/streaming.go
// (mapFinishReason, shouldContinueChatToolLoop), generalized from the
// teacher's own provider wire shapes to this core's normalized
// provider.Chunk stream.
package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/contextassembler"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/models"
	"github.com/inkwell-ai/chatcore/pkg/provider"
	"github.com/inkwell-ai/chatcore/pkg/repo"
	"github.com/inkwell-ai/chatcore/pkg/toolruntime"
)

// defaultContextWindow is used when a profile's model is not in the models
// registry, erring toward a conservative budget rather than failing outright.
const defaultContextWindow = 8000

// defaultMaxToolLoops is the fallback when Orchestrator.MaxToolLoops is unset.
const defaultMaxToolLoops = 5

// ProviderFactory builds the Provider for a connection profile's wire
// shape. *provider.Factory satisfies this; tests substitute a fake that
// returns a scripted adapter instead of a real network client.
type ProviderFactory interface {
	Build(name string) (provider.Provider, error)
}

// PostTurnHook is dispatched, fire-and-forget, after a turn or swipe
// finalizes (C12, §4.12: memory extraction, title refresh, context
// summarization). *postturn.Runner satisfies this structurally; left nil,
// no post-turn jobs run, which is how tests exercise the state machine
// without standing up the full C12 collaborator set.
type PostTurnHook interface {
	RunAfterTurn(ctx context.Context, chatID, userID chatid.ID)
}

// Orchestrator wires every collaborator submitTurn and its siblings need:
// the chat log, the owned-entity repositories, credential decryption, the
// provider factory, the context assembler, and the tool registry.
type Orchestrator struct {
	Log                 repo.ChatLog
	Chats               repo.Repository[domain.Chat]
	Characters          repo.Repository[domain.Character]
	Personas            repo.Repository[domain.Persona]
	ConnectionProfiles  interface {
		repo.Repository[domain.ConnectionProfile]
		repo.DefaultPartition
	}
	Credentials CredentialResolver
	Factory     ProviderFactory
	Assembler   *contextassembler.Assembler
	Models      *models.Registry[models.Info]
	Tools       *toolruntime.Registry
	PostTurn    PostTurnHook
	Logger      zerolog.Logger

	MaxToolLoops int // default defaultMaxToolLoops when zero

	queue *chatQueue
}

// SubmitTurnInput is submitTurn's input shape (§4.11).
type SubmitTurnInput struct {
	Text                      string
	Attachments               []chatid.ID
	ConnectionProfileOverride *chatid.ID
	ClientRequestID           string
}

func (o *Orchestrator) chatQueueLazy() *chatQueue {
	if o.queue == nil {
		o.queue = newChatQueue()
	}
	return o.queue
}

func (o *Orchestrator) maxToolLoops() int {
	if o.MaxToolLoops > 0 {
		return o.MaxToolLoops
	}
	return defaultMaxToolLoops
}

// SubmitTurn drives Idle -> Assembling -> Streaming -> [ToolPending ->
// ToolExecuting -> Streaming]* -> Finalizing -> Idle (§4.11). The returned
// channel is closed after the terminal PublicChunk (Done or Error) is sent.
func (o *Orchestrator) SubmitTurn(ctx context.Context, chatID, userID chatid.ID, input SubmitTurnInput) (<-chan PublicChunk, error) {
	release, ok := o.chatQueueLazy().Acquire(ctx, chatID)
	if !ok {
		return nil, ctx.Err()
	}

	if input.ClientRequestID != "" {
		if existing, found, err := o.Log.FindByClientRequestID(ctx, chatID, input.ClientRequestID); err != nil {
			release()
			return nil, err
		} else if found {
			release()
			out := make(chan PublicChunk, 1)
			content := ""
			finish := ""
			if existing.Message != nil {
				content = existing.Message.Content
				finish = existing.Message.FinishReason
			}
			out <- PublicChunk{Kind: PublicChunkDone, EventID: existing.ID, Content: content, FinishReason: finish}
			close(out)
			return out, nil
		}
	}

	chat, err := o.Chats.FindByID(ctx, chatID)
	if err != nil {
		release()
		return nil, err
	}

	out := make(chan PublicChunk, 8)
	go func() {
		defer release()
		defer close(out)
		o.runTurn(ctx, chat, userID, input, out)
	}()
	return out, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, chat domain.Chat, userID chatid.ID, input SubmitTurnInput, out chan<- PublicChunk) {
	// history is read before the user event is appended, and passed to the
	// assembler as an explicit override (like runSwipe does) with
	// input.Text rendered separately as the pending turn's final message
	// (§4.10 step 8) — so the turn's own text is never double-counted
	// against the history that now already contains it.
	history, err := o.Log.GetMessages(ctx, chat.ID)
	if err != nil {
		out <- PublicChunk{Kind: PublicChunkError, Err: err}
		return
	}

	userEvent := domain.ChatEvent{
		ChatID: chat.ID,
		Kind:   domain.EventKindMessage,
		Message: &domain.MessageEvent{
			Role:            domain.RoleUser,
			Content:         input.Text,
			ClientRequestID: input.ClientRequestID,
		},
	}
	for _, fileID := range input.Attachments {
		userEvent.Message.Attachments = append(userEvent.Message.Attachments, domain.Attachment{FileID: fileID})
	}
	// The user's turn is accepted and persisted unconditionally, before
	// context assembly runs: if C10/C11 aborts the turn below (e.g.
	// ContextOverflow), the user's message must still survive with no
	// assistant reply (§7, §8 scenario 5).
	if _, err := o.Log.Append(ctx, userEvent); err != nil {
		out <- PublicChunk{Kind: PublicChunkError, Err: err}
		return
	}

	assembled, adapter, cred, profile, err := o.assembleTurn(ctx, chat, userID, input, history)
	if err != nil {
		out <- PublicChunk{Kind: PublicChunkError, Err: err}
		return
	}

	o.stream(ctx, chat.ID, profile, adapter, cred, assembled.Messages, o.persistTurn(chat.ID, input.ClientRequestID), out)
	o.runPostTurn(ctx, chat.ID, userID)
}

// runPostTurn dispatches C12's jobs after a turn's terminal persist, using a
// context detached from cancellation: a user canceling mid-stream still
// wants title refresh and memory extraction to run against whatever got
// persisted.
func (o *Orchestrator) runPostTurn(ctx context.Context, chatID, userID chatid.ID) {
	if o.PostTurn == nil {
		return
	}
	o.PostTurn.RunAfterTurn(context.WithoutCancel(ctx), chatID, userID)
}

// persistTurn returns a plain-message persist callback for a fresh
// (non-swipe) turn. The assistant event carries the same ClientRequestID
// as its triggering user event, so a replayed submitTurn's
// FindByClientRequestID lookup (newest-first) resolves to the assistant's
// response rather than the user's own request.
func (o *Orchestrator) persistTurn(chatID chatid.ID, clientRequestID string) func(ctx context.Context, content, finishReason string) chatid.ID {
	return func(ctx context.Context, content, finishReason string) chatid.ID {
		saved, err := o.Log.Append(ctx, domain.ChatEvent{
			ChatID: chatID,
			Kind:   domain.EventKindMessage,
			Message: &domain.MessageEvent{
				Role:            domain.RoleAssistant,
				Content:         content,
				FinishReason:    finishReason,
				ClientRequestID: clientRequestID,
			},
		})
		if err != nil {
			o.Logger.Error().Err(err).Str("chat_id", chatID.String()).Msg("failed to persist assistant message")
			return chatid.Nil
		}
		return saved.ID
	}
}

// assembleTurn resolves the connection profile/credential and runs the
// Context Assembler for a fresh (non-swipe) turn against history, the log
// state as it stood just before the user's own event was appended.
func (o *Orchestrator) assembleTurn(ctx context.Context, chat domain.Chat, userID chatid.ID, input SubmitTurnInput, history []domain.ChatEvent) (contextassembler.Result, provider.Provider, provider.Credential, domain.ConnectionProfile, error) {
	profile, err := o.resolveConnectionProfile(ctx, userID, input.ConnectionProfileOverride)
	if err != nil {
		return contextassembler.Result{}, nil, provider.Credential{}, domain.ConnectionProfile{}, err
	}
	adapter, err := o.Factory.Build(profile.Provider)
	if err != nil {
		return contextassembler.Result{}, nil, provider.Credential{}, domain.ConnectionProfile{}, err
	}
	cred, err := o.resolveCredential(ctx, userID, profile)
	if err != nil {
		return contextassembler.Result{}, nil, provider.Credential{}, domain.ConnectionProfile{}, err
	}

	character, persona, err := o.resolveParticipants(ctx, chat)
	if err != nil {
		return contextassembler.Result{}, nil, provider.Credential{}, domain.ConnectionProfile{}, err
	}

	assembled, err := o.Assembler.Assemble(ctx, contextassembler.Input{
		Chat:            chat,
		Character:       character,
		Persona:         persona,
		Provider:        adapter.TokenProvider(),
		ContextLimit:    o.contextLimit(profile),
		Pending:         contextassembler.PendingTurn{Text: input.Text, Attachments: input.Attachments},
		HistoryOverride: history,
	})
	if err != nil {
		return contextassembler.Result{}, nil, provider.Credential{}, domain.ConnectionProfile{}, err
	}
	return assembled, adapter, cred, profile, nil
}

func (o *Orchestrator) resolveConnectionProfile(ctx context.Context, userID chatid.ID, override *chatid.ID) (domain.ConnectionProfile, error) {
	if override != nil {
		return o.ConnectionProfiles.FindByID(ctx, *override)
	}
	profiles, err := o.ConnectionProfiles.FindByUserID(ctx, userID)
	if err != nil {
		return domain.ConnectionProfile{}, err
	}
	for _, p := range profiles {
		if p.IsDefault {
			return p, nil
		}
	}
	if len(profiles) > 0 {
		return profiles[0], nil
	}
	return domain.ConnectionProfile{}, &chaterrors.ConfigurationError{Missing: []string{"connection profile"}}
}

func (o *Orchestrator) resolveCredential(ctx context.Context, userID chatid.ID, profile domain.ConnectionProfile) (provider.Credential, error) {
	if profile.APICredentialID == nil {
		return provider.Credential{BaseURL: profile.BaseURL}, nil
	}
	cred, err := o.Credentials.Resolve(ctx, userID, *profile.APICredentialID)
	if err != nil {
		return provider.Credential{}, err
	}
	if profile.BaseURL != "" {
		cred.BaseURL = profile.BaseURL
	}
	return cred, nil
}

func (o *Orchestrator) resolveParticipants(ctx context.Context, chat domain.Chat) (domain.Character, *domain.Persona, error) {
	var character domain.Character
	if characterID, ok := chat.ActiveCharacter(); ok {
		c, err := o.Characters.FindByID(ctx, characterID)
		if err != nil {
			return domain.Character{}, nil, err
		}
		character = c
	}
	var persona *domain.Persona
	if personaID, ok := chat.ActivePersona(); ok {
		p, err := o.Personas.FindByID(ctx, personaID)
		if err != nil {
			return domain.Character{}, nil, err
		}
		persona = &p
	}
	return character, persona, nil
}

func (o *Orchestrator) contextLimit(profile domain.ConnectionProfile) int {
	if o.Models != nil {
		if info, ok := o.Models.Get(profile.ModelName); ok && info.ContextWindow > 0 {
			return info.ContextWindow
		}
	}
	return defaultContextWindow
}

func (o *Orchestrator) toolDefinitions() []provider.ToolDefinition {
	if o.Tools == nil {
		return nil
	}
	defs := o.Tools.Definitions()
	out := make([]provider.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, provider.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return out
}

func sendParams(profile domain.ConnectionProfile, messages []provider.Message, tools []provider.ToolDefinition) provider.SendParams {
	return provider.SendParams{
		Model:           profile.ModelName,
		Messages:        messages,
		Temperature:     profile.Parameters.Temperature,
		TopP:            profile.Parameters.TopP,
		MaxTokens:       profile.Parameters.MaxTokens,
		ReasoningEffort: profile.Parameters.ReasoningEffort,
		Tools:           tools,
	}
}

func appendError(out chan<- PublicChunk, err error) {
	out <- PublicChunk{Kind: PublicChunkError, Err: err}
}
