// Package contextassembler implements the Context Assembler (C10, §4.10):
// given a chat and a pending user turn, it produces the ordered list of
// provider messages that fit within a connection profile's token budget.
// The eight-block fixed order and the reverse-chronological admission
// procedure are this package's own contribution; the shape of a budgeted,
// phased trim (estimate non-negotiable blocks first, then admit what fits)
// is grounded on the teacher's own context_pruning.go, generalized from its
// char-budget tool-result trimming to this core's token-budget history
// admission.
package contextassembler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/filestore"
	"github.com/inkwell-ai/chatcore/pkg/memory"
	"github.com/inkwell-ai/chatcore/pkg/provider"
	"github.com/inkwell-ai/chatcore/pkg/repo"
	"github.com/inkwell-ai/chatcore/pkg/template"
	"github.com/inkwell-ai/chatcore/pkg/tokencount"
)

// defaultReservedResponseTokens is subtracted from the context limit before
// any history is admitted, reserving room for the model's own reply (§4.10).
const defaultReservedResponseTokens = 1000

// defaultMemoryTopK bounds how many memories Search returns before the
// budget trims them further.
const defaultMemoryTopK = 8

// minMemoryFloor is the minimum number of memories kept even when they
// would otherwise be dropped to make room for recent history (§4.10).
const minMemoryFloor = 2

// Assembler wires the components needed to render a context: the per-chat
// event log, the long-term memory engine, and the file store for inline
// attachment resolution.
type Assembler struct {
	Log      repo.ChatLog
	Memories *memory.Engine
	Files    *filestore.Store
	Logger   zerolog.Logger
}

// PendingTurn is the user input being assembled into context, not yet
// appended to the chat log.
type PendingTurn struct {
	Text        string
	Attachments []chatid.ID // FileEntry ids
}

// Input collects everything Assemble needs besides the chat's own event
// log, which is read directly via Assembler.Log.
type Input struct {
	Chat         domain.Chat
	Character    domain.Character
	Persona      *domain.Persona
	UserName     string
	Provider     tokencount.Provider
	ContextLimit int // model's context window, in tokens
	Pending      PendingTurn

	// HistoryOverride, when non-nil, is used in place of Log.GetMessages as
	// the event history to render. Swipe uses it to pass history up to but
	// excluding the message being swiped (§4.11: "context assembly uses the
	// same inputs the original turn used"). A regular turn uses it too, to
	// pass the history fetched before the turn's own user event was
	// appended to the log, so that event isn't read back and counted twice.
	HistoryOverride []domain.ChatEvent
}

// Result is the assembled, budget-fitted message list ready to hand to a
// Provider adapter, plus the token estimate that produced it.
type Result struct {
	Messages        []provider.Message
	EstimatedTokens int
	DroppedMemories int

	// DroppedMessages is how many history events did not fit the budget
	// (§4.12 context summarization trigger: "would drop more than N
	// messages").
	DroppedMessages int
}

// Assemble renders the eight-block fixed order of §4.10 and fits it to
// in.ContextLimit, admitting memories and history in reverse chronological
// preference until the budget is exhausted.
func (a *Assembler) Assemble(ctx context.Context, in Input) (Result, error) {
	vars := templateVars(in)

	nonNegotiable := nonNegotiableBlocks(in, vars)
	nonNegotiableTokens := 0
	for _, m := range nonNegotiable {
		nonNegotiableTokens += tokencount.EstimateMessage(tokencount.Message{Role: string(m.Role), Text: m.Text}, in.Provider)
	}

	pendingAttachments, err := a.resolveAttachments(in.Pending.Attachments)
	if err != nil {
		return Result{}, err
	}
	pendingMsg := provider.Message{Role: provider.RoleUser, Text: in.Pending.Text, Attachments: pendingAttachments}
	pendingTokens := tokencount.EstimateMessage(tokencount.Message{Role: string(pendingMsg.Role), Text: pendingMsg.Text}, in.Provider)

	if nonNegotiableTokens+pendingTokens >= in.ContextLimit {
		return Result{}, &chaterrors.ContextOverflow{
			Required:  nonNegotiableTokens + pendingTokens,
			Available: in.ContextLimit,
		}
	}

	remaining := in.ContextLimit - nonNegotiableTokens - pendingTokens - defaultReservedResponseTokens
	if remaining < 0 {
		remaining = 0
	}

	history, err := a.loadHistory(ctx, in.Chat.ID, in.HistoryOverride)
	if err != nil {
		return Result{}, err
	}

	var rankedMemories []memory.RankedMemory
	if a.Memories != nil && in.Pending.Text != "" {
		if characterID, ok := in.Chat.ActiveCharacter(); ok {
			rankedMemories, err = a.Memories.Search(ctx, characterID, in.Chat.UserID, in.Pending.Text, memory.SearchOptions{TopK: defaultMemoryTopK})
			if err != nil {
				a.Logger.Warn().Err(err).Msg("memory search failed, continuing without memories")
				rankedMemories = nil
			}
		}
	}

	admitted, droppedMemories, droppedMessages := admitWithinBudget(rankedMemories, history, in.Provider, remaining)

	messages := make([]provider.Message, 0, len(nonNegotiable)+len(admitted)+1)
	messages = append(messages, nonNegotiable...)
	messages = append(messages, admitted...)
	messages = append(messages, pendingMsg)

	total := nonNegotiableTokens + pendingTokens
	for _, m := range admitted {
		total += tokencount.EstimateMessage(tokencount.Message{Role: string(m.Role), Text: m.Text}, in.Provider)
	}

	return Result{Messages: messages, EstimatedTokens: total, DroppedMemories: droppedMemories, DroppedMessages: droppedMessages}, nil
}

func templateVars(in Input) template.Vars {
	personaName, personaDesc := "", ""
	if in.Persona != nil {
		personaName = in.Persona.Name
		personaDesc = in.Persona.Description
	}
	userName := in.UserName
	if userName == "" {
		userName = personaName
	}
	return template.Vars{
		Char:        in.Character.Name,
		Description: in.Character.Description,
		Personality: in.Character.Personality,
		Scenario:    in.Character.Scenario,
		User:        userName,
		Persona:     personaDesc,
		System:      in.Character.SystemPrompt,
		MesExamples: in.Character.ExampleDialogues,
	}
}

// nonNegotiableBlocks renders §4.10 steps 1-4: system prompt, persona,
// character, and example dialogues. These are never trimmed; if they alone
// overflow the budget, Assemble fails with ContextOverflow.
func nonNegotiableBlocks(in Input, vars template.Vars) []provider.Message {
	var out []provider.Message

	systemPrompt := in.Character.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	out = append(out, provider.Message{Role: provider.RoleSystem, Text: template.Render(systemPrompt, vars)})

	if in.Persona != nil {
		personaBlock := fmt.Sprintf("You are talking to %s. %s", vars.User, vars.Persona)
		out = append(out, provider.Message{Role: provider.RoleSystem, Text: template.Render(personaBlock, vars)})
	}

	characterBlock := strings.Join(nonEmpty(in.Character.Description, in.Character.Personality, in.Character.Scenario), "\n")
	if characterBlock != "" {
		out = append(out, provider.Message{Role: provider.RoleSystem, Text: template.Render(characterBlock, vars)})
	}

	for _, pair := range parseExampleDialogues(in.Character.ExampleDialogues, vars) {
		out = append(out, pair)
	}

	return out
}

const defaultSystemPrompt = "You are {{char}}, an AI roleplay character. Stay in character and respond naturally."

func nonEmpty(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseExampleDialogues splits a character card's example-dialogue text on
// "<START>" block markers (the convention this domain's character cards
// use), then within each block pairs lines prefixed "{{user}}:" and
// "{{char}}:" into alternating user/assistant few-shot messages.
func parseExampleDialogues(raw string, vars template.Vars) []provider.Message {
	if raw == "" {
		return nil
	}
	var out []provider.Message
	for _, block := range strings.Split(raw, "<START>") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			switch {
			case strings.HasPrefix(line, "{{user}}:"):
				text := strings.TrimSpace(strings.TrimPrefix(line, "{{user}}:"))
				out = append(out, provider.Message{Role: provider.RoleUser, Text: template.Render(text, vars)})
			case strings.HasPrefix(line, "{{char}}:"):
				text := strings.TrimSpace(strings.TrimPrefix(line, "{{char}}:"))
				out = append(out, provider.Message{Role: provider.RoleAssistant, Text: template.Render(text, vars)})
			}
		}
	}
	return out
}

func (a *Assembler) resolveAttachments(fileIDs []chatid.ID) ([]provider.Attachment, error) {
	if a.Files == nil || len(fileIDs) == 0 {
		return nil, nil
	}
	out := make([]provider.Attachment, 0, len(fileIDs))
	for _, id := range fileIDs {
		entry, err := a.Files.Get(id)
		if err != nil {
			return nil, err
		}
		data, err := a.Files.Read(id)
		if err != nil {
			return nil, err
		}
		out = append(out, provider.Attachment{
			FileID:   id,
			Kind:     attachmentKindFor(entry.MimeType),
			MimeType: entry.MimeType,
			Data:     data,
		})
	}
	return out, nil
}

func attachmentKindFor(mime string) provider.AttachmentKind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return provider.AttachmentImage
	case strings.HasPrefix(mime, "audio/"):
		return provider.AttachmentAudio
	case strings.HasPrefix(mime, "video/"):
		return provider.AttachmentVideo
	case mime == "application/pdf":
		return provider.AttachmentPDF
	default:
		return provider.AttachmentImage
	}
}
