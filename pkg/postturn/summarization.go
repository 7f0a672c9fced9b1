package postturn

import (
	"context"
	"strings"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/contextassembler"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/provider"
	"github.com/inkwell-ai/chatcore/pkg/tokencount"
)

const summarizationSystemPrompt = "Summarize the following stretch of a roleplay conversation into a short paragraph " +
	"that preserves plot-relevant facts, character state, and open threads. Write it as backstory a reader could use " +
	"to pick up the scene, not as a recap addressed to the reader."

// summarizeIfDropping implements §4.12's context-summarization job: if
// assembling the next turn would drop more history than the configured
// threshold, fold the oldest dropped stretch into a context-summary event so
// it is represented by a compact block instead of being lost outright.
func (r *Runner) summarizeIfDropping(ctx context.Context, chat domain.Chat, userID chatid.ID) error {
	if r.Assembler == nil {
		return nil
	}

	profile, err := r.resolveDefaultProfile(ctx, userID)
	if err != nil {
		return err
	}

	var character domain.Character
	if characterID, ok := chat.ActiveCharacter(); ok {
		c, err := r.Characters.FindByID(ctx, characterID)
		if err != nil {
			return err
		}
		character = c
	}
	var persona *domain.Persona
	if personaID, ok := chat.ActivePersona(); ok {
		p, err := r.Personas.FindByID(ctx, personaID)
		if err != nil {
			return err
		}
		persona = &p
	}

	result, err := r.Assembler.Assemble(ctx, contextassembler.Input{
		Chat:         chat,
		Character:    character,
		Persona:      persona,
		Provider:     adapterTokenProvider(r, profile),
		ContextLimit: r.contextLimit(profile),
	})
	if err != nil {
		return err
	}
	if result.DroppedMessages <= r.threshold() {
		return nil
	}

	events, err := r.Log.GetMessages(ctx, chat.ID)
	if err != nil {
		return err
	}
	visible := visibleMessages(events)
	if len(visible) == 0 {
		return nil
	}
	cut := result.DroppedMessages
	if cut > len(visible) {
		cut = len(visible)
	}
	toSummarize := visible[:cut]

	cheap, err := r.resolveCheapProfile(ctx, userID)
	if err != nil {
		return err
	}
	adapter, err := r.Factory.Build(cheap.Provider)
	if err != nil {
		return err
	}
	cred, err := r.resolveCredential(ctx, userID, cheap)
	if err != nil {
		return err
	}

	messages := []provider.Message{{Role: provider.RoleSystem, Text: summarizationSystemPrompt}}
	for _, ev := range toSummarize {
		messages = append(messages, provider.Message{Role: wireRole(ev.Message.Role), Text: ev.Message.Content})
	}

	sent, err := adapter.SendMessage(ctx, cred, provider.SendParams{Model: cheap.ModelName, Messages: messages})
	if err != nil {
		return err
	}
	summary := strings.TrimSpace(sent.Content)
	if summary == "" {
		return nil
	}

	_, err = r.Log.Append(ctx, domain.ChatEvent{
		ChatID: chat.ID,
		Kind:   domain.EventKindContextSummary,
		ContextSummary: &domain.ContextSummaryEvent{
			SummarizesUpToEventID: toSummarize[len(toSummarize)-1].ID,
			Content:               summary,
			TokenCount:            sent.Usage.CompletionTokens,
		},
	})
	return err
}

// resolveDefaultProfile picks the user's ordinary (non-cheap) connection
// profile, the one a live turn would actually use, so the dropped-message
// probe reflects the budget real turns assemble against.
func (r *Runner) resolveDefaultProfile(ctx context.Context, userID chatid.ID) (domain.ConnectionProfile, error) {
	profiles, err := r.ConnectionProfiles.FindByUserID(ctx, userID)
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
	return r.resolveCheapProfile(ctx, userID)
}

func adapterTokenProvider(r *Runner, profile domain.ConnectionProfile) tokencount.Provider {
	adapter, err := r.Factory.Build(profile.Provider)
	if err != nil {
		return tokencount.ProviderOpenAI
	}
	return adapter.TokenProvider()
}
