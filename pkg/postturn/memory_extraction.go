package postturn

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/provider"
)

const memoryExtractionSystemPrompt = "You extract durable facts worth remembering from the closing exchange of a " +
	"roleplay conversation. Respond with a JSON array of 0 to 5 objects, each shaped " +
	`{"content": string, "summary": string, "keywords": [string], "importance": number between 0 and 1}. ` +
	"If nothing is worth remembering, respond with an empty array. Respond with only the JSON array."

const memoryExtractionWindow = 4

type memoryCandidate struct {
	Content    string   `json:"content"`
	Summary    string   `json:"summary"`
	Keywords   []string `json:"keywords"`
	Importance float64  `json:"importance"`
}

// extractMemories implements §4.12's memory-extraction job: summarize the
// closing exchange into 0..M memory candidates, embed and persist each
// through the Memory Engine (C7), tagged with the chat id.
func (r *Runner) extractMemories(ctx context.Context, chat domain.Chat, userID chatid.ID) error {
	characterID, ok := chat.ActiveCharacter()
	if !ok || r.Memories == nil {
		return nil
	}

	events, err := r.Log.GetMessages(ctx, chat.ID)
	if err != nil {
		return err
	}
	closing := tailWindow(visibleMessages(events), memoryExtractionWindow)
	if len(closing) == 0 {
		return nil
	}

	profile, err := r.resolveCheapProfile(ctx, userID)
	if err != nil {
		return err
	}
	adapter, err := r.Factory.Build(profile.Provider)
	if err != nil {
		return err
	}
	cred, err := r.resolveCredential(ctx, userID, profile)
	if err != nil {
		return err
	}

	messages := []provider.Message{{Role: provider.RoleSystem, Text: memoryExtractionSystemPrompt}}
	for _, ev := range closing {
		messages = append(messages, provider.Message{Role: wireRole(ev.Message.Role), Text: ev.Message.Content})
	}

	result, err := adapter.SendMessage(ctx, cred, provider.SendParams{Model: profile.ModelName, Messages: messages})
	if err != nil {
		return err
	}

	candidates, err := parseMemoryCandidates(result.Content)
	if err != nil {
		r.Logger.Warn().Err(err).Str("chat_id", chat.ID.String()).Msg("post-turn: memory extraction produced unparseable output, skipping")
		return nil
	}

	chatID := chat.ID
	for _, c := range candidates {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		importance := c.Importance
		if importance < 0 {
			importance = 0
		}
		if importance > 1 {
			importance = 1
		}
		mem := domain.Memory{
			CharacterID: characterID,
			Content:     c.Content,
			Summary:     c.Summary,
			Keywords:    c.Keywords,
			Importance:  importance,
			ChatID:      &chatID,
		}
		if _, err := r.Memories.Create(ctx, userID, mem); err != nil {
			r.Logger.Error().Err(err).Str("chat_id", chat.ID.String()).Msg("post-turn: failed to persist extracted memory")
		}
	}
	return nil
}

// parseMemoryCandidates tolerates a model wrapping its JSON array in a
// fenced code block, which several OpenAI-shape models do despite
// instructions not to.
func parseMemoryCandidates(raw string) ([]memoryCandidate, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var candidates []memoryCandidate
	if err := json.Unmarshal([]byte(text), &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}
