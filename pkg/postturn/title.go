package postturn

import (
	"context"
	"strings"

	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/provider"
)

const titleRefreshSystemPrompt = "Suggest a short, descriptive title (five words or fewer) for the following conversation. " +
	"Respond with only the title, no quotes, no punctuation at the end."

// refreshTitle implements §4.12's title-refresh job: at each interchange
// checkpoint, ask the cheap profile for a better title, unless this chat
// was already checked at or past this checkpoint.
func (r *Runner) refreshTitle(ctx context.Context, chat domain.Chat) error {
	events, err := r.Log.GetMessages(ctx, chat.ID)
	if err != nil {
		return err
	}
	interchange := countInterchanges(events)
	if !isCheckpoint(interchange) {
		return nil
	}
	if chat.TitleLastCheckedAtInterchange != nil && *chat.TitleLastCheckedAtInterchange >= interchange {
		return nil
	}

	profile, err := r.resolveCheapProfile(ctx, chat.UserID)
	if err != nil {
		return err
	}
	adapter, err := r.Factory.Build(profile.Provider)
	if err != nil {
		return err
	}
	cred, err := r.resolveCredential(ctx, chat.UserID, profile)
	if err != nil {
		return err
	}

	messages := []provider.Message{{Role: provider.RoleSystem, Text: titleRefreshSystemPrompt}}
	for _, ev := range tailWindow(visibleMessages(events), titleRefreshWindow) {
		messages = append(messages, provider.Message{Role: wireRole(ev.Message.Role), Text: ev.Message.Content})
	}

	result, err := adapter.SendMessage(ctx, cred, provider.SendParams{Model: profile.ModelName, Messages: messages})
	if err != nil {
		return err
	}

	checkpoint := interchange
	newTitle := sanitizeTitle(result.Content)
	if newTitle == "" || newTitle == chat.Title {
		_, err = r.Chats.Update(ctx, chat.ID, func(c *domain.Chat) {
			c.TitleLastCheckedAtInterchange = &checkpoint
		})
		return err
	}
	_, err = r.Chats.Update(ctx, chat.ID, func(c *domain.Chat) {
		c.Title = newTitle
		c.TitleLastCheckedAtInterchange = &checkpoint
	})
	return err
}

const titleRefreshWindow = 8

func tailWindow(events []domain.ChatEvent, n int) []domain.ChatEvent {
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, "\"'.")
	if len(title) > 80 {
		title = title[:80]
	}
	return title
}

func wireRole(role domain.MessageRole) provider.MessageRole {
	switch role {
	case domain.RoleAssistant:
		return provider.RoleAssistant
	case domain.RoleSystem:
		return provider.RoleSystem
	default:
		return provider.RoleUser
	}
}
