package contextassembler

import (
	"context"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/memory"
	"github.com/inkwell-ai/chatcore/pkg/provider"
	"github.com/inkwell-ai/chatcore/pkg/tokencount"
)

// loadHistory returns the message events to consider for context assembly
// (§4.10 steps 6-7): the latest context-summary event (if any) rendered as
// a single system message, followed by every message event after the last
// event that summary covers (its SummarizesUpToEventID, or the summary event
// itself when that id is not in the log), oldest first, with
// deleted/stale-duplicate bookkeeping resolved and swipe groups collapsed
// to the currently selected variant.
func (a *Assembler) loadHistory(ctx context.Context, chatID chatid.ID, override []domain.ChatEvent) ([]provider.Message, error) {
	events := override
	if events == nil {
		loaded, err := a.Log.GetMessages(ctx, chatID)
		if err != nil {
			return nil, err
		}
		events = loaded
	}

	cutoff := 0
	var summary *domain.ContextSummaryEvent
	for i, ev := range events {
		if ev.Kind == domain.EventKindContextSummary && ev.ContextSummary != nil {
			summary = ev.ContextSummary
			cutoff = i + 1
		}
	}
	if summary != nil {
		for i, ev := range events {
			if ev.ID == summary.SummarizesUpToEventID {
				cutoff = i + 1
				break
			}
		}
	}

	var out []provider.Message
	if summary != nil {
		out = append(out, provider.Message{Role: provider.RoleSystem, Text: "Summary of earlier conversation: " + summary.Content})
	}

	selected := selectVisibleMessages(events[cutoff:])
	for _, ev := range selected {
		out = append(out, provider.Message{
			Role: wireRole(ev.Message.Role),
			Text: ev.Message.Content,
		})
	}
	return out, nil
}

// selectVisibleMessages filters message events down to the ones context
// assembly should actually see: tombstoned messages are dropped, and
// within a swipe group only the Selected variant survives.
func selectVisibleMessages(events []domain.ChatEvent) []domain.ChatEvent {
	var out []domain.ChatEvent
	seenGroups := map[chatid.ID]bool{}
	// Walk newest-first so the first Selected swipe encountered per group
	// wins, then reverse back to chronological order.
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Kind != domain.EventKindMessage || ev.Message == nil {
			continue
		}
		if ev.Message.Deleted {
			continue
		}
		if ev.Message.SwipeGroupID != nil {
			gid := *ev.Message.SwipeGroupID
			if seenGroups[gid] {
				continue
			}
			if !ev.Message.Selected {
				continue
			}
			seenGroups[gid] = true
		}
		out = append(out, ev)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
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

// admitWithinBudget implements §4.10's reverse-chronological admission:
// history is preferred newest-first, memories are admitted alongside it,
// and if memories would crowd out recent history the oldest memories are
// dropped first down to minMemoryFloor. The final result is returned in
// chronological order: memories block, then history oldest to newest.
func admitWithinBudget(ranked []memory.RankedMemory, history []provider.Message, tp tokencount.Provider, budget int) ([]provider.Message, int, int) {
	historyTokens := make([]int, len(history))
	for i, m := range history {
		historyTokens[i] = tokencount.EstimateMessage(tokencount.Message{Role: string(m.Role), Text: m.Text}, tp)
	}

	admittedHistory := make([]bool, len(history))
	remaining := budget
	for i := len(history) - 1; i >= 0; i-- {
		if historyTokens[i] <= remaining {
			admittedHistory[i] = true
			remaining -= historyTokens[i]
		} else {
			break
		}
	}
	droppedMessages := 0
	for _, admitted := range admittedHistory {
		if !admitted {
			droppedMessages++
		}
	}

	memoryBlock, memoryTokens := renderMemoryBlock(ranked, tp)
	dropped := 0
	for memoryBlock != "" && memoryTokens > remaining && len(ranked) > minMemoryFloor {
		oldest := 0
		for i := 1; i < len(ranked); i++ {
			if !ranked[i].Memory.CreatedAt.After(ranked[oldest].Memory.CreatedAt) {
				oldest = i
			}
		}
		ranked = append(ranked[:oldest:oldest], ranked[oldest+1:]...)
		dropped++
		memoryBlock, memoryTokens = renderMemoryBlock(ranked, tp)
	}
	if memoryTokens > remaining {
		// Even the floor doesn't fit; drop memories entirely rather than
		// starve history further.
		memoryBlock = ""
		dropped += len(ranked)
	} else {
		remaining -= memoryTokens
	}

	var out []provider.Message
	if memoryBlock != "" {
		out = append(out, provider.Message{Role: provider.RoleSystem, Text: memoryBlock})
	}
	for i, ev := range history {
		if admittedHistory[i] {
			out = append(out, ev)
		}
	}
	return out, dropped, droppedMessages
}

func renderMemoryBlock(ranked []memory.RankedMemory, tp tokencount.Provider) (string, int) {
	if len(ranked) == 0 {
		return "", 0
	}
	text := "Relevant long-term memories:"
	for _, r := range ranked {
		text += "\n- " + r.Memory.Content
	}
	return text, tokencount.Estimate(text, tp)
}
