package postturn

import (
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
)

// isCheckpoint reports whether n is one of §4.12's title-refresh
// checkpoints: {2, 3, 5, 7, 10, 20, 30, …} (every 10 after 10).
func isCheckpoint(n int) bool {
	switch n {
	case 2, 3, 5, 7, 10:
		return true
	}
	return n > 10 && n%10 == 0
}

// countInterchanges counts adjacent USER->ASSISTANT message pairs in
// events, the unit the title-refresh cadence is measured in (§4.12's
// glossary entry: "one user-assistant message pair"). Non-message events
// (tool invocations, summaries) are skipped, as are tombstoned messages and
// non-selected swipe variants, matching the view context assembly itself
// renders.
func countInterchanges(events []domain.ChatEvent) int {
	visible := visibleMessages(events)
	count := 0
	for i := 0; i+1 < len(visible); i++ {
		if visible[i].Message.Role == domain.RoleUser && visible[i+1].Message.Role == domain.RoleAssistant {
			count++
		}
	}
	return count
}

// visibleMessages mirrors contextassembler's selectVisibleMessages: drop
// tombstoned messages and collapse each swipe group to its Selected
// variant. Duplicated rather than exported across packages because the two
// callers run at different points in a turn's lifecycle and want no shared
// mutable state between them.
func visibleMessages(events []domain.ChatEvent) []domain.ChatEvent {
	var out []domain.ChatEvent
	seenGroups := map[chatid.ID]bool{}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Kind != domain.EventKindMessage || ev.Message == nil || ev.Message.Deleted {
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
