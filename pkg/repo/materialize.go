package repo

import (
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
)

// Materialize folds a chat's raw append-only log, in Seq order, into the
// "current" view the rest of the system reads: superseding events (edit,
// tombstone, swipe-group-assigned, swipe-selected, swipe-staled) are applied
// to the message/tool-invocation/context-summary events they reference
// rather than surfaced on their own. The sibling events of a swipe group
// all stay in the result, with Selected marking the chosen one. Every
// ChatLog backend calls this from GetMessages/GetEvent/FindByClientRequestID
// so storage itself stays append-only (§3, §8 Testable Property 1).
func Materialize(raw []domain.ChatEvent) []domain.ChatEvent {
	out := make([]domain.ChatEvent, 0, len(raw))
	index := make(map[chatid.ID]int, len(raw))
	groupMembers := make(map[chatid.ID][]chatid.ID)

	for _, ev := range raw {
		switch ev.Kind {
		case domain.EventKindMessage, domain.EventKindToolInvocation, domain.EventKindContextSummary:
			cp := ev
			if ev.Message != nil {
				msg := *ev.Message
				if len(msg.PriorContents) > 0 {
					prior := make([]string, len(msg.PriorContents))
					copy(prior, msg.PriorContents)
					msg.PriorContents = prior
				}
				if len(msg.Attachments) > 0 {
					atts := make([]domain.Attachment, len(msg.Attachments))
					copy(atts, msg.Attachments)
					msg.Attachments = atts
				}
				cp.Message = &msg
				if msg.SwipeGroupID != nil {
					gid := *msg.SwipeGroupID
					groupMembers[gid] = append(groupMembers[gid], ev.ID)
				}
			}
			out = append(out, cp)
			index[ev.ID] = len(out) - 1

		case domain.EventKindEdit:
			if ev.Edit == nil {
				continue
			}
			if pos, ok := index[ev.Edit.TargetEventID]; ok && out[pos].Message != nil {
				m := out[pos].Message
				m.PriorContents = append(m.PriorContents, m.Content)
				m.Content = ev.Edit.NewContent
				m.Edited = true
			}

		case domain.EventKindTombstone:
			if ev.Tombstone == nil {
				continue
			}
			if pos, ok := index[ev.Tombstone.TargetEventID]; ok && out[pos].Message != nil {
				out[pos].Message.Deleted = true
			}

		case domain.EventKindSwipeGroupAssigned:
			if ev.SwipeGroupAssigned == nil {
				continue
			}
			a := ev.SwipeGroupAssigned
			if pos, ok := index[a.TargetEventID]; ok && out[pos].Message != nil {
				m := out[pos].Message
				gid := a.GroupID
				idx := 0
				m.SwipeGroupID = &gid
				m.SwipeIndex = &idx
				m.Selected = true
			}
			groupMembers[a.GroupID] = append(groupMembers[a.GroupID], a.TargetEventID)

		case domain.EventKindSwipeSelected:
			if ev.SwipeSelected == nil {
				continue
			}
			s := ev.SwipeSelected
			for _, memberID := range groupMembers[s.GroupID] {
				if pos, ok := index[memberID]; ok && out[pos].Message != nil {
					out[pos].Message.Selected = memberID == s.SelectedEventID
				}
			}

		case domain.EventKindSwipeStaled:
			if ev.SwipeStaled == nil {
				continue
			}
			for _, id := range ev.SwipeStaled.EventIDs {
				if pos, ok := index[id]; ok && out[pos].Message != nil {
					out[pos].Message.Stale = true
				}
			}
		}
	}

	return out
}
