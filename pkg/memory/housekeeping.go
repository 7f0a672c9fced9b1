package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/embedding"
)

// Policy is the optional, per-dimension housekeeping configuration of §4.7.
// All fields are pointers so "unset" is distinguishable from the zero value.
type Policy struct {
	MaxMemories       *int
	MaxAgeMonths      *int
	MaxInactiveMonths *int
	MinImportance     *float64
	MergeSimilar      bool
	MergeThreshold    float64 // in [0.8, 1.0]; zero or out-of-range values fall back to 0.95
	Preview           bool    // true = no writes
}

// Candidate is one memory's fate during a housekeeping run, with a
// human-readable rationale populated in preview mode (§4.7, §SPEC_FULL C.5).
type Candidate struct {
	ID        chatid.ID
	Rationale string
}

// Report is the outcome of a Run call.
type Report struct {
	DeletedIDs  []Candidate
	MergedIDs   []Candidate // loser ids
	Kept        int
	TotalBefore int
	TotalAfter  int
}

const importanceProtectionThreshold = 0.7

// Run performs a policy-driven cleanup for characterID: merge first, then
// delete (§4.7 "ordering of phases: merge -> delete"). In Preview mode no
// repository or vector-index writes occur; the Report still describes what
// would happen.
func (e *Engine) Run(ctx context.Context, characterID chatid.ID, policy Policy) (Report, error) {
	memories, err := e.Repo.FindByCharacter(ctx, characterID)
	if err != nil {
		return Report{}, err
	}
	report := Report{TotalBefore: len(memories)}

	alive := make(map[chatid.ID]domain.Memory, len(memories))
	for _, m := range memories {
		alive[m.ID] = m
	}

	if policy.MergeSimilar {
		threshold := policy.MergeThreshold
		if threshold == 0 {
			threshold = 0.95
		}
		if threshold < 0.8 || threshold > 1.0 {
			threshold = 0.95
		}
		merged, err := e.mergePass(ctx, characterID, alive, threshold, policy.Preview)
		if err != nil {
			return Report{}, err
		}
		report.MergedIDs = merged
	}

	deleted, err := e.deletePass(ctx, alive, policy)
	if err != nil {
		return Report{}, err
	}
	report.DeletedIDs = deleted
	report.Kept = len(alive)
	report.TotalAfter = len(alive)
	return report, nil
}

// mergePass finds pairs whose embeddings exceed threshold and merges the
// loser into the winner: the longer content, max importance, union
// keywords, earliest createdAt (§4.7).
func (e *Engine) mergePass(ctx context.Context, characterID chatid.ID, alive map[chatid.ID]domain.Memory, threshold float64, preview bool) ([]Candidate, error) {
	if e.Vectors == nil {
		return nil, nil
	}
	idx, err := e.Vectors.For(characterID)
	if err != nil {
		return nil, err
	}

	vectors := make(map[chatid.ID][]float64)
	for _, entry := range idx.All() {
		if _, ok := alive[entry.ID]; ok {
			vectors[entry.ID] = entry.Vector
		}
	}

	ids := make([]chatid.ID, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var merged []Candidate
	mergedAway := map[chatid.ID]bool{}

	for i := 0; i < len(ids); i++ {
		a := ids[i]
		if mergedAway[a] {
			continue
		}
		va, ok := vectors[a]
		if !ok {
			continue
		}
		for j := i + 1; j < len(ids); j++ {
			b := ids[j]
			if mergedAway[a] || mergedAway[b] {
				continue
			}
			vb, ok := vectors[b]
			if !ok {
				continue
			}
			score, cerr := embedding.Cosine(va, vb)
			if cerr != nil || score < threshold {
				continue
			}
			winner, loser := pickWinnerLoser(alive[a], alive[b])
			rationale := fmt.Sprintf("cosine %.3f >= mergeThreshold %.3f with %s", score, threshold, loserID(winner, a, b))

			if !preview {
				mergedMem := mergeInto(winner, loser)
				if _, uerr := e.Repo.Update(ctx, mergedMem.ID, func(m *domain.Memory) { *m = mergedMem }); uerr != nil {
					return nil, uerr
				}
				if derr := e.Repo.Delete(ctx, loser.ID); derr != nil {
					return nil, derr
				}
				idx.Remove(loser.ID)
			}

			loserCopy := loser
			merged = append(merged, Candidate{ID: loserCopy.ID, Rationale: rationale})
			mergedAway[loserCopy.ID] = true
			alive[winner.ID] = mergeInto(winner, loser)
			delete(alive, loserCopy.ID)
		}
	}

	if !preview && len(merged) > 0 {
		_ = idx.Save()
	}
	return merged, nil
}

func loserID(winner domain.Memory, a, b chatid.ID) string {
	if winner.ID == a {
		return b.String()
	}
	return a.String()
}

// pickWinnerLoser orders a pair so the longer-content memory is the winner,
// with ties broken by the earlier createdAt.
func pickWinnerLoser(a, b domain.Memory) (winner, loser domain.Memory) {
	if len(a.Content) > len(b.Content) {
		return a, b
	}
	if len(b.Content) > len(a.Content) {
		return b, a
	}
	if a.CreatedAt.Before(b.CreatedAt) {
		return a, b
	}
	return b, a
}

// mergeInto combines winner and loser per §4.7's merge rule.
func mergeInto(winner, loser domain.Memory) domain.Memory {
	out := winner
	if len(loser.Content) > len(out.Content) {
		out.Content = loser.Content
	}
	if loser.Importance > out.Importance {
		out.Importance = loser.Importance
	}
	out.Keywords = unionStrings(out.Keywords, loser.Keywords)
	if loser.CreatedAt.Before(out.CreatedAt) {
		out.CreatedAt = loser.CreatedAt
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// deletePass applies maxMemories/maxAgeMonths/maxInactiveMonths/minImportance
// over the surviving set (§4.7).
func (e *Engine) deletePass(ctx context.Context, alive map[chatid.ID]domain.Memory, policy Policy) ([]Candidate, error) {
	now := time.Now()
	var toDelete []Candidate
	marked := map[chatid.ID]bool{}

	mark := func(m domain.Memory, reason string) {
		if marked[m.ID] {
			return
		}
		marked[m.ID] = true
		toDelete = append(toDelete, Candidate{ID: m.ID, Rationale: reason})
	}

	if policy.MinImportance != nil {
		for _, m := range alive {
			if m.Importance < *policy.MinImportance {
				mark(m, fmt.Sprintf("importance %.2f < minImportance %.2f", m.Importance, *policy.MinImportance))
			}
		}
	}

	if policy.MaxAgeMonths != nil {
		cutoff := now.AddDate(0, -*policy.MaxAgeMonths, 0)
		for _, m := range alive {
			if marked[m.ID] {
				continue
			}
			if m.CreatedAt.Before(cutoff) && m.Importance < importanceProtectionThreshold {
				ageMonths := int(now.Sub(m.CreatedAt).Hours() / 24 / 30)
				mark(m, fmt.Sprintf("age %dmo > maxAgeMonths=%d, importance %.2f < %.2f", ageMonths, *policy.MaxAgeMonths, m.Importance, importanceProtectionThreshold))
			}
		}
	}

	if policy.MaxInactiveMonths != nil {
		cutoff := now.AddDate(0, -*policy.MaxInactiveMonths, 0)
		for _, m := range alive {
			if marked[m.ID] {
				continue
			}
			if m.LastAccessedAt.Before(cutoff) && m.Importance < importanceProtectionThreshold {
				inactiveMonths := int(now.Sub(m.LastAccessedAt).Hours() / 24 / 30)
				mark(m, fmt.Sprintf("inactive %dmo > maxInactiveMonths=%d, importance %.2f < %.2f", inactiveMonths, *policy.MaxInactiveMonths, m.Importance, importanceProtectionThreshold))
			}
		}
	}

	if policy.MaxMemories != nil && len(alive)-len(toDelete) > *policy.MaxMemories {
		remaining := make([]domain.Memory, 0, len(alive))
		for _, m := range alive {
			if !marked[m.ID] {
				remaining = append(remaining, m)
			}
		}
		sort.Slice(remaining, func(i, j int) bool {
			if remaining[i].Importance != remaining[j].Importance {
				return remaining[i].Importance < remaining[j].Importance
			}
			if !remaining[i].CreatedAt.Equal(remaining[j].CreatedAt) {
				return remaining[i].CreatedAt.Before(remaining[j].CreatedAt)
			}
			return remaining[i].LastAccessedAt.Before(remaining[j].LastAccessedAt)
		})
		overflow := len(remaining) - *policy.MaxMemories
		for i := 0; i < overflow; i++ {
			mark(remaining[i], fmt.Sprintf("overflow beyond maxMemories=%d (lowest importance/oldest/least-recently-accessed)", *policy.MaxMemories))
		}
	}

	if !policy.Preview {
		for _, c := range toDelete {
			mem := alive[c.ID]
			if err := e.Delete(ctx, mem); err != nil {
				return nil, err
			}
		}
	}
	for _, c := range toDelete {
		delete(alive, c.ID)
	}

	return toDelete, nil
}

