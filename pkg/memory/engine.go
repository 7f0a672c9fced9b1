// Package memory implements the Memory Engine (C7, §4.7): CRUD, hybrid
// (vector + keyword) retrieval, importance scoring, and housekeeping
// (deletion, merging, access-time updates) over a character's long-term
// memories. Retrieval's vector-then-keyword-fallback shape and its scoring
// blend are the core's own contribution; the teacher contributes the
// hybrid-merge arithmetic idiom (pkg/memory/hybrid.go MergeHybridResults)
// and the embedding client this engine calls into (pkg/embedding).
package memory

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/embedding"
	"github.com/inkwell-ai/chatcore/pkg/vectorindex"
)

// Repo is the storage contract the Memory Engine needs from C2.
type Repo interface {
	FindByCharacter(ctx context.Context, characterID chatid.ID) ([]domain.Memory, error)
	Get(ctx context.Context, id chatid.ID) (domain.Memory, error)
	Create(ctx context.Context, mem domain.Memory) (domain.Memory, error)
	Update(ctx context.Context, id chatid.ID, mutate func(*domain.Memory)) (domain.Memory, error)
	Delete(ctx context.Context, id chatid.ID) error
}

// EmbeddingResolver resolves a user's default embedding profile and the
// decrypted credential needed to call it.
type EmbeddingResolver interface {
	DefaultProfile(ctx context.Context, userID chatid.ID) (domain.EmbeddingProfile, embedding.Credential, bool, error)
}

// Engine is the Memory Engine.
type Engine struct {
	Repo       Repo
	Vectors    *vectorindex.Manager
	Embeddings EmbeddingResolver
	Log        zerolog.Logger
}

// RankedMemory is a retrieval hit with its blended relevance score.
type RankedMemory struct {
	Memory domain.Memory
	Score  float64
}

// SearchOptions tunes a single retrieval call (§4.7).
type SearchOptions struct {
	TopK int
}

const defaultTopK = 8

// Search retrieves the most relevant memories for query, following the five
// steps of §4.7: embed, vector search, keyword fallback, blended ranking,
// fire-and-forget access-time update.
func (e *Engine) Search(ctx context.Context, characterID, userID chatid.ID, query string, opts SearchOptions) ([]RankedMemory, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	all, err := e.Repo.FindByCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	byID := make(map[chatid.ID]domain.Memory, len(all))
	for _, m := range all {
		byID[m.ID] = m
	}

	var hits []vectorindex.Scored
	usedEmbedding := false

	if e.Embeddings != nil && e.Vectors != nil {
		if profile, cred, ok, perr := e.Embeddings.DefaultProfile(ctx, userID); perr == nil && ok {
			if res, embErr := embedding.Embed(ctx, query, profile, cred); embErr == nil {
				if idx, idxErr := e.Vectors.For(characterID); idxErr == nil {
					if scored, searchErr := idx.Search(res.Vector, topK, nil); searchErr == nil && len(scored) > 0 {
						hits = scored
						usedEmbedding = true
					}
				}
			}
		}
	}

	var ranked []RankedMemory
	if usedEmbedding {
		for _, h := range hits {
			mem, ok := byID[h.ID]
			if !ok {
				continue
			}
			ranked = append(ranked, RankedMemory{
				Memory: mem,
				Score:  blendScore(h.Score, mem),
			})
		}
	} else {
		for _, mem := range all {
			sim := embedding.TextSimilarity(query, mem.Summary+" "+mem.Content)
			if sim <= 0 {
				continue
			}
			ranked = append(ranked, RankedMemory{Memory: mem, Score: blendScore(sim, mem)})
		}
	}

	dedup := make(map[chatid.ID]bool, len(ranked))
	deduped := ranked[:0]
	for _, r := range ranked {
		if dedup[r.Memory.ID] {
			continue
		}
		dedup[r.Memory.ID] = true
		deduped = append(deduped, r)
	}
	ranked = deduped

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	go e.touchAccessTimes(ranked)

	return ranked, nil
}

// blendScore implements §4.7 step 4's weighted rank:
// 0.7*similarity + 0.3*recencyWeight(lastAccessedAt) + importance.
func blendScore(similarity float64, mem domain.Memory) float64 {
	return 0.7*similarity + 0.3*recencyWeight(mem.LastAccessedAt) + mem.Importance
}

// recencyWeight decays from 1 (just accessed) towards 0 as lastAccessed
// recedes into the past, with a 30-day half-scale.
func recencyWeight(lastAccessed time.Time) float64 {
	if lastAccessed.IsZero() {
		return 0
	}
	days := time.Since(lastAccessed).Hours() / 24
	if days < 0 {
		days = 0
	}
	w := 1.0 / (1.0 + days/30.0)
	if w > 1 {
		w = 1
	}
	return w
}

// touchAccessTimes updates LastAccessedAt for returned memories,
// fire-and-forget per §4.7 step 5; failures are logged, not propagated.
func (e *Engine) touchAccessTimes(ranked []RankedMemory) {
	ctx := context.Background()
	now := time.Now()
	for _, r := range ranked {
		id := r.Memory.ID
		if _, err := e.Repo.Update(ctx, id, func(m *domain.Memory) { m.LastAccessedAt = now }); err != nil {
			e.Log.Error().Err(err).Str("memory_id", id.String()).Msg("failed to update memory access time")
		}
	}
}

// Create inserts a memory and its embedding (if a default profile is
// configured for userID), following C12's memory-extraction contract.
func (e *Engine) Create(ctx context.Context, userID chatid.ID, mem domain.Memory) (domain.Memory, error) {
	if mem.ID == chatid.Nil {
		mem.ID = chatid.New()
	}
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now()
	}
	if mem.LastAccessedAt.IsZero() {
		mem.LastAccessedAt = mem.CreatedAt
	}
	created, err := e.Repo.Create(ctx, mem)
	if err != nil {
		return domain.Memory{}, err
	}

	if e.Embeddings != nil && e.Vectors != nil {
		if profile, cred, ok, perr := e.Embeddings.DefaultProfile(ctx, userID); perr == nil && ok {
			text := created.Summary
			if text == "" {
				text = created.Content
			}
			if res, embErr := embedding.Embed(ctx, text, profile, cred); embErr == nil {
				if idx, idxErr := e.Vectors.For(created.CharacterID); idxErr == nil {
					if addErr := idx.Add(created.ID, res.Vector, map[string]any{"importance": created.Importance}); addErr == nil {
						_ = idx.Save()
					}
				}
			} else {
				e.Log.Warn().Err(embErr).Str("memory_id", created.ID.String()).Msg("memory embedding failed; falling back to keyword retrieval for this memory")
			}
		}
	}

	return created, nil
}

// Delete removes a memory from both the repository and its character's
// vector index.
func (e *Engine) Delete(ctx context.Context, mem domain.Memory) error {
	if err := e.Repo.Delete(ctx, mem.ID); err != nil {
		return err
	}
	if e.Vectors != nil {
		if idx, err := e.Vectors.For(mem.CharacterID); err == nil {
			idx.Remove(mem.ID)
			_ = idx.Save()
		}
	}
	return nil
}
