// Package postturn implements the Post-turn Jobs (C12, §4.12): memory
// extraction, title refresh at interchange checkpoints, and context
// summarization, all scheduled after a turn finalizes and run off the
// critical path. Jobs are best-effort — a failure logs an error and is not
// re-enqueued (§4.12, §7's "errors in C12 are logged and suppressed").
//
// The per-job dispatch and panic containment follow the teacher's
// heartbeat event persistence worker idiom (pkg/simpleruntime/heartbeat_events.go's
// run(), a goroutine that owns its own recover/log boundary so a single bad
// run never takes down the caller); the periodic sweep (housekeeping.go) is
// grounded on pkg/cron/schedule.go's use of robfig/cron/v3.
package postturn

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/contextassembler"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/memory"
	"github.com/inkwell-ai/chatcore/pkg/models"
	"github.com/inkwell-ai/chatcore/pkg/provider"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// ProviderFactory mirrors orchestrator.ProviderFactory structurally so
// *provider.Factory satisfies both without either package importing the
// other.
type ProviderFactory interface {
	Build(name string) (provider.Provider, error)
}

// CredentialResolver mirrors orchestrator.CredentialResolver for the same
// reason.
type CredentialResolver interface {
	Resolve(ctx context.Context, userID, credentialID chatid.ID) (provider.Credential, error)
}

// Runner owns the collaborators every post-turn job needs: the chat log,
// the owned-entity repositories, the memory engine, the context assembler
// (reused to ask "would the next assembly drop history"), and the
// provider/credential seams jobs use to make their own cheap LLM calls.
type Runner struct {
	Log                repo.ChatLog
	Chats              repo.Repository[domain.Chat]
	Characters         repo.Repository[domain.Character]
	Personas           repo.Repository[domain.Persona]
	ConnectionProfiles interface {
		repo.Repository[domain.ConnectionProfile]
		repo.DefaultPartition
	}
	Memories  *memory.Engine
	Assembler *contextassembler.Assembler
	Models    *models.Registry[models.Info]
	Factory   ProviderFactory
	Credentials CredentialResolver
	Logger    zerolog.Logger

	// SummarizeDroppedThreshold is N in §4.12's "would drop more than N
	// messages"; defaults to defaultSummarizeDroppedThreshold when zero.
	SummarizeDroppedThreshold int

	// JobTimeout bounds each individual job's own context, independent of
	// the (already-finished) turn's context. Defaults to defaultJobTimeout.
	JobTimeout time.Duration
}

const (
	defaultSummarizeDroppedThreshold = 10
	defaultJobTimeout                = 60 * time.Second
)

func (r *Runner) threshold() int {
	if r.SummarizeDroppedThreshold > 0 {
		return r.SummarizeDroppedThreshold
	}
	return defaultSummarizeDroppedThreshold
}

func (r *Runner) jobTimeout() time.Duration {
	if r.JobTimeout > 0 {
		return r.JobTimeout
	}
	return defaultJobTimeout
}

// RunAfterTurn schedules every C12 job for chatID, fire-and-forget. It
// returns immediately; callers (the orchestrator, after Finalizing) do not
// wait on it, per §4.12 "they do not block subsequent user turns". ctx is
// only used to read the chat before dispatch — each job gets its own
// timeout-bounded context detached from the caller's, since the turn that
// triggered these jobs may already be done (or canceled) by the time they
// run.
func (r *Runner) RunAfterTurn(ctx context.Context, chatID, userID chatid.ID) {
	chat, err := r.Chats.FindByID(ctx, chatID)
	if err != nil {
		r.Logger.Error().Err(err).Str("chat_id", chatID.String()).Msg("post-turn: failed to load chat, skipping jobs")
		return
	}

	go r.safeRun(chatID, "memory_extraction", func(ctx context.Context) error {
		return r.extractMemories(ctx, chat, userID)
	})
	go r.safeRun(chatID, "title_refresh", func(ctx context.Context) error {
		return r.refreshTitle(ctx, chat)
	})
	go r.safeRun(chatID, "context_summarization", func(ctx context.Context) error {
		return r.summarizeIfDropping(ctx, chat, userID)
	})
}

// safeRun contains one job's panics and errors so neither can escape to the
// caller or to another job; every failure is logged with the job's stage
// name and nothing else happens (§4.12: "a failure logs an error and does
// not re-enqueue automatically").
func (r *Runner) safeRun(chatID chatid.ID, stage string, job func(ctx context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error().Str("chat_id", chatID.String()).Str("stage", stage).Interface("panic", rec).Msg("post-turn job panicked")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), r.jobTimeout())
	defer cancel()
	if err := job(ctx); err != nil {
		r.Logger.Error().Err(err).Str("chat_id", chatID.String()).Str("stage", stage).Msg("post-turn job failed")
	}
}

// resolveCheapProfile picks the user's cheapest connection profile for
// jobs' own LLM calls (§4.12: "with a 'cheap' connection profile"),
// preferring one tagged IsCheap and falling back to the default.
func (r *Runner) resolveCheapProfile(ctx context.Context, userID chatid.ID) (domain.ConnectionProfile, error) {
	profiles, err := r.ConnectionProfiles.FindByUserID(ctx, userID)
	if err != nil {
		return domain.ConnectionProfile{}, err
	}
	var fallback *domain.ConnectionProfile
	for i := range profiles {
		p := &profiles[i]
		if p.IsCheap {
			return *p, nil
		}
		if p.IsDefault {
			fallback = p
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	if len(profiles) > 0 {
		return profiles[0], nil
	}
	return domain.ConnectionProfile{}, &chaterrors.ConfigurationError{Missing: []string{"connection profile"}}
}

func (r *Runner) resolveCredential(ctx context.Context, userID chatid.ID, profile domain.ConnectionProfile) (provider.Credential, error) {
	if profile.APICredentialID == nil {
		return provider.Credential{BaseURL: profile.BaseURL}, nil
	}
	cred, err := r.Credentials.Resolve(ctx, userID, *profile.APICredentialID)
	if err != nil {
		return provider.Credential{}, err
	}
	if profile.BaseURL != "" {
		cred.BaseURL = profile.BaseURL
	}
	return cred, nil
}

func (r *Runner) contextLimit(profile domain.ConnectionProfile) int {
	if r.Models != nil {
		if info, ok := r.Models.Get(profile.ModelName); ok && info.ContextWindow > 0 {
			return info.ContextWindow
		}
	}
	return defaultContextWindow
}

const defaultContextWindow = 8000
