package postturn

import (
	"context"

	cronlib "github.com/robfig/cron/v3"

	"github.com/inkwell-ai/chatcore/pkg/memory"
)

// defaultHousekeepingPolicy mirrors what a character owner would configure
// through the Memory Housekeeping endpoint (§4.7) if they never touch it:
// merge near-duplicates, leave deletion thresholds unset so nothing is
// removed purely by the sweep.
var defaultHousekeepingPolicy = memory.Policy{
	MergeSimilar:   true,
	MergeThreshold: 0.95,
}

// Scheduler runs Runner's sweep-wide housekeeping pass on a cron cadence,
// parsed and scheduled the way pkg/cron/schedule.go drives robfig/cron/v3
// (standard five-field expressions, with the Descriptor extension for
// shorthand like "@every 6h").
type Scheduler struct {
	runner *Runner
	cron   *cronlib.Cron
}

// NewScheduler builds a Scheduler for r using expr as the cron expression
// (§6's post_turn.housekeeping_cron). An invalid expression is returned as
// an error rather than silently disabling the sweep.
func NewScheduler(r *Runner, expr string) (*Scheduler, error) {
	parser := cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	c := cronlib.New(cronlib.WithParser(parser))
	s := &Scheduler{runner: r, cron: c}
	c.Schedule(schedule, cronlib.FuncJob(s.sweep))
	return s, nil
}

// Start launches the cron goroutine. Stop blocks until the running job, if
// any, returns.
func (s *Scheduler) Start() { s.cron.Start() }
func (s *Scheduler) Stop()  { <-s.cron.Stop().Done() }

// sweep runs housekeeping (§4.7) for every character on record. One
// character's failure is logged and does not stop the rest.
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runner.jobTimeout())
	defer cancel()

	characters, err := s.runner.Characters.FindAll(ctx)
	if err != nil {
		s.runner.Logger.Error().Err(err).Msg("post-turn: housekeeping sweep failed to list characters")
		return
	}
	for _, c := range characters {
		if _, err := s.runner.Memories.Run(ctx, c.ID, defaultHousekeepingPolicy); err != nil {
			s.runner.Logger.Error().Err(err).Str("character_id", c.ID.String()).Msg("post-turn: housekeeping run failed")
		}
	}
}
