// Package scheduler runs background jobs on cron schedules. Every run receives a
// context that Stop cancels, so a long calibration cannot hold up shutdown.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of background work. Run must return promptly once ctx is done.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler triggers jobs on cron schedules and on demand
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	mu      sync.Mutex
	running map[string]int
}

// New creates a scheduler. A scheduled job still running when its next tick
// arrives skips that tick.
func New(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:     ctx,
		cancel:  cancel,
		log:     log.With().Str("component", "scheduler").Logger(),
		running: make(map[string]int),
	}
}

// Start begins firing registered schedules
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", s.Entries()).Msg("Scheduler started")
}

// Stop cancels every running job and waits for scheduled ones to return.
// A stopped scheduler is not restarted.
func (s *Scheduler) Stop() {
	started := time.Now()
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info().Dur("waited", time.Since(started)).Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule (seconds field first), e.g.
// "0 */15 * * * *" or "@every 30s".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() {
		_ = s.execute(s.ctx, job)
	}); err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

// Entries returns the number of registered schedules
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunNow runs job outside its schedule. The run ends when ctx is done or the
// scheduler stops, whichever comes first.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	detach := context.AfterFunc(s.ctx, cancel)
	defer detach()

	return s.execute(ctx, job)
}

// Running returns the names of jobs currently executing, sorted
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.running))
	for name := range s.running {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	name := job.Name()
	s.track(name, 1)
	defer s.track(name, -1)

	started := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(started)

	switch {
	case err != nil && ctx.Err() != nil:
		s.log.Warn().Err(err).Str("job", name).Dur("elapsed", elapsed).Msg("Job cancelled")
	case err != nil:
		s.log.Error().Err(err).Str("job", name).Dur("elapsed", elapsed).Msg("Job failed")
	default:
		s.log.Debug().Str("job", name).Dur("elapsed", elapsed).Msg("Job completed")
	}
	return err
}

func (s *Scheduler) track(name string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] += delta
	if s.running[name] <= 0 {
		delete(s.running, name)
	}
}
