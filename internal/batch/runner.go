// Package batch runs independent evolution jobs on a bounded worker pool.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/coherence/internal/engine"
	"github.com/aristath/coherence/internal/modules/hilbert"
)

// Job is one evolution request
type Job struct {
	Dimension int                `json:"dimension"`
	Substrate string             `json:"substrate"`
	Initial   engine.InitialKind `json:"initial_state"`
	Duration  float64            `json:"duration"`
}

// Outcome is the result of one job. Err is set for configuration failures only;
// aborted runs come back with a result and Diagnostics.Aborted set.
type Outcome struct {
	Index     int
	Job       Job
	Result    engine.Result
	Operators *engine.Operators
	Err       error
}

// Runner executes jobs concurrently. Jobs with the same dimension and substrate
// share one read-only operator set.
type Runner struct {
	engine  *engine.Engine
	workers int
	log     zerolog.Logger
}

// NewRunner creates a batch runner with the given worker count (at least one)
func NewRunner(e *engine.Engine, workers int, log zerolog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		engine:  e,
		workers: workers,
		log:     log.With().Str("component", "batch_runner").Logger(),
	}
}

// Workers returns the pool size
func (r *Runner) Workers() int {
	return r.workers
}

type built struct {
	space *hilbert.Space
	ops   *engine.Operators
	err   error
}

// operatorCache builds each (dimension, substrate) configuration once per batch.
type operatorCache struct {
	engine *engine.Engine
	mu     sync.Mutex
	items  map[string]*built
	ready  map[string]chan struct{}
}

func (c *operatorCache) get(dimension int, substrateName string) (*hilbert.Space, *engine.Operators, error) {
	key := fmt.Sprintf("%d/%s", dimension, substrateName)

	c.mu.Lock()
	if ch, ok := c.ready[key]; ok {
		c.mu.Unlock()
		<-ch
		c.mu.Lock()
		b := c.items[key]
		c.mu.Unlock()
		return b.space, b.ops, b.err
	}
	ch := make(chan struct{})
	c.ready[key] = ch
	c.mu.Unlock()

	b := &built{}
	b.space, b.err = c.engine.ConfigureHilbertSpace(dimension)
	if b.err == nil {
		b.ops, b.err = c.engine.BuildOperators(b.space, substrateName)
	}

	c.mu.Lock()
	c.items[key] = b
	c.mu.Unlock()
	close(ch)

	return b.space, b.ops, b.err
}

// Run executes jobs and returns outcomes in job order. When ctx is cancelled, running
// jobs abort at their next step and jobs not yet started report ctx.Err().
func (r *Runner) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	cache := &operatorCache{
		engine: r.engine,
		items:  make(map[string]*built),
		ready:  make(map[string]chan struct{}),
	}

	queue := make(chan int)
	var wg sync.WaitGroup

	workers := r.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				outcomes[i] = r.runOne(ctx, cache, i, jobs[i])
			}
		}()
	}

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			outcomes[i] = Outcome{Index: i, Job: jobs[i], Err: err}
			continue
		}
		select {
		case queue <- i:
		case <-ctx.Done():
			outcomes[i] = Outcome{Index: i, Job: jobs[i], Err: ctx.Err()}
		}
	}
	close(queue)
	wg.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	r.log.Info().Int("jobs", len(jobs)).Int("failed", failed).Int("workers", workers).Msg("Batch finished")

	return outcomes
}

func (r *Runner) runOne(ctx context.Context, cache *operatorCache, index int, job Job) Outcome {
	out := Outcome{Index: index, Job: job}

	space, ops, err := cache.get(job.Dimension, job.Substrate)
	if err != nil {
		out.Err = err
		return out
	}
	out.Operators = ops

	state, err := r.engine.InitialState(space, ops, job.Initial)
	if err != nil {
		out.Err = err
		return out
	}

	out.Result, out.Err = r.engine.Evolve(ctx, space, ops, state, job.Duration)
	if out.Err != nil {
		r.log.Warn().Err(out.Err).Int("job", index).Msg("Batch job failed")
	}
	return out
}
