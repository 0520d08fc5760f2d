package stream

import (
	"context"
	"fmt"
	"log"

	"github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// Orchestrator executes a DAG of stream tasks, running everything with
// no unmet dependency concurrently up to the configured limit.
type Orchestrator struct {
	registry *Registry
	limit    int
}

// NewOrchestrator creates an Orchestrator. A non-positive limit
// defaults to 4.
func NewOrchestrator(registry *Registry, limit int) *Orchestrator {
	if limit <= 0 {
		limit = 4
	}
	return &Orchestrator{registry: registry, limit: limit}
}

type completion struct {
	id  string
	out any
	err error
}

// Execute runs the task graph to completion and returns the collected
// results. Graph validation failures (cycles, unknown dependencies,
// unregistered streams) are configuration errors returned before any
// task starts. A task failure fails only its own branch; independent
// branches keep running, and the failure is recorded in Results rather
// than returned.
func (o *Orchestrator) Execute(ctx context.Context, tasks []*models.StreamTask, in *Input) (*Results, error) {
	g, err := newGraph(tasks)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if _, ok := o.registry.Get(t.StreamID); !ok {
			return nil, errors.NewConfiguration("streams", "no implementation registered for stream %s", t.StreamID)
		}
	}

	results := NewResults()
	completionCh := make(chan completion)
	running := 0

	for !g.done() {
		// Cancellation: stop dispatching, let in-flight tasks finish,
		// mark everything still pending as blocked.
		if ctx.Err() != nil {
			g.failPending("cancelled")
			for running > 0 {
				c := <-completionCh
				running--
				g.setState(c.id, models.StreamFailed)
			}
			return results, ctx.Err()
		}

		for _, t := range g.ready() {
			if running >= o.limit {
				break
			}
			g.setState(t.StreamID, models.StreamRunning)
			running++
			runner, _ := o.registry.Get(t.StreamID)
			go func(id string, r Runner) {
				out, err := r.Run(ctx, in, results)
				completionCh <- completion{id: id, out: out, err: err}
			}(t.StreamID, runner)
		}

		if running == 0 {
			// Nothing ready and nothing running: the rest is blocked.
			break
		}

		c := <-completionCh
		running--
		if c.err != nil {
			log.Printf("[stream] %s failed: %v", c.id, c.err)
			results.setFailure(c.id, c.err)
			g.setState(c.id, models.StreamFailed)
			g.failDependents(c.id)
			continue
		}
		results.setOutput(c.id, c.out)
		g.setState(c.id, models.StreamDone)
	}

	for _, t := range tasks {
		if t.State == models.StreamFailed && t.BlockedBy != "" {
			results.setFailure(t.StreamID, fmt.Errorf("blocked by failed stream %s", t.BlockedBy))
		}
	}
	return results, nil
}
