// Package stream schedules analysis and replication streams as a
// dependency DAG with bounded concurrency.
package stream

import (
	"sync"

	"github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// graph is the scheduling view over a set of stream tasks. Edges point
// from a task to the tasks it depends on.
type graph struct {
	mu    sync.RWMutex
	tasks map[string]*models.StreamTask
	edges map[string][]string
	order []string
}

// newGraph builds and validates the task graph. Unknown dependencies
// and cycles are configuration errors, rejected before any task runs.
func newGraph(tasks []*models.StreamTask) (*graph, error) {
	g := &graph{
		tasks: make(map[string]*models.StreamTask, len(tasks)),
		edges: make(map[string][]string, len(tasks)),
	}
	for _, t := range tasks {
		if _, dup := g.tasks[t.StreamID]; dup {
			return nil, errors.NewConfiguration("streams", "duplicate stream id %s", t.StreamID)
		}
		g.tasks[t.StreamID] = t
		g.order = append(g.order, t.StreamID)
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				return nil, errors.NewConfiguration("streams", "stream %s depends on unknown stream %s", t.StreamID, dep)
			}
			g.edges[t.StreamID] = append(g.edges[t.StreamID], dep)
		}
	}
	if g.hasCycle() {
		return nil, errors.NewConfiguration("streams", "dependency graph contains a cycle")
	}
	return g, nil
}

// hasCycle runs DFS with coloring to find back edges.
func (g *graph) hasCycle() bool {
	// 0 = unvisited, 1 = in progress, 2 = done
	colors := make(map[string]int, len(g.tasks))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range g.edges[id] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// ready returns pending tasks whose dependencies are all Done.
func (g *graph) ready() []*models.StreamTask {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*models.StreamTask
	for _, id := range g.order {
		t := g.tasks[id]
		if t.State != models.StreamPending {
			continue
		}
		satisfied := true
		for _, dep := range g.edges[id] {
			if g.tasks[dep].State != models.StreamDone {
				satisfied = false
				break
			}
		}
		if satisfied {
			out = append(out, t)
		}
	}
	return out
}

// setState transitions a task.
func (g *graph) setState(id string, state models.StreamState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.tasks[id]; ok {
		t.State = state
	}
}

// failDependents marks every pending transitive dependent of id as
// Failed with a blocked-by reason. Independent branches are untouched.
func (g *graph) failDependents(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failDependentsLocked(id)
}

func (g *graph) failDependentsLocked(id string) {
	for _, candidate := range g.order {
		t := g.tasks[candidate]
		if t.State != models.StreamPending {
			continue
		}
		for _, dep := range g.edges[candidate] {
			if dep == id {
				t.State = models.StreamFailed
				t.BlockedBy = id
				g.failDependentsLocked(candidate)
				break
			}
		}
	}
}

// failPending marks every pending task as Failed with the given
// blocked-by reason. Used when execution is cancelled.
func (g *graph) failPending(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range g.order {
		if t := g.tasks[id]; t.State == models.StreamPending {
			t.State = models.StreamFailed
			t.BlockedBy = reason
		}
	}
}

// done returns true when every task is in a terminal state.
func (g *graph) done() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range g.order {
		if !g.tasks[id].State.Terminal() {
			return false
		}
	}
	return true
}
