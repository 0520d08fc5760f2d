package stream

import (
	"context"
	"sync"

	"github.com/prakashgbid/caia-sub003/internal/analyze"
	"github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// Input is the read-only material every stream runs against.
type Input struct {
	Hierarchy    *models.Hierarchy
	Requirements *analyze.Requirements
	Quality      *models.QualityReport
}

// Results collects per-stream outputs and failures. Safe for
// concurrent use by running streams.
type Results struct {
	mu       sync.RWMutex
	outputs  map[string]any
	failures map[string]error
}

// NewResults creates an empty result set.
func NewResults() *Results {
	return &Results{
		outputs:  make(map[string]any),
		failures: make(map[string]error),
	}
}

// Output returns the output of a completed stream.
func (r *Results) Output(streamID string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out, ok := r.outputs[streamID]
	return out, ok
}

// Failure returns the recorded error for a failed stream.
func (r *Results) Failure(streamID string) (error, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	err, ok := r.failures[streamID]
	return err, ok
}

// Failures returns a copy of all recorded failures.
func (r *Results) Failures() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error, len(r.failures))
	for k, v := range r.failures {
		out[k] = v
	}
	return out
}

func (r *Results) setOutput(streamID string, out any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[streamID] = out
}

func (r *Results) setFailure(streamID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[streamID] = err
}

// Runner is one registered stream implementation. Prior holds the
// outputs of already-completed streams, so dependent streams can read
// their dependencies' results.
type Runner interface {
	Run(ctx context.Context, in *Input, prior *Results) (any, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, in *Input, prior *Results) (any, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, in *Input, prior *Results) (any, error) {
	return f(ctx, in, prior)
}

// Registry holds named stream implementations. New stream types are
// added by registering an implementation, not by changing the
// orchestrator.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]Runner)}
}

// Register adds a named runner. Registering the same name twice is a
// configuration error.
func (r *Registry) Register(name string, runner Runner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.runners[name]; dup {
		return errors.NewConfiguration("streams", "stream %s already registered", name)
	}
	r.runners[name] = runner
	return nil
}

// Get returns the runner registered under name.
func (r *Registry) Get(name string) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[name]
	return runner, ok
}

// Names returns all registered stream names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.runners))
	for name := range r.runners {
		names = append(names, name)
	}
	return names
}
