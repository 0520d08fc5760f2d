// Package pipeline wires analysis, decomposition, the quality gate,
// stream orchestration and bulk replication into one entrypoint.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/prakashgbid/caia-sub003/internal/analyze"
	"github.com/prakashgbid/caia-sub003/internal/hierarchy"
	"github.com/prakashgbid/caia-sub003/internal/notify"
	"github.com/prakashgbid/caia-sub003/internal/quality"
	"github.com/prakashgbid/caia-sub003/internal/rework"
	"github.com/prakashgbid/caia-sub003/internal/stream"
	"github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// ProcessInput is one processProject request.
type ProcessInput struct {
	// Idea is the raw project description. Required.
	Idea string
	// Context is optional supporting detail.
	Context string
	// Team describes the executing team.
	Team models.TeamContext
	// EnableExternalCreation turns on tracker replication.
	EnableExternalCreation bool
	// MaxReworkCycles bounds the quality rework loop.
	MaxReworkCycles int
}

// IssueCreator replicates a hierarchy externally. Satisfied by
// tracker.BulkIssueCreator.
type IssueCreator interface {
	Create(ctx context.Context, h *models.Hierarchy) (*models.CreationResults, error)
}

// Store persists hierarchies between runs. Satisfied by state.DB.
type Store interface {
	SaveHierarchy(h *models.Hierarchy, idea string) error
	LoadHierarchy(id string) (*models.Hierarchy, error)
}

// Pipeline runs project decompositions. Independent hierarchies may be
// processed concurrently; a fatal error in one never affects another.
type Pipeline struct {
	analyzer     *analyze.Analyzer
	builder      *hierarchy.Builder
	scheduler    *rework.Scheduler
	orchestrator *stream.Orchestrator

	creator IssueCreator
	store   Store
	sink    notify.Sink

	events        chan notify.Event
	droppedEvents atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCreator installs the external issue creator.
func WithCreator(c IssueCreator) Option {
	return func(p *Pipeline) { p.creator = c }
}

// WithStore installs the persistence store.
func WithStore(s Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithSink installs a notification sink.
func WithSink(s notify.Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// New creates a Pipeline. threshold and streamConcurrency follow the
// quality and stream defaults when non-positive.
func New(threshold float64, streamConcurrency int, opts ...Option) (*Pipeline, error) {
	controller := quality.NewController(threshold)
	builder := hierarchy.NewBuilder()

	registry := stream.NewRegistry()
	if err := stream.RegisterBuiltins(registry); err != nil {
		return nil, err
	}

	p := &Pipeline{
		analyzer:     analyze.New(),
		builder:      builder,
		scheduler:    rework.NewScheduler(controller, builder),
		orchestrator: stream.NewOrchestrator(registry, streamConcurrency),
		events:       make(chan notify.Event, 100),
	}
	for _, opt := range opts {
		opt(p)
	}

	err := registry.Register(stream.StreamReplication, stream.RunnerFunc(
		func(ctx context.Context, in *stream.Input, prior *stream.Results) (any, error) {
			if p.creator == nil {
				return nil, errors.NewConfiguration("tracker", "external creation requested but no tracker client configured")
			}
			return p.creator.Create(ctx, in.Hierarchy)
		}))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Events exposes the lifecycle event channel. The buffer drops events
// when no consumer keeps up; DroppedEvents reports how many.
func (p *Pipeline) Events() <-chan notify.Event {
	return p.events
}

// DroppedEvents returns how many events were dropped on a full buffer.
func (p *Pipeline) DroppedEvents() int64 {
	return p.droppedEvents.Load()
}

func (p *Pipeline) emit(eventType, hierarchyID, detail string) {
	event := notify.Event{Type: eventType, HierarchyID: hierarchyID, Detail: detail, At: time.Now()}
	if p.sink != nil {
		// Fire and forget: a slow or broken sink never blocks the run.
		go p.sink.Notify(event)
	}
	select {
	case p.events <- event:
	default:
		p.droppedEvents.Add(1)
	}
}

// ProcessProject runs the full pipeline for one idea. The returned
// results are best effort: even when the quality gate exhausts its
// rework budget, the best hierarchy produced and its report are
// returned alongside the error. A fatal error cancels this
// hierarchy's remaining work only.
func (p *Pipeline) ProcessProject(ctx context.Context, input ProcessInput) (*models.ProjectResults, error) {
	req, err := p.analyzer.Analyze(input.Idea, input.Context, input.Team)
	if err != nil {
		// Fail fast: nothing was started.
		return nil, err
	}

	h, err := p.builder.Build(req)
	if err != nil {
		return nil, err
	}
	p.emit(notify.EventDecompositionComplete, h.ID, fmt.Sprintf("%d nodes", h.Len()))
	p.persist(h, input.Idea)

	h, report, err := p.scheduler.Run(ctx, h, req.Signals, input.MaxReworkCycles)
	agg := newAggregator(h, report)
	if err != nil {
		// Terminal gate failure or invariant defect: the analysis and
		// replication streams never start for this hierarchy.
		p.emit(notify.EventQualityFailed, h.ID, err.Error())
		p.persist(h, input.Idea)
		return agg.results(), err
	}
	p.emit(notify.EventQualityPassed, h.ID, fmt.Sprintf("score %.3f", report.Score))
	p.persist(h, input.Idea)

	tasks := stream.AnalysisTasks()
	if input.EnableExternalCreation {
		tasks = append(tasks, &models.StreamTask{StreamID: stream.StreamReplication, State: models.StreamPending})
	}
	in := &stream.Input{Hierarchy: h, Requirements: req, Quality: report}
	streamResults, err := p.orchestrator.Execute(ctx, tasks, in)
	if err != nil {
		if streamResults != nil {
			agg.mergeStreams(streamResults)
		}
		return agg.results(), err
	}
	agg.mergeStreams(streamResults)

	if input.EnableExternalCreation {
		p.persist(h, input.Idea)
		if creation := agg.creation(); creation != nil {
			p.emit(notify.EventCreationComplete, h.ID,
				fmt.Sprintf("%d created, %d errors", len(creation.Created), len(creation.Errors)))
		}
	}
	return agg.results(), nil
}

// Resume reloads a stored hierarchy and replays replication for nodes
// without an external ref.
func (p *Pipeline) Resume(ctx context.Context, hierarchyID string) (*models.CreationResults, error) {
	if p.store == nil {
		return nil, errors.NewConfiguration("storage", "resume requires a persistence store")
	}
	if p.creator == nil {
		return nil, errors.NewConfiguration("tracker", "resume requires a tracker client")
	}

	h, err := p.store.LoadHierarchy(hierarchyID)
	if err != nil {
		return nil, fmt.Errorf("load hierarchy %s: %w", hierarchyID, err)
	}
	results, err := p.creator.Create(ctx, h)
	if err != nil {
		return results, err
	}
	p.persist(h, "")
	p.emit(notify.EventCreationComplete, h.ID,
		fmt.Sprintf("resumed: %d created, %d errors", len(results.Created), len(results.Errors)))
	return results, nil
}

// persist saves best-effort; a storage failure is logged, never fatal.
func (p *Pipeline) persist(h *models.Hierarchy, idea string) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveHierarchy(h, idea); err != nil {
		log.Printf("[pipeline] save hierarchy %s failed: %v", h.ID, err)
	}
}
