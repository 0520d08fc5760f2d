package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prakashgbid/caia-sub003/internal/notify"
	caiaerrors "github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// fakeCreator replicates every pending node in memory.
type fakeCreator struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeCreator) Create(ctx context.Context, h *models.Hierarchy) (*models.CreationResults, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, caiaerrors.NewPermanent("fake", 403, fmt.Errorf("forbidden"))
	}
	results := &models.CreationResults{}
	for i, n := range h.Nodes() {
		if n.Replicated() {
			continue
		}
		n.ExternalRef = fmt.Sprintf("EXT-%d", i+1)
		results.Created = append(results.Created, models.IssueRecord{
			NodeID: n.ID, ExternalRef: n.ExternalRef, Attempts: 1,
		})
	}
	return results, nil
}

type fakeStore struct {
	mu     sync.Mutex
	saved  map[string]*models.Hierarchy
	ideas  map[string]string
	loadID string
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]*models.Hierarchy), ideas: make(map[string]string)}
}

func (f *fakeStore) SaveHierarchy(h *models.Hierarchy, idea string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[h.ID] = h.Clone()
	if idea != "" {
		f.ideas[h.ID] = idea
	}
	return nil
}

func (f *fakeStore) LoadHierarchy(id string) (*models.Hierarchy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.saved[id]
	if !ok {
		return nil, fmt.Errorf("hierarchy %s not found", id)
	}
	return h.Clone(), nil
}

func drainEvents(p *Pipeline) map[string]int {
	seen := make(map[string]int)
	for {
		select {
		case e := <-p.Events():
			seen[e.Type]++
		default:
			return seen
		}
	}
}

func TestProcessProjectFullRun(t *testing.T) {
	creator := &fakeCreator{}
	store := newFakeStore()
	p, err := New(0, 4, WithCreator(creator), WithStore(store), WithSink(notify.LogSink{}))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	results, err := p.ProcessProject(context.Background(), ProcessInput{
		Idea:                   "Build a login page",
		Team:                   models.TeamContext{Size: 3, Experience: "senior"},
		EnableExternalCreation: true,
		MaxReworkCycles:        3,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if !results.Quality.Passed {
		t.Errorf("quality not passed: score %.3f issues %v", results.Quality.Score, results.Quality.Issues)
	}
	for level := models.LevelInitiative; level <= models.LevelAtomicUnit; level++ {
		if len(results.Hierarchy.NodesAtLevel(level)) == 0 {
			t.Errorf("no nodes at level %s", level)
		}
	}
	if results.Analysis == nil {
		t.Fatal("analysis results missing")
	}
	if results.Creation == nil || len(results.Creation.Created) != results.Hierarchy.Len() {
		t.Errorf("creation results incomplete: %+v", results.Creation)
	}
	if len(results.Recommendations) == 0 {
		t.Error("no recommendations produced")
	}
	if creator.calls != 1 {
		t.Errorf("creator called %d times, want 1", creator.calls)
	}
	if _, ok := store.saved[results.Hierarchy.ID]; !ok {
		t.Error("hierarchy never persisted")
	}

	events := drainEvents(p)
	for _, want := range []string{notify.EventDecompositionComplete, notify.EventQualityPassed, notify.EventCreationComplete} {
		if events[want] == 0 {
			t.Errorf("event %s never emitted (got %v)", want, events)
		}
	}
}

func TestProcessProjectWithoutExternalCreation(t *testing.T) {
	creator := &fakeCreator{}
	p, err := New(0, 4, WithCreator(creator))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	results, err := p.ProcessProject(context.Background(), ProcessInput{
		Idea:            "Build a login page",
		MaxReworkCycles: 3,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if results.Creation != nil {
		t.Error("creation results present with external creation disabled")
	}
	if creator.calls != 0 {
		t.Errorf("creator called %d times with creation disabled", creator.calls)
	}
	if results.Analysis == nil {
		t.Error("analysis should still run without external creation")
	}
}

func TestProcessProjectEmptyIdeaFailsFast(t *testing.T) {
	p, err := New(0, 4)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	results, err := p.ProcessProject(context.Background(), ProcessInput{Idea: "   "})
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if !caiaerrors.IsFatal(err) {
		t.Errorf("empty idea error should be fatal, got %v", err)
	}
	if results != nil {
		t.Error("no work started, results should be nil")
	}
}

func TestProcessProjectBestEffortOnGateExhaustion(t *testing.T) {
	// An unreachable threshold forces Failed-Final. The caller still
	// gets the best hierarchy and the final report.
	creator := &fakeCreator{}
	p, err := New(0.999, 4, WithCreator(creator))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	results, err := p.ProcessProject(context.Background(), ProcessInput{
		Idea:                   "Build a login page",
		EnableExternalCreation: true,
		MaxReworkCycles:        2,
	})
	var ve *caiaerrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if ve.Cycles != 2 {
		t.Errorf("cycles = %d, want 2", ve.Cycles)
	}
	if results == nil || results.Hierarchy == nil || results.Quality == nil {
		t.Fatal("best-effort results missing after gate exhaustion")
	}
	if results.Quality.Passed {
		t.Error("report should not be passed")
	}
	// Downstream work was cancelled for this hierarchy.
	if results.Analysis != nil || results.Creation != nil {
		t.Error("streams ran despite terminal gate failure")
	}
	if creator.calls != 0 {
		t.Errorf("creator called %d times after gate exhaustion", creator.calls)
	}
	events := drainEvents(p)
	if events[notify.EventQualityFailed] == 0 {
		t.Error("quality:failed event never emitted")
	}
}

func TestProcessProjectIsolatesConcurrentHierarchies(t *testing.T) {
	// One failing and one passing run concurrently; the failure must
	// not leak into the passing run's results.
	good, err := New(0, 4)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	bad, err := New(0.999, 4)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	var wg sync.WaitGroup
	var goodResults *models.ProjectResults
	var goodErr, badErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		goodResults, goodErr = good.ProcessProject(context.Background(), ProcessInput{Idea: "Build a login page", MaxReworkCycles: 2})
	}()
	go func() {
		defer wg.Done()
		_, badErr = bad.ProcessProject(context.Background(), ProcessInput{Idea: "Build a login page", MaxReworkCycles: 2})
	}()
	wg.Wait()

	if goodErr != nil {
		t.Errorf("passing hierarchy failed: %v", goodErr)
	}
	if badErr == nil {
		t.Error("failing hierarchy unexpectedly passed")
	}
	if goodResults == nil || !goodResults.Quality.Passed {
		t.Error("passing hierarchy lost its results")
	}
}

func TestResumeReplaysOnlyPendingNodes(t *testing.T) {
	creator := &fakeCreator{}
	store := newFakeStore()
	p, err := New(0, 4, WithCreator(creator), WithStore(store))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	// Seed a partially replicated hierarchy.
	h := models.NewHierarchy("h-resume")
	h.Add(&models.HierarchyNode{ID: "i1", Level: models.LevelInitiative, Title: "i1", ExternalRef: "EXT-KEEP"})
	h.Add(&models.HierarchyNode{ID: "e1", Level: models.LevelEpic, ParentID: "i1", Title: "e1"})
	store.SaveHierarchy(h, "seeded idea")

	results, err := p.Resume(context.Background(), "h-resume")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(results.Created) != 1 || results.Created[0].NodeID != "e1" {
		t.Errorf("resume created %v, want only e1", results.Created)
	}
}

func TestResumeRequiresStoreAndCreator(t *testing.T) {
	p, err := New(0, 4)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if _, err := p.Resume(context.Background(), "x"); err == nil {
		t.Error("expected configuration error without store and creator")
	}
}
