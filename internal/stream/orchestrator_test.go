package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prakashgbid/caia-sub003/internal/analyze"
	caiaerrors "github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

func testInput(t *testing.T) *Input {
	t.Helper()
	h := models.NewHierarchy("h1")
	if err := h.Add(&models.HierarchyNode{ID: "r", Level: models.LevelInitiative, Title: "r"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return &Input{
		Hierarchy:    h,
		Requirements: &analyze.Requirements{Idea: "x", Objectives: []string{"x"}},
		Quality:      &models.QualityReport{SubjectID: "h1", Score: 0.9, Passed: true},
	}
}

func noop(name string) Runner {
	return RunnerFunc(func(ctx context.Context, in *Input, prior *Results) (any, error) {
		return name, nil
	})
}

func task(id string, deps ...string) *models.StreamTask {
	return &models.StreamTask{StreamID: id, DependsOn: deps, State: models.StreamPending}
}

func TestExecuteRejectsCycleUpfront(t *testing.T) {
	reg := NewRegistry()
	ran := int32(0)
	counting := RunnerFunc(func(ctx context.Context, in *Input, prior *Results) (any, error) {
		atomic.AddInt32(&ran, 1)
		return nil, nil
	})
	reg.Register("a", counting)
	reg.Register("b", counting)

	o := NewOrchestrator(reg, 2)
	_, err := o.Execute(context.Background(), []*models.StreamTask{task("a", "b"), task("b", "a")}, testInput(t))
	if err == nil {
		t.Fatal("expected configuration error for cyclic graph")
	}
	if !caiaerrors.IsFatal(err) {
		t.Errorf("cycle should be a fatal configuration error, got %v", err)
	}
	if atomic.LoadInt32(&ran) != 0 {
		t.Error("tasks ran despite the cycle")
	}
}

func TestExecuteRejectsUnknownDependencyAndRunner(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", noop("a"))

	o := NewOrchestrator(reg, 2)
	if _, err := o.Execute(context.Background(), []*models.StreamTask{task("a", "ghost")}, testInput(t)); err == nil {
		t.Error("expected error for unknown dependency")
	}
	if _, err := o.Execute(context.Background(), []*models.StreamTask{task("unregistered")}, testInput(t)); err == nil {
		t.Error("expected error for unregistered stream")
	}
}

func TestExecuteRespectsDependencyOrder(t *testing.T) {
	reg := NewRegistry()
	var mu sync.Mutex
	var orderLog []string
	record := func(name string) Runner {
		return RunnerFunc(func(ctx context.Context, in *Input, prior *Results) (any, error) {
			mu.Lock()
			orderLog = append(orderLog, name)
			mu.Unlock()
			return name, nil
		})
	}
	reg.Register("a", record("a"))
	reg.Register("b", record("b"))
	reg.Register("c", record("c"))

	o := NewOrchestrator(reg, 4)
	tasks := []*models.StreamTask{task("a"), task("b"), task("c", "a", "b")}
	results, err := o.Execute(context.Background(), tasks, testInput(t))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(orderLog) != 3 || orderLog[2] != "c" {
		t.Errorf("c must run last, got order %v", orderLog)
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, ok := results.Output(id); !ok {
			t.Errorf("missing output for %s", id)
		}
	}
	for _, tk := range tasks {
		if tk.State != models.StreamDone {
			t.Errorf("task %s state = %s, want done", tk.StreamID, tk.State)
		}
	}
}

func TestExecuteBoundsConcurrency(t *testing.T) {
	reg := NewRegistry()
	var current, peak int32
	slow := RunnerFunc(func(ctx context.Context, in *Input, prior *Results) (any, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return nil, nil
	})

	var tasks []*models.StreamTask
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("s%d", i)
		reg.Register(id, slow)
		tasks = append(tasks, task(id))
	}

	o := NewOrchestrator(reg, 2)
	if _, err := o.Execute(context.Background(), tasks, testInput(t)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", p)
	}
}

func TestExecuteFailFastPerBranch(t *testing.T) {
	reg := NewRegistry()
	reg.Register("boom", RunnerFunc(func(ctx context.Context, in *Input, prior *Results) (any, error) {
		return nil, fmt.Errorf("exploded")
	}))
	reg.Register("child", noop("child"))
	reg.Register("grandchild", noop("grandchild"))
	reg.Register("independent", noop("independent"))

	tasks := []*models.StreamTask{
		task("boom"),
		task("child", "boom"),
		task("grandchild", "child"),
		task("independent"),
	}
	o := NewOrchestrator(reg, 4)
	results, err := o.Execute(context.Background(), tasks, testInput(t))
	if err != nil {
		t.Fatalf("a branch failure must not fail the whole execution: %v", err)
	}

	states := make(map[string]*models.StreamTask)
	for _, tk := range tasks {
		states[tk.StreamID] = tk
	}
	if states["boom"].State != models.StreamFailed {
		t.Error("boom should be failed")
	}
	if states["child"].State != models.StreamFailed || states["child"].BlockedBy != "boom" {
		t.Errorf("child state = %s blocked by %q, want failed/boom", states["child"].State, states["child"].BlockedBy)
	}
	if states["grandchild"].State != models.StreamFailed || states["grandchild"].BlockedBy == "" {
		t.Errorf("grandchild should be failed with a blocked-by reason, got %s/%q", states["grandchild"].State, states["grandchild"].BlockedBy)
	}
	if states["independent"].State != models.StreamDone {
		t.Errorf("independent branch state = %s, want done", states["independent"].State)
	}
	if _, ok := results.Failure("child"); !ok {
		t.Error("blocked child should have a recorded failure")
	}
	if _, ok := results.Output("independent"); !ok {
		t.Error("independent branch output missing")
	}
}

func TestExecuteCancellation(t *testing.T) {
	reg := NewRegistry()
	started := make(chan struct{})
	release := make(chan struct{})
	reg.Register("slow", RunnerFunc(func(ctx context.Context, in *Input, prior *Results) (any, error) {
		close(started)
		<-release
		return "done", nil
	}))
	reg.Register("after", noop("after"))

	ctx, cancel := context.WithCancel(context.Background())
	tasks := []*models.StreamTask{task("slow"), task("after", "slow")}
	o := NewOrchestrator(reg, 2)

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Execute(ctx, tasks, testInput(t))
		errCh <- err
	}()
	<-started
	cancel()
	close(release)

	if err := <-errCh; err == nil {
		t.Fatal("expected cancellation error")
	}
	if tasks[1].State != models.StreamFailed {
		t.Errorf("pending dependent state = %s, want failed after cancel", tasks[1].State)
	}
}

func TestBuiltinAnalysisGraph(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		t.Fatalf("register builtins: %v", err)
	}

	in := testInput(t)
	in.Requirements.Team = models.TeamContext{Size: 2, Experience: "junior", TimelineWeeks: 1}

	o := NewOrchestrator(reg, 4)
	results, err := o.Execute(context.Background(), AnalysisTasks(), in)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	analysis := MergeAnalysis(results)
	if analysis.RiskScore <= 0 || analysis.RiskScore > 1 {
		t.Errorf("risk score %v out of range", analysis.RiskScore)
	}
	if analysis.EstimatedDays <= 0 {
		t.Errorf("estimated days %v should be positive", analysis.EstimatedDays)
	}
	if analysis.SuccessProbability <= 0 || analysis.SuccessProbability > 1 {
		t.Errorf("success probability %v out of range", analysis.SuccessProbability)
	}
	if recs := Recommendations(results); len(recs) == 0 {
		t.Error("expected at least one recommendation")
	}
}
