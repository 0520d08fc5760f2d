package rework

import (
	"context"
	"errors"
	"testing"

	"github.com/prakashgbid/caia-sub003/internal/analyze"
	caiaerrors "github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

type fakeValidator struct {
	calls   int
	passOn  int // pass on the Nth call, 0 = never
	reports []*models.QualityReport
}

func (f *fakeValidator) Validate(h *models.Hierarchy, reworkCount int) (*models.QualityReport, error) {
	f.calls++
	var report *models.QualityReport
	if len(f.reports) >= f.calls {
		report = f.reports[f.calls-1]
	} else {
		report = &models.QualityReport{
			SubjectID: h.ID,
			Score:     0.4,
			Issues: []models.QualityIssue{
				{NodeID: "root", Reason: "incomplete", Severity: models.SeverityCritical},
			},
		}
	}
	report.ReworkCount = reworkCount
	report.Passed = f.passOn > 0 && f.calls >= f.passOn
	return report, nil
}

type fakeRebuilder struct {
	calls  int
	issues [][]models.QualityIssue
}

func (f *fakeRebuilder) Rebuild(h *models.Hierarchy, issues []models.QualityIssue, signals analyze.ClaritySignals) (*models.Hierarchy, error) {
	f.calls++
	f.issues = append(f.issues, issues)
	return h.Clone(), nil
}

func seedHierarchy(t *testing.T) *models.Hierarchy {
	t.Helper()
	h := models.NewHierarchy("h1")
	if err := h.Add(&models.HierarchyNode{ID: "root", Level: models.LevelInitiative, Title: "r", Status: models.NodeStatusDraft}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return h
}

func TestRunTerminatesWithinBudget(t *testing.T) {
	for _, maxCycles := range []int{0, 1, 3, 10} {
		v := &fakeValidator{} // never passes
		r := &fakeRebuilder{}
		s := NewScheduler(v, r)

		h, report, err := s.Run(context.Background(), seedHierarchy(t), analyze.ClaritySignals{}, maxCycles)
		if err == nil {
			t.Fatalf("maxCycles=%d: expected validation error", maxCycles)
		}
		var ve *caiaerrors.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("maxCycles=%d: error type %T, want ValidationError", maxCycles, err)
		}
		if v.calls != maxCycles+1 {
			t.Errorf("maxCycles=%d: %d validations, want %d", maxCycles, v.calls, maxCycles+1)
		}
		if r.calls != maxCycles {
			t.Errorf("maxCycles=%d: %d rebuilds, want %d", maxCycles, r.calls, maxCycles)
		}
		if h == nil || report == nil {
			t.Errorf("maxCycles=%d: best-effort result missing (h=%v report=%v)", maxCycles, h, report)
		}
	}
}

func TestRunPassesWithoutRework(t *testing.T) {
	v := &fakeValidator{passOn: 1}
	r := &fakeRebuilder{}
	s := NewScheduler(v, r)

	_, report, err := s.Run(context.Background(), seedHierarchy(t), analyze.ClaritySignals{}, 3)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Passed {
		t.Error("report should be passed")
	}
	if v.calls != 1 || r.calls != 0 {
		t.Errorf("calls = %d validations, %d rebuilds; want 1, 0", v.calls, r.calls)
	}
}

func TestRunPassesAfterRework(t *testing.T) {
	v := &fakeValidator{passOn: 3}
	r := &fakeRebuilder{}
	s := NewScheduler(v, r)

	_, report, err := s.Run(context.Background(), seedHierarchy(t), analyze.ClaritySignals{}, 5)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ReworkCount != 2 {
		t.Errorf("report rework count = %d, want 2", report.ReworkCount)
	}
	if v.calls != 3 || r.calls != 2 {
		t.Errorf("calls = %d validations, %d rebuilds; want 3, 2", v.calls, r.calls)
	}
}

func TestRunReworksOnlyCurrentIssues(t *testing.T) {
	// Cycle 1 flags node a, cycle 2 flags node b. The second rebuild
	// must not regenerate a.
	v := &fakeValidator{reports: []*models.QualityReport{
		{Score: 0.4, Issues: []models.QualityIssue{{NodeID: "a", Reason: "bad", Severity: models.SeverityCritical}}},
		{Score: 0.5, Issues: []models.QualityIssue{{NodeID: "b", Reason: "bad", Severity: models.SeverityCritical}}},
	}}
	r := &fakeRebuilder{}
	s := NewScheduler(v, r)

	s.Run(context.Background(), seedHierarchy(t), analyze.ClaritySignals{}, 2)
	if len(r.issues) < 2 {
		t.Fatalf("expected 2 rebuilds, got %d", len(r.issues))
	}
	for _, iss := range r.issues[1] {
		if iss.NodeID == "a" {
			t.Error("node fixed in cycle 1 regenerated in cycle 2 without a new issue")
		}
	}
	if len(r.issues[1]) != 1 || r.issues[1][0].NodeID != "b" {
		t.Errorf("second rebuild issues = %v, want only b", r.issues[1])
	}
}

func TestRunSkipsWarningOnlyIssues(t *testing.T) {
	v := &fakeValidator{reports: []*models.QualityReport{
		{Score: 0.4, Issues: []models.QualityIssue{{NodeID: "a", Reason: "low confidence", Severity: models.SeverityWarning}}},
	}}
	r := &fakeRebuilder{}
	s := NewScheduler(v, r)

	s.Run(context.Background(), seedHierarchy(t), analyze.ClaritySignals{}, 1)
	if len(r.issues) == 0 {
		t.Fatal("expected a rebuild call")
	}
	if len(r.issues[0]) != 0 {
		t.Errorf("warning issues passed to rebuild: %v", r.issues[0])
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := &fakeValidator{}
	s := NewScheduler(v, &fakeRebuilder{})
	_, _, err := s.Run(ctx, seedHierarchy(t), analyze.ClaritySignals{}, 3)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if v.calls != 0 {
		t.Errorf("validator called %d times after cancellation", v.calls)
	}
}
