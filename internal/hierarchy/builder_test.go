package hierarchy

import (
	"fmt"
	"testing"

	"github.com/prakashgbid/caia-sub003/internal/analyze"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

func buildRequirements(t *testing.T, idea string) *analyze.Requirements {
	t.Helper()
	req, err := analyze.New().Analyze(idea, "", models.TeamContext{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return req
}

func TestBuildCoversAllLevels(t *testing.T) {
	b := NewBuilder()
	h, err := b.Build(buildRequirements(t, "Build a login page"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	for level := models.LevelInitiative; level <= models.LevelAtomicUnit; level++ {
		if len(h.NodesAtLevel(level)) == 0 {
			t.Errorf("no nodes at level %s", level)
		}
	}
	if err := h.Validate(); err != nil {
		t.Errorf("built hierarchy violates invariants: %v", err)
	}
	for _, n := range h.Nodes() {
		if n.Status != models.NodeStatusDraft {
			t.Errorf("node %s built with status %s, want draft", n.ID, n.Status)
		}
		if n.Confidence < 0 || n.Confidence > 1 {
			t.Errorf("node %s confidence %v out of range", n.ID, n.Confidence)
		}
	}
}

func TestBuildRequiresObjectives(t *testing.T) {
	b := NewBuilder()
	if _, err := b.Build(nil); err == nil {
		t.Error("expected error for nil requirements")
	}
	if _, err := b.Build(&analyze.Requirements{}); err == nil {
		t.Error("expected error for zero objectives")
	}
}

func TestBuildOneRootPerObjective(t *testing.T) {
	b := NewBuilder()
	h, err := b.Build(buildRequirements(t, "Build a login page. Create an admin dashboard"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := len(h.Roots()); got != 2 {
		t.Errorf("expected 2 roots, got %d", got)
	}
}

func TestBuildDepthBudgetTruncates(t *testing.T) {
	b := NewBuilder(WithDepthBudget(3))
	h, err := b.Build(buildRequirements(t, "Build a login page"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(h.NodesAtLevel(models.LevelAtomicUnit)) != 0 {
		t.Error("expected truncation before the atomic level")
	}
	// Truncated trees still honor adjacency.
	if err := h.Validate(); err != nil {
		t.Errorf("truncated hierarchy violates invariants: %v", err)
	}
}

func TestRebuildEmptyIssuesIsIdentity(t *testing.T) {
	b := NewBuilder()
	req := buildRequirements(t, "Build a login page")
	h, err := b.Build(req)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	out, err := b.Rebuild(h, nil, req.Signals)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if out.Len() != h.Len() {
		t.Fatalf("node count changed: %d -> %d", h.Len(), out.Len())
	}
	orig, rebuilt := h.Nodes(), out.Nodes()
	for i := range orig {
		if orig[i].ID != rebuilt[i].ID || orig[i].ParentID != rebuilt[i].ParentID || orig[i].Level != rebuilt[i].Level {
			t.Errorf("node %d structurally changed: %+v vs %+v", i, orig[i], rebuilt[i])
		}
	}
}

func TestRebuildRegeneratesOnlyNamedSubtrees(t *testing.T) {
	b := NewBuilder()
	req := buildRequirements(t, "Build a login page")
	h, err := b.Build(req)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	epics := h.NodesAtLevel(models.LevelEpic)
	if len(epics) < 2 {
		t.Fatalf("need at least 2 epics, got %d", len(epics))
	}
	target, sibling := epics[0], epics[1]

	// Mark the sibling's subtree as already replicated.
	siblingSubtree := h.Subtree(sibling.ID)
	sibling.ExternalRef = "EXT-1"
	for i, id := range siblingSubtree {
		h.Node(id).ExternalRef = fmt.Sprintf("EXT-%d", i+2)
	}
	oldTargetChildren := h.Subtree(target.ID)

	out, err := b.Rebuild(h, []models.QualityIssue{
		{NodeID: target.ID, Reason: "children incomplete", Severity: models.SeverityCritical},
	}, req.Signals)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// Target subtree replaced with fresh node ids.
	newChildren := make(map[string]bool)
	for _, id := range out.Subtree(target.ID) {
		newChildren[id] = true
	}
	if len(newChildren) == 0 {
		t.Fatal("target subtree not regenerated")
	}
	for _, oldID := range oldTargetChildren {
		if newChildren[oldID] {
			t.Errorf("old child %s survived regeneration", oldID)
		}
	}
	if out.Node(target.ID).Status != models.NodeStatusReworked {
		t.Errorf("target status = %s, want reworked", out.Node(target.ID).Status)
	}

	// Sibling subtree untouched, refs preserved.
	if out.Node(sibling.ID).ExternalRef != "EXT-1" {
		t.Error("sibling external ref lost")
	}
	for _, id := range siblingSubtree {
		n := out.Node(id)
		if n == nil {
			t.Fatalf("sibling descendant %s removed by rework", id)
		}
		if n.ExternalRef == "" {
			t.Errorf("sibling descendant %s lost external ref", id)
		}
	}
	if err := out.Validate(); err != nil {
		t.Errorf("reworked hierarchy violates invariants: %v", err)
	}
}

func TestRebuildDoesNotMutateInput(t *testing.T) {
	b := NewBuilder()
	req := buildRequirements(t, "Build a login page")
	h, err := b.Build(req)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	before := h.Len()
	root := h.Roots()[0]

	if _, err := b.Rebuild(h, []models.QualityIssue{{NodeID: root, Reason: "x", Severity: models.SeverityCritical}}, req.Signals); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if h.Len() != before {
		t.Errorf("input hierarchy mutated: %d -> %d nodes", before, h.Len())
	}
	if h.Node(root).Status != models.NodeStatusDraft {
		t.Errorf("input root status mutated to %s", h.Node(root).Status)
	}
}

func TestDefaultScoreRange(t *testing.T) {
	signals := analyze.ClaritySignals{WordCount: 10, HasContext: true, ActionVerbs: 2, TechTerms: 3}
	for level := models.LevelInitiative; level <= models.LevelAtomicUnit; level++ {
		s := DefaultScore("Implement login form validation", level, signals)
		if s < 0 || s > 1 {
			t.Errorf("score %v out of range at level %s", s, level)
		}
	}
	long := DefaultScore("Implement login form validation", models.LevelTask, signals)
	short := DefaultScore("x", models.LevelTask, signals)
	if short >= long {
		t.Errorf("one-word title should score below a descriptive one: %.2f vs %.2f", short, long)
	}
}
