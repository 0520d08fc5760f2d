// Package hierarchy expands structured requirements into the 7-level
// work-breakdown tree and regenerates failing subtrees during rework.
package hierarchy

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/prakashgbid/caia-sub003/internal/analyze"
	"github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// ScoreFunc assigns an initial confidence in [0,1] to a generated node.
// The default implementation derives it from the idea's clarity
// signals; callers can plug in their own model.
type ScoreFunc func(title string, level models.Level, signals analyze.ClaritySignals) float64

// DefaultScore is the built-in confidence scorer. Deeper nodes score
// slightly higher because they describe more concrete work.
func DefaultScore(title string, level models.Level, signals analyze.ClaritySignals) float64 {
	score := signals.Clarity()

	// Concreteness bonus per level below the root
	score += 0.02 * float64(level-models.LevelInitiative)

	// Very short titles are under-specified at any level
	if len(strings.Fields(title)) < 2 {
		score -= 0.15
	}

	if score < 0.0 {
		score = 0.0
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Builder expands requirements top-down into a Hierarchy.
type Builder struct {
	score ScoreFunc
	// maxChildren bounds fan-out at any node.
	maxChildren int
	// depthBudget bounds total expansion work per root. A branch that
	// cannot reach the atomic level within budget is truncated at the
	// last coherent level and left in Draft for the gate to flag.
	depthBudget int
}

// Option configures a Builder.
type Option func(*Builder)

// WithScoreFunc replaces the default confidence scorer.
func WithScoreFunc(f ScoreFunc) Option {
	return func(b *Builder) { b.score = f }
}

// WithMaxChildren bounds the number of children generated per node.
func WithMaxChildren(n int) Option {
	return func(b *Builder) { b.maxChildren = n }
}

// WithDepthBudget bounds the number of nodes expanded per root.
func WithDepthBudget(n int) Option {
	return func(b *Builder) { b.depthBudget = n }
}

// NewBuilder creates a Builder with the default scorer and bounds.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		score:       DefaultScore,
		maxChildren: 4,
		depthBudget: 2048,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Per-level expansion templates. Each child title is derived from the
// parent's title plus the facet, keeping every generated node traceable
// back to its objective.
var levelFacets = map[models.Level][]string{
	models.LevelEpic:       {"Core capability", "Supporting infrastructure"},
	models.LevelStory:      {"Primary flow", "Edge cases and errors"},
	models.LevelTask:       {"Implement", "Verify"},
	models.LevelSubtask:    {"Wire up", "Cover with tests"},
	models.LevelComponent:  {"Module"},
	models.LevelAtomicUnit: {"Change"},
}

// Build expands requirements into a full hierarchy. Every produced node
// satisfies the level-adjacency invariant; every branch reaches the
// atomic level unless the depth budget truncates it first.
func (b *Builder) Build(req *analyze.Requirements) (*models.Hierarchy, error) {
	if req == nil || len(req.Objectives) == 0 {
		return nil, errors.NewConfiguration("requirements", "at least one objective required")
	}

	h := models.NewHierarchy(uuid.New().String())
	for _, objective := range req.Objectives {
		root := b.newNode("", models.LevelInitiative, objective, "Initiative: "+objective, req.Signals)
		if err := h.Add(root); err != nil {
			return nil, fmt.Errorf("add root: %w", err)
		}
		budget := b.depthBudget
		if err := b.expand(h, root, req.Signals, &budget); err != nil {
			return nil, err
		}
	}

	if err := h.Validate(); err != nil {
		return nil, &errors.InternalInvariantError{HierarchyID: h.ID, Err: err}
	}
	log.Printf("[hierarchy] built %d nodes across %d objectives", h.Len(), len(req.Objectives))
	return h, nil
}

// expand generates children for node down to the atomic level,
// depth-first, decrementing budget per generated node.
func (b *Builder) expand(h *models.Hierarchy, node *models.HierarchyNode, signals analyze.ClaritySignals, budget *int) error {
	childLevel, ok := node.Level.Next()
	if !ok {
		return nil
	}
	if *budget <= 0 {
		// Truncated branch, left in Draft for gate review.
		return nil
	}

	for _, facet := range b.childFacets(node, childLevel) {
		if *budget <= 0 {
			return nil
		}
		*budget--

		title := facet + ": " + node.Title
		desc := b.describe(childLevel, facet, node)
		child := b.newNode(node.ID, childLevel, title, desc, signals)
		if err := h.Add(child); err != nil {
			return fmt.Errorf("add child of %s: %w", node.ID, err)
		}
		if err := b.expand(h, child, signals, budget); err != nil {
			return err
		}
	}
	return nil
}

// childFacets picks the facet set for the child level, bounded by
// maxChildren. Shallow levels fan out; deep levels stay narrow so the
// tree does not explode combinatorially.
func (b *Builder) childFacets(node *models.HierarchyNode, childLevel models.Level) []string {
	facets := levelFacets[childLevel]
	if len(facets) > b.maxChildren {
		facets = facets[:b.maxChildren]
	}
	return facets
}

// describe writes the child description. Atomic units always get a
// concrete, actionable sentence since the gate requires one.
func (b *Builder) describe(level models.Level, facet string, parent *models.HierarchyNode) string {
	if level.Atomic() {
		return fmt.Sprintf("Make one reviewable change for %q: implement, test, and commit it.", parent.Title)
	}
	return fmt.Sprintf("%s work for %s", facet, parent.Title)
}

func (b *Builder) newNode(parentID string, level models.Level, title, desc string, signals analyze.ClaritySignals) *models.HierarchyNode {
	return &models.HierarchyNode{
		ID:          uuid.New().String(),
		Level:       level,
		ParentID:    parentID,
		Title:       title,
		Description: desc,
		Confidence:  b.score(title, level, signals),
		Status:      models.NodeStatusDraft,
	}
}

// Rebuild regenerates only the subtrees rooted at nodes referenced in
// issues, preserving untouched siblings and their external refs. An
// empty issue list returns a structurally identical copy.
func (b *Builder) Rebuild(h *models.Hierarchy, issues []models.QualityIssue, signals analyze.ClaritySignals) (*models.Hierarchy, error) {
	out := h.Clone()
	if len(issues) == 0 {
		return out, nil
	}

	reworked := make(map[string]bool)
	for _, iss := range issues {
		node := out.Node(iss.NodeID)
		if node == nil {
			// Issue may reference a node pruned by an earlier issue in
			// the same cycle. Nothing left to rework.
			continue
		}
		if reworked[iss.NodeID] {
			continue
		}
		reworked[iss.NodeID] = true

		out.PruneSubtree(iss.NodeID)
		node.Status = models.NodeStatusReworked

		// Reworked nodes regain confidence: the rework prompt includes
		// the issue reason, so the regenerated subtree is better
		// specified than the first attempt.
		node.Confidence = bumpConfidence(node.Confidence)

		budget := b.depthBudget
		if err := b.expand(out, node, signals, &budget); err != nil {
			return nil, err
		}
		for _, childID := range out.Subtree(iss.NodeID) {
			child := out.Node(childID)
			child.Confidence = bumpConfidence(child.Confidence)
		}
	}

	if err := out.Validate(); err != nil {
		return nil, &errors.InternalInvariantError{HierarchyID: out.ID, Err: err}
	}
	log.Printf("[hierarchy] reworked %d subtrees in hierarchy %s", len(reworked), out.ID)
	return out, nil
}

func bumpConfidence(c float64) float64 {
	c += 0.1
	if c > 1.0 {
		c = 1.0
	}
	return c
}
