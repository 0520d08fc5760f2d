package quality

import (
	"fmt"
	"log"

	"github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// DefaultThreshold is the pass bar when no threshold is configured.
const DefaultThreshold = 0.85

// confidenceFloor is the per-node confidence below which a warning
// issue is raised against the node.
const confidenceFloor = 0.5

// Controller scores hierarchies against the configured threshold.
// It is stateless; per-subject review state lives in Gate.
type Controller struct {
	threshold float64
}

// NewController creates a Controller. A non-positive threshold selects
// the default.
func NewController(threshold float64) *Controller {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Controller{threshold: threshold}
}

// Threshold returns the configured pass bar.
func (c *Controller) Threshold() float64 {
	return c.threshold
}

// Validate scores the hierarchy and returns a QualityReport.
// A structural invariant violation is a defect, returned as an
// InternalInvariantError rather than a report issue. reworkCount is
// echoed into the report so callers see the cycle that produced it.
func (c *Controller) Validate(h *models.Hierarchy, reworkCount int) (*models.QualityReport, error) {
	if err := h.Validate(); err != nil {
		return nil, &errors.InternalInvariantError{HierarchyID: h.ID, Err: err}
	}

	report := &models.QualityReport{
		SubjectID:   h.ID,
		ReworkCount: reworkCount,
	}

	nodes := h.Nodes()
	if len(nodes) == 0 {
		report.Issues = append(report.Issues, models.QualityIssue{
			NodeID:   h.ID,
			Reason:   "hierarchy is empty",
			Severity: models.SeverityCritical,
		})
		return report, nil
	}

	complete := 0
	totalConfidence := 0.0
	for _, n := range nodes {
		totalConfidence += n.Confidence

		// Completeness is reported against the node whose children
		// are missing or inadequate, one level up from the gap. It
		// does not propagate further toward the root.
		if !n.Level.Atomic() && len(h.Children(n.ID)) == 0 {
			report.Issues = append(report.Issues, models.QualityIssue{
				NodeID:   n.ID,
				Reason:   fmt.Sprintf("%s node has no children; expansion stopped before the atomic level", n.Level),
				Severity: models.SeverityCritical,
			})
			continue
		}
		if n.Level.Atomic() && !actionable(n.Description) {
			report.Issues = append(report.Issues, models.QualityIssue{
				NodeID:   n.ID,
				Reason:   "atomic unit lacks a concrete, actionable description",
				Severity: models.SeverityCritical,
			})
			continue
		}
		complete++

		if n.Confidence < confidenceFloor {
			report.Issues = append(report.Issues, models.QualityIssue{
				NodeID:   n.ID,
				Reason:   fmt.Sprintf("confidence %.2f below floor %.2f", n.Confidence, confidenceFloor),
				Severity: models.SeverityWarning,
			})
		}
	}

	structural := float64(complete) / float64(len(nodes))
	avgConfidence := totalConfidence / float64(len(nodes))
	report.Score = 0.5*structural + 0.5*avgConfidence

	// Critical issues carry an extra penalty so a small but broken
	// corner of a large tree cannot hide inside the average.
	penalty := 0.1 * float64(len(report.CriticalIssues()))
	if penalty > 0.4 {
		penalty = 0.4
	}
	report.Score -= penalty
	if report.Score < 0 {
		report.Score = 0
	}

	report.Passed = report.Score >= c.threshold
	log.Printf("[quality] hierarchy %s scored %.3f (threshold %.2f, %d issues, cycle %d)",
		h.ID, report.Score, c.threshold, len(report.Issues), reworkCount)
	return report, nil
}

// actionable returns true when an atomic description is concrete
// enough to hand to an engineer.
func actionable(desc string) bool {
	return len(desc) >= 20
}
