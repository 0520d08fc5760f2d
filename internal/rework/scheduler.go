// Package rework drives the builder and quality gate in a bounded loop,
// regenerating only the failing subtrees each cycle.
package rework

import (
	"context"
	"log"

	"github.com/prakashgbid/caia-sub003/internal/analyze"
	"github.com/prakashgbid/caia-sub003/internal/quality"
	"github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// Validator scores a hierarchy. Satisfied by quality.Controller.
type Validator interface {
	Validate(h *models.Hierarchy, reworkCount int) (*models.QualityReport, error)
}

// Rebuilder regenerates the subtrees named by issues. Satisfied by
// hierarchy.Builder.
type Rebuilder interface {
	Rebuild(h *models.Hierarchy, issues []models.QualityIssue, signals analyze.ClaritySignals) (*models.Hierarchy, error)
}

// Scheduler runs the validate-rework loop for one hierarchy.
type Scheduler struct {
	validator Validator
	rebuilder Rebuilder
}

// NewScheduler creates a Scheduler.
func NewScheduler(v Validator, r Rebuilder) *Scheduler {
	return &Scheduler{validator: v, rebuilder: r}
}

// Run validates the hierarchy and reworks failing subtrees until it
// passes or maxCycles rework cycles are spent. At most maxCycles+1
// validation calls are made. The best hierarchy produced and its final
// report are always returned, even alongside a ValidationError.
//
// Only critical issues trigger regeneration. A node fixed in one cycle
// is regenerated again only if the next validation raises a new issue
// naming it.
func (s *Scheduler) Run(ctx context.Context, h *models.Hierarchy, signals analyze.ClaritySignals, maxCycles int) (*models.Hierarchy, *models.QualityReport, error) {
	gate := quality.NewGate(h.ID)

	for {
		if err := ctx.Err(); err != nil {
			return h, nil, err
		}
		if err := gate.Submit(); err != nil {
			return h, nil, err
		}
		report, err := s.validator.Validate(h, gate.ReworkCount())
		if err != nil {
			return h, nil, err
		}
		if report.Passed {
			if err := gate.Pass(); err != nil {
				return h, report, err
			}
			log.Printf("[rework] hierarchy %s passed after %d rework cycles", h.ID, report.ReworkCount)
			return h, report, nil
		}
		if err := gate.Fail(); err != nil {
			return h, report, err
		}

		if gate.ReworkCount() >= maxCycles {
			if err := gate.Exhaust(); err != nil {
				return h, report, err
			}
			log.Printf("[rework] hierarchy %s exhausted %d cycles at score %.3f", h.ID, maxCycles, report.Score)
			return h, report, &errors.ValidationError{
				SubjectID: h.ID,
				Cycles:    gate.ReworkCount(),
				Score:     report.Score,
			}
		}

		if err := gate.Rework(); err != nil {
			return h, report, err
		}
		next, err := s.rebuilder.Rebuild(h, report.CriticalIssues(), signals)
		if err != nil {
			return h, report, err
		}
		h = next
	}
}
