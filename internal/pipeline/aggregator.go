package pipeline

import (
	"github.com/prakashgbid/caia-sub003/internal/stream"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// aggregator merges the pieces of one run into ProjectResults.
type aggregator struct {
	out models.ProjectResults
}

func newAggregator(h *models.Hierarchy, report *models.QualityReport) *aggregator {
	return &aggregator{out: models.ProjectResults{Hierarchy: h, Quality: report}}
}

// mergeStreams folds completed stream outputs into the aggregate.
// Failed streams simply leave their sections empty; per-item creation
// errors are already inside CreationResults.
func (a *aggregator) mergeStreams(results *stream.Results) {
	a.out.Analysis = stream.MergeAnalysis(results)
	a.out.Recommendations = stream.Recommendations(results)
	if out, ok := results.Output(stream.StreamReplication); ok {
		if creation, ok := out.(*models.CreationResults); ok {
			a.out.Creation = creation
		}
	}
}

func (a *aggregator) creation() *models.CreationResults {
	return a.out.Creation
}

// results returns the aggregate built so far. Never nil: even a failed
// run carries the best hierarchy and its report.
func (a *aggregator) results() *models.ProjectResults {
	return &a.out
}
