package stream

import (
	"context"
	"fmt"

	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// Built-in stream names.
const (
	StreamRisk            = "risk"
	StreamEstimation      = "estimation"
	StreamSuccess         = "success_probability"
	StreamRecommendations = "recommendations"
	StreamReplication     = "replication"
)

// RiskOutput is the risk stream's result.
type RiskOutput struct {
	Score   float64
	Factors []string
}

// RegisterBuiltins installs the analysis streams into the registry.
// The replication stream is registered separately by the pipeline
// since it closes over the tracker client.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]Runner{
		StreamRisk:            RunnerFunc(runRisk),
		StreamEstimation:      RunnerFunc(runEstimation),
		StreamSuccess:         RunnerFunc(runSuccess),
		StreamRecommendations: RunnerFunc(runRecommendations),
	}
	for name, runner := range builtins {
		if err := r.Register(name, runner); err != nil {
			return err
		}
	}
	return nil
}

// AnalysisTasks returns the default analysis task graph: risk,
// estimation and success probability run in parallel, recommendations
// waits for all three.
func AnalysisTasks() []*models.StreamTask {
	return []*models.StreamTask{
		{StreamID: StreamRisk, State: models.StreamPending},
		{StreamID: StreamEstimation, State: models.StreamPending},
		{StreamID: StreamSuccess, State: models.StreamPending},
		{
			StreamID:  StreamRecommendations,
			DependsOn: []string{StreamRisk, StreamEstimation, StreamSuccess},
			State:     models.StreamPending,
		},
	}
}

// runRisk scores delivery risk from hierarchy size and team shape.
func runRisk(ctx context.Context, in *Input, prior *Results) (any, error) {
	out := RiskOutput{Score: 0.2}

	atomic := len(in.Hierarchy.NodesAtLevel(models.LevelAtomicUnit))
	if atomic > 50 {
		out.Score += 0.2
		out.Factors = append(out.Factors, fmt.Sprintf("large scope: %d atomic units", atomic))
	}
	team := in.Requirements.Team
	if team.Size > 0 && team.Size < 3 {
		out.Score += 0.15
		out.Factors = append(out.Factors, "small team for the scope")
	}
	if team.Experience == "junior" {
		out.Score += 0.15
		out.Factors = append(out.Factors, "junior team")
	}
	if len(team.Technologies) == 0 {
		out.Score += 0.1
		out.Factors = append(out.Factors, "no established technology stack")
	}
	if in.Requirements.Signals.Ambiguous > 0 {
		out.Score += 0.1
		out.Factors = append(out.Factors, "ambiguous requirements")
	}
	if out.Score > 1.0 {
		out.Score = 1.0
	}
	return out, nil
}

// runEstimation projects effort from the atomic unit count.
func runEstimation(ctx context.Context, in *Input, prior *Results) (any, error) {
	atomic := len(in.Hierarchy.NodesAtLevel(models.LevelAtomicUnit))
	if atomic == 0 {
		// Truncated hierarchy: fall back to counting the deepest level
		// that was produced.
		atomic = in.Hierarchy.Len()
	}

	// Half a day per atomic unit, split across the team.
	days := float64(atomic) * 0.5
	if size := in.Requirements.Team.Size; size > 1 {
		days /= float64(size)
		// Coordination overhead grows with team size.
		days *= 1.0 + 0.1*float64(size-1)
	}
	return days, nil
}

// runSuccess projects the chance of on-time delivery.
func runSuccess(ctx context.Context, in *Input, prior *Results) (any, error) {
	p := 0.5
	if in.Quality != nil {
		// A cleanly validated breakdown is the strongest signal.
		p += 0.3 * in.Quality.Score
	}
	if in.Requirements.Signals.HasContext {
		p += 0.05
	}
	if in.Requirements.Team.Experience == "senior" {
		p += 0.1
	}
	if p > 1.0 {
		p = 1.0
	}
	return p, nil
}

// runRecommendations folds the upstream analysis outputs into
// human-readable follow-ups.
func runRecommendations(ctx context.Context, in *Input, prior *Results) (any, error) {
	var recs []string

	if out, ok := prior.Output(StreamRisk); ok {
		risk := out.(RiskOutput)
		if risk.Score >= 0.5 {
			recs = append(recs, fmt.Sprintf("High delivery risk (%.2f); address: %v", risk.Score, risk.Factors))
		}
		for _, f := range risk.Factors {
			recs = append(recs, "Mitigate: "+f)
		}
	}
	if out, ok := prior.Output(StreamEstimation); ok {
		days := out.(float64)
		weeks := in.Requirements.Team.TimelineWeeks
		if weeks > 0 && days > float64(weeks*5) {
			recs = append(recs, fmt.Sprintf("Estimated %.0f working days exceeds the %d-week timeline; cut scope or extend", days, weeks))
		}
	}
	if out, ok := prior.Output(StreamSuccess); ok {
		if p := out.(float64); p < 0.6 {
			recs = append(recs, fmt.Sprintf("Success probability %.2f is low; consider a smaller first milestone", p))
		}
	}
	if in.Quality != nil && len(in.Quality.Issues) > 0 {
		recs = append(recs, fmt.Sprintf("Review the %d remaining quality issues before starting work", len(in.Quality.Issues)))
	}
	if len(recs) == 0 {
		recs = append(recs, "Breakdown looks healthy; proceed with the plan as generated")
	}
	return recs, nil
}

// MergeAnalysis folds stream outputs into an AnalysisResults record.
// Streams that failed or never ran leave their fields at zero.
func MergeAnalysis(results *Results) *models.AnalysisResults {
	analysis := &models.AnalysisResults{}
	if out, ok := results.Output(StreamRisk); ok {
		risk := out.(RiskOutput)
		analysis.RiskScore = risk.Score
		analysis.RiskFactors = risk.Factors
	}
	if out, ok := results.Output(StreamEstimation); ok {
		analysis.EstimatedDays = out.(float64)
	}
	if out, ok := results.Output(StreamSuccess); ok {
		analysis.SuccessProbability = out.(float64)
	}
	return analysis
}

// Recommendations extracts the recommendation stream's output, or a
// blocked-by note when the stream failed.
func Recommendations(results *Results) []string {
	if out, ok := results.Output(StreamRecommendations); ok {
		return out.([]string)
	}
	if err, ok := results.Failure(StreamRecommendations); ok {
		return []string{fmt.Sprintf("Recommendations unavailable: %v", err)}
	}
	return nil
}
