package models

import "time"

// TeamContext describes the team that will execute the work. It feeds
// the analyzer's risk and estimation signals.
type TeamContext struct {
	// Size is the number of people on the team.
	Size int `json:"size" mapstructure:"size"`
	// Experience is a free-form level such as "junior" or "senior".
	Experience string `json:"experience" mapstructure:"experience"`
	// Technologies lists the stacks the team already knows.
	Technologies []string `json:"technologies,omitempty" mapstructure:"technologies"`
	// TimelineWeeks is the expected delivery window, 0 if unknown.
	TimelineWeeks int `json:"timeline_weeks" mapstructure:"timeline_weeks"`
}

// IssueRecord is the successful outcome of replicating one node.
type IssueRecord struct {
	// NodeID is the hierarchy node that was replicated.
	NodeID string `json:"node_id"`
	// ExternalRef is the issue key assigned by the external tracker.
	ExternalRef string `json:"external_ref"`
	// Attempts is how many calls it took, including the final success.
	Attempts int `json:"attempts"`
	// Duration is wall time spent on this item including backoff.
	Duration time.Duration `json:"duration"`
}

// ErrorRecord is the failed outcome of replicating one node.
type ErrorRecord struct {
	// NodeID is the hierarchy node that failed to replicate.
	NodeID string `json:"node_id"`
	// Reason is the classified failure description.
	Reason string `json:"reason"`
	// Permanent is true when the failure is not retry-eligible.
	Permanent bool `json:"permanent"`
	// Attempts is how many calls were made before giving up.
	Attempts int `json:"attempts"`
}

// CreationResults summarizes one bulk replication run.
type CreationResults struct {
	// Created lists per-node successes.
	Created []IssueRecord `json:"created,omitempty"`
	// Errors lists per-node failures.
	Errors []ErrorRecord `json:"errors,omitempty"`
	// Timings records per-batch durations.
	Timings []BatchTiming `json:"timings,omitempty"`
	// Deferred counts batches that were postponed at least once while
	// waiting on the rate limiter or parent links.
	Deferred int `json:"deferred"`
}

// Complete returns true when every node got an external ref.
func (c *CreationResults) Complete() bool {
	return len(c.Errors) == 0
}

// AnalysisResults carries the output of the parallel analysis streams.
// The pipeline treats these values as opaque beyond aggregation.
type AnalysisResults struct {
	// RiskScore is the overall delivery risk in [0,1].
	RiskScore float64 `json:"risk_score"`
	// RiskFactors names the signals that drove the risk score.
	RiskFactors []string `json:"risk_factors,omitempty"`
	// EstimatedDays is the projected effort for the whole hierarchy.
	EstimatedDays float64 `json:"estimated_days"`
	// SuccessProbability is the projected chance of on-time delivery.
	SuccessProbability float64 `json:"success_probability"`
}

// ProjectResults is the aggregate output of one pipeline run. It is
// best effort: even a failed quality gate yields the best hierarchy
// produced plus its report, never an empty result.
type ProjectResults struct {
	// Hierarchy is the final work-breakdown tree.
	Hierarchy *Hierarchy `json:"-"`
	// Quality is the last quality report produced.
	Quality *QualityReport `json:"quality,omitempty"`
	// Analysis holds the merged analysis stream output. Nil when the
	// analysis streams were cancelled or failed.
	Analysis *AnalysisResults `json:"analysis,omitempty"`
	// Creation holds the bulk replication outcome. Nil when external
	// creation was disabled or never started.
	Creation *CreationResults `json:"creation,omitempty"`
	// Recommendations are human-readable follow-ups derived from the
	// analysis and quality outcomes.
	Recommendations []string `json:"recommendations,omitempty"`
}
