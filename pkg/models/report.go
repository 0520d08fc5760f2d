package models

// IssueSeverity ranks quality issues by how strongly they block a pass.
type IssueSeverity string

const (
	// SeverityInfo is advisory only and never blocks a pass by itself.
	SeverityInfo IssueSeverity = "info"
	// SeverityWarning lowers the score but may still pass above threshold.
	SeverityWarning IssueSeverity = "warning"
	// SeverityCritical marks a structural or completeness defect.
	SeverityCritical IssueSeverity = "critical"
)

// Valid returns true if the severity is a known value.
func (s IssueSeverity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// QualityIssue names one offending node and why it failed review,
// so rework can target the subtree instead of regenerating everything.
type QualityIssue struct {
	// NodeID is the offending node. Incompleteness of children is
	// reported against the parent, one level up.
	NodeID string `json:"node_id"`
	// Reason is a human-readable description of the problem.
	Reason string `json:"reason"`
	// Severity ranks how strongly the issue blocks a pass.
	Severity IssueSeverity `json:"severity"`
}

// QualityReport is the outcome of one quality-gate validation pass.
type QualityReport struct {
	// SubjectID is the hierarchy or subtree root being scored.
	SubjectID string `json:"subject_id"`
	// Score is the weighted aggregate in [0,1].
	Score float64 `json:"score"`
	// Passed is true when Score met the configured threshold and no
	// critical issues remain.
	Passed bool `json:"passed"`
	// Issues lists the offending nodes, ordered by discovery.
	Issues []QualityIssue `json:"issues,omitempty"`
	// ReworkCount is how many rework cycles the subject has been
	// through. Monotonically non-decreasing per subject.
	ReworkCount int `json:"rework_count"`
}

// CriticalIssues returns only the critical-severity issues.
func (r *QualityReport) CriticalIssues() []QualityIssue {
	var out []QualityIssue
	for _, iss := range r.Issues {
		if iss.Severity == SeverityCritical {
			out = append(out, iss)
		}
	}
	return out
}

// IssueNodeIDs returns the distinct node IDs referenced by issues,
// in first-mention order.
func (r *QualityReport) IssueNodeIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, iss := range r.Issues {
		if !seen[iss.NodeID] {
			seen[iss.NodeID] = true
			out = append(out, iss.NodeID)
		}
	}
	return out
}
