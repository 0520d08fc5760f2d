package models

import "time"

// NodeStatus represents the lifecycle state of a hierarchy node.
type NodeStatus string

const (
	// NodeStatusDraft indicates the node has been generated but not yet validated.
	NodeStatusDraft NodeStatus = "draft"
	// NodeStatusValidated indicates the node passed the quality gate.
	NodeStatusValidated NodeStatus = "validated"
	// NodeStatusRejected indicates the node was rejected by the quality gate.
	NodeStatusRejected NodeStatus = "rejected"
	// NodeStatusReworked indicates the node was regenerated during a rework cycle.
	NodeStatusReworked NodeStatus = "reworked"
)

// Valid returns true if the status is a known value.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusDraft, NodeStatusValidated, NodeStatusRejected, NodeStatusReworked:
		return true
	default:
		return false
	}
}

// HierarchyNode is a single node in the work-breakdown hierarchy.
// Nodes become immutable once Status is Validated and ExternalRef is set.
type HierarchyNode struct {
	// ID is the stable unique identifier, generated once at creation.
	ID string `json:"id"`
	// Level is the node's depth in the hierarchy (1-7).
	Level Level `json:"level"`
	// ParentID is the ID of the parent node. Empty only for level-1 roots.
	ParentID string `json:"parent_id,omitempty"`
	// Title is the short summary of the work item.
	Title string `json:"title"`
	// Description provides detail about the work item.
	Description string `json:"description,omitempty"`
	// Confidence is the clarity score in [0,1] assigned at generation time.
	Confidence float64 `json:"confidence"`
	// Status is the lifecycle state of the node.
	Status NodeStatus `json:"status"`
	// ExternalRef is the issue key in the external tracker, once replicated.
	ExternalRef string `json:"external_ref,omitempty"`
	// CreatedAt is when the node was generated.
	CreatedAt time.Time `json:"created_at"`
}

// Root returns true if the node is a level-1 root.
func (n *HierarchyNode) Root() bool {
	return n.Level == LevelInitiative
}

// Replicated returns true if the node has been created in the external tracker.
func (n *HierarchyNode) Replicated() bool {
	return n.ExternalRef != ""
}
