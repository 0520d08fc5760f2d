// Package tracker replicates validated hierarchies into an external
// issue tracker with batching, rate limiting, circuit breaking and
// per-item retry.
package tracker

import (
	"context"

	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// Issue is one outbound create request.
type Issue struct {
	// Type is the tracker-side issue type derived from the node level.
	Type string
	// Summary is the issue title.
	Summary string
	// Description is the issue body.
	Description string
	// ParentRef links the issue to its parent's external key. Empty
	// for roots or when proceeding without a link.
	ParentRef string
	// IdempotencyKey is the hierarchy node ID. The tracker must treat
	// a repeated key as the same create, so a retried call whose ack
	// was lost does not produce a duplicate.
	IdempotencyKey string
}

// ItemResult is the per-item outcome of a bulk call.
type ItemResult struct {
	// IdempotencyKey echoes the request key.
	IdempotencyKey string
	// ExternalRef is the created issue key on success.
	ExternalRef string
	// Err is the classified failure, nil on success.
	Err error
}

// Client is the external issue-tracker boundary. Implementations must
// classify failures as pkg/errors ExternalServiceError so the creator
// can tell transient from permanent.
type Client interface {
	// CreateIssue creates a single issue and returns its external key.
	CreateIssue(ctx context.Context, issue Issue) (string, error)
	// BulkCreate creates a batch and returns per-item results. The
	// returned error is reserved for call-level failures where no
	// per-item outcome exists.
	BulkCreate(ctx context.Context, issues []Issue) ([]ItemResult, error)
	// Endpoint identifies the tracker instance for circuit breaking.
	Endpoint() string
}

// issueTypes maps hierarchy levels to tracker issue types.
var issueTypes = map[models.Level]string{
	models.LevelInitiative: "initiative",
	models.LevelEpic:       "epic",
	models.LevelStory:      "story",
	models.LevelTask:       "task",
	models.LevelSubtask:    "sub-task",
	models.LevelComponent:  "sub-task",
	models.LevelAtomicUnit: "sub-task",
}

// issueFor builds the outbound request for one node.
func issueFor(n *models.HierarchyNode, parentRef string) Issue {
	return Issue{
		Type:           issueTypes[n.Level],
		Summary:        n.Title,
		Description:    n.Description,
		ParentRef:      parentRef,
		IdempotencyKey: n.ID,
	}
}
