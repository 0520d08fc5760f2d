package tracker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// CreatorConfig tunes the bulk creator.
type CreatorConfig struct {
	// BatchSize is the maximum items per batch operation.
	BatchSize int
	// Concurrency bounds how many sibling batches run at once.
	Concurrency int
	// RatePerSecond is the outbound request budget.
	RatePerSecond float64
	// Burst is the token bucket capacity.
	Burst int
	// WaitTimeout bounds how long a batch blocks on the rate limiter
	// before it is deferred and retried.
	WaitTimeout time.Duration
	// DeferralRetries bounds how often a starved batch is re-queued.
	DeferralRetries int
	// Retry is the per-item retry policy for transient failures.
	Retry RetryPolicy
	// ProceedWithoutLink lets a child be created without its parent's
	// external ref when the parent's replication failed. Off by
	// default: children of failed parents become error records instead
	// of orphaned external issues.
	ProceedWithoutLink bool
}

func (c CreatorConfig) withDefaults() CreatorConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = int(c.RatePerSecond)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 5 * time.Second
	}
	if c.DeferralRetries <= 0 {
		c.DeferralRetries = 3
	}
	return c
}

// BulkIssueCreator replicates a passed hierarchy into the external
// tracker. Levels are processed strictly top-down so every parent's
// external ref exists before its children are submitted; batches
// within a level run concurrently.
type BulkIssueCreator struct {
	client  Client
	breaker *Breaker
	limiter *rate.Limiter
	config  CreatorConfig
}

// NewBulkIssueCreator creates a creator sharing breaker state through
// the registry.
func NewBulkIssueCreator(client Client, registry *BreakerRegistry, config CreatorConfig) *BulkIssueCreator {
	config = config.withDefaults()
	return &BulkIssueCreator{
		client:  client,
		breaker: registry.ForEndpoint(client.Endpoint()),
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		config:  config,
	}
}

// collector gathers per-item outcomes across concurrent batches.
type collector struct {
	mu      sync.Mutex
	results models.CreationResults
	refs    map[string]string
}

func (c *collector) success(rec models.IssueRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results.Created = append(c.results.Created, rec)
	c.refs[rec.NodeID] = rec.ExternalRef
}

func (c *collector) failure(rec models.ErrorRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results.Errors = append(c.results.Errors, rec)
}

func (c *collector) timing(t models.BatchTiming) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results.Timings = append(c.results.Timings, t)
}

func (c *collector) deferral() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results.Deferred++
}

func (c *collector) ref(nodeID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.refs[nodeID]
	return r, ok
}

// Create replicates every node without an external ref, level by
// level. Per-item failures never abort the run; they are collected and
// returned alongside the successes. The returned error is non-nil only
// for cancellation.
func (b *BulkIssueCreator) Create(ctx context.Context, h *models.Hierarchy) (*models.CreationResults, error) {
	col := &collector{refs: make(map[string]string)}
	for _, n := range h.Nodes() {
		if n.Replicated() {
			// Resume: already-created nodes keep their refs and are
			// not resubmitted.
			col.refs[n.ID] = n.ExternalRef
		}
	}

	for level := models.LevelInitiative; level <= models.MaxLevel; level++ {
		var pending []*models.HierarchyNode
		for _, n := range h.NodesAtLevel(level) {
			if !n.Replicated() {
				pending = append(pending, n)
			}
		}
		if len(pending) == 0 {
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.config.Concurrency)
		for _, batch := range b.partition(level, pending) {
			batch := batch
			g.Go(func() error {
				b.processBatch(gctx, h, batch, col)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			// Cancelled: in-flight batches finished above; everything
			// not yet started is abandoned.
			return &col.results, err
		}
	}

	log.Printf("[tracker] replication done: %d created, %d errors, %d deferrals",
		len(col.results.Created), len(col.results.Errors), col.results.Deferred)
	return &col.results, nil
}

func (b *BulkIssueCreator) partition(level models.Level, nodes []*models.HierarchyNode) []*models.BatchOperation {
	var batches []*models.BatchOperation
	for start := 0; start < len(nodes); start += b.config.BatchSize {
		end := start + b.config.BatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		items := make([]string, 0, end-start)
		for _, n := range nodes[start:end] {
			items = append(items, n.ID)
		}
		batches = append(batches, &models.BatchOperation{
			ID:    uuid.New().String(),
			Level: level,
			Items: items,
			State: models.BatchPending,
		})
	}
	return batches
}

// processBatch submits one batch, retrying transient per-item failures
// individually so successes are never resubmitted.
func (b *BulkIssueCreator) processBatch(ctx context.Context, h *models.Hierarchy, batch *models.BatchOperation, col *collector) {
	start := time.Now()
	defer func() {
		col.timing(models.BatchTiming{
			BatchID:  batch.ID,
			Level:    batch.Level,
			Items:    len(batch.Items),
			Duration: time.Since(start),
		})
	}()

	// Resolve parent links. Children whose parents never replicated
	// are dropped here unless the proceed-without-link policy is on.
	var issues []Issue
	nodesByKey := make(map[string]*models.HierarchyNode)
	for _, id := range batch.Items {
		n := h.Node(id)
		parentRef := ""
		if n.ParentID != "" {
			ref, ok := col.ref(n.ParentID)
			if !ok && !b.config.ProceedWithoutLink {
				col.failure(models.ErrorRecord{
					NodeID:    n.ID,
					Reason:    "parent was not replicated; refusing to create an orphaned issue",
					Permanent: true,
				})
				continue
			}
			parentRef = ref
		}
		issues = append(issues, issueFor(n, parentRef))
		nodesByKey[n.ID] = n
	}
	if len(issues) == 0 {
		batch.State = models.BatchFailed
		return
	}

	// One token per outbound call, bounded wait. A starved batch is
	// deferred and retried rather than dropped.
	var itemResults []ItemResult
	var callErr error
	for {
		batch.Attempt++
		if err := b.waitForToken(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			col.deferral()
			if batch.Attempt > b.config.DeferralRetries {
				callErr = errors.NewTransient(b.client.Endpoint(), 0, fmt.Errorf("rate limiter starved after %d deferrals", batch.Attempt))
				break
			}
			batch.State = models.BatchPending
			continue
		}

		batch.State = models.BatchInFlight
		if err := b.breaker.Allow(); err != nil {
			callErr = err
			break
		}
		itemResults, callErr = b.client.BulkCreate(ctx, issues)
		if callErr != nil {
			b.breaker.Failure()
		} else {
			b.breaker.Success()
		}
		break
	}
	if callErr != nil {
		// Call-level failure: every item inherits it and goes through
		// the per-item path.
		itemResults = itemResults[:0]
		for _, iss := range issues {
			itemResults = append(itemResults, ItemResult{IdempotencyKey: iss.IdempotencyKey, Err: callErr})
		}
	}

	succeeded, failed := 0, 0
	issuesByKey := make(map[string]Issue, len(issues))
	for _, iss := range issues {
		issuesByKey[iss.IdempotencyKey] = iss
	}
	for _, res := range itemResults {
		n := nodesByKey[res.IdempotencyKey]
		if n == nil {
			continue
		}
		switch {
		case res.Err == nil:
			b.recordSuccess(col, n, res.ExternalRef, 1, time.Since(start))
			succeeded++
		case errors.IsPermanent(res.Err):
			col.failure(models.ErrorRecord{NodeID: n.ID, Reason: res.Err.Error(), Permanent: true, Attempts: 1})
			failed++
		default:
			if b.retryItem(ctx, col, n, issuesByKey[n.ID], start) {
				succeeded++
			} else {
				failed++
			}
		}
	}

	switch {
	case failed == 0:
		batch.State = models.BatchSucceeded
	case succeeded == 0:
		batch.State = models.BatchFailed
	default:
		batch.State = models.BatchPartiallySucceeded
	}
}

// retryItem drives the per-item retry loop for a transiently failed
// create. Returns true on eventual success.
func (b *BulkIssueCreator) retryItem(ctx context.Context, col *collector, n *models.HierarchyNode, issue Issue, start time.Time) bool {
	var ref string
	attempts, err := b.config.Retry.Do(ctx, func() error {
		if err := b.breaker.Allow(); err != nil {
			return err
		}
		if err := b.waitForToken(ctx); err != nil {
			return errors.NewTransient(b.client.Endpoint(), 0, err)
		}
		var callErr error
		ref, callErr = b.client.CreateIssue(ctx, issue)
		if callErr != nil {
			b.breaker.Failure()
			return callErr
		}
		b.breaker.Success()
		return nil
	})

	// The bulk submission already spent one attempt on this item.
	attempts++
	if err != nil {
		col.failure(models.ErrorRecord{
			NodeID:    n.ID,
			Reason:    err.Error(),
			Permanent: errors.IsPermanent(err),
			Attempts:  attempts,
		})
		return false
	}
	b.recordSuccess(col, n, ref, attempts, time.Since(start))
	return true
}

func (b *BulkIssueCreator) recordSuccess(col *collector, n *models.HierarchyNode, ref string, attempts int, duration time.Duration) {
	n.ExternalRef = ref
	n.Status = models.NodeStatusValidated
	col.success(models.IssueRecord{
		NodeID:      n.ID,
		ExternalRef: ref,
		Attempts:    attempts,
		Duration:    duration,
	})
}

// waitForToken blocks for a rate-limiter token up to WaitTimeout.
func (b *BulkIssueCreator) waitForToken(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, b.config.WaitTimeout)
	defer cancel()
	return b.limiter.Wait(waitCtx)
}
