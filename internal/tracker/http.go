package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prakashgbid/caia-sub003/pkg/errors"
)

// HTTPClient talks to a JSON issue tracker over REST. Single creates
// POST to /issues, bulk creates to /issues/bulk. The node ID travels
// as an Idempotency-Key header so the tracker can deduplicate retried
// calls whose acknowledgment was lost.
type HTTPClient struct {
	base   *url.URL
	token  string
	client *http.Client
}

// NewHTTPClient builds a client for the tracker at baseURL. The token
// is optional; when set it is sent as a bearer credential.
func NewHTTPClient(baseURL, token string) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.NewConfiguration("tracker.url", "tracker base URL is required")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewConfiguration("tracker.url", fmt.Sprintf("invalid tracker URL: %v", err))
	}
	return &HTTPClient{
		base:   base,
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Endpoint identifies the tracker host for circuit breaking.
func (c *HTTPClient) Endpoint() string {
	return c.base.Host
}

type issuePayload struct {
	Type        string `json:"type"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	ParentRef   string `json:"parent_ref,omitempty"`
	Key         string `json:"idempotency_key"`
}

type issueResponse struct {
	Key string `json:"key"`
}

type bulkPayload struct {
	Issues []issuePayload `json:"issues"`
}

type bulkResponse struct {
	Results []struct {
		IdempotencyKey string `json:"idempotency_key"`
		Key            string `json:"key,omitempty"`
		Status         int    `json:"status,omitempty"`
		Error          string `json:"error,omitempty"`
	} `json:"results"`
}

func payloadFor(issue Issue) issuePayload {
	return issuePayload{
		Type:        issue.Type,
		Summary:     issue.Summary,
		Description: issue.Description,
		ParentRef:   issue.ParentRef,
		Key:         issue.IdempotencyKey,
	}
}

// CreateIssue creates a single issue and returns its external key.
func (c *HTTPClient) CreateIssue(ctx context.Context, issue Issue) (string, error) {
	body, err := c.post(ctx, "/issues", issue.IdempotencyKey, payloadFor(issue))
	if err != nil {
		return "", err
	}
	var resp issueResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.NewPermanent(c.Endpoint(), 0, fmt.Errorf("decode create response: %w", err))
	}
	if resp.Key == "" {
		return "", errors.NewPermanent(c.Endpoint(), 0, fmt.Errorf("tracker returned no issue key"))
	}
	return resp.Key, nil
}

// BulkCreate creates a batch and returns per-item results. A non-2xx
// response or transport failure is a call-level error; per-item
// failures come back inside the result slice.
func (c *HTTPClient) BulkCreate(ctx context.Context, issues []Issue) ([]ItemResult, error) {
	payload := bulkPayload{Issues: make([]issuePayload, 0, len(issues))}
	for _, issue := range issues {
		payload.Issues = append(payload.Issues, payloadFor(issue))
	}

	body, err := c.post(ctx, "/issues/bulk", "", payload)
	if err != nil {
		return nil, err
	}
	var resp bulkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.NewPermanent(c.Endpoint(), 0, fmt.Errorf("decode bulk response: %w", err))
	}

	results := make([]ItemResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		item := ItemResult{IdempotencyKey: r.IdempotencyKey, ExternalRef: r.Key}
		if r.Key == "" {
			status := r.Status
			if status == 0 {
				status = http.StatusInternalServerError
			}
			item.Err = errors.NewFromStatus(c.Endpoint(), status, fmt.Errorf("tracker rejected item: %s", r.Error))
		}
		results = append(results, item)
	}
	return results, nil
}

func (c *HTTPClient) post(ctx context.Context, path, idempotencyKey string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewPermanent(c.Endpoint(), 0, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(path).String(), bytes.NewReader(raw))
	if err != nil {
		return nil, errors.NewPermanent(c.Endpoint(), 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Transport failures are retryable: the tracker may be back on
		// the next attempt and idempotency keys absorb duplicates.
		return nil, errors.NewTransient(c.Endpoint(), 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.NewTransient(c.Endpoint(), resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewFromStatus(c.Endpoint(), resp.StatusCode,
			fmt.Errorf("tracker returned %s: %s", resp.Status, truncate(body, 200)))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
