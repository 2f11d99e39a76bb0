// Package remote implements the remote document store client over its JSON
// HTTP API, plus a polling connectivity probe.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ledgerlite/ledgerlite/internal/common"
	"github.com/ledgerlite/ledgerlite/internal/service"
)

// Client talks to the remote transactions collection. Writes use merge
// semantics keyed by document id; the server assigns the timestamp used as
// the pull cursor.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a client for the given API base URL. The token is sent
// as a bearer credential; pass empty for unauthenticated endpoints.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: remote base URL", common.ErrMissingConfig)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: remote base URL: %v", common.ErrInvalidConfig, err)
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type batchUpsertRequest struct {
	Documents []service.RemoteDocument `json:"documents"`
}

type queryResponse struct {
	Documents []service.RemoteDocument `json:"documents"`
}

// UpsertBatch merges the documents into the remote collection. The server
// merges fields per document and stamps its own write timestamp.
func (c *Client) UpsertBatch(ctx context.Context, docs []service.RemoteDocument) error {
	if len(docs) == 0 {
		return nil
	}

	body, err := json.Marshal(batchUpsertRequest{Documents: docs})
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/transactions:batchUpsert", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("%w: %v", common.ErrRemoteTransient, err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	return c.checkStatus(resp)
}

// Delete removes one document. Deleting an absent document is a success.
func (c *Client) Delete(ctx context.Context, userID, id string) error {
	u := fmt.Sprintf("%s/v1/transactions/%s?userId=%s",
		c.baseURL, url.PathEscape(id), url.QueryEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("%w: %v", common.ErrRemoteTransient, err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return c.checkStatus(resp)
}

// Query returns the user's documents ordered by server timestamp ascending,
// strictly after startAfter (all documents from the beginning when empty).
func (c *Client) Query(ctx context.Context, userID, startAfter string, limit int) ([]service.RemoteDocument, error) {
	u, err := url.Parse(c.baseURL + "/v1/transactions")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("userId", userID)
	q.Set("orderBy", "timestamp")
	if startAfter != "" {
		q.Set("startAfter", startAfter)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("%w: %v", common.ErrRemoteTransient, err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return decoded.Documents, nil
}

// Ping checks remote reachability without mutating anything.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/ping", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrOffline, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping returned %d", common.ErrOffline, resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// checkStatus maps HTTP status codes to the error taxonomy: 5xx is
// transient and retryable, other non-2xx are permanent.
func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 500 {
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: %d - %s", common.ErrRemoteTransient, resp.StatusCode, string(body)),
			Retryable: true,
		}
	}

	return &common.RetryableError{
		Err:       fmt.Errorf("%w: %d - %s", common.ErrRemoteRejected, resp.StatusCode, string(body)),
		Retryable: false,
	}
}
