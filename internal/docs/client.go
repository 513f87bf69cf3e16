package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/docfoundry/docfoundry/pkg/config"
	"github.com/docfoundry/docfoundry/pkg/errors"
	"github.com/docfoundry/docfoundry/pkg/logging"
)

// Document is one documentation entry from the upstream API
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult is one search hit
type SearchResult struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Client talks to the upstream documentation API. Upstream failures map onto
// the error taxonomy so the resilience layer can tell retryable outages from
// permanent rejections.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a documentation API client
func NewClient(cfg *config.DocsConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     logging.GetLogger(),
	}
}

// FetchDocument retrieves one document by ID
func (c *Client) FetchDocument(ctx context.Context, id string) (*Document, error) {
	if id == "" {
		return nil, errors.NewValidationError("document id is required")
	}

	var doc Document
	if err := c.getJSON(ctx, fmt.Sprintf("%s/documents/%s", c.baseURL, url.PathEscape(id)), &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// Search queries the upstream full-text index
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if query == "" {
		return nil, errors.NewValidationError("search query is required")
	}
	if limit <= 0 {
		limit = 20
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&limit=%d", c.baseURL, url.QueryEscape(query), limit)

	var results []SearchResult
	if err := c.getJSON(ctx, endpoint, &results); err != nil {
		return nil, err
	}

	return results, nil
}

// Probe is a lightweight availability check suitable for the health monitor
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return errors.NewInternalError("failed to build probe request").WithCause(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewProbeError("docs-api", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return errors.NewProbeError("docs-api", fmt.Errorf("upstream returned %d", resp.StatusCode))
	}

	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.NewInternalError("failed to build request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewTimeoutError("docs.fetch").WithCause(err)
		}
		return errors.NewExternalError("docs-api", "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.NewExternalError("docs-api", "failed to read response").WithCause(err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NewNotFoundError("document")
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.NewTransientError("upstream rate limited")
	case resp.StatusCode >= 500:
		return errors.NewExternalError("docs-api", fmt.Sprintf("upstream returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return errors.NewValidationError(fmt.Sprintf("upstream rejected request with %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return errors.NewExternalError("docs-api", "malformed response body").WithCause(err)
	}

	return nil
}
