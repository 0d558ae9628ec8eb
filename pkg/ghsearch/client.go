package ghsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.github.com"

// Client queries the GitHub issue search API.
type Client interface {
	SearchIssues(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// APIError is a non-200 response from the search API. Callers inspect
// StatusCode to decide whether the request is worth retrying.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ghsearch: unexpected status %d: %s", e.StatusCode, e.Body)
}

// SearchRequest holds the parameters for GET /search/issues.
type SearchRequest struct {
	Query   string
	Sort    string
	Order   string
	PerPage int
	Page    int
}

// SearchResponse is the GitHub issue search envelope.
type SearchResponse struct {
	TotalCount        int     `json:"total_count"`
	IncompleteResults bool    `json:"incomplete_results"`
	Items             []Issue `json:"items"`

	// RateRemaining is taken from the X-RateLimit-Remaining response
	// header, or -1 when the header is absent.
	RateRemaining int `json:"-"`
}

// Issue is a single issue (or pull request) in a search result.
type Issue struct {
	Number        int        `json:"number"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	HTMLURL       string     `json:"html_url"`
	RepositoryURL string     `json:"repository_url"`
	User          User       `json:"user"`
	Labels        []Label    `json:"labels"`
	Comments      int        `json:"comments"`
	Reactions     Reactions  `json:"reactions"`
	CreatedAt     time.Time  `json:"created_at"`
	PullRequest   *IssueLink `json:"pull_request,omitempty"`
}

// User is the issue author.
type User struct {
	Login string `json:"login"`
}

// Label is an issue label.
type Label struct {
	Name string `json:"name"`
}

// Reactions summarizes emoji reactions on an issue.
type Reactions struct {
	TotalCount int `json:"total_count"`
}

// IssueLink marks an issue as a pull request when present.
type IssueLink struct {
	URL string `json:"url"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header. GitHub rejects requests
// without one.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	token     string
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient creates a GitHub search client. An empty token sends
// unauthenticated requests at the much lower anonymous rate limit.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchIssues(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	if req.Sort != "" {
		params.Set("sort", req.Sort)
	}
	if req.Order != "" {
		params.Set("order", req.Order)
	}
	if req.PerPage > 0 {
		params.Set("per_page", fmt.Sprint(req.PerPage))
	}
	if req.Page > 0 {
		params.Set("page", fmt.Sprint(req.Page))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search/issues?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "ghsearch: create request")
	}
	httpReq.Header.Set("Accept", "application/vnd.github.v3.text-match+json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "ghsearch: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ghsearch: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "ghsearch: unmarshal response")
	}

	result.RateRemaining = -1
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			result.RateRemaining = n
		}
	}

	return &result, nil
}
