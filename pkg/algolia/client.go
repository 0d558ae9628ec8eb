package algolia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://hn.algolia.com/api/v1"

// Client searches Hacker News stories via the Algolia HN Search API.
type Client interface {
	SearchByDate(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// APIError is a non-200 response from the search API. Callers inspect
// StatusCode to decide whether the request is worth retrying.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("algolia: unexpected status %d: %s", e.StatusCode, e.Body)
}

// SearchRequest holds the query parameters for GET /search_by_date.
type SearchRequest struct {
	Tags           string
	NumericFilters string
	HitsPerPage    int
	Page           int
}

// SearchResponse is the Algolia search result envelope.
type SearchResponse struct {
	Hits        []Hit `json:"hits"`
	NbHits      int   `json:"nbHits"`
	Page        int   `json:"page"`
	NbPages     int   `json:"nbPages"`
	HitsPerPage int   `json:"hitsPerPage"`
}

// Hit is a single Hacker News story in a search result.
type Hit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	StoryText   string `json:"story_text"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAtI  int64  `json:"created_at_i"`
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

// WithUserAgent sets the User-Agent header on search requests.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient creates an Algolia HN Search client. The API is unauthenticated.
func NewClient(opts ...Option) Client {
	c := &httpClient{
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

func (c *httpClient) SearchByDate(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	params := url.Values{}
	if req.Tags != "" {
		params.Set("tags", req.Tags)
	}
	if req.NumericFilters != "" {
		params.Set("numericFilters", req.NumericFilters)
	}
	if req.HitsPerPage > 0 {
		params.Set("hitsPerPage", fmt.Sprint(req.HitsPerPage))
	}
	if req.Page > 0 {
		params.Set("page", fmt.Sprint(req.Page))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search_by_date?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "algolia: create request")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "algolia: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "algolia: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "algolia: unmarshal response")
	}

	return &result, nil
}
