package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/saashunter/hunter/internal/config"
	"github.com/saashunter/hunter/internal/model"
	"github.com/saashunter/hunter/internal/registry"
	"github.com/saashunter/hunter/internal/resilience"
	"github.com/saashunter/hunter/pkg/algolia"
)

// HNCollector scans recent Ask HN stories via the Algolia search API.
// A story qualifies when it matches an ask keyword or clears the comment
// threshold, and carries no self-promotion language.
type HNCollector struct {
	client   algolia.Client
	registry *registry.Registry
	hn       config.HNConfig
	collect  config.CollectConfig
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	now      func() time.Time
}

// NewHNCollector creates a collector over Ask HN stories.
func NewHNCollector(client algolia.Client, reg *registry.Registry, hn config.HNConfig, collect config.CollectConfig, httpCfg config.HTTPConfig) *HNCollector {
	return &HNCollector{
		client:   client,
		registry: reg,
		hn:       hn,
		collect:  collect,
		limiter:  newPacer(httpCfg.RequestDelay),
		retry:    apiRetry(httpCfg, "hackernews", hnTransient),
		now:      time.Now,
	}
}

func (c *HNCollector) Name() string { return "hackernews" }

func (c *HNCollector) Collect(ctx context.Context) ([]model.Opportunity, error) {
	log := zap.L().With(zap.String("collector", "hackernews"))
	cutoff := c.now().Add(-time.Duration(c.collect.HoursBack) * time.Hour).Unix()

	log.Info("scanning Ask HN stories", zap.Int("hours_back", c.collect.HoursBack))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "hackernews: pacing wait")
	}

	// Keyword filtering happens locally: a keyword-constrained Algolia
	// query is too restrictive and misses qualifying stories.
	req := algolia.SearchRequest{
		Tags:           "ask_hn",
		NumericFilters: fmt.Sprintf("created_at_i>%d", cutoff),
		HitsPerPage:    c.hn.PerPage,
	}
	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*algolia.SearchResponse, error) {
		return c.client.SearchByDate(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "hackernews: search stories")
	}

	collectedAt := c.now()
	var results []model.Opportunity
	for _, hit := range resp.Hits {
		if hit.CreatedAtI < cutoff {
			continue
		}

		text := strings.ToLower(hit.Title + " " + hit.StoryText)
		if containsAny(text, c.hn.PromoIndicators) {
			continue
		}

		matched := matchKeywords(text, c.hn.AskKeywords)
		if len(matched) == 0 && hit.NumComments <= c.hn.CommentThreshold {
			continue
		}

		if c.registry.IsDuplicate(model.SourceHackerNews, hit.ObjectID) {
			log.Debug("skipping duplicate", zap.String("story_id", hit.ObjectID))
			continue
		}

		author := hit.Author
		if author == "" {
			author = "unknown"
		}

		o := model.Opportunity{
			SourceID: hit.ObjectID,
			Source:   model.SourceHackerNews,
			Title:    hit.Title,
			Body:     hit.StoryText,
			URL:      "https://news.ycombinator.com/item?id=" + hit.ObjectID,
			Author:   author,
			PublishedUTC: time.Unix(hit.CreatedAtI, 0).UTC().
				Format(time.RFC3339),
			Engagement: map[string]float64{
				"score":    float64(hit.Points),
				"comments": float64(hit.NumComments),
			},
			Keywords: matched,
		}
		normalize(&o, c.collect.BodyPreviewLen, collectedAt)
		results = append(results, o)
	}

	log.Info("Ask HN scan complete", zap.Int("found", len(results)))
	return results, nil
}

// hnTransient treats rate limiting and 5xx responses from the search API
// as retryable, alongside the usual network failures.
func hnTransient(err error) bool {
	var ae *algolia.APIError
	if errors.As(err, &ae) {
		return resilience.IsTransientHTTPStatus(ae.StatusCode)
	}
	return resilience.IsTransient(err)
}
