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
	"github.com/saashunter/hunter/pkg/ghsearch"
)

const rateLimitWarningThreshold = 10

// GitHubCollector scans watched repositories for recent open issues with
// enough reactions to suggest a real feature request. Reactions work better
// than comments as a demand signal: bugs get comments, wanted features get
// thumbs up.
type GitHubCollector struct {
	client   ghsearch.Client
	registry *registry.Registry
	github   config.GitHubConfig
	collect  config.CollectConfig
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	now      func() time.Time
}

// NewGitHubCollector creates a collector over the configured repositories.
// The GitHub search API is unusable at anonymous rate limits, so a token is
// required.
func NewGitHubCollector(client ghsearch.Client, reg *registry.Registry, github config.GitHubConfig, collect config.CollectConfig, httpCfg config.HTTPConfig) (*GitHubCollector, error) {
	if github.Token == "" {
		return nil, eris.New("github: token not configured, set HUNTER_GITHUB_TOKEN")
	}
	return &GitHubCollector{
		client:   client,
		registry: reg,
		github:   github,
		collect:  collect,
		limiter:  newPacer(httpCfg.RequestDelay),
		retry:    apiRetry(httpCfg, "github", ghTransient),
		now:      time.Now,
	}, nil
}

func (c *GitHubCollector) Name() string { return "github" }

// Collect searches each repository in turn. A repository that fails keeps
// whatever pages it returned before the failure; it is logged and skipped
// so one bad repository cannot sink the run.
func (c *GitHubCollector) Collect(ctx context.Context) ([]model.Opportunity, error) {
	log := zap.L().With(zap.String("collector", "github"))

	hoursBack := c.collect.GitHubHoursBack
	if hoursBack <= 0 {
		hoursBack = c.collect.HoursBack
	}
	since := c.now().Add(-time.Duration(hoursBack) * time.Hour).UTC().Format("2006-01-02T15:04:05Z")

	var results []model.Opportunity
	for _, repo := range c.github.Repositories {
		if err := ctx.Err(); err != nil {
			return results, eris.Wrap(err, "github: collect canceled")
		}
		log.Info("searching repository", zap.String("repo", repo))

		found, err := c.searchRepo(ctx, repo, since)
		results = append(results, found...)
		if err != nil {
			log.Error("repository search failed, keeping partial results and skipping",
				zap.String("repo", repo), zap.Int("kept", len(found)), zap.Error(err))
			continue
		}
		log.Info("repository scan complete",
			zap.String("repo", repo), zap.Int("found", len(found)))
	}
	return results, nil
}

// searchRepo pages through the search results for one repository. On a
// page failure it returns the records gathered so far alongside the error.
func (c *GitHubCollector) searchRepo(ctx context.Context, repo, since string) ([]model.Opportunity, error) {
	log := zap.L().With(zap.String("collector", "github"), zap.String("repo", repo))
	query := fmt.Sprintf("is:open is:issue created:>%s repo:%s reactions:>%d",
		since, repo, c.github.MinReactions)

	var results []model.Opportunity
	emitted := map[string]struct{}{}
	for page := 1; ; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return results, eris.Wrap(err, "github: pacing wait")
		}

		req := ghsearch.SearchRequest{
			Query:   query,
			Sort:    "created",
			Order:   "desc",
			PerPage: c.github.PerPage,
			Page:    page,
		}
		resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*ghsearch.SearchResponse, error) {
			return c.client.SearchIssues(ctx, req)
		})
		if err != nil {
			return results, eris.Wrapf(err, "github: search issues page %d", page)
		}
		if resp.RateRemaining >= 0 && resp.RateRemaining < rateLimitWarningThreshold {
			log.Warn("approaching GitHub API rate limit",
				zap.Int("remaining", resp.RateRemaining))
		}
		if len(resp.Items) == 0 {
			break
		}

		collectedAt := c.now()
		for _, issue := range resp.Items {
			// is:issue in the query should exclude pull requests
			// already, but the API has not always honored it.
			if issue.PullRequest != nil {
				continue
			}

			repoName := repoFromURL(issue.RepositoryURL, repo)
			source := model.SourcePrefixGitHub + repoName
			issueID := fmt.Sprint(issue.Number)

			// Paginated search can shift issues between pages.
			key := source + ":" + issueID
			if _, ok := emitted[key]; ok {
				continue
			}
			if c.registry.IsDuplicate(source, issueID) {
				log.Debug("skipping duplicate", zap.String("issue", issueID))
				continue
			}

			labels := make([]string, 0, len(issue.Labels))
			for _, l := range issue.Labels {
				labels = append(labels, strings.ToLower(l.Name))
			}

			o := model.Opportunity{
				SourceID:         issueID,
				Source:           source,
				Title:            issue.Title,
				Body:             issue.Body,
				URL:              issue.HTMLURL,
				Author:           issue.User.Login,
				PublishedUTC:     issue.CreatedAt.UTC().Format(time.RFC3339),
				IsFeatureRequest: hasFeatureLabel(labels, c.github.FeatureLabels),
				Engagement: map[string]float64{
					"comments":  float64(issue.Comments),
					"reactions": float64(issue.Reactions.TotalCount),
				},
				Labels: labels,
			}
			normalize(&o, c.collect.BodyPreviewLen, collectedAt)
			results = append(results, o)
			emitted[key] = struct{}{}
		}

		if len(resp.Items) < c.github.PerPage {
			break
		}
	}
	return results, nil
}

// ghTransient treats rate limiting and 5xx responses from the search API
// as retryable, alongside the usual network failures.
func ghTransient(err error) bool {
	var ae *ghsearch.APIError
	if errors.As(err, &ae) {
		return resilience.IsTransientHTTPStatus(ae.StatusCode)
	}
	return resilience.IsTransient(err)
}

// hasFeatureLabel reports whether any issue label matches the configured
// feature-request labels. Labels arrive already lowercased.
func hasFeatureLabel(labels, featureLabels []string) bool {
	for _, l := range labels {
		for _, fl := range featureLabels {
			if l == strings.ToLower(fl) {
				return true
			}
		}
	}
	return false
}

// repoFromURL recovers owner/name from an API repository URL such as
// https://api.github.com/repos/owner/name.
func repoFromURL(repoURL, fallback string) string {
	parts := strings.Split(strings.TrimSuffix(repoURL, "/"), "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return fallback
}
