package collector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saashunter/hunter/internal/config"
	"github.com/saashunter/hunter/internal/registry"
	"github.com/saashunter/hunter/pkg/ghsearch"
)

type stubGH struct {
	pages    []ghsearch.SearchResponse
	reqs     []ghsearch.SearchRequest
	err      error
	pageErrs map[int]error
	onceErr  error
}

func (s *stubGH) SearchIssues(_ context.Context, req ghsearch.SearchRequest) (*ghsearch.SearchResponse, error) {
	s.reqs = append(s.reqs, req)
	if s.onceErr != nil {
		err := s.onceErr
		s.onceErr = nil
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	if err, ok := s.pageErrs[req.Page]; ok {
		return nil, err
	}
	if req.Page > len(s.pages) {
		return &ghsearch.SearchResponse{RateRemaining: -1}, nil
	}
	return &s.pages[req.Page-1], nil
}

func ghTestConfig(repos []string) config.GitHubConfig {
	return config.GitHubConfig{
		Token:         "ghp_test",
		Repositories:  repos,
		FeatureLabels: []string{"enhancement", "feature request"},
		MinReactions:  2,
		PerPage:       2,
	}
}

func testGitHubCollector(t *testing.T, stub *stubGH, repos []string) (*GitHubCollector, *registry.Registry) {
	t.Helper()
	reg := registry.Load(filepath.Join(t.TempDir(), "seen.json"))
	c, err := NewGitHubCollector(stub, reg, ghTestConfig(repos),
		config.CollectConfig{HoursBack: 24, GitHubHoursBack: 168, BodyPreviewLen: 500},
		config.HTTPConfig{RequestDelay: 0.001})
	require.NoError(t, err)
	c.retry.Backoff = time.Millisecond
	c.now = func() time.Time { return time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC) }
	return c, reg
}

func ghIssue(number int, title string) ghsearch.Issue {
	return ghsearch.Issue{
		Number:        number,
		Title:         title,
		Body:          "Please add this, our team needs it badly.",
		HTMLURL:       "https://github.com/acme/widgets/issues/" + title,
		RepositoryURL: "https://api.github.com/repos/acme/widgets",
		User:          ghsearch.User{Login: "requester"},
		Labels: []ghsearch.Label{
			{Name: "Enhancement"},
			{Name: "Good First Issue"},
		},
		Comments:  4,
		Reactions: ghsearch.Reactions{TotalCount: 12},
		CreatedAt: time.Date(2026, 2, 13, 9, 30, 0, 0, time.UTC),
	}
}

func TestGitHubCollectorRequiresToken(t *testing.T) {
	reg := registry.Load(filepath.Join(t.TempDir(), "seen.json"))
	_, err := NewGitHubCollector(&stubGH{}, reg,
		config.GitHubConfig{}, config.CollectConfig{}, config.HTTPConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token not configured")
}

func TestGitHubCollect(t *testing.T) {
	pr := ghIssue(99, "not-really-an-issue")
	pr.PullRequest = &ghsearch.IssueLink{URL: "https://api.github.com/repos/acme/widgets/pulls/99"}

	stub := &stubGH{pages: []ghsearch.SearchResponse{
		{
			TotalCount:    3,
			Items:         []ghsearch.Issue{ghIssue(101, "dark-mode"), pr},
			RateRemaining: 28,
		},
		{
			TotalCount:    3,
			Items:         []ghsearch.Issue{ghIssue(102, "csv-export")},
			RateRemaining: 27,
		},
	}}

	c, reg := testGitHubCollector(t, stub, []string{"acme/widgets"})
	results, err := c.Collect(context.Background())
	require.NoError(t, err)

	// Two pages fetched, pull request skipped, short second page ends
	// pagination.
	require.Len(t, stub.reqs, 2)
	require.Len(t, results, 2)

	// GitHubHoursBack (7 days) wins over the general window.
	wantQuery := "is:open is:issue created:>2026-02-07T12:00:00Z repo:acme/widgets reactions:>2"
	assert.Equal(t, wantQuery, stub.reqs[0].Query)
	assert.Equal(t, "created", stub.reqs[0].Sort)
	assert.Equal(t, "desc", stub.reqs[0].Order)
	assert.Equal(t, 2, stub.reqs[1].Page)

	first := results[0]
	assert.Equal(t, "101", first.SourceID)
	assert.Equal(t, "github:acme/widgets", first.Source)
	assert.Equal(t, "requester", first.Author)
	assert.Equal(t, "2026-02-13T09:30:00Z", first.PublishedUTC)
	assert.Equal(t, []string{"enhancement", "good first issue"}, first.Labels)
	assert.True(t, first.IsFeatureRequest)
	assert.Equal(t, 4.0, first.Engagement["comments"])
	assert.Equal(t, 12.0, first.Engagement["reactions"])

	assert.Equal(t, "102", results[1].SourceID)

	// Persisting and registering is the caller's job, not the collector's.
	assert.False(t, reg.IsDuplicate("github:acme/widgets", "101"))
}

func TestGitHubCollectDuplicatesSkipped(t *testing.T) {
	stub := &stubGH{pages: []ghsearch.SearchResponse{{
		Items:         []ghsearch.Issue{ghIssue(101, "dark-mode")},
		RateRemaining: -1,
	}}}

	c, reg := testGitHubCollector(t, stub, []string{"acme/widgets"})
	reg.MarkSeen("github:acme/widgets", "101")

	results, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGitHubCollectKeepsEarlierPagesOnFailure(t *testing.T) {
	stub := &stubGH{
		pages: []ghsearch.SearchResponse{{
			Items:         []ghsearch.Issue{ghIssue(101, "dark-mode"), ghIssue(102, "csv-export")},
			RateRemaining: 20,
		}},
		pageErrs: map[int]error{2: &ghsearch.APIError{StatusCode: 502, Body: "bad gateway"}},
	}

	c, reg := testGitHubCollector(t, stub, []string{"acme/widgets"})
	results, err := c.Collect(context.Background())
	require.NoError(t, err)

	// Page one survives the page-two failure, and nothing is registered
	// as seen until the caller writes the batch.
	require.Len(t, results, 2)
	assert.Equal(t, "101", results[0].SourceID)
	assert.False(t, reg.IsDuplicate("github:acme/widgets", "101"))
	assert.False(t, reg.IsDuplicate("github:acme/widgets", "102"))
}

func TestGitHubCollectRetriesTransientError(t *testing.T) {
	stub := &stubGH{
		pages: []ghsearch.SearchResponse{{
			Items:         []ghsearch.Issue{ghIssue(101, "dark-mode")},
			RateRemaining: 20,
		}},
		onceErr: &ghsearch.APIError{StatusCode: 502, Body: "bad gateway"},
	}

	c, _ := testGitHubCollector(t, stub, []string{"acme/widgets"})
	results, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	// First attempt hit the 502, the retry got the page.
	assert.Len(t, stub.reqs, 2)
}

func TestGitHubCollectNoRetryOnClientError(t *testing.T) {
	stub := &stubGH{err: &ghsearch.APIError{StatusCode: 422, Body: "validation failed"}}

	c, _ := testGitHubCollector(t, stub, []string{"acme/widgets"})
	results, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Len(t, stub.reqs, 1)
}

func TestGitHubCollectFailedRepoSkipped(t *testing.T) {
	stub := &stubGH{err: assert.AnError}

	c, _ := testGitHubCollector(t, stub, []string{"acme/widgets", "acme/gadgets"})
	results, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	// Both repositories were still attempted.
	assert.Len(t, stub.reqs, 2)
}

func TestHasFeatureLabel(t *testing.T) {
	featureLabels := []string{"enhancement", "Feature Request"}
	assert.True(t, hasFeatureLabel([]string{"bug", "enhancement"}, featureLabels))
	assert.True(t, hasFeatureLabel([]string{"feature request"}, featureLabels))
	assert.False(t, hasFeatureLabel([]string{"bug", "wontfix"}, featureLabels))
	assert.False(t, hasFeatureLabel(nil, featureLabels))
}

func TestRepoFromURL(t *testing.T) {
	assert.Equal(t, "acme/widgets",
		repoFromURL("https://api.github.com/repos/acme/widgets", "fallback"))
	assert.Equal(t, "fallback", repoFromURL("oops", "fallback"))
}
