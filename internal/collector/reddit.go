package collector

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/saashunter/hunter/internal/config"
	"github.com/saashunter/hunter/internal/fetcher"
	"github.com/saashunter/hunter/internal/model"
	"github.com/saashunter/hunter/internal/registry"
)

// atomFeed is the Atom document served by Reddit's RSS endpoints.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Link      atomLink    `xml:"link"`
	Content   atomContent `xml:"content"`
	Published string      `xml:"published"`
	Updated   string      `xml:"updated"`
	Author    atomAuthor  `xml:"author"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
}

type atomContent struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// RedditCollector scans subreddit new-post feeds for pain-point language.
// Reddit's feeds need no API key, only a polite User-Agent.
type RedditCollector struct {
	fetcher  *fetcher.Fetcher
	registry *registry.Registry
	reddit   config.RedditConfig
	collect  config.CollectConfig
	now      func() time.Time
}

// NewRedditCollector creates a collector over the configured subreddits.
func NewRedditCollector(f *fetcher.Fetcher, reg *registry.Registry, reddit config.RedditConfig, collect config.CollectConfig) *RedditCollector {
	return &RedditCollector{
		fetcher:  f,
		registry: reg,
		reddit:   reddit,
		collect:  collect,
		now:      time.Now,
	}
}

func (c *RedditCollector) Name() string { return "reddit" }

// Collect fetches each subreddit feed in turn. A subreddit that fails to
// fetch or parse is logged and skipped so one bad feed cannot sink the run.
func (c *RedditCollector) Collect(ctx context.Context) ([]model.Opportunity, error) {
	log := zap.L().With(zap.String("collector", "reddit"))
	cutoff := c.now().Add(-time.Duration(c.collect.HoursBack) * time.Hour)

	var results []model.Opportunity
	for _, sub := range c.reddit.Subreddits {
		if err := ctx.Err(); err != nil {
			return results, eris.Wrap(err, "reddit: collect canceled")
		}

		feedURL := fmt.Sprintf("https://www.reddit.com/r/%s/new/.rss?limit=%d", sub, c.reddit.FeedLimit)
		log.Info("scanning subreddit", zap.String("subreddit", sub))

		body, err := c.fetcher.Get(ctx, feedURL, nil)
		if err != nil {
			log.Error("failed to fetch subreddit feed, skipping",
				zap.String("subreddit", sub), zap.Error(err))
			continue
		}

		found, err := c.parseFeed(sub, body, cutoff)
		if err != nil {
			log.Error("failed to parse subreddit feed, skipping",
				zap.String("subreddit", sub), zap.Error(err))
			continue
		}
		log.Info("subreddit scan complete",
			zap.String("subreddit", sub), zap.Int("found", len(found)))
		results = append(results, found...)
	}
	return results, nil
}

func (c *RedditCollector) parseFeed(sub string, raw []byte, cutoff time.Time) ([]model.Opportunity, error) {
	var feed atomFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return nil, eris.Wrapf(err, "reddit: parse feed for r/%s", sub)
	}

	log := zap.L().With(zap.String("collector", "reddit"))
	source := model.SourcePrefixReddit + sub
	collectedAt := c.now()

	var results []model.Opportunity
	for _, entry := range feed.Entries {
		published, err := parseAtomTime(entry.Published, entry.Updated)
		if err != nil {
			continue
		}
		if published.Before(cutoff) {
			continue
		}

		content := stripHTML(entry.Content.Value)
		text := strings.ToLower(entry.Title + " " + content)

		if containsAny(text, c.reddit.PromoIndicators) {
			continue
		}
		matched := matchKeywords(text, c.reddit.PainKeywords)
		if len(matched) == 0 {
			continue
		}

		postID := postIDFromLink(entry.Link.Href, entry.ID)
		if c.registry.IsDuplicate(source, postID) {
			log.Debug("skipping duplicate", zap.String("post_id", postID))
			continue
		}

		author := strings.TrimPrefix(entry.Author.Name, "/u/")
		if author == "" {
			author = "unknown"
		}

		o := model.Opportunity{
			SourceID:     postID,
			Source:       source,
			Title:        entry.Title,
			Body:         content,
			URL:          entry.Link.Href,
			Author:       author,
			PublishedUTC: published.UTC().Format(time.RFC3339),
			Engagement:   map[string]float64{},
			Keywords:     matched,
		}
		normalize(&o, c.collect.BodyPreviewLen, collectedAt)
		results = append(results, o)
	}
	return results, nil
}

// postIDFromLink pulls the post identifier from a Reddit permalink such as
// https://www.reddit.com/r/sysadmin/comments/abc123/some_title/. The Atom
// entry ID (t3_abc123) is the fallback for unexpected link shapes.
func postIDFromLink(link, entryID string) string {
	parts := strings.Split(strings.TrimSuffix(link, "/"), "/")
	for i, part := range parts {
		if part == "comments" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	if entryID != "" {
		return strings.TrimPrefix(entryID, "t3_")
	}
	return link
}

// stripHTML extracts the visible text from feed content, collapsing
// whitespace the way a rendered page would.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// parseAtomTime parses an Atom timestamp, using the updated time when the
// published element is absent.
func parseAtomTime(published, updated string) (time.Time, error) {
	for _, value := range []string{published, updated} {
		if value == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.New("reddit: entry has no parseable timestamp")
}
