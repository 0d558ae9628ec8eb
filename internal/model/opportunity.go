package model

import (
	"strings"
	"time"
)

// Source prefixes recognized across the pipeline.
const (
	SourceHackerNews   = "hackernews"
	SourcePrefixReddit = "reddit:"
	SourcePrefixGitHub = "github:"
)

// Opportunity is the unit of work: one collected pain-point post, issue,
// or story, normalized to a common shape at collection time.
type Opportunity struct {
	SourceID     string             `json:"source_id"`
	Source       string             `json:"source"`
	Title        string             `json:"title"`
	Body         string             `json:"body,omitempty"`
	URL          string             `json:"url"`
	Author       string             `json:"author,omitempty"`
	PublishedUTC string             `json:"published_utc"`
	Engagement   map[string]float64 `json:"engagement_data,omitempty"`
	Keywords     []string           `json:"matched_keywords,omitempty"`
	Labels       []string           `json:"labels,omitempty"`

	// IsFeatureRequest marks GitHub issues carrying one of the
	// configured feature-request labels.
	IsFeatureRequest bool   `json:"is_feature_request,omitempty"`
	CollectedAt      string `json:"collected_at"`

	// Derived by the processing pipeline.
	Score         int          `json:"score,omitempty"`
	LLMAnalysis   *LLMAnalysis `json:"llm_analysis,omitempty"`
	OpportunityID string       `json:"opportunity_id,omitempty"`
	Domain        string       `json:"domain,omitempty"`
	ProcessedAt   string       `json:"processed_at,omitempty"`
	AgeHours      int          `json:"age_hours,omitempty"`
}

// LLMAnalysis captures the model-derived score adjustment attached to an
// opportunity when LLM enhancement was applied.
type LLMAnalysis struct {
	LLMScore   int      `json:"llm_score"`
	BaseScore  int      `json:"base_score"`
	FinalScore int      `json:"final_score"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Signals    []string `json:"signals,omitempty"`
	Model      string   `json:"model,omitempty"`
	Tokens     int      `json:"tokens,omitempty"`
	CostUSD    float64  `json:"cost_usd,omitempty"`
}

// SeenKey returns the registry key identifying this record across runs.
func (o *Opportunity) SeenKey() string {
	return o.Source + ":" + o.SourceID
}

// CombinedText returns the lowercased title+body used by keyword checks.
func (o *Opportunity) CombinedText() string {
	return strings.ToLower(o.Title + " " + o.Body)
}

// IsReddit reports whether the record came from a Reddit community.
func (o *Opportunity) IsReddit() bool {
	return strings.HasPrefix(o.Source, SourcePrefixReddit)
}

// IsGitHub reports whether the record came from a GitHub repository.
func (o *Opportunity) IsGitHub() bool {
	return strings.HasPrefix(o.Source, SourcePrefixGitHub)
}

// IsHackerNews reports whether the record came from Hacker News.
func (o *Opportunity) IsHackerNews() bool {
	return o.Source == SourceHackerNews
}

// PublishedTime parses the source-reported creation time. A trailing Z is
// accepted as a UTC offset. Returns the zero time and false when the
// timestamp is absent or unparseable.
func (o *Opportunity) PublishedTime() (time.Time, bool) {
	return parseTimestamp(o.PublishedUTC)
}

// CollectedTime parses the normalization-time stamp.
func (o *Opportunity) CollectedTime() (time.Time, bool) {
	return parseTimestamp(o.CollectedAt)
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Rejection describes why a record was excluded by validation. Rejections
// are surfaced in logs only, never persisted to the processed log.
type Rejection struct {
	Reason string `json:"error"`
	Title  string `json:"title"`
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
}
