// Package pipeline implements the watermark-driven batch processing of raw
// collector output: validate, score, deduplicate, enrich, append.
package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/saashunter/hunter/internal/model"
)

var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(http|www\.)`),
	regexp.MustCompile(`(click here|subscribe|follow me)`),
}

// Validate checks structural and content-quality constraints on a
// normalized record. Checks run in order and short-circuit on the first
// failure; rejection is a routine outcome, not an error.
func Validate(o *model.Opportunity) (bool, string) {
	for _, f := range []struct {
		name  string
		value string
	}{
		{"source_id", o.SourceID},
		{"source", o.Source},
		{"title", o.Title},
		{"url", o.URL},
		{"published_utc", o.PublishedUTC},
	} {
		if f.value == "" {
			return false, "Missing required field: " + f.name
		}
	}

	if !o.IsHackerNews() && !o.IsReddit() && !o.IsGitHub() {
		return false, "Invalid source format: " + o.Source
	}

	// Length limits count characters, not bytes, so multibyte titles
	// near a boundary are judged the same as ASCII ones.
	titleLen := utf8.RuneCountInString(o.Title)
	if titleLen < 10 {
		return false, "Title too short (min 10 chars)"
	}
	if titleLen > 500 {
		return false, "Title too long (max 500 chars)"
	}

	if !strings.HasPrefix(o.URL, "http://") && !strings.HasPrefix(o.URL, "https://") {
		return false, "Invalid URL format: " + o.URL
	}

	if _, ok := o.PublishedTime(); !ok {
		return false, "Invalid published_utc timestamp: " + o.PublishedUTC
	}

	for name, value := range o.Engagement {
		if value < 0 {
			return false, fmt.Sprintf("engagement_data.%s cannot be negative", name)
		}
	}

	if o.Body != "" && utf8.RuneCountInString(strings.TrimSpace(o.Body)) < 5 {
		return false, "Body too short or empty"
	}

	combined := o.CombinedText()
	for _, p := range spamPatterns {
		if p.MatchString(combined) {
			return false, "Potential spam detected: " + p.String()
		}
	}

	return true, ""
}

// ValidateAll partitions a batch into valid records and rejections. Order
// of valid records matches input order minus rejections; each rejection
// retains its reason and a truncated title for operator visibility.
func ValidateAll(records []model.Opportunity) ([]model.Opportunity, []model.Rejection) {
	valid := make([]model.Opportunity, 0, len(records))
	var rejections []model.Rejection

	for i := range records {
		ok, reason := Validate(&records[i])
		if ok {
			valid = append(valid, records[i])
			continue
		}

		title := records[i].Title
		if title == "" {
			title = "Unknown title"
		}
		if utf8.RuneCountInString(title) > 100 {
			title = string([]rune(title)[:100])
		}
		rejections = append(rejections, model.Rejection{
			Reason: reason,
			Title:  title,
			Source: records[i].Source,
			URL:    records[i].URL,
		})
	}

	return valid, rejections
}
