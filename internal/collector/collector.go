package collector

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/saashunter/hunter/internal/config"
	"github.com/saashunter/hunter/internal/model"
	"github.com/saashunter/hunter/internal/resilience"
)

// Collector gathers candidate opportunities from one upstream source and
// returns them in the normalized record schema. Implementations consult the
// registry so records seen on a previous run are not emitted again; marking
// records seen is the caller's job, after it has persisted them. A failed
// Collect still returns the records gathered before the failure.
type Collector interface {
	// Name identifies the collector in logs and raw batch filenames.
	Name() string
	// Collect fetches and filters new records from the source.
	Collect(ctx context.Context) ([]model.Opportunity, error)
}

// newPacer enforces the configured delay between sequential calls to one
// external API. One limiter per collector paces both page and repository
// iteration against the same host.
func newPacer(delaySecs float64) *rate.Limiter {
	if delaySecs <= 0 {
		delaySecs = 1.0
	}
	return rate.NewLimiter(rate.Limit(1.0/delaySecs), 1)
}

// apiRetry builds the per-call-site retry config: transient statuses get
// one reattempt with a fixed backoff, then the unit is skipped.
func apiRetry(httpCfg config.HTTPConfig, source string, shouldRetry func(error) bool) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if httpCfg.MaxRetries > 0 {
		cfg.MaxAttempts = httpCfg.MaxRetries
	}
	cfg.ShouldRetry = shouldRetry
	cfg.OnRetry = resilience.RetryLogger(source, "search")
	return cfg
}

// normalize enforces the shared record schema on a freshly collected
// record: body capped at the preview length and collected_at stamped.
// The cap counts characters, not bytes, so a multibyte body is never cut
// mid-sequence.
func normalize(o *model.Opportunity, bodyPreviewLen int, collectedAt time.Time) {
	if bodyPreviewLen > 0 && utf8.RuneCountInString(o.Body) > bodyPreviewLen {
		o.Body = string([]rune(o.Body)[:bodyPreviewLen])
	}
	o.CollectedAt = collectedAt.Format(time.RFC3339)
}

// containsAny reports whether text contains any of the given phrases.
// Both sides are expected to already be lowercase.
func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// matchKeywords returns the keywords present in text, preserving the
// configured order.
func matchKeywords(text string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}
