// Package digest renders the daily markdown summary of top-scoring
// opportunities from the processed log.
package digest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/saashunter/hunter/internal/model"
)

// painIndicators are the phrases counted in the trends section.
var painIndicators = []string{"sick of", "frustrated", "tired of", "hate", "alternative"}

// Options configures digest generation.
type Options struct {
	ProcessedDir string
	OutputDir    string
	TopN         int
	HoursBack    int
	Now          func() time.Time
}

// Result reports what the digest covered.
type Result struct {
	Opportunities int
	AvgScore      float64
	MaxScore      int
	OutputPath    string
}

// Generate builds today's digest from opportunities processed in the last
// HoursBack hours and writes it to OutputDir. A run with nothing to digest
// returns a zero Result with no file written.
func Generate(opts Options) (*Result, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	log := zap.L().With(zap.String("component", "digest"))

	asOf := now()
	cutoff := asOf.Add(-time.Duration(opts.HoursBack) * time.Hour)
	opportunities, err := loadRecent(opts.ProcessedDir, asOf, cutoff)
	if err != nil {
		return nil, err
	}
	log.Info("loaded recent opportunities",
		zap.Int("count", len(opportunities)), zap.Int("hours_back", opts.HoursBack))
	if len(opportunities) == 0 {
		log.Warn("no opportunities to digest")
		return &Result{}, nil
	}

	md := render(opportunities, opts.TopN, asOf)

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "digest: mkdir output")
	}
	outputPath := filepath.Join(opts.OutputDir, "digest_"+asOf.Format("20060102")+".md")
	if err := os.WriteFile(outputPath, []byte(md), 0o644); err != nil {
		return nil, eris.Wrapf(err, "digest: write %s", outputPath)
	}

	res := &Result{Opportunities: len(opportunities), OutputPath: outputPath}
	sum := 0
	for i := range opportunities {
		sum += opportunities[i].Score
		if opportunities[i].Score > res.MaxScore {
			res.MaxScore = opportunities[i].Score
		}
	}
	res.AvgScore = float64(sum) / float64(len(opportunities))

	log.Info("digest generated",
		zap.String("output", outputPath),
		zap.Int("opportunities", res.Opportunities),
		zap.Float64("avg_score", res.AvgScore))
	return res, nil
}

// loadRecent reads today's and yesterday's daily logs, keeping records
// whose processed_at falls after the cutoff. Yesterday's file matters when
// the digest runs early in the day.
func loadRecent(processedDir string, asOf, cutoff time.Time) ([]model.Opportunity, error) {
	var opportunities []model.Opportunity
	for _, day := range []time.Time{asOf, asOf.AddDate(0, 0, -1)} {
		path := filepath.Join(processedDir, "opportunities_"+day.Format("20060102")+".jsonl")
		records, err := readLog(path, cutoff)
		if err != nil {
			return nil, err
		}
		opportunities = append(opportunities, records...)
	}
	return opportunities, nil
}

func readLog(path string, cutoff time.Time) ([]model.Opportunity, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "digest: open log %s", path)
	}
	defer f.Close()

	log := zap.L().With(zap.String("component", "digest"))
	var records []model.Opportunity
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var o model.Opportunity
		if err := json.Unmarshal([]byte(line), &o); err != nil {
			log.Warn("skipping malformed log line", zap.String("file", path), zap.Error(err))
			continue
		}
		processedAt, err := time.Parse(time.RFC3339, o.ProcessedAt)
		if err != nil || !processedAt.After(cutoff) {
			continue
		}
		records = append(records, o)
	}
	return records, eris.Wrapf(scanner.Err(), "digest: scan log %s", path)
}

func render(opportunities []model.Opportunity, topN int, asOf time.Time) string {
	sorted := make([]model.Opportunity, len(opportunities))
	copy(sorted, opportunities)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var b strings.Builder
	fmt.Fprintf(&b, "# SaaS Opportunities — %s\n\n", asOf.Format("January 2, 2006"))
	fmt.Fprintf(&b, "**Summary:** %d opportunities collected and processed\n\n---\n\n", len(opportunities))

	topTier := filterScore(sorted, 80, 101)
	if len(topTier) > 0 {
		b.WriteString("## 🔥 Top Opportunities (Score 80+)\n\n")
		writeTier(&b, topTier, topN)
		b.WriteString("---\n\n")
	}

	highPotential := filterScore(sorted, 60, 80)
	if len(highPotential) > 0 {
		b.WriteString("## ⭐ High Potential (Score 60-79)\n\n")
		writeTier(&b, highPotential, topN)
		b.WriteString("---\n\n")
	}

	worthExploring := filterScore(sorted, 40, 60)
	if len(worthExploring) > 0 {
		b.WriteString("## 💡 Worth Exploring (Score 40-59)\n\n")
		// Titles only for this tier.
		limit := 2 * topN
		if limit > len(worthExploring) {
			limit = len(worthExploring)
		}
		for i := 0; i < limit; i++ {
			o := &worthExploring[i]
			fmt.Fprintf(&b, "- **%s** (%d pts) — %s\n", o.Title, o.Score, o.Source)
		}
		b.WriteString("\n---\n\n")
	}

	writeTrends(&b, opportunities)

	score60 := len(filterScore(sorted, 60, 101))
	score80 := len(topTier)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "**Collected:** %d total | **High Quality:** %d (60+) | **Top Tier:** %d (80+)\n\n",
		len(opportunities), score60, score80)
	fmt.Fprintf(&b, "*Generated: %s*\n", asOf.UTC().Format("2006-01-02 15:04 UTC"))
	return b.String()
}

// filterScore returns the records whose Score falls in [lo, hi).
func filterScore(records []model.Opportunity, lo, hi int) []model.Opportunity {
	var out []model.Opportunity
	for i := range records {
		if records[i].Score >= lo && records[i].Score < hi {
			out = append(out, records[i])
		}
	}
	return out
}

func writeTier(b *strings.Builder, tier []model.Opportunity, topN int) {
	limit := topN
	if limit > len(tier) {
		limit = len(tier)
	}
	for i := 0; i < limit; i++ {
		o := &tier[i]
		domain := o.Domain
		if domain == "" {
			domain = "other"
		}
		fmt.Fprintf(b, "### %d. %s (Score: %d)\n", i+1, o.Title, o.Score)
		fmt.Fprintf(b, "**Source:** %s | **Domain:** %s\n", o.Source, domain)
		fmt.Fprintf(b, "**Engagement:** %s\n", engagementLine(o.Engagement))
		fmt.Fprintf(b, "**Link:** %s\n\n", o.URL)
		if o.Body != "" {
			preview := o.Body
			// Character count, so a multibyte body is never cut
			// mid-sequence.
			if utf8.RuneCountInString(preview) > 200 {
				preview = string([]rune(preview)[:200])
			}
			fmt.Fprintf(b, "**Preview:** %s...\n\n", preview)
		}
	}
}

func engagementLine(engagement map[string]float64) string {
	var parts []string
	if v := engagement["reactions"]; v > 0 {
		parts = append(parts, fmt.Sprintf("%.0f reactions", v))
	}
	if v := engagement["comments"]; v > 0 {
		parts = append(parts, fmt.Sprintf("%.0f comments", v))
	}
	if v := engagement["score"]; v > 0 {
		parts = append(parts, fmt.Sprintf("%.0f points", v))
	}
	if len(parts) == 0 {
		return "New"
	}
	return strings.Join(parts, ", ")
}

func writeTrends(b *strings.Builder, opportunities []model.Opportunity) {
	domains := map[string]int{}
	keywords := map[string]int{}
	for i := range opportunities {
		o := &opportunities[i]
		domain := o.Domain
		if domain == "" {
			domain = "other"
		}
		domains[domain]++
		text := strings.ToLower(o.Title + " " + o.Body)
		for _, kw := range painIndicators {
			if strings.Contains(text, kw) {
				keywords[kw]++
			}
		}
	}

	b.WriteString("## 📊 Trends\n\n")
	if len(domains) > 0 {
		b.WriteString("**By Domain:**\n")
		for i, pair := range sortCounts(domains) {
			if i >= 5 {
				break
			}
			fmt.Fprintf(b, "- %s: %d opportunities\n", capitalize(pair.key), pair.count)
		}
		b.WriteString("\n")
	}
	if len(keywords) > 0 {
		b.WriteString("**Pain Point Indicators:**\n")
		for _, pair := range sortCounts(keywords) {
			fmt.Fprintf(b, "- '%s': %d mentions\n", pair.key, pair.count)
		}
		b.WriteString("\n")
	}
}

type countPair struct {
	key   string
	count int
}

func sortCounts(counts map[string]int) []countPair {
	pairs := make([]countPair, 0, len(counts))
	for k, v := range counts {
		pairs = append(pairs, countPair{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].key < pairs[j].key
	})
	return pairs
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
