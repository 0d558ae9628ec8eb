package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/saashunter/hunter/internal/model"
	"github.com/saashunter/hunter/internal/scorer"
)

// BacktestOptions configures an isolated rescoring pass over historical raw
// batches. Backtests never touch the processed log, registry, or watermark.
type BacktestOptions struct {
	RawDir       string
	OutputDir    string
	Scoring      scorer.Config
	ConfigFile   string
	DaysBack     int
	DedupeThresh float64
	OutputName   string
	Now          func() time.Time
}

// BacktestResult is the persisted outcome of a backtest run.
type BacktestResult struct {
	Timestamp     string              `json:"timestamp"`
	ConfigFile    string              `json:"config_file"`
	ConfigVersion string              `json:"config_version"`
	DaysBack      int                 `json:"days_back"`
	RawCount      int                 `json:"raw_count"`
	UniqueCount   int                 `json:"unique_count"`
	Opportunities []model.Opportunity `json:"opportunities"`
	Report        string              `json:"report"`

	OutputPath string `json:"-"`
	ReportPath string `json:"-"`
}

// Backtest rescores historical raw data against the given scoring config.
// Raw files are selected by the date embedded in their filename
// (e.g. reddit_20260214_120030.jsonl), not by mtime, so repeated backtests
// over the same window are stable.
func Backtest(opts BacktestOptions) (*BacktestResult, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	log := zap.L().With(zap.String("component", "backtest"))

	cutoff := now().AddDate(0, 0, -opts.DaysBack)
	records, filesLoaded, err := loadHistorical(opts.RawDir, cutoff)
	if err != nil {
		return nil, err
	}
	log.Info("loaded historical data",
		zap.Int("records", len(records)),
		zap.Int("files", filesLoaded),
		zap.Int("days_back", opts.DaysBack))
	if len(records) == 0 {
		return nil, eris.New("backtest: no raw data in window")
	}

	for i := range records {
		records[i].Score = scorer.Score(&records[i], opts.Scoring)
	}

	unique := Deduplicate(records, opts.DedupeThresh)
	enrichedAt := now()
	for i := range unique {
		Enrich(&unique[i], enrichedAt)
	}

	result := &BacktestResult{
		Timestamp:     enrichedAt.Format(time.RFC3339),
		ConfigFile:    opts.ConfigFile,
		ConfigVersion: opts.Scoring.Version,
		DaysBack:      opts.DaysBack,
		RawCount:      len(records),
		UniqueCount:   len(unique),
		Opportunities: unique,
	}
	result.Report = buildBacktestReport(unique)

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "backtest: mkdir output")
	}
	name := opts.OutputName
	if name == "" {
		name = "backtest_" + enrichedAt.Format("20060102_150405") + ".json"
	}
	result.OutputPath = filepath.Join(opts.OutputDir, name)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "backtest: marshal results")
	}
	if err := os.WriteFile(result.OutputPath, data, 0o644); err != nil {
		return nil, eris.Wrap(err, "backtest: write results")
	}

	result.ReportPath = strings.TrimSuffix(result.OutputPath, ".json") + ".txt"
	if err := os.WriteFile(result.ReportPath, []byte(result.Report), 0o644); err != nil {
		return nil, eris.Wrap(err, "backtest: write report")
	}

	log.Info("backtest complete",
		zap.Int("unique", len(unique)),
		zap.String("output", result.OutputPath))
	return result, nil
}

// loadHistorical reads raw batches whose filename date falls on or after the
// cutoff. Files without a parseable YYYYMMDD segment are skipped.
func loadHistorical(dir string, cutoff time.Time) ([]model.Opportunity, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, eris.Wrapf(err, "backtest: read raw dir %s", dir)
	}

	cutoffDay := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	log := zap.L().With(zap.String("component", "backtest"))

	var all []model.Opportunity
	files := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".json" && ext != ".jsonl" {
			continue
		}
		day, ok := filenameDate(entry.Name())
		if !ok {
			log.Warn("skipping raw file without date segment", zap.String("file", entry.Name()))
			continue
		}
		if day.Before(cutoffDay) {
			continue
		}
		records, err := LoadRecords(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warn("skipping unreadable raw file",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		all = append(all, records...)
		files++
	}
	return all, files, nil
}

// filenameDate extracts the YYYYMMDD date from a raw batch filename such as
// github_opportunities_20260214_120030.json.
func filenameDate(name string) (time.Time, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for _, part := range strings.Split(stem, "_") {
		if len(part) != 8 {
			continue
		}
		if t, err := time.Parse("20060102", part); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func buildBacktestReport(opportunities []model.Opportunity) string {
	if len(opportunities) == 0 {
		return "No opportunities to analyze"
	}

	buckets := map[string]int{}
	sources := map[string]int{}
	domains := map[string]int{}
	sum, max, min := 0, opportunities[0].Score, opportunities[0].Score
	for i := range opportunities {
		o := &opportunities[i]
		switch {
		case o.Score >= 80:
			buckets["80+ (Top Tier)"]++
		case o.Score >= 60:
			buckets["60-79 (High Quality)"]++
		case o.Score >= 40:
			buckets["40-59 (Worth Exploring)"]++
		default:
			buckets["<40 (Low Signal)"]++
		}
		sources[o.Source]++
		domain := o.Domain
		if domain == "" {
			domain = "other"
		}
		domains[domain]++
		sum += o.Score
		if o.Score > max {
			max = o.Score
		}
		if o.Score < min {
			min = o.Score
		}
	}

	rule := strings.Repeat("=", 70)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nBACKTEST RESULTS\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Total Opportunities: %d\n", len(opportunities))
	fmt.Fprintf(&b, "Average Score: %.1f\n", float64(sum)/float64(len(opportunities)))
	fmt.Fprintf(&b, "Max Score: %d\n", max)
	fmt.Fprintf(&b, "Min Score: %d\n\n", min)

	b.WriteString("Score Distribution:\n")
	for _, bucket := range []string{"80+ (Top Tier)", "60-79 (High Quality)", "40-59 (Worth Exploring)", "<40 (Low Signal)"} {
		count := buckets[bucket]
		if count == 0 {
			continue
		}
		pct := float64(count) / float64(len(opportunities)) * 100
		fmt.Fprintf(&b, "  %s: %d (%.1f%%)\n", bucket, count, pct)
	}
	b.WriteString("\nTop 10 Opportunities:\n")

	top := make([]model.Opportunity, len(opportunities))
	copy(top, opportunities)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score > top[j].Score })
	if len(top) > 10 {
		top = top[:10]
	}
	for i := range top {
		title := top[i].Title
		if len(title) > 70 {
			title = title[:70]
		}
		fmt.Fprintf(&b, "%d. [%d] %s\n", i+1, top[i].Score, title)
		fmt.Fprintf(&b, "   Source: %s | Domain: %s\n", top[i].Source, top[i].Domain)
	}

	b.WriteString("\nBy Source:\n")
	writeCountsDesc(&b, sources)
	b.WriteString("\nBy Domain:\n")
	writeCountsDesc(&b, domains)
	fmt.Fprintf(&b, "\n%s\n", rule)
	return b.String()
}

func writeCountsDesc(b *strings.Builder, counts map[string]int) {
	type kv struct {
		key   string
		count int
	}
	pairs := make([]kv, 0, len(counts))
	for k, v := range counts {
		pairs = append(pairs, kv{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].key < pairs[j].key
	})
	for _, p := range pairs {
		fmt.Fprintf(b, "  %s: %d\n", p.key, p.count)
	}
}
