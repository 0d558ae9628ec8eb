package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/saashunter/hunter/internal/model"
	"github.com/saashunter/hunter/internal/scorer"
)

// Options wires the processing pipeline to its data directories and
// scoring configuration.
type Options struct {
	RawDir        string
	ProcessedDir  string
	WatermarkPath string
	Scoring       scorer.Config
	Enhancer      *scorer.Enhancer
	DedupeThresh  float64
	Now           func() time.Time
}

// Result summarizes one pipeline pass.
type Result struct {
	FilesProcessed int
	Loaded         int
	Valid          int
	Rejections     []model.Rejection
	Duplicates     int
	Unique         int
	Enhanced       int
	EnhanceFailed  int
	LLMTokens      int
	LLMCost        float64
	OutputPath     string
	TopScore       int
	AvgScore       float64
}

// Run executes one watermark-driven batch pass: discover raw files newer
// than the watermark, load, validate, score, deduplicate, enrich, append to
// the daily log, then advance the watermark. Reprocessing is idempotent in
// the at-least-once sense: duplicate output lines are an accepted
// limitation of mtime-granularity file selection.
func Run(ctx context.Context, opts Options) (*Result, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	log := zap.L().With(zap.String("component", "pipeline"))

	start := now()
	watermark := LoadWatermark(opts.WatermarkPath, start)
	log.Info("processing files since watermark", zap.Time("watermark", watermark))

	files, err := DiscoverFiles(opts.RawDir, watermark)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		log.Info("no new raw files to process")
		return &Result{}, nil
	}

	res := &Result{FilesProcessed: len(files)}

	var records []model.Opportunity
	for _, file := range files {
		loaded, err := LoadRecords(file)
		if err != nil {
			log.Error("failed to load raw file, skipping",
				zap.String("file", file), zap.Error(err))
			continue
		}
		log.Info("loaded raw file",
			zap.String("file", filepath.Base(file)), zap.Int("records", len(loaded)))
		records = append(records, loaded...)
	}
	res.Loaded = len(records)

	valid, rejections := ValidateAll(records)
	res.Valid = len(valid)
	res.Rejections = rejections
	for _, r := range rejections {
		log.Warn("record rejected",
			zap.String("reason", r.Reason),
			zap.String("title", r.Title),
			zap.String("source", r.Source))
	}

	for i := range valid {
		base := scorer.Score(&valid[i], opts.Scoring)
		enh := opts.Enhancer.Enhance(ctx, &valid[i], base)
		valid[i].Score = enh.FinalScore
		valid[i].LLMAnalysis = enh.Analysis
		switch enh.Status {
		case scorer.EnhancementApplied:
			res.Enhanced++
			res.LLMTokens += enh.Analysis.Tokens
			res.LLMCost += enh.Analysis.CostUSD
		case scorer.EnhancementFailed:
			res.EnhanceFailed++
		}
	}

	unique := Deduplicate(valid, opts.DedupeThresh)
	res.Duplicates = len(valid) - len(unique)
	res.Unique = len(unique)
	log.Info("deduplicated batch",
		zap.Int("unique", len(unique)), zap.Int("removed", res.Duplicates))

	enrichedAt := now()
	for i := range unique {
		Enrich(&unique[i], enrichedAt)
	}

	if len(unique) > 0 {
		if err := os.MkdirAll(opts.ProcessedDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "pipeline: mkdir processed")
		}
		res.OutputPath = filepath.Join(opts.ProcessedDir,
			"opportunities_"+enrichedAt.Format("20060102")+".jsonl")
		if err := AppendProcessed(res.OutputPath, unique); err != nil {
			return nil, err
		}
		log.Info("appended processed records", zap.String("output", res.OutputPath))

		top, sum := 0, 0
		for i := range unique {
			if unique[i].Score > top {
				top = unique[i].Score
			}
			sum += unique[i].Score
		}
		res.TopScore = top
		res.AvgScore = float64(sum) / float64(len(unique))
	}

	// The watermark only advances after a successful append.
	if err := SaveWatermark(opts.WatermarkPath, start); err != nil {
		return nil, err
	}

	log.Info("processing complete",
		zap.Int("loaded", res.Loaded),
		zap.Int("valid", res.Valid),
		zap.Int("unique", res.Unique))
	return res, nil
}
