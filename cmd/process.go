package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saashunter/hunter/internal/pipeline"
	"github.com/saashunter/hunter/internal/scorer"
	"github.com/saashunter/hunter/internal/store"
)

var processNoLLM bool

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Validate, score, deduplicate, and log new raw batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		scoring, err := loadScoringConfig()
		if err != nil {
			return err
		}

		var enhancer *scorer.Enhancer
		if !processNoLLM {
			enhancer = scorer.NewEnhancer(cfg.LLM, scoring.LLM)
			if enhancer == nil {
				zap.L().Info("no LLM API key configured, rule-based scores only")
			}
		}

		return store.Track(ctx, st, "processing", "process_opportunities", func(job *store.JobRecord) error {
			res, err := pipeline.Run(ctx, pipeline.Options{
				RawDir:        cfg.RawDir(),
				ProcessedDir:  cfg.ProcessedDir(),
				WatermarkPath: cfg.WatermarkPath(),
				Scoring:       scoring,
				Enhancer:      enhancer,
				DedupeThresh:  cfg.Dedupe.SimilarityThreshold,
			})
			if err != nil {
				return err
			}

			job.ItemsProcessed = res.Unique
			job.TotalTokens = res.LLMTokens
			job.CostUSD = res.LLMCost
			if res.Enhanced > 0 {
				job.Model = cfg.LLM.Model
			}

			if res.FilesProcessed == 0 {
				fmt.Println("No new raw files to process")
				return nil
			}
			fmt.Printf("Processed %d files: %d loaded, %d valid, %d rejected, %d duplicates removed\n",
				res.FilesProcessed, res.Loaded, res.Valid, len(res.Rejections), res.Duplicates)
			if res.Unique > 0 {
				fmt.Printf("Wrote %d opportunities to %s (top score %d, avg %.1f)\n",
					res.Unique, res.OutputPath, res.TopScore, res.AvgScore)
			}
			if res.Enhanced > 0 || res.EnhanceFailed > 0 {
				fmt.Printf("LLM enhancement: %d applied, %d failed\n",
					res.Enhanced, res.EnhanceFailed)
			}
			return nil
		})
	},
}

func init() {
	processCmd.Flags().BoolVar(&processNoLLM, "no-llm", false,
		"disable LLM score enhancement for this run")
	rootCmd.AddCommand(processCmd)
}

func loadScoringConfig() (scorer.Config, error) {
	if cfg.Scoring.ConfigPath == "" {
		return scorer.DefaultConfig(), nil
	}
	return scorer.LoadConfig(cfg.Scoring.ConfigPath)
}
