package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saashunter/hunter/internal/pipeline"
	"github.com/saashunter/hunter/internal/scorer"
	"github.com/saashunter/hunter/internal/store"
)

var (
	backtestDays   int
	backtestConfig string
	backtestOutput string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Rescore historical raw data against a scoring config",
	Long:  "Reprocesses raw batches from the last N days with the given scoring configuration and writes an analysis report. Leaves the processed log, registry, and watermark untouched, so scoring experiments are free.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		scoring := scorer.DefaultConfig()
		configFile := backtestConfig
		if configFile == "" {
			configFile = cfg.Scoring.ConfigPath
		}
		if configFile != "" {
			scoring, err = scorer.LoadConfig(configFile)
			if err != nil {
				return err
			}
		}

		return store.Track(ctx, st, "backtest", "backtest", func(job *store.JobRecord) error {
			res, err := pipeline.Backtest(pipeline.BacktestOptions{
				RawDir:       cfg.RawDir(),
				OutputDir:    cfg.BacktestDir(),
				Scoring:      scoring,
				ConfigFile:   configFile,
				DaysBack:     backtestDays,
				DedupeThresh: cfg.Dedupe.SimilarityThreshold,
				OutputName:   backtestOutput,
			})
			if err != nil {
				return err
			}

			job.ItemsProcessed = res.UniqueCount
			fmt.Println(res.Report)
			fmt.Printf("Results saved to: %s\n", res.OutputPath)
			fmt.Printf("Report saved to: %s\n", res.ReportPath)
			return nil
		})
	},
}

func init() {
	backtestCmd.Flags().IntVar(&backtestDays, "days", 7, "days of historical data to rescore")
	backtestCmd.Flags().StringVar(&backtestConfig, "config", "", "scoring config file (defaults to built-in weights)")
	backtestCmd.Flags().StringVar(&backtestOutput, "output", "", "output file name (default backtest_TIMESTAMP.json)")
	rootCmd.AddCommand(backtestCmd)
}
