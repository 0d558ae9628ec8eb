package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saashunter/hunter/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hunter",
	Short: "Pain-point signal aggregation pipeline",
	Long:  "Collects pain-point posts from Reddit, Hacker News, and GitHub, scores and deduplicates them, and produces a daily digest of SaaS opportunities.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
