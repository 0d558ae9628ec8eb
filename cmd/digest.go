package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saashunter/hunter/internal/digest"
	"github.com/saashunter/hunter/internal/store"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Generate the daily markdown digest of top opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return store.Track(ctx, st, "digest", "generate_digest", func(job *store.JobRecord) error {
			res, err := digest.Generate(digest.Options{
				ProcessedDir: cfg.ProcessedDir(),
				OutputDir:    cfg.DigestDir(),
				TopN:         cfg.Digest.TopN,
				HoursBack:    cfg.Digest.HoursBack,
			})
			if err != nil {
				return err
			}

			job.ItemsProcessed = res.Opportunities
			if res.Opportunities == 0 {
				fmt.Println("No opportunities found for digest")
				return nil
			}
			fmt.Printf("Generated digest with %d opportunities\n", res.Opportunities)
			fmt.Printf("   Saved to: %s\n", res.OutputPath)
			fmt.Printf("   Score range: %.1f avg, %d max\n", res.AvgScore, res.MaxScore)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(digestCmd)
}
