package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var statsDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job metrics and LLM spend against the monthly budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		daily, err := st.GetDailyUsage(ctx, "")
		if err != nil {
			return err
		}
		monthly, err := st.GetMonthlyUsage(ctx, "")
		if err != nil {
			return err
		}
		breakdown, err := st.GetJobBreakdown(ctx, statsDays)
		if err != nil {
			return err
		}

		fmt.Printf("Today (%s): %d jobs (%d ok), %d items, %d tokens, $%.4f\n",
			daily.Date, daily.JobsRun, daily.JobsSucceeded,
			daily.ItemsProcessed, daily.TotalTokens, daily.TotalCost)
		fmt.Printf("Month (%s): %d jobs, %d items, %d tokens, $%.4f spent, $%.2f budget remaining\n",
			monthly.Month, monthly.JobsRun, monthly.ItemsProcessed,
			monthly.TotalTokens, monthly.TotalCost, monthly.BudgetRemaining)

		if len(breakdown) == 0 {
			fmt.Printf("\nNo jobs recorded in the last %d days\n", statsDays)
			return nil
		}
		fmt.Printf("\nBy job (last %d days):\n", statsDays)
		for _, b := range breakdown {
			fmt.Printf("  %-24s %4d runs  %6d items  %8d tokens  $%.4f  avg %dms\n",
				b.JobName, b.Runs, b.Items, b.Tokens, b.Cost, b.AvgDurationMS)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "window for the per-job breakdown")
	rootCmd.AddCommand(statsCmd)
}
