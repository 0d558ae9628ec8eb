package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saashunter/hunter/internal/collector"
	"github.com/saashunter/hunter/internal/fetcher"
	"github.com/saashunter/hunter/internal/model"
	"github.com/saashunter/hunter/internal/registry"
	"github.com/saashunter/hunter/internal/store"
	"github.com/saashunter/hunter/pkg/algolia"
	"github.com/saashunter/hunter/pkg/ghsearch"
)

var collectSource string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect new opportunities from configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		reg := registry.Load(cfg.RegistryPath())
		collectors, err := buildCollectors(reg)
		if err != nil {
			return err
		}
		if len(collectors) == 0 {
			return eris.Errorf("unknown source %q", collectSource)
		}

		// A plain group, not WithContext: one collector failing must
		// not cancel its siblings mid-scan.
		var g errgroup.Group
		for _, c := range collectors {
			c := c
			g.Go(func() error {
				return store.Track(ctx, st, "collection", c.Name()+"_monitor", func(job *store.JobRecord) error {
					records, collectErr := c.Collect(ctx)

					// A failed run still persists whatever it
					// gathered; records become seen only once
					// they are safely in a batch file.
					if len(records) > 0 {
						path, err := writeBatch(c.Name(), records)
						if err != nil {
							if collectErr != nil {
								zap.L().Error("failed to write partial batch",
									zap.String("collector", c.Name()), zap.Error(err))
								return collectErr
							}
							return err
						}
						for i := range records {
							reg.MarkSeen(records[i].Source, records[i].SourceID)
						}
						job.ItemsProcessed = len(records)
						zap.L().Info("collection complete",
							zap.String("collector", c.Name()),
							zap.Int("found", len(records)),
							zap.String("output", path))
						fmt.Printf("%s: %d new opportunities -> %s\n", c.Name(), len(records), path)
					}
					return collectErr
				})
			})
		}
		runErr := g.Wait()

		// Seen IDs persist even when one collector failed, so the
		// successful collectors' work is not re-emitted next run.
		if err := reg.Save(); err != nil {
			zap.L().Error("failed to save seen-ID registry", zap.Error(err))
			if runErr == nil {
				runErr = err
			}
		}
		zap.L().Info("registry saved", zap.Int("seen_ids", reg.Size()))
		return runErr
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectSource, "source", "all",
		"source to collect: all, reddit, hackernews, or github")
	rootCmd.AddCommand(collectCmd)
}

func buildCollectors(reg *registry.Registry) ([]collector.Collector, error) {
	var collectors []collector.Collector

	if collectSource == "all" || collectSource == "reddit" {
		f := fetcher.New(cfg.HTTP)
		collectors = append(collectors,
			collector.NewRedditCollector(f, reg, cfg.Reddit, cfg.Collect))
	}
	if collectSource == "all" || collectSource == "hackernews" {
		client := algolia.NewClient(
			algolia.WithBaseURL(cfg.HN.BaseURL),
			algolia.WithUserAgent(cfg.HTTP.UserAgent))
		collectors = append(collectors,
			collector.NewHNCollector(client, reg, cfg.HN, cfg.Collect, cfg.HTTP))
	}
	if collectSource == "all" || collectSource == "github" {
		client := ghsearch.NewClient(cfg.GitHub.Token,
			ghsearch.WithBaseURL(cfg.GitHub.BaseURL),
			ghsearch.WithUserAgent(cfg.HTTP.UserAgent))
		gh, err := collector.NewGitHubCollector(client, reg, cfg.GitHub, cfg.Collect, cfg.HTTP)
		if err != nil {
			return nil, err
		}
		collectors = append(collectors, gh)
	}
	return collectors, nil
}

func writeBatch(name string, records []model.Opportunity) (string, error) {
	now := time.Now()
	switch name {
	case "github":
		return collector.WriteJSONBatch(cfg.RawDir(), name, collector.BatchMeta{
			ScanTime:       now.Format(time.RFC3339),
			SourcesScanned: cfg.GitHub.Repositories,
			Method:         "GitHub Search API",
			HoursBack:      cfg.Collect.GitHubHoursBack,
		}, records, now)
	case "reddit":
		return collector.WriteJSONLBatch(cfg.RawDir(), name, collector.BatchMeta{
			ScanTime:       now.Format(time.RFC3339),
			SourcesScanned: cfg.Reddit.Subreddits,
			Method:         "RSS (no API)",
			HoursBack:      cfg.Collect.HoursBack,
		}, records, now)
	default:
		return collector.WriteJSONLBatch(cfg.RawDir(), name, collector.BatchMeta{
			ScanTime:  now.Format(time.RFC3339),
			Method:    "Hacker News Algolia Search",
			HoursBack: cfg.Collect.HoursBack,
		}, records, now)
	}
}

func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.StorePath(), cfg.Store.MonthlyBudget)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
