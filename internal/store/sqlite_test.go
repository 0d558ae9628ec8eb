package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotisserie/eris"
)

func testStore(t *testing.T, budget float64) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "usage.db"), budget)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedJob(t *testing.T, s *SQLiteStore, job JobRecord) {
	t.Helper()
	require.NoError(t, s.SaveJob(context.Background(), &job))
}

func TestMigrateIdempotent(t *testing.T) {
	s := testStore(t, 50)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSaveJobAndDailyUsage(t *testing.T) {
	s := testStore(t, 50)
	day := "2026-02-14"

	seedJob(t, s, JobRecord{
		Timestamp:      day + "T08:00:00Z",
		JobType:        "collection",
		JobName:        "reddit_monitor",
		ItemsProcessed: 12,
		Success:        true,
	})
	seedJob(t, s, JobRecord{
		Timestamp:      day + "T09:00:00Z",
		JobType:        "processing",
		JobName:        "process_opportunities",
		InputTokens:    1000,
		OutputTokens:   200,
		TotalTokens:    1200,
		Model:          "gpt-4o-mini",
		CostUSD:        0.05,
		ItemsProcessed: 8,
		Success:        true,
	})
	seedJob(t, s, JobRecord{
		Timestamp: day + "T10:00:00Z",
		JobType:   "collection",
		JobName:   "github_monitor",
		Success:   false,
		Notes:     "github: search issues page 1: http 403",
	})
	// A different day stays out of the aggregate.
	seedJob(t, s, JobRecord{
		Timestamp: "2026-02-13T08:00:00Z",
		JobType:   "digest",
		JobName:   "generate_digest",
		Success:   true,
	})

	usage, err := s.GetDailyUsage(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, day, usage.Date)
	assert.Equal(t, int64(1200), usage.TotalTokens)
	assert.InDelta(t, 0.05, usage.TotalCost, 1e-9)
	assert.Equal(t, int64(20), usage.ItemsProcessed)
	assert.Equal(t, 3, usage.JobsRun)
	assert.Equal(t, 2, usage.JobsSucceeded)
}

func TestDailyUsageEmptyDay(t *testing.T) {
	s := testStore(t, 50)

	usage, err := s.GetDailyUsage(context.Background(), "2020-01-01")
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.TotalTokens)
	assert.Equal(t, 0, usage.JobsRun)
}

func TestMonthlyUsageBudget(t *testing.T) {
	s := testStore(t, 50)

	seedJob(t, s, JobRecord{
		Timestamp:   "2026-02-01T08:00:00Z",
		JobType:     "processing",
		JobName:     "process_opportunities",
		TotalTokens: 5000,
		CostUSD:     12.5,
		Success:     true,
	})
	seedJob(t, s, JobRecord{
		Timestamp:   "2026-02-20T08:00:00Z",
		JobType:     "processing",
		JobName:     "process_opportunities",
		TotalTokens: 3000,
		CostUSD:     7.5,
		Success:     true,
	})
	seedJob(t, s, JobRecord{
		Timestamp: "2026-03-01T08:00:00Z",
		JobType:   "digest",
		JobName:   "generate_digest",
		Success:   true,
	})

	usage, err := s.GetMonthlyUsage(context.Background(), "2026-02")
	require.NoError(t, err)
	assert.Equal(t, int64(8000), usage.TotalTokens)
	assert.InDelta(t, 20.0, usage.TotalCost, 1e-9)
	assert.InDelta(t, 30.0, usage.BudgetRemaining, 1e-9)
	assert.Equal(t, 2, usage.JobsRun)
}

func TestJobBreakdown(t *testing.T) {
	s := testStore(t, 50)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		seedJob(t, s, JobRecord{
			Timestamp:      now.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
			JobType:        "collection",
			JobName:        "reddit_monitor",
			ItemsProcessed: 5,
			DurationMS:     100,
			Success:        true,
		})
	}
	seedJob(t, s, JobRecord{
		Timestamp:   now.Format(time.RFC3339),
		JobType:     "processing",
		JobName:     "process_opportunities",
		TotalTokens: 900,
		CostUSD:     0.03,
		DurationMS:  400,
		Success:     true,
	})
	// Outside the trailing window.
	seedJob(t, s, JobRecord{
		Timestamp: now.AddDate(0, 0, -30).Format(time.RFC3339),
		JobType:   "collection",
		JobName:   "hn_monitor",
		Success:   true,
	})

	breakdown, err := s.GetJobBreakdown(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)

	// Ordered by run count descending.
	assert.Equal(t, "reddit_monitor", breakdown[0].JobName)
	assert.Equal(t, 3, breakdown[0].Runs)
	assert.Equal(t, int64(15), breakdown[0].Items)
	assert.Equal(t, int64(100), breakdown[0].AvgDurationMS)

	assert.Equal(t, "process_opportunities", breakdown[1].JobName)
	assert.Equal(t, int64(900), breakdown[1].Tokens)
	assert.InDelta(t, 0.03, breakdown[1].Cost, 1e-9)
}

func TestTrackSuccess(t *testing.T) {
	s := testStore(t, 50)

	err := Track(context.Background(), s, "collection", "reddit_monitor", func(job *JobRecord) error {
		job.ItemsProcessed = 7
		return nil
	})
	require.NoError(t, err)

	usage, err := s.GetDailyUsage(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, usage.JobsRun)
	assert.Equal(t, 1, usage.JobsSucceeded)
	assert.Equal(t, int64(7), usage.ItemsProcessed)
}

func TestTrackFailureStillRecorded(t *testing.T) {
	s := testStore(t, 50)

	err := Track(context.Background(), s, "collection", "github_monitor", func(job *JobRecord) error {
		return eris.New("github: token not configured")
	})
	require.Error(t, err)

	usage, err := s.GetDailyUsage(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, usage.JobsRun)
	assert.Equal(t, 0, usage.JobsSucceeded)
}

type failingSaveStore struct {
	Store
	saveErr error
}

func (f *failingSaveStore) SaveJob(context.Context, *JobRecord) error { return f.saveErr }

func TestTrackFnErrorWinsOverSaveError(t *testing.T) {
	s := &failingSaveStore{saveErr: eris.New("store: database locked")}

	runErr := eris.New("github: token not configured")
	err := Track(context.Background(), s, "collection", "github_monitor", func(job *JobRecord) error {
		return runErr
	})
	// The job's failure is reported, not the metrics write failure.
	assert.Equal(t, runErr, err)
}

func TestTrackSaveErrorSurfacesOnSuccess(t *testing.T) {
	saveErr := eris.New("store: database locked")
	s := &failingSaveStore{saveErr: saveErr}

	err := Track(context.Background(), s, "collection", "reddit_monitor", func(job *JobRecord) error {
		return nil
	})
	assert.Equal(t, saveErr, err)
}

func TestTrackDerivesTotalTokens(t *testing.T) {
	s := testStore(t, 50)
	day := time.Now().Format("2006-01-02")

	err := Track(context.Background(), s, "processing", "process_opportunities", func(job *JobRecord) error {
		job.InputTokens = 800
		job.OutputTokens = 150
		return nil
	})
	require.NoError(t, err)

	usage, err := s.GetDailyUsage(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, int64(950), usage.TotalTokens)
}
