package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// JobRecord captures the metrics of one job run: collection, processing,
// digest, or backtest. Token and cost fields are zero for jobs that make no
// LLM calls.
type JobRecord struct {
	Timestamp      string
	JobType        string
	JobName        string
	InputTokens    int
	OutputTokens   int
	TotalTokens    int
	Model          string
	CostUSD        float64
	ItemsProcessed int
	DurationMS     int64
	Success        bool
	Notes          string
}

// DailyUsage aggregates job metrics for a single day.
type DailyUsage struct {
	Date           string
	TotalTokens    int64
	TotalCost      float64
	ItemsProcessed int64
	JobsRun        int
	JobsSucceeded  int
}

// MonthlyUsage aggregates job metrics for a calendar month against the
// configured spend budget.
type MonthlyUsage struct {
	Month           string
	TotalTokens     int64
	TotalCost       float64
	ItemsProcessed  int64
	JobsRun         int
	BudgetRemaining float64
}

// JobBreakdown aggregates metrics per job name over a trailing window.
type JobBreakdown struct {
	JobName       string
	Runs          int
	Items         int64
	Tokens        int64
	Cost          float64
	AvgDurationMS int64
}

// Store persists job run metrics.
type Store interface {
	Migrate(ctx context.Context) error
	SaveJob(ctx context.Context, job *JobRecord) error
	GetDailyUsage(ctx context.Context, date string) (*DailyUsage, error)
	GetMonthlyUsage(ctx context.Context, month string) (*MonthlyUsage, error)
	GetJobBreakdown(ctx context.Context, days int) ([]JobBreakdown, error)
	Close() error
}

// Track runs fn and records its metrics as one job row. The job row is
// written whether fn succeeds or fails; fn's error is returned either way.
// fn mutates the passed record to report items, tokens, and cost.
func Track(ctx context.Context, s Store, jobType, jobName string, fn func(job *JobRecord) error) error {
	start := time.Now()
	job := &JobRecord{
		Timestamp: start.Format(time.RFC3339),
		JobType:   jobType,
		JobName:   jobName,
		Success:   true,
	}

	runErr := fn(job)
	if runErr != nil {
		job.Success = false
		job.Notes = runErr.Error()
	}
	job.DurationMS = time.Since(start).Milliseconds()
	if job.TotalTokens == 0 {
		job.TotalTokens = job.InputTokens + job.OutputTokens
	}

	if err := s.SaveJob(ctx, job); err != nil {
		if runErr == nil {
			return err
		}
		// The job's own failure wins, but a lost metrics row must
		// still be visible.
		zap.L().Error("failed to record job metrics",
			zap.String("job_name", jobName), zap.Error(err))
	}
	return runErr
}
