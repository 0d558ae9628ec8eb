package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db            *sql.DB
	monthlyBudget float64
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. monthlyBudget is the spend ceiling reported by GetMonthlyUsage.
func NewSQLite(dsn string, monthlyBudget float64) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, monthlyBudget: monthlyBudget}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS token_usage (
	id              TEXT PRIMARY KEY,
	timestamp       TEXT NOT NULL,
	job_type        TEXT NOT NULL,
	job_name        TEXT NOT NULL,
	input_tokens    INTEGER DEFAULT 0,
	output_tokens   INTEGER DEFAULT 0,
	total_tokens    INTEGER DEFAULT 0,
	model           TEXT,
	cost_usd        REAL DEFAULT 0.0,
	items_processed INTEGER DEFAULT 0,
	duration_ms     INTEGER DEFAULT 0,
	success         BOOLEAN DEFAULT 1,
	notes           TEXT
);

CREATE INDEX IF NOT EXISTS idx_token_usage_timestamp ON token_usage(timestamp);
CREATE INDEX IF NOT EXISTS idx_token_usage_job_name ON token_usage(job_name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveJob(ctx context.Context, job *JobRecord) error {
	if job.Timestamp == "" {
		job.Timestamp = time.Now().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO token_usage
			(id, timestamp, job_type, job_name, input_tokens, output_tokens,
			 total_tokens, model, cost_usd, items_processed, duration_ms, success, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), job.Timestamp, job.JobType, job.JobName,
		job.InputTokens, job.OutputTokens, job.TotalTokens,
		nullString(job.Model), job.CostUSD, job.ItemsProcessed,
		job.DurationMS, job.Success, nullString(job.Notes),
	)
	return eris.Wrapf(err, "sqlite: insert job %s", job.JobName)
}

func (s *SQLiteStore) GetDailyUsage(ctx context.Context, date string) (*DailyUsage, error) {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(cost_usd), 0.0),
			COALESCE(SUM(items_processed), 0),
			COUNT(*),
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0)
		 FROM token_usage
		 WHERE DATE(timestamp) = ?`, date)

	usage := &DailyUsage{Date: date}
	if err := row.Scan(&usage.TotalTokens, &usage.TotalCost,
		&usage.ItemsProcessed, &usage.JobsRun, &usage.JobsSucceeded); err != nil {
		return nil, eris.Wrapf(err, "sqlite: daily usage %s", date)
	}
	return usage, nil
}

func (s *SQLiteStore) GetMonthlyUsage(ctx context.Context, month string) (*MonthlyUsage, error) {
	if month == "" {
		month = time.Now().Format("2006-01")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(cost_usd), 0.0),
			COALESCE(SUM(items_processed), 0),
			COUNT(*)
		 FROM token_usage
		 WHERE strftime('%Y-%m', timestamp) = ?`, month)

	usage := &MonthlyUsage{Month: month}
	if err := row.Scan(&usage.TotalTokens, &usage.TotalCost,
		&usage.ItemsProcessed, &usage.JobsRun); err != nil {
		return nil, eris.Wrapf(err, "sqlite: monthly usage %s", month)
	}
	usage.BudgetRemaining = s.monthlyBudget - usage.TotalCost
	return usage, nil
}

func (s *SQLiteStore) GetJobBreakdown(ctx context.Context, days int) ([]JobBreakdown, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT
			job_name,
			COUNT(*),
			COALESCE(SUM(items_processed), 0),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(cost_usd), 0.0),
			COALESCE(AVG(duration_ms), 0)
		 FROM token_usage
		 WHERE timestamp > datetime('now', ?)
		 GROUP BY job_name
		 ORDER BY COUNT(*) DESC`, fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: job breakdown")
	}
	defer rows.Close()

	var breakdown []JobBreakdown
	for rows.Next() {
		var b JobBreakdown
		var avg float64
		if err := rows.Scan(&b.JobName, &b.Runs, &b.Items, &b.Tokens, &b.Cost, &avg); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job breakdown")
		}
		b.AvgDurationMS = int64(avg)
		breakdown = append(breakdown, b)
	}
	return breakdown, eris.Wrap(rows.Err(), "sqlite: iterate job breakdown")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
