package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 15, cfg.HTTP.TimeoutSecs)
	assert.InDelta(t, 1.0, cfg.HTTP.RequestDelay, 0.001)
	assert.Equal(t, 2, cfg.HTTP.MaxRetries)
	assert.Equal(t, 6, cfg.Collect.HoursBack)
	assert.Equal(t, 500, cfg.Collect.BodyPreviewLen)
	assert.Equal(t, 100, cfg.Reddit.FeedLimit)
	assert.Contains(t, cfg.Reddit.Subreddits, "sysadmin")
	assert.Contains(t, cfg.Reddit.PainKeywords, "i wish there was")
	assert.Contains(t, cfg.Reddit.PromoIndicators, "check out my")
	assert.Equal(t, "https://hn.algolia.com/api/v1", cfg.HN.BaseURL)
	assert.Equal(t, 15, cfg.HN.CommentThreshold)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.BaseURL)
	assert.Equal(t, 2, cfg.GitHub.MinReactions)
	assert.Contains(t, cfg.GitHub.Repositories, "supabase/supabase")
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.InDelta(t, 85, cfg.Dedupe.SimilarityThreshold, 0.001)
	assert.Equal(t, 5, cfg.Digest.TopN)
	assert.Equal(t, 24, cfg.Digest.HoursBack)
	assert.InDelta(t, 15.0, cfg.Store.MonthlyBudget, 0.001)
}

func TestLoadGitHubHoursBackFallback(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	// With no explicit value the GitHub window tracks the general one.
	assert.Equal(t, cfg.Collect.HoursBack, cfg.Collect.GitHubHoursBack)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
data_dir: /var/lib/hunter
collect:
  hours_back: 12
  github_hours_back: 168
reddit:
  subreddits: [sysadmin]
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/hunter", cfg.DataDir)
	assert.Equal(t, 12, cfg.Collect.HoursBack)
	assert.Equal(t, 168, cfg.Collect.GitHubHoursBack)
	assert.Equal(t, []string{"sysadmin"}, cfg.Reddit.Subreddits)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 100, cfg.Reddit.FeedLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("HUNTER_LOG_LEVEL", "warn")
	t.Setenv("HUNTER_DATA_DIR", "/tmp/hunter-data")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/tmp/hunter-data", cfg.DataDir)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("HUNTER_COLLECT_HOURS_BACK", "48")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 48, cfg.Collect.HoursBack)
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{DataDir: "/srv/hunter"}

	assert.Equal(t, "/srv/hunter/raw", cfg.RawDir())
	assert.Equal(t, "/srv/hunter/processed", cfg.ProcessedDir())
	assert.Equal(t, "/srv/hunter/digests", cfg.DigestDir())
	assert.Equal(t, "/srv/hunter/backtests", cfg.BacktestDir())
	assert.Equal(t, "/srv/hunter/seen_ids.json", cfg.RegistryPath())
	assert.Equal(t, "/srv/hunter/last_processing_run.txt", cfg.WatermarkPath())

	assert.Equal(t, "/srv/hunter/usage_stats.db", cfg.StorePath())
	cfg.Store.Path = "/elsewhere/usage.db"
	assert.Equal(t, "/elsewhere/usage.db", cfg.StorePath())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
