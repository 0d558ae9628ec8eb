package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DataDir string        `yaml:"data_dir" mapstructure:"data_dir"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Reddit  RedditConfig  `yaml:"reddit" mapstructure:"reddit"`
	HN      HNConfig      `yaml:"hackernews" mapstructure:"hackernews"`
	GitHub  GitHubConfig  `yaml:"github" mapstructure:"github"`
	Collect CollectConfig `yaml:"collect" mapstructure:"collect"`
	Scoring ScoringFile   `yaml:"scoring" mapstructure:"scoring"`
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm"`
	Dedupe  DedupeConfig  `yaml:"dedupe" mapstructure:"dedupe"`
	Digest  DigestConfig  `yaml:"digest" mapstructure:"digest"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// HTTPConfig configures the shared HTTP fetcher.
type HTTPConfig struct {
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestDelay float64 `yaml:"request_delay_secs" mapstructure:"request_delay_secs"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// RedditConfig configures the Reddit RSS collector.
type RedditConfig struct {
	Subreddits      []string `yaml:"subreddits" mapstructure:"subreddits"`
	PainKeywords    []string `yaml:"pain_keywords" mapstructure:"pain_keywords"`
	PromoIndicators []string `yaml:"promo_indicators" mapstructure:"promo_indicators"`
	FeedLimit       int      `yaml:"feed_limit" mapstructure:"feed_limit"`
}

// HNConfig configures the Hacker News collector.
type HNConfig struct {
	BaseURL          string   `yaml:"base_url" mapstructure:"base_url"`
	AskKeywords      []string `yaml:"ask_keywords" mapstructure:"ask_keywords"`
	PromoIndicators  []string `yaml:"promo_indicators" mapstructure:"promo_indicators"`
	CommentThreshold int      `yaml:"comment_threshold" mapstructure:"comment_threshold"`
	PerPage          int      `yaml:"per_page" mapstructure:"per_page"`
}

// GitHubConfig configures the GitHub issue collector.
type GitHubConfig struct {
	Token         string   `yaml:"token" mapstructure:"token"`
	BaseURL       string   `yaml:"base_url" mapstructure:"base_url"`
	Repositories  []string `yaml:"repositories" mapstructure:"repositories"`
	FeatureLabels []string `yaml:"feature_labels" mapstructure:"feature_labels"`
	MinReactions  int      `yaml:"min_reactions" mapstructure:"min_reactions"`
	PerPage       int      `yaml:"per_page" mapstructure:"per_page"`
}

// CollectConfig holds collection-wide settings.
type CollectConfig struct {
	HoursBack       int `yaml:"hours_back" mapstructure:"hours_back"`
	GitHubHoursBack int `yaml:"github_hours_back" mapstructure:"github_hours_back"`
	BodyPreviewLen  int `yaml:"body_preview_len" mapstructure:"body_preview_len"`
}

// ScoringFile points at the external scoring configuration document.
type ScoringFile struct {
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`
}

// LLMConfig configures the optional model-based score enhancement.
type LLMConfig struct {
	APIKey     string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	Model      string  `yaml:"model" mapstructure:"model"`
	MaxTokens  int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	InputCost  float64 `yaml:"input_cost_per_mtok" mapstructure:"input_cost_per_mtok"`
	OutputCost float64 `yaml:"output_cost_per_mtok" mapstructure:"output_cost_per_mtok"`
}

// DedupeConfig configures within-batch fuzzy deduplication.
type DedupeConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// DigestConfig configures digest generation.
type DigestConfig struct {
	TopN      int `yaml:"top_n" mapstructure:"top_n"`
	HoursBack int `yaml:"hours_back" mapstructure:"hours_back"`
}

// StoreConfig configures the local job-metrics database.
type StoreConfig struct {
	Path          string  `yaml:"path" mapstructure:"path"`
	MonthlyBudget float64 `yaml:"monthly_budget_usd" mapstructure:"monthly_budget_usd"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RawDir returns the directory collectors write raw batch files to.
func (c *Config) RawDir() string { return filepath.Join(c.DataDir, "raw") }

// ProcessedDir returns the directory holding daily processed logs.
func (c *Config) ProcessedDir() string { return filepath.Join(c.DataDir, "processed") }

// DigestDir returns the directory digest files are written to.
func (c *Config) DigestDir() string { return filepath.Join(c.DataDir, "digests") }

// BacktestDir returns the directory backtest outputs are written to.
func (c *Config) BacktestDir() string { return filepath.Join(c.DataDir, "backtests") }

// RegistryPath returns the duplicate-registry file path.
func (c *Config) RegistryPath() string { return filepath.Join(c.DataDir, "seen_ids.json") }

// WatermarkPath returns the last-processing-run watermark file path.
func (c *Config) WatermarkPath() string { return filepath.Join(c.DataDir, "last_processing_run.txt") }

// StorePath returns the job-metrics database path, defaulting under DataDir.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.DataDir, "usage_stats.db")
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data_dir", "data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("http.user_agent", "hunter-cli/1.0 (pain-point monitor)")
	v.SetDefault("http.timeout_secs", 15)
	v.SetDefault("http.request_delay_secs", 1.0)
	v.SetDefault("http.max_retries", 2)

	v.SetDefault("collect.hours_back", 6)
	v.SetDefault("collect.github_hours_back", 0) // 0 = fall back to collect.hours_back
	v.SetDefault("collect.body_preview_len", 500)

	v.SetDefault("reddit.feed_limit", 100)
	v.SetDefault("reddit.subreddits", []string{
		"SaaS", "Entrepreneur", "smallbusiness", "sysadmin",
		"startups", "freelance", "sales", "marketing", "webdev",
		"productivity", "ecommerce", "nocode", "lowcode", "saasmarketing",
	})
	v.SetDefault("reddit.pain_keywords", []string{
		"i wish there was", "i need a", "i'm looking for", "i hate", "i can't find",
		"does anyone know", "is there a tool", "anyone know a", "does anyone have",
		"help me find", "recommend a tool",
		"sick of", "tired of", "frustrated with", "hate using",
		"alternative to", "better than", "why is there no",
		"looking for a tool", "looking for a saas", "need a solution",
		"need something that", "solution for",
	})
	v.SetDefault("reddit.promo_indicators", []string{
		"check out my", "i built", "i created", "i made a", "built a",
		"launching my", "just released", "just launched",
		"feedback on my", "looking for feedback", "product feedback",
		"introducing", "try my", "use code", "discount code",
		"lifetime deal", "early access", "beta testers", "beta users",
	})

	v.SetDefault("hackernews.base_url", "https://hn.algolia.com/api/v1")
	v.SetDefault("hackernews.comment_threshold", 15)
	v.SetDefault("hackernews.per_page", 100)
	v.SetDefault("hackernews.ask_keywords", []string{
		"how do you currently", "what do you use for", "best way to",
		"struggling to find", "frustrated that", "recommend", "alternative to",
		"better than", "looking for", "need something", "frustrated with",
		"wish there was", "does anyone use", "solution for",
		"why is there no", "how do you handle",
	})
	v.SetDefault("hackernews.promo_indicators", []string{
		"i'm building", "i built", "i created", "i'm working on", "i made",
		"would you use", "my question is", "feedback on", "thoughts on my",
		"check out", "try out", "just launched", "just released",
		"show hn:", "open source", "available at",
	})

	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.min_reactions", 2)
	v.SetDefault("github.per_page", 100)
	v.SetDefault("github.repositories", []string{
		"supabase/supabase", "posthog/posthog", "n8n-io/n8n", "plausible/analytics",
		"langchain-ai/langchain", "excalidraw/excalidraw", "trpc/trpc",
		"formbricks/formbricks", "documenso/documenso", "nocodb/nocodb", "directus/directus",
	})
	v.SetDefault("github.feature_labels", []string{
		"enhancement", "feature", "feature-request", "feature request", "suggestion",
	})

	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.model", "anthropic/claude-3-haiku")
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.input_cost_per_mtok", 0.25)
	v.SetDefault("llm.output_cost_per_mtok", 1.25)

	v.SetDefault("dedupe.similarity_threshold", 85)

	v.SetDefault("digest.top_n", 5)
	v.SetDefault("digest.hours_back", 24)

	v.SetDefault("store.monthly_budget_usd", 15.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Collect.GitHubHoursBack == 0 {
		cfg.Collect.GitHubHoursBack = cfg.Collect.HoursBack
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
