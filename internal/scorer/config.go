// Package scorer computes the 0-100 quality score for collected
// opportunities from configurable weighted signals, with an optional
// model-based adjustment for promising candidates.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// PhraseGroup awards a flat score when any of its phrases appears in the
// combined title+body text.
type PhraseGroup struct {
	Phrases []string `json:"phrases" mapstructure:"phrases"`
	Score   float64  `json:"score" mapstructure:"score"`
}

// EngagementWeights caps and scales the per-source engagement signals.
// Each sub-signal is capped independently before summing.
type EngagementWeights struct {
	ReactionMultiplier float64 `json:"github_reaction_multiplier" mapstructure:"github_reaction_multiplier"`
	ReactionMax        float64 `json:"github_reaction_max" mapstructure:"github_reaction_max"`
	CommentsMax        float64 `json:"comments_max" mapstructure:"comments_max"`
	ScoreMax           float64 `json:"hackernews_score_max" mapstructure:"hackernews_score_max"`
}

// SpecificityWeights awards points for long, concrete bodies.
type SpecificityWeights struct {
	LongBodyThreshold    int     `json:"long_body_threshold" mapstructure:"long_body_threshold"`
	LongBodyScore        float64 `json:"long_body_score" mapstructure:"long_body_score"`
	MediumBodyThreshold  int     `json:"medium_body_threshold" mapstructure:"medium_body_threshold"`
	MediumBodyScore      float64 `json:"medium_body_score" mapstructure:"medium_body_score"`
	ContainsNumbersScore float64 `json:"contains_numbers_score" mapstructure:"contains_numbers_score"`
}

// ScoreBuckets holds the reporting thresholds for score tiers.
type ScoreBuckets struct {
	TopTier        int `json:"top_tier" mapstructure:"top_tier"`
	HighQuality    int `json:"high_quality" mapstructure:"high_quality"`
	WorthExploring int `json:"worth_exploring" mapstructure:"worth_exploring"`
}

// LLMWeights configures when and how the model adjustment blends with the
// rule-based score.
type LLMWeights struct {
	PromotionThreshold int     `json:"promotion_threshold" mapstructure:"promotion_threshold"`
	BaseWeight         float64 `json:"base_weight" mapstructure:"base_weight"`
	LLMWeight          float64 `json:"llm_weight" mapstructure:"llm_weight"`
}

// Config is the externally loaded scoring document. Every threshold,
// weight, and phrase list lives here so backtests can swap weight sets
// without code changes.
type Config struct {
	Version            string                 `json:"version" mapstructure:"version"`
	SourceWeights      map[string]float64     `json:"source_weights" mapstructure:"source_weights"`
	Engagement         EngagementWeights      `json:"engagement_weights" mapstructure:"engagement_weights"`
	PainSignals        map[string]PhraseGroup `json:"pain_point_signals" mapstructure:"pain_point_signals"`
	Specificity        SpecificityWeights     `json:"specificity_scoring" mapstructure:"specificity_scoring"`
	CompetitionSignals map[string]PhraseGroup `json:"competition_signals" mapstructure:"competition_signals"`
	MarketSignals      map[string]PhraseGroup `json:"market_signals" mapstructure:"market_signals"`
	Buckets            ScoreBuckets           `json:"score_buckets" mapstructure:"score_buckets"`
	LLM                LLMWeights             `json:"llm_config" mapstructure:"llm_config"`
}

// DefaultConfig returns the stock scoring configuration.
func DefaultConfig() Config {
	return Config{
		Version: "1.0",
		SourceWeights: map[string]float64{
			"github":               20,
			"hackernews":           15,
			"reddit:smallbusiness": 12,
			"reddit:sysadmin":      12,
			"reddit:default":       8,
		},
		Engagement: EngagementWeights{
			ReactionMultiplier: 2,
			ReactionMax:        15,
			CommentsMax:        10,
			ScoreMax:           10,
		},
		PainSignals: map[string]PhraseGroup{
			"pain_clarity": {
				Phrases: []string{"sick of", "frustrated", "hate", "tired of"},
				Score:   10,
			},
			"willingness_to_pay": {
				Phrases: []string{"would pay", "expensive", "pricing", "cost", "price"},
				Score:   10,
			},
		},
		Specificity: SpecificityWeights{
			LongBodyThreshold:    300,
			LongBodyScore:        10,
			MediumBodyThreshold:  150,
			MediumBodyScore:      5,
			ContainsNumbersScore: 5,
		},
		CompetitionSignals: map[string]PhraseGroup{
			"alternative_seeking": {
				Phrases: []string{"alternative to", "better than", "why is there no"},
				Score:   8,
			},
		},
		MarketSignals: map[string]PhraseGroup{
			"niche_fit": {
				Phrases: []string{"b2b", "saas", "api", "dev tool", "developer", "automation"},
				Score:   10,
			},
		},
		Buckets: ScoreBuckets{
			TopTier:        80,
			HighQuality:    60,
			WorthExploring: 40,
		},
		LLM: LLMWeights{
			PromotionThreshold: 45,
			BaseWeight:         0.6,
			LLMWeight:          0.4,
		},
	}
}

// LoadConfig reads a scoring configuration file (YAML or JSON). An empty
// path returns the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, eris.Wrapf(err, "scorer: read config %s", path)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, eris.Wrapf(err, "scorer: unmarshal config %s", path)
	}

	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig checks that a scoring configuration is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string

	for name, w := range c.SourceWeights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("source_weights.%s must be >= 0", name))
		}
	}
	if _, ok := c.SourceWeights["reddit:default"]; !ok {
		errs = append(errs, "source_weights must include reddit:default")
	}

	if c.Engagement.ReactionMultiplier < 0 {
		errs = append(errs, "github_reaction_multiplier must be >= 0")
	}
	for name, cap := range map[string]float64{
		"github_reaction_max":  c.Engagement.ReactionMax,
		"comments_max":         c.Engagement.CommentsMax,
		"hackernews_score_max": c.Engagement.ScoreMax,
	} {
		if cap < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	for group, pg := range c.PainSignals {
		if pg.Score < 0 {
			errs = append(errs, fmt.Sprintf("pain_point_signals.%s score must be >= 0", group))
		}
	}
	for group, pg := range c.CompetitionSignals {
		if pg.Score < 0 {
			errs = append(errs, fmt.Sprintf("competition_signals.%s score must be >= 0", group))
		}
	}
	for group, pg := range c.MarketSignals {
		if pg.Score < 0 {
			errs = append(errs, fmt.Sprintf("market_signals.%s score must be >= 0", group))
		}
	}

	if c.Specificity.MediumBodyThreshold > c.Specificity.LongBodyThreshold {
		errs = append(errs, "medium_body_threshold must be <= long_body_threshold")
	}

	if c.LLM.PromotionThreshold < 0 || c.LLM.PromotionThreshold > 100 {
		errs = append(errs, "llm_config.promotion_threshold must be between 0 and 100")
	}
	if c.LLM.BaseWeight < 0 || c.LLM.LLMWeight < 0 {
		errs = append(errs, "llm_config weights must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Bucket returns the reporting tier name for a score.
func (c Config) Bucket(score int) string {
	switch {
	case score >= c.Buckets.TopTier:
		return "top_tier"
	case score >= c.Buckets.HighQuality:
		return "high_quality"
	case score >= c.Buckets.WorthExploring:
		return "worth_exploring"
	default:
		return "low_signal"
	}
}
