package scorer

import (
	"math"
	"strings"

	"github.com/saashunter/hunter/internal/model"
)

// Score computes the deterministic rule-based quality score for an
// opportunity: six additive signal groups, each internally capped, summed,
// then clamped to [0, 100].
func Score(o *model.Opportunity, cfg Config) int {
	text := o.CombinedText()
	total := 0.0

	total += sourceCredibility(o, cfg)
	total += engagement(o, cfg.Engagement)
	total += phraseGroups(text, cfg.PainSignals)
	total += specificity(o.Body, cfg.Specificity)
	total += phraseGroups(text, cfg.CompetitionSignals)
	total += phraseGroups(text, cfg.MarketSignals)

	score := int(math.Round(total))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func sourceCredibility(o *model.Opportunity, cfg Config) float64 {
	switch {
	case o.IsGitHub():
		return cfg.SourceWeights["github"]
	case o.IsHackerNews():
		return cfg.SourceWeights["hackernews"]
	case o.IsReddit():
		if w, ok := cfg.SourceWeights[o.Source]; ok {
			return w
		}
		return cfg.SourceWeights["reddit:default"]
	default:
		return 0
	}
}

func engagement(o *model.Opportunity, w EngagementWeights) float64 {
	reactions := o.Engagement["reactions"]
	comments := o.Engagement["comments"]
	points := o.Engagement["score"]

	return math.Min(reactions*w.ReactionMultiplier, w.ReactionMax) +
		math.Min(comments, w.CommentsMax) +
		math.Min(points, w.ScoreMax)
}

// phraseGroups awards each matching group's flat score. Groups are not
// mutually exclusive; presence is flag-based, occurrences are not counted.
func phraseGroups(text string, groups map[string]PhraseGroup) float64 {
	total := 0.0
	for _, g := range groups {
		for _, phrase := range g.Phrases {
			if strings.Contains(text, phrase) {
				total += g.Score
				break
			}
		}
	}
	return total
}

func specificity(body string, w SpecificityWeights) float64 {
	total := 0.0
	switch {
	case len(body) > w.LongBodyThreshold:
		total += w.LongBodyScore
	case len(body) > w.MediumBodyThreshold:
		total += w.MediumBodyScore
	}
	if strings.ContainsAny(body, "0123456789") {
		total += w.ContainsNumbersScore
	}
	return total
}
