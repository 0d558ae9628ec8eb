package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/saashunter/hunter/internal/config"
	"github.com/saashunter/hunter/internal/model"
)

// EnhancementStatus distinguishes "base score used because no enhancement
// was attempted" from "attempted and failed" from "applied".
type EnhancementStatus string

const (
	EnhancementSkipped EnhancementStatus = "skipped"
	EnhancementFailed  EnhancementStatus = "failed"
	EnhancementApplied EnhancementStatus = "applied"
)

// Enhancement is the outcome of the optional model-based score adjustment.
// FinalScore always holds a usable score; Analysis is set only when the
// adjustment was applied.
type Enhancement struct {
	Status     EnhancementStatus
	FinalScore int
	Analysis   *model.LLMAnalysis
}

// Enhancer blends a model-derived judgment into the rule-based score for
// candidates above the promotion threshold. It never fails the pipeline:
// every error path degrades to the base score.
type Enhancer struct {
	client  *openai.Client
	llm     config.LLMConfig
	weights LLMWeights
}

// NewEnhancer builds an Enhancer against an OpenAI-compatible endpoint.
// Returns nil when no API key is configured; a nil Enhancer skips every
// candidate.
func NewEnhancer(llm config.LLMConfig, weights LLMWeights) *Enhancer {
	if llm.APIKey == "" {
		return nil
	}
	cc := openai.DefaultConfig(llm.APIKey)
	if llm.BaseURL != "" {
		cc.BaseURL = llm.BaseURL
	}
	return &Enhancer{
		client:  openai.NewClientWithConfig(cc),
		llm:     llm,
		weights: weights,
	}
}

// Enhance returns the final score for an opportunity given its rule-based
// base score. Candidates at or below the promotion threshold are skipped
// to bound cost.
func (e *Enhancer) Enhance(ctx context.Context, o *model.Opportunity, base int) Enhancement {
	if e == nil || base <= e.promotionThreshold() {
		return Enhancement{Status: EnhancementSkipped, FinalScore: base}
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.llm.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildScoringPrompt(o, base)},
		},
		MaxTokens:   e.llm.MaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		zap.L().Warn("llm enhancement call failed, using base score",
			zap.String("source", o.Source), zap.Error(err))
		return Enhancement{Status: EnhancementFailed, FinalScore: base}
	}
	if len(resp.Choices) == 0 {
		zap.L().Warn("llm enhancement returned no choices, using base score",
			zap.String("source", o.Source))
		return Enhancement{Status: EnhancementFailed, FinalScore: base}
	}

	parsed, ok := parseLLMResponse(resp.Choices[0].Message.Content)
	if !ok {
		zap.L().Warn("llm enhancement response unparseable, using base score",
			zap.String("source", o.Source))
		return Enhancement{Status: EnhancementFailed, FinalScore: base}
	}

	final := blendScores(base, parsed.LLMScore, e.weights)
	cost := float64(resp.Usage.PromptTokens)/1_000_000*e.llm.InputCost +
		float64(resp.Usage.CompletionTokens)/1_000_000*e.llm.OutputCost

	return Enhancement{
		Status:     EnhancementApplied,
		FinalScore: final,
		Analysis: &model.LLMAnalysis{
			LLMScore:   parsed.LLMScore,
			BaseScore:  base,
			FinalScore: final,
			Reasoning:  parsed.Reasoning,
			Signals:    parsed.Signals,
			Model:      e.llm.Model,
			Tokens:     resp.Usage.TotalTokens,
			CostUSD:    math.Round(cost*1e6) / 1e6,
		},
	}
}

func (e *Enhancer) promotionThreshold() int {
	if e.weights.PromotionThreshold > 0 {
		return e.weights.PromotionThreshold
	}
	return 45
}

func blendScores(base, llm int, w LLMWeights) int {
	bw, lw := w.BaseWeight, w.LLMWeight
	if bw <= 0 && lw <= 0 {
		bw, lw = 0.6, 0.4
	}
	return int(math.Round(float64(base)*bw + float64(llm)*lw))
}

type llmResponse struct {
	LLMScore  int      `json:"llm_score"`
	Reasoning string   `json:"reasoning"`
	Signals   []string `json:"signals"`
}

// parseLLMResponse decodes the fixed JSON shape the prompt requests,
// tolerating markdown code fences around it. Malformed or out-of-range
// scores are rejected so the caller falls back to the base score.
func parseLLMResponse(text string) (llmResponse, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var out llmResponse
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return llmResponse{}, false
	}
	if out.LLMScore < 0 || out.LLMScore > 100 {
		return llmResponse{}, false
	}
	return out, true
}

func buildScoringPrompt(o *model.Opportunity, base int) string {
	body := o.Body
	if len(body) > 400 {
		body = body[:400]
	}

	return fmt.Sprintf(`Analyze this SaaS opportunity and provide an enhanced score adjustment.

**Opportunity:**
Title: %s
Source: %s
Engagement: %v

**Content Preview:**
%s

**Base Score:** %d/100 (from rule-based system)

**Your Task:**
1. Assess the QUALITY of this opportunity for a SaaS builder:
   - Is the pain point clear and specific?
   - Does it indicate willingness to pay?
   - Is there a viable business opportunity?
   - How urgent/frustrated does the poster seem?
   - How could this problem be solved with a SaaS?

2. Provide:
   - LLM_SCORE: 0-100 (your assessment)
   - REASONING: 1-2 sentences explaining your score
   - SIGNALS: List 2-3 key positive or negative signals you detected

**Output Format (JSON):**
{
  "llm_score": <0-100>,
  "reasoning": "<brief explanation>",
  "signals": ["signal1", "signal2", "signal3"]
}

Be critical - most opportunities are NOT worth pursuing. Only score highly if there's clear pain + willingness to pay + specificity.`,
		o.Title, o.Source, o.Engagement, body, base)
}
