package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finarena/finarena/internal/core/domain"
	"github.com/finarena/finarena/internal/core/ports"
)

// Verdict is the judge's decision for one predicted answer.
type Verdict struct {
	Correct   bool
	Score     float64
	MatchType domain.MatchType
	Reasoning string
}

// Judge scores predicted answers: deterministic normalized exact match
// first, then a semantic LLM judgment at a score threshold. With no LLM
// configured it degrades to exact-only.
type Judge struct {
	logger    *slog.Logger
	llm       ports.LLMClient
	threshold float64
}

func NewJudge(logger *slog.Logger, llm ports.LLMClient, threshold float64) *Judge {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}
	return &Judge{logger: logger, llm: llm, threshold: threshold}
}

// Score judges predicted against expected. Identical inputs always yield
// identical verdicts: the exact path is pure, and the semantic path only
// runs when the exact path fails.
func (j *Judge) Score(ctx context.Context, question, expected, predicted string) Verdict {
	if normalizeAnswer(expected) == normalizeAnswer(predicted) {
		return Verdict{
			Correct:   true,
			Score:     1,
			MatchType: domain.MatchExact,
			Reasoning: "normalized exact match",
		}
	}

	if j.llm == nil {
		return Verdict{
			Correct:   false,
			Score:     0,
			MatchType: domain.MatchExact,
			Reasoning: "no exact match; semantic judge not configured",
		}
	}

	score, reasoning, err := j.semanticScore(ctx, question, expected, predicted)
	if err != nil {
		j.logger.Warn("semantic judge failed", "error", err)
		return Verdict{
			Correct:   false,
			Score:     0,
			MatchType: domain.MatchFailure,
			Reasoning: fmt.Sprintf("judge failed: %v", err),
		}
	}

	return Verdict{
		Correct:   score >= j.threshold,
		Score:     score,
		MatchType: domain.MatchSemantic,
		Reasoning: reasoning,
	}
}

func (j *Judge) semanticScore(ctx context.Context, question, expected, predicted string) (float64, string, error) {
	prompt := fmt.Sprintf(`You are grading an answer to a financial question. Compare the predicted answer against the expected answer for semantic equivalence: same quantity, entity or fact, allowing different formatting, units notation ("150 million" vs "150M") and surrounding words.

Question: %s
Expected answer: %s
Predicted answer: %s

Respond with JSON only, on one line:
{"score": <number between 0.0 and 1.0>, "reasoning": "<one sentence>"}`,
		question, expected, predicted)

	response, err := j.llm.Complete(ctx, prompt, 256)
	if err != nil {
		return 0, "", fmt.Errorf("judge llm: %w", err)
	}

	raw := extractJSONObject(response)
	if raw == "" {
		return 0, "", fmt.Errorf("judge returned no JSON: %q", truncateForPrompt(response, 200))
	}

	var parsed struct {
		Score     float64 `json:"score"`
		Reasoning string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return 0, "", fmt.Errorf("parse judge verdict: %w", err)
	}
	if parsed.Score < 0 {
		parsed.Score = 0
	}
	if parsed.Score > 1 {
		parsed.Score = 1
	}
	return parsed.Score, parsed.Reasoning, nil
}

// normalizeAnswer lowercases, collapses whitespace and strips a trailing
// period, the same normalization applied to both sides of the exact match.
func normalizeAnswer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSuffix(s, ".")
}

// extractJSONObject finds the first balanced JSON object in a response.
func extractJSONObject(response string) string {
	start := strings.Index(response, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inStr {
			escaped = true
			continue
		}
		if ch == '"' {
			inStr = !inStr
			continue
		}
		if inStr {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
