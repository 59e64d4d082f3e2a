package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finarena/finarena/internal/core/domain"
)

// stubLLM returns canned responses in order, or an error.
type stubLLM struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (s *stubLLM) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("stub exhausted")
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestJudgeExactMatchIsDeterministic(t *testing.T) {
	llm := &stubLLM{}
	judge := NewJudge(testLogger(), llm, 0.8)

	for i := 0; i < 3; i++ {
		verdict := judge.Score(context.Background(), "revenue?", "150 Million ", "150   million.")
		assert.True(t, verdict.Correct)
		assert.Equal(t, 1.0, verdict.Score)
		assert.Equal(t, domain.MatchExact, verdict.MatchType)
	}
	assert.Zero(t, llm.calls, "exact match must not call the LLM")
}

func TestJudgeSemanticFallbackAboveThreshold(t *testing.T) {
	llm := &stubLLM{responses: []string{`{"score": 0.9, "reasoning": "150M equals 150 million"}`}}
	judge := NewJudge(testLogger(), llm, 0.8)

	verdict := judge.Score(context.Background(), "What was the revenue?", "150 million", "150M")
	assert.True(t, verdict.Correct)
	assert.InDelta(t, 0.9, verdict.Score, 1e-9)
	assert.Equal(t, domain.MatchSemantic, verdict.MatchType)
	assert.Equal(t, "150M equals 150 million", verdict.Reasoning)
}

func TestJudgeSemanticBelowThreshold(t *testing.T) {
	llm := &stubLLM{responses: []string{`{"score": 0.4, "reasoning": "different quantities"}`}}
	judge := NewJudge(testLogger(), llm, 0.8)

	verdict := judge.Score(context.Background(), "revenue?", "150 million", "15 million")
	assert.False(t, verdict.Correct)
	assert.Equal(t, domain.MatchSemantic, verdict.MatchType)
}

func TestJudgeHandlesVerdictWrappedInText(t *testing.T) {
	llm := &stubLLM{responses: []string{`Sure, here is my grading: {"score": 0.85, "reasoning": "equivalent"} hope that helps`}}
	judge := NewJudge(testLogger(), llm, 0.8)

	verdict := judge.Score(context.Background(), "q", "a", "b")
	assert.True(t, verdict.Correct)
	assert.InDelta(t, 0.85, verdict.Score, 1e-9)
}

func TestJudgeFailureScoresZero(t *testing.T) {
	llm := &stubLLM{err: fmt.Errorf("backend down")}
	judge := NewJudge(testLogger(), llm, 0.8)

	verdict := judge.Score(context.Background(), "q", "expected", "predicted")
	assert.False(t, verdict.Correct)
	assert.Zero(t, verdict.Score)
	assert.Equal(t, domain.MatchFailure, verdict.MatchType)
	assert.Contains(t, verdict.Reasoning, "judge failed")
}

func TestJudgeWithoutLLMIsExactOnly(t *testing.T) {
	judge := NewJudge(testLogger(), nil, 0.8)

	verdict := judge.Score(context.Background(), "q", "alpha", "alpha")
	assert.True(t, verdict.Correct)

	verdict = judge.Score(context.Background(), "q", "alpha", "beta")
	assert.False(t, verdict.Correct)
	assert.Equal(t, domain.MatchExact, verdict.MatchType)
}

func TestNormalizeAnswer(t *testing.T) {
	assert.Equal(t, "150 million", normalizeAnswer("  150   Million. "))
	assert.Equal(t, "n/a", normalizeAnswer("N/A"))
}
