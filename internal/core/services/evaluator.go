package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/finarena/finarena/internal/core/domain"
	"github.com/finarena/finarena/internal/core/ports"
)

// ExecutorChannel dispatches one question to the executor agent and returns
// its final answer.
type ExecutorChannel interface {
	Ask(ctx context.Context, question, toolEndpoint string) (string, error)
}

// DocumentScratch is the per-run document state cleared on reset.
type DocumentScratch interface {
	Clear()
}

// Evaluator is the assessor's per-question engine: it dispatches a question
// to the executor with the tool endpoint, waits with a wall-clock timeout,
// and judges the returned answer.
type Evaluator struct {
	logger          *slog.Logger
	questions       []domain.Question
	judge           *Judge
	executor        ExecutorChannel
	toolEndpoint    string
	questionTimeout time.Duration
	safetyLLM       ports.LLMClient
	scratch         DocumentScratch
}

// EvaluatorOptions wires the evaluator's collaborators.
type EvaluatorOptions struct {
	Questions       []domain.Question
	Judge           *Judge
	Executor        ExecutorChannel
	ToolEndpoint    string
	QuestionTimeout time.Duration
	SafetyLLM       ports.LLMClient // nil disables the safety screen
	Scratch         DocumentScratch
}

func NewEvaluator(logger *slog.Logger, opts EvaluatorOptions) *Evaluator {
	if opts.QuestionTimeout <= 0 {
		opts.QuestionTimeout = 120 * time.Second
	}
	return &Evaluator{
		logger:          logger,
		questions:       opts.Questions,
		judge:           opts.Judge,
		executor:        opts.Executor,
		toolEndpoint:    opts.ToolEndpoint,
		questionTimeout: opts.QuestionTimeout,
		safetyLLM:       opts.SafetyLLM,
		scratch:         opts.Scratch,
	}
}

// DatasetSize reports how many questions are loaded.
func (e *Evaluator) DatasetSize() int { return len(e.questions) }

// EvaluateTask runs one question end to end and always returns a record:
// dispatch failures and timeouts come back as failed records, never errors.
func (e *Evaluator) EvaluateTask(ctx context.Context, index int) (domain.EvaluationRecord, error) {
	if index < 0 || index >= len(e.questions) {
		return domain.EvaluationRecord{}, fmt.Errorf("task index %d out of range [0,%d)", index, len(e.questions))
	}
	q := e.questions[index]
	record := domain.EvaluationRecord{
		TaskIndex: q.Index,
		Question:  q.Text,
		Expected:  q.Expected,
	}

	e.logger.Info("evaluating task", "task_index", q.Index)

	if e.safetyLLM != nil {
		if safe, reason := e.screenQuestion(ctx, q.Text); !safe {
			record.MatchType = domain.MatchFailure
			record.Reasoning = "question rejected by safety screen: " + reason
			return record, nil
		}
	}

	askCtx, cancel := context.WithTimeout(ctx, e.questionTimeout)
	defer cancel()

	answer, err := e.executor.Ask(askCtx, q.Text, e.toolEndpoint)
	if err != nil {
		e.logger.Warn("question dispatch failed", "task_index", q.Index, "error", err)
		record.MatchType = domain.MatchFailure
		record.Reasoning = fmt.Sprintf("dispatch failed: %v", err)
		return record, nil
	}
	record.Predicted = answer

	verdict := e.judge.Score(ctx, q.Text, q.Expected, answer)
	record.Correct = verdict.Correct
	record.Score = verdict.Score
	record.MatchType = verdict.MatchType
	record.Reasoning = verdict.Reasoning

	e.logger.Info("task judged",
		"task_index", q.Index,
		"correct", record.Correct,
		"score", record.Score,
		"match_type", record.MatchType)
	return record, nil
}

// Reset clears per-run document state. Questions and tools are fixed at
// start and survive resets.
func (e *Evaluator) Reset() {
	if e.scratch != nil {
		e.scratch.Clear()
	}
	e.logger.Info("evaluator reset")
}

// screenQuestion classifies a question as safe or not before dispatch.
// Screen failures are treated as safe: the screen is advisory.
func (e *Evaluator) screenQuestion(ctx context.Context, question string) (bool, string) {
	prompt := fmt.Sprintf(`Classify this finance question as SAFE or UNSAFE. UNSAFE means it solicits non-public information, trading signals, or personal data.

Question: %q

Respond with JSON only, on one line: {"safe": true/false, "reason": "<one sentence>"}`, question)

	response, err := e.safetyLLM.Complete(ctx, prompt, 128)
	if err != nil {
		e.logger.Warn("safety screen failed, allowing question", "error", err)
		return true, ""
	}

	raw := extractJSONObject(response)
	var parsed struct {
		Safe   bool   `json:"safe"`
		Reason string `json:"reason"`
	}
	if raw == "" || json.Unmarshal([]byte(raw), &parsed) != nil {
		e.logger.Warn("safety screen returned unparseable verdict", "response", truncateForPrompt(response, 200))
		return true, ""
	}
	return parsed.Safe, strings.TrimSpace(parsed.Reason)
}
