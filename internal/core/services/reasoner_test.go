package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finarena/finarena/internal/core/domain"
)

type stubToolChannel struct {
	descriptors []domain.ToolDescriptor
	listErr     error
	invocations []domain.ToolCall
	result      domain.ToolResult
	invokeErr   error
}

func (s *stubToolChannel) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	return s.descriptors, s.listErr
}

func (s *stubToolChannel) InvokeTool(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error) {
	s.invocations = append(s.invocations, call)
	if s.invokeErr != nil {
		return domain.ToolResult{}, s.invokeErr
	}
	return s.result, nil
}

func searchDescriptor() domain.ToolDescriptor {
	schema := openapi3.NewObjectSchema().
		WithProperty("query", openapi3.NewStringSchema())
	schema.Required = []string{"query"}
	return domain.ToolDescriptor{Name: "edgar_search", Description: "search filings", Parameters: schema}
}

func TestReasonerIterationBudget(t *testing.T) {
	// The model never answers; the loop must terminate at the budget and
	// still force a final answer.
	llm := &stubLLM{responses: []string{
		"Thought: keep digging\nAction: edgar_search\nAction Input: {\"query\": \"more data\"}",
	}}
	tools := &stubToolChannel{
		descriptors: []domain.ToolDescriptor{searchDescriptor()},
		result:      domain.ToolResult{Status: domain.ToolOK, Payload: map[string]any{"total_found": 0}},
	}

	r := NewReasoner(testLogger(), llm, 3, nil)
	answer, err := r.Answer(context.Background(), "What was NVIDIA's revenue?", tools)
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
	assert.Len(t, tools.invocations, 3)
	// 3 reasoning calls plus the forced final answer.
	assert.Equal(t, 4, llm.calls)
}

func TestReasonerForcedAnswerRestatesQuestion(t *testing.T) {
	llm := &stubLLM{responses: []string{
		"Thought: again\nAction: edgar_search\nAction Input: {\"query\": \"x\"}",
	}}
	tools := &stubToolChannel{
		descriptors: []domain.ToolDescriptor{searchDescriptor()},
		result:      domain.ToolResult{Status: domain.ToolOK, Payload: "data"},
	}

	r := NewReasoner(testLogger(), llm, 2, nil)
	_, err := r.Answer(context.Background(), "What was Apple's operating margin in 2024?", tools)
	require.NoError(t, err)

	finalPrompt := llm.prompts[len(llm.prompts)-1]
	assert.Contains(t, finalPrompt, "What was Apple's operating margin in 2024?")
}

func TestReasonerRecoversFromToolErrors(t *testing.T) {
	llm := &stubLLM{responses: []string{
		"Thought: try the search\nAction: edgar_search\nAction Input: {\"query\": \"revenue\"}",
		"Thought: that failed, answering from knowledge\nFinal Answer: 150 million",
	}}
	tools := &stubToolChannel{
		descriptors: []domain.ToolDescriptor{searchDescriptor()},
		result:      domain.ToolResult{Status: domain.ToolError, ErrorDetail: "unknown tool: foo"},
	}

	r := NewReasoner(testLogger(), llm, 6, nil)
	answer, err := r.Answer(context.Background(), "revenue?", tools)
	require.NoError(t, err)
	assert.Equal(t, "150 million", answer)
	assert.Len(t, tools.invocations, 1)

	// The error must have been surfaced to the model as an observation.
	assert.Contains(t, llm.prompts[1], "Tool error: unknown tool: foo")
}

func TestReasonerDiscoveryFailureFallsBackToDirectAnswer(t *testing.T) {
	llm := &stubLLM{responses: []string{"Roughly 150 million."}}
	tools := &stubToolChannel{listErr: fmt.Errorf("connection refused")}

	r := NewReasoner(testLogger(), llm, 6, nil)
	answer, err := r.Answer(context.Background(), "revenue?", tools)
	require.NoError(t, err)
	assert.Equal(t, "Roughly 150 million.", answer)
	assert.Empty(t, tools.invocations)
}

func TestReasonerImmediateFinalAnswer(t *testing.T) {
	llm := &stubLLM{responses: []string{
		"Thought: I know this.\nFinal Answer: 42 billion",
	}}
	tools := &stubToolChannel{descriptors: []domain.ToolDescriptor{searchDescriptor()}}

	r := NewReasoner(testLogger(), llm, 6, nil)
	answer, err := r.Answer(context.Background(), "q", tools)
	require.NoError(t, err)
	assert.Equal(t, "42 billion", answer)
	assert.Equal(t, 1, llm.calls)
}

func TestParseStep(t *testing.T) {
	step := parseStep("Thought: need data\nAction: edgar_search\nAction Input: {\"query\": \"nested {braces}\", \"top_n\": 3}")
	assert.False(t, step.IsFinal)
	assert.Equal(t, "need data", step.Thought)
	assert.Equal(t, "edgar_search", step.Action)
	assert.Equal(t, "nested {braces}", step.ActionInput["query"])
	assert.Equal(t, 3.0, step.ActionInput["top_n"])

	step = parseStep("Thought: done\nFinal Answer: 150 million")
	assert.True(t, step.IsFinal)
	assert.Equal(t, "150 million", step.FinalAnswer)

	step = parseStep("no structure at all")
	assert.False(t, step.IsFinal)
	assert.Empty(t, step.Action)
}

func TestNormalizeArguments(t *testing.T) {
	args := normalizeArguments(map[string]any{"search_term": "revenue"})
	assert.Equal(t, "revenue", args["query"])
	assert.NotContains(t, args, "search_term")

	// An explicit query wins over an alias.
	args = normalizeArguments(map[string]any{"search_query": "a", "query": "b"})
	assert.Equal(t, "b", args["query"])

	assert.Nil(t, normalizeArguments(nil))
}
