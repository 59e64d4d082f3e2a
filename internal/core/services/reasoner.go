package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/finarena/finarena/internal/core/domain"
	"github.com/finarena/finarena/internal/core/ports"
)

// ToolChannel is the executor's only route to tools: discovery plus
// invocation over the assessor's protocol.
type ToolChannel interface {
	ListTools(ctx context.Context) ([]domain.ToolDescriptor, error)
	InvokeTool(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error)
}

// Reasoner runs the executor's per-question loop: discover tools once, then
// alternate LLM reasoning with tool calls until a final answer or the
// iteration budget.
type Reasoner struct {
	logger   *slog.Logger
	llm      ports.LLMClient
	maxIters int
	trace    *TraceLog
}

// NewReasoner creates the reasoning loop. trace may be nil.
func NewReasoner(logger *slog.Logger, llm ports.LLMClient, maxIters int, trace *TraceLog) *Reasoner {
	if maxIters <= 0 {
		maxIters = 6
	}
	return &Reasoner{logger: logger, llm: llm, maxIters: maxIters, trace: trace}
}

// Answer evaluates one question against the tools reachable through the
// channel. It always tries to produce an answer: discovery failures fall
// back to a direct answer, tool errors become observations, and running out
// of iterations forces a final answer from whatever was gathered.
func (r *Reasoner) Answer(ctx context.Context, question string, tools ToolChannel) (string, error) {
	conv := domain.NewConversation(question)
	defer func() { r.trace.Record(conv) }()

	descriptors, err := tools.ListTools(ctx)
	if err != nil || len(descriptors) == 0 {
		if err != nil {
			r.logger.Warn("tool discovery failed, answering directly", "error", err)
		} else {
			r.logger.Warn("no tools available, answering directly")
		}
		return r.directAnswer(ctx, conv)
	}
	r.logger.Info("tools discovered", "count", len(descriptors))

	history := []string{r.buildInitialPrompt(question, descriptors)}

	for i := 0; i < r.maxIters; i++ {
		r.logger.Info("reasoning iteration", "iteration", i+1)

		response, err := r.llm.Complete(ctx, strings.Join(history, "\n\n"), 1024)
		if err != nil {
			return "", fmt.Errorf("llm complete: %w", err)
		}

		step := parseStep(response)
		conv.AddThought(step.Thought)

		if step.IsFinal {
			answer := strings.TrimSpace(step.FinalAnswer)
			if answer == "" {
				break
			}
			conv.AddAnswer(answer)
			r.logger.Info("final answer reached", "iterations", i+1)
			return answer, nil
		}

		if step.Action == "" {
			// Model produced neither a tool call nor an answer; nudge it.
			history = append(history, response,
				"Observation: your response did not follow the format. Reply with either an Action block or a Final Answer block.")
			continue
		}

		call := domain.ToolCall{Tool: step.Action, Arguments: normalizeArguments(step.ActionInput)}
		conv.AddToolCall(call)
		r.logger.Info("invoking tool", "tool", call.Tool)

		result, err := tools.InvokeTool(ctx, call)
		if err != nil {
			// Transport-level failure; keep it as an observation so the
			// loop can try another tool or give up gracefully.
			result = domain.ToolResult{Status: domain.ToolError, ErrorDetail: err.Error()}
		}
		conv.AddToolResult(call.Tool, result)

		observation := result.ErrorDetail
		if result.Status == domain.ToolOK {
			payload, merr := json.Marshal(result.Payload)
			if merr != nil {
				observation = fmt.Sprintf("%v", result.Payload)
			} else {
				observation = string(payload)
			}
		} else {
			observation = "Tool error: " + observation
		}

		history = append(history, response, "Observation: "+truncateForPrompt(observation, 6000))
	}

	r.logger.Warn("iteration budget exhausted, forcing final answer")
	return r.forcedAnswer(ctx, conv)
}

// directAnswer handles the no-tools path: answer from the question alone.
func (r *Reasoner) directAnswer(ctx context.Context, conv *domain.ConversationState) (string, error) {
	prompt := fmt.Sprintf(`You are a financial research assistant. No research tools are available, so answer from your own knowledge as precisely as you can.

Question: %s

Answer concisely with the specific figure or fact requested.`, conv.Question)

	answer, err := r.llm.Complete(ctx, prompt, 512)
	if err != nil {
		return "", fmt.Errorf("direct answer: %w", err)
	}
	answer = strings.TrimSpace(answer)
	conv.AddAnswer(answer)
	return answer, nil
}

// forcedAnswer produces the final answer after the iteration budget, from
// the gathered observations. The original question is always restated in
// the prompt so the model answers it rather than the last observation.
func (r *Reasoner) forcedAnswer(ctx context.Context, conv *domain.ConversationState) (string, error) {
	prompt := fmt.Sprintf(`You are a financial research assistant. You have finished your research. Based on everything gathered below, give your best final answer.

The question you must answer is: %s

Research so far:
%s

Answer the question concisely with the specific figure or fact requested. If the research was inconclusive, give your best estimate and say so.`,
		conv.Question, conv.Summary(10))

	answer, err := r.llm.Complete(ctx, prompt, 512)
	if err != nil {
		return "", fmt.Errorf("forced answer: %w", err)
	}
	answer = strings.TrimSpace(answer)
	conv.AddAnswer(answer)
	return answer, nil
}

func (r *Reasoner) buildInitialPrompt(question string, descriptors []domain.ToolDescriptor) string {
	return fmt.Sprintf(`You are a financial research assistant. Answer the question using the tools below.

You use the pattern: Thought → Action → Observation → ... → Final Answer.

FORMAT (tool call):
Thought: <reasoning>
Action: <EXACT tool name from the list below>
Action Input: <JSON arguments on one line>

FORMAT (final answer):
Thought: <reasoning>
Final Answer: <concise answer with the specific figure or fact>

%s
RULES:
1. Always start with "Thought:".
2. Use the EXACT tool name from the list. Do NOT invent tool names.
3. Action Input must be valid JSON on one line.
4. If a tool returns an error, try a different tool or different arguments.
5. Give the Final Answer as soon as you have the information; do not keep calling tools.

Question: %s`, domain.FormatToolsForPrompt(descriptors), question)
}

type reasoningStep struct {
	Thought     string
	Action      string
	ActionInput map[string]any
	IsFinal     bool
	FinalAnswer string
}

var (
	reFinalAnswer = regexp.MustCompile(`(?is)Final\s*Answer:\s*(.*)`)
	reThought     = regexp.MustCompile(`(?i)Thought:\s*([^\n]+)`)
	reAction      = regexp.MustCompile(`(?i)Action:\s*([a-z][a-z0-9_]*)`)
	reActionInput = regexp.MustCompile(`(?i)Action\s*Input:\s*`)
)

// parseStep extracts Thought/Action/Action Input or Final Answer from one
// LLM response.
func parseStep(response string) reasoningStep {
	step := reasoningStep{}

	if m := reThought.FindStringSubmatch(response); len(m) > 1 {
		step.Thought = strings.TrimSpace(m[1])
	}

	if m := reFinalAnswer.FindStringSubmatch(response); len(m) > 1 {
		step.IsFinal = true
		step.FinalAnswer = strings.TrimSpace(m[1])
		return step
	}

	if m := reAction.FindStringSubmatch(response); len(m) > 1 {
		step.Action = strings.TrimSpace(m[1])
	}
	step.ActionInput = extractActionInput(response)
	return step
}

// extractActionInput pulls the JSON object after "Action Input:" using
// brace-depth counting so nested objects parse correctly.
func extractActionInput(response string) map[string]any {
	loc := reActionInput.FindStringIndex(response)
	if loc == nil {
		return nil
	}
	rest := response[loc[1]:]
	start := strings.Index(rest, "{")
	if start < 0 {
		return nil
	}

	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(rest); i++ {
		ch := rest[i]
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
				var args map[string]any
				if err := json.Unmarshal([]byte(rest[start:i+1]), &args); err == nil {
					return args
				}
				return nil
			}
		}
	}
	return nil
}

// normalizeArguments fixes argument names models commonly invent for the
// search tools.
func normalizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	for _, alias := range []string{"search_term", "search_query"} {
		if v, ok := args[alias]; ok {
			if _, exists := args["query"]; !exists {
				args["query"] = v
			}
			delete(args, alias)
		}
	}
	return args
}

func truncateForPrompt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}
