package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TurnKind classifies one entry in a conversation transcript.
type TurnKind string

const (
	TurnQuestion   TurnKind = "question"
	TurnThought    TurnKind = "thought"
	TurnToolCall   TurnKind = "tool_call"
	TurnToolResult TurnKind = "tool_result"
	TurnAnswer     TurnKind = "answer"
)

// Turn is one step of a question's evaluation transcript.
type Turn struct {
	Kind      TurnKind       `json:"kind"`
	Tool      string         `json:"tool,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
	At        time.Time      `json:"at"`
}

// ConversationState is the ordered transcript for a single question's
// evaluation. It is owned exclusively by the executor for that question and
// discarded once the final answer is emitted, aside from the optional trace.
type ConversationState struct {
	Question string `json:"question"`
	Turns    []Turn `json:"turns"`
}

// NewConversation starts a transcript for one question.
func NewConversation(question string) *ConversationState {
	return &ConversationState{
		Question: question,
		Turns:    []Turn{{Kind: TurnQuestion, Content: question, At: time.Now()}},
	}
}

// AddThought records an intermediate reasoning note.
func (c *ConversationState) AddThought(thought string) {
	if strings.TrimSpace(thought) == "" {
		return
	}
	c.Turns = append(c.Turns, Turn{Kind: TurnThought, Content: thought, At: time.Now()})
}

// AddToolCall records an issued ToolCall.
func (c *ConversationState) AddToolCall(call ToolCall) {
	c.Turns = append(c.Turns, Turn{
		Kind:      TurnToolCall,
		Tool:      call.Tool,
		Arguments: call.Arguments,
		At:        time.Now(),
	})
}

// AddToolResult records the result of the most recent ToolCall. Error
// results are kept in the transcript as data for the reasoning step.
func (c *ConversationState) AddToolResult(tool string, result ToolResult) {
	content := result.ErrorDetail
	if result.Status == ToolOK {
		payload, err := json.Marshal(result.Payload)
		if err != nil {
			content = fmt.Sprintf("%v", result.Payload)
		} else {
			content = string(payload)
		}
	}
	c.Turns = append(c.Turns, Turn{
		Kind:    TurnToolResult,
		Tool:    tool,
		Content: content,
		IsError: result.Status == ToolError,
		At:      time.Now(),
	})
}

// AddAnswer records the emitted final answer.
func (c *ConversationState) AddAnswer(answer string) {
	c.Turns = append(c.Turns, Turn{Kind: TurnAnswer, Content: answer, At: time.Now()})
}

// Summary renders the last n non-question turns for a follow-up prompt.
// Long tool payloads are truncated so the prompt stays bounded.
func (c *ConversationState) Summary(lastN int) string {
	var steps []string
	for _, turn := range c.Turns {
		switch turn.Kind {
		case TurnThought:
			steps = append(steps, "Thought: "+turn.Content)
		case TurnToolCall:
			args, _ := json.Marshal(turn.Arguments)
			steps = append(steps, fmt.Sprintf("Called %s with %s", turn.Tool, string(args)))
		case TurnToolResult:
			label := "Result"
			if turn.IsError {
				label = "Tool error"
			}
			steps = append(steps, fmt.Sprintf("%s from %s: %s", label, turn.Tool, truncate(turn.Content, 400)))
		}
	}
	if lastN > 0 && len(steps) > lastN {
		steps = steps[len(steps)-lastN:]
	}
	return strings.Join(steps, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
