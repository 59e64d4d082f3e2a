package a2a

import (
	"encoding/json"

	"github.com/finarena/finarena/internal/core/domain"
)

// Method names carried in the /a2a envelope.
const (
	MethodEvaluateTask = "evaluate_task"
	MethodDatasetInfo  = "dataset_info"
	MethodAskQuestion  = "ask_question"
)

// AgentCard is the static capability metadata served at /card and
// /.well-known/agent-card.json.
type AgentCard struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Skills      []string `json:"skills"`
	InputModes  []string `json:"input_modes"`
	OutputModes []string `json:"output_modes"`
}

// Envelope is the generic /a2a request: a method plus raw arguments.
type Envelope struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// HealthResponse reports an agent's passive health probe.
type HealthResponse struct {
	Status string `json:"status"` // ok | degraded | down
	Agent  string `json:"agent,omitempty"`
}

// ResetResponse acknowledges a per-run state reset.
type ResetResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// QuestionRequest dispatches one question to the executor, along with the
// tool endpoint it should discover tools from.
type QuestionRequest struct {
	Question     string `json:"question"`
	ToolEndpoint string `json:"tool_endpoint"`
}

// QuestionResponse carries the executor's final answer.
type QuestionResponse struct {
	Status  string `json:"status"` // completed | error
	Answer  string `json:"answer"`
	Message string `json:"message,omitempty"`
}

// EvaluateTaskRequest asks the assessor to evaluate a single task.
type EvaluateTaskRequest struct {
	TaskIndex int `json:"task_index"`
}

// DatasetInfoResponse reports the loaded dataset size.
type DatasetInfoResponse struct {
	Size int `json:"size"`
}

// ToolListResponse is the tool-discovery reply; descriptor order is stable
// registration order.
type ToolListResponse struct {
	Tools []domain.ToolDescriptor `json:"tools"`
	Count int                     `json:"count"`
}

// ToolInvokeRequest is the body of a tool-invocation message.
type ToolInvokeRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// ErrorResponse is the generic remote error body.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
