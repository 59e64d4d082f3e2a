// Package assessor serves the tool-host + judge agent: tool discovery and
// invocation, question evaluation, and the agent lifecycle endpoints.
package assessor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/finarena/finarena/internal/core/domain"
	"github.com/finarena/finarena/internal/core/services"
	"github.com/finarena/finarena/pkg/a2a"
)

type Server struct {
	logger    *slog.Logger
	evaluator *services.Evaluator
	registry  *domain.ToolRegistry
}

func NewServer(logger *slog.Logger, evaluator *services.Evaluator, registry *domain.ToolRegistry) *Server {
	return &Server{logger: logger, evaluator: evaluator, registry: registry}
}

// Handler mounts all assessor routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/card", s.handleCard)
	mux.HandleFunc("/.well-known/agent-card.json", s.handleCard)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/reset", s.handleReset)
	mux.HandleFunc("/a2a", s.handleMessage)
	mux.HandleFunc("/v1/tools", s.handleListTools)
	mux.HandleFunc("/v1/tools/", s.handleInvokeTool)
	return mux
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a2a.AgentCard{
		Name:        "assessor",
		Description: "Financial QA assessor: hosts research tools, dispatches questions to the executor and judges the answers.",
		Version:     "1.0.0",
		Skills:      []string{"evaluate_task", "dataset_info", "tool_discovery", "tool_invocation"},
		InputModes:  []string{"text"},
		OutputModes: []string{"text"},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a2a.HealthResponse{Status: "ok", Agent: "assessor"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	s.evaluator.Reset()
	writeJSON(w, http.StatusOK, a2a.ResetResponse{Status: "ok", Message: "per-run state cleared"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var env a2a.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope: "+err.Error())
		return
	}

	switch env.Method {
	case a2a.MethodEvaluateTask:
		var req a2a.EvaluateTaskRequest
		if err := json.Unmarshal(env.Args, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid evaluate_task args: "+err.Error())
			return
		}
		record, err := s.evaluator.EvaluateTask(r.Context(), req.TaskIndex)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, record)

	case a2a.MethodDatasetInfo:
		writeJSON(w, http.StatusOK, a2a.DatasetInfoResponse{Size: s.evaluator.DatasetSize()})

	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown method: %q", env.Method))
	}
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	descriptors := s.registry.Descriptors()
	writeJSON(w, http.StatusOK, a2a.ToolListResponse{Tools: descriptors, Count: len(descriptors)})
}

// handleInvokeTool executes one tool call. The reply is always 200 with a
// ToolResult: unknown tools, bad arguments and provider failures come back
// as error results, never transport errors.
func (s *Server) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	// Path shape: /v1/tools/{name}/invoke. The name segment arrives
	// escaped from the client, so split on the escaped path and decode
	// the segment once.
	name := strings.TrimPrefix(r.URL.EscapedPath(), "/v1/tools/")
	name = strings.TrimSuffix(name, "/invoke")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "missing tool name")
		return
	}
	name, err := url.PathUnescape(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tool name: "+err.Error())
		return
	}

	var req a2a.ToolInvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result := s.registry.Invoke(r.Context(), domain.ToolCall{Tool: name, Arguments: req.Arguments})
	if result.Status == domain.ToolError {
		s.logger.Warn("tool call failed", "tool", name, "detail", result.ErrorDetail)
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, a2a.ErrorResponse{Status: "error", Message: message})
}
