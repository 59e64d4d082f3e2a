// Package executor serves the tool-using reasoner agent. One question at a
// time: overlapping questions are rejected with 409.
package executor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/finarena/finarena/internal/core/domain"
	"github.com/finarena/finarena/internal/core/services"
	"github.com/finarena/finarena/pkg/a2a"
)

type Server struct {
	logger   *slog.Logger
	reasoner *services.Reasoner

	mu   sync.Mutex
	busy bool
}

func NewServer(logger *slog.Logger, reasoner *services.Reasoner) *Server {
	return &Server{logger: logger, reasoner: reasoner}
}

// Handler mounts all executor routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/card", s.handleCard)
	mux.HandleFunc("/.well-known/agent-card.json", s.handleCard)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/reset", s.handleReset)
	mux.HandleFunc("/a2a", s.handleMessage)
	return mux
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a2a.AgentCard{
		Name:        "executor",
		Description: "Financial QA executor: discovers tools, reasons over them and produces final answers.",
		Version:     "1.0.0",
		Skills:      []string{"ask_question"},
		InputModes:  []string{"text"},
		OutputModes: []string{"text"},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a2a.HealthResponse{Status: "ok", Agent: "executor"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	// The executor keeps no state across questions; reset acknowledges so
	// the launcher's reset fan-out stays uniform.
	writeJSON(w, http.StatusOK, a2a.ResetResponse{Status: "ok"})
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
	if env.Method != a2a.MethodAskQuestion {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown method: %q", env.Method))
		return
	}

	var req a2a.QuestionRequest
	if err := json.Unmarshal(env.Args, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid ask_question args: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	if !s.acquire() {
		writeJSON(w, http.StatusConflict, a2a.QuestionResponse{
			Status:  "error",
			Message: domain.ErrExecutorBusy.Error(),
		})
		return
	}
	defer s.release()

	s.logger.Info("question received", "tool_endpoint", req.ToolEndpoint)

	tools := a2a.NewClient(req.ToolEndpoint, 60*time.Second)
	answer, err := s.reasoner.Answer(r.Context(), req.Question, tools)
	if err != nil {
		s.logger.Error("question evaluation failed", "error", err)
		writeJSON(w, http.StatusOK, a2a.QuestionResponse{Status: "error", Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, a2a.QuestionResponse{Status: "completed", Answer: answer})
}

func (s *Server) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Server) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, a2a.ErrorResponse{Status: "error", Message: message})
}
