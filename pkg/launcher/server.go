// Package launcher serves the benchmark control plane: agent lifecycle,
// evaluation runs and run reports.
package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/finarena/finarena/internal/core/domain"
	"github.com/finarena/finarena/internal/core/services"
	"github.com/finarena/finarena/pkg/a2a"
)

type Server struct {
	logger     *slog.Logger
	supervisor *services.Supervisor
	runner     *services.Runner
	assessor   *AssessorClient
	executor   *a2a.Client
}

func NewServer(logger *slog.Logger, supervisor *services.Supervisor, runner *services.Runner, assessor *AssessorClient, executor *a2a.Client) *Server {
	return &Server{
		logger:     logger,
		supervisor: supervisor,
		runner:     runner,
		assessor:   assessor,
		executor:   executor,
	}
}

// Handler mounts all launcher routes, CORS-wrapped for the status view.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/card", s.handleCard)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/stop", s.handleStop)
	mux.HandleFunc("/reset", s.handleReset)
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/report", s.handleReport)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a2a.AgentCard{
		Name:        "launcher",
		Description: "Benchmark launcher: manages the assessor and executor agents and drives evaluation runs.",
		Version:     "1.0.0",
		Skills:      []string{"start", "stop", "reset", "run", "report"},
		InputModes:  []string{"text"},
		OutputModes: []string{"text"},
	})
}

// handleHealth probes both agents and reports per-agent states plus a
// combined status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.supervisor.Health(r.Context())
	overall := "ok"
	for _, st := range statuses {
		if st.State != domain.AgentReady {
			overall = "degraded"
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": overall,
		"agents": statuses,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"agents":      s.supervisor.States(),
		"run_active":  s.runner.Running(),
		"num_records": len(s.runner.Records()),
	}
	if report := s.runner.Report(); report != nil {
		body["last_run"] = map[string]any{
			"run_id":  report.RunID,
			"metric":  report.Metric,
			"value":   report.Value,
			"total":   report.TotalTasks,
			"correct": report.CorrectTasks,
			"aborted": report.Aborted,
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if err := s.supervisor.Start(r.Context()); err != nil {
		var startup *domain.StartupError
		if errors.As(err, &startup) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "started", "agents": s.supervisor.States()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	s.runner.Cancel()
	s.supervisor.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
}

// handleReset clears run state on the launcher and both agents without
// restarting the processes. Refused unless both agents are ready.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if !s.supervisor.AllReady() {
		writeError(w, http.StatusConflict, domain.ErrNotReady.Error())
		return
	}
	if err := s.runner.Reset(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.assessor.Reset(ctx); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := s.executor.Reset(ctx); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a2a.ResetResponse{Status: "ok", Message: "run state cleared"})
}

// handleRun launches an evaluation run in the background and returns its
// ID immediately; progress is visible through /status and /report.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if !s.supervisor.AllReady() {
		writeError(w, http.StatusConflict, domain.ErrNotReady.Error())
		return
	}

	var req struct {
		NumTasks int `json:"num_tasks"`
	}
	if r.Body != nil {
		// Empty body means a full run.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	runID, err := s.runner.Start(req.NumTasks)
	if err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("run accepted", "run_id", runID, "num_tasks", req.NumTasks)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "run_id": runID})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report := s.runner.Report()
	if report == nil {
		writeError(w, http.StatusNotFound, "no finished run")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, a2a.ErrorResponse{Status: "error", Message: message})
}
