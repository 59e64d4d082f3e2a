package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/finarena/finarena/internal/config"
	"github.com/finarena/finarena/internal/core/domain"
)

// HealthProbe checks one agent's /health endpoint; a nil error means the
// agent answered healthy.
type HealthProbe func(ctx context.Context, baseURL string) error

// SupervisorOptions tune startup/shutdown timing.
type SupervisorOptions struct {
	ReadyTimeout  time.Duration
	HealthTimeout time.Duration
	StopGrace     time.Duration
}

// Supervisor owns the agent process lifecycle: spawning, readiness,
// health probing and shutdown. It is the single owner of lifecycle state;
// agents only report passive health.
type Supervisor struct {
	logger *slog.Logger
	specs  []config.AgentProcess
	probe  HealthProbe
	opts   SupervisorOptions

	mu     sync.Mutex
	agents map[string]*managedAgent
}

type managedAgent struct {
	spec  config.AgentProcess
	cmd   *exec.Cmd
	state domain.AgentState
	done  chan struct{}
}

func NewSupervisor(logger *slog.Logger, specs []config.AgentProcess, probe HealthProbe, opts SupervisorOptions) *Supervisor {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 30 * time.Second
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 2 * time.Second
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 10 * time.Second
	}
	agents := make(map[string]*managedAgent, len(specs))
	for _, spec := range specs {
		agents[spec.Name] = &managedAgent{spec: spec, state: domain.AgentStopped}
	}
	return &Supervisor{
		logger: logger,
		specs:  specs,
		probe:  probe,
		opts:   opts,
		agents: agents,
	}
}

// Start spawns all agents and waits until each answers its health probe.
// On any failure it tears down the agents it already started and returns a
// StartupError naming the failed agent.
func (s *Supervisor) Start(ctx context.Context) error {
	for _, spec := range s.specs {
		if err := s.startAgent(ctx, spec); err != nil {
			s.Stop()
			return err
		}
	}
	return nil
}

func (s *Supervisor) startAgent(ctx context.Context, spec config.AgentProcess) error {
	s.mu.Lock()
	agent := s.agents[spec.Name]
	if agent.state == domain.AgentReady || agent.state == domain.AgentStarting {
		s.mu.Unlock()
		return nil
	}
	agent.state = domain.AgentStarting
	s.mu.Unlock()

	fail := func(err error) error {
		s.mu.Lock()
		agent.state = domain.AgentError
		s.mu.Unlock()
		return &domain.StartupError{Agent: spec.Name, Err: err}
	}

	if addr := hostPort(spec.URL); addr != "" {
		if conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond); err == nil {
			conn.Close()
			return fail(fmt.Errorf("port %s already in use", addr))
		}
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return fail(fmt.Errorf("spawn %s: %w", spec.Command, err))
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	s.mu.Lock()
	agent.cmd = cmd
	agent.done = done
	s.mu.Unlock()

	s.logger.Info("agent spawned", "agent", spec.Name, "pid", cmd.Process.Pid)

	if err := s.awaitReady(ctx, spec, done); err != nil {
		s.stopAgent(agent)
		return fail(err)
	}

	s.mu.Lock()
	agent.state = domain.AgentReady
	s.mu.Unlock()
	s.logger.Info("agent ready", "agent", spec.Name)
	return nil
}

// awaitReady polls the health probe until success, the ready timeout, or
// early process exit.
func (s *Supervisor) awaitReady(ctx context.Context, spec config.AgentProcess, done chan struct{}) error {
	deadline := time.Now().Add(s.opts.ReadyTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		probeCtx, cancel := context.WithTimeout(ctx, s.opts.HealthTimeout)
		err := s.probe(probeCtx, spec.URL)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("not ready after %s: %w", s.opts.ReadyTimeout, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return fmt.Errorf("process exited during startup")
		case <-ticker.C:
		}
	}
}

// Stop terminates all agents: SIGTERM, bounded graceful wait, then SIGKILL.
// Idempotent; stopping a stopped supervisor is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	agents := make([]*managedAgent, 0, len(s.specs))
	for _, spec := range s.specs {
		agents = append(agents, s.agents[spec.Name])
	}
	s.mu.Unlock()

	for _, agent := range agents {
		s.stopAgent(agent)
	}
}

func (s *Supervisor) stopAgent(agent *managedAgent) {
	s.mu.Lock()
	cmd, done := agent.cmd, agent.done
	agent.cmd = nil
	agent.done = nil
	agent.state = domain.AgentStopped
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	s.logger.Info("stopping agent", "agent", agent.spec.Name, "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return
	}

	select {
	case <-done:
	case <-time.After(s.opts.StopGrace):
		s.logger.Warn("agent did not exit within grace period, killing", "agent", agent.spec.Name)
		cmd.Process.Kill()
		<-done
	}
}

// Health probes every agent with the fixed health timeout. A probe timeout
// marks the agent as error; there is no synchronous retry.
func (s *Supervisor) Health(ctx context.Context) []domain.AgentStatus {
	statuses := make([]domain.AgentStatus, 0, len(s.specs))
	for _, spec := range s.specs {
		s.mu.Lock()
		agent := s.agents[spec.Name]
		state := agent.state
		pid := 0
		if agent.cmd != nil && agent.cmd.Process != nil {
			pid = agent.cmd.Process.Pid
		}
		s.mu.Unlock()

		if state != domain.AgentStopped {
			probeCtx, cancel := context.WithTimeout(ctx, s.opts.HealthTimeout)
			err := s.probe(probeCtx, spec.URL)
			cancel()
			if err != nil {
				state = domain.AgentError
			} else if state == domain.AgentError {
				state = domain.AgentReady
			}
			s.mu.Lock()
			agent.state = state
			s.mu.Unlock()
		}

		statuses = append(statuses, domain.AgentStatus{
			Name:  spec.Name,
			URL:   spec.URL,
			State: state,
			PID:   pid,
		})
	}
	return statuses
}

// States returns the last known lifecycle states without probing.
func (s *Supervisor) States() []domain.AgentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make([]domain.AgentStatus, 0, len(s.specs))
	for _, spec := range s.specs {
		agent := s.agents[spec.Name]
		pid := 0
		if agent.cmd != nil && agent.cmd.Process != nil {
			pid = agent.cmd.Process.Pid
		}
		statuses = append(statuses, domain.AgentStatus{
			Name:  spec.Name,
			URL:   spec.URL,
			State: agent.state,
			PID:   pid,
		})
	}
	return statuses
}

// AllReady reports whether every agent is in the ready state.
func (s *Supervisor) AllReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, spec := range s.specs {
		if s.agents[spec.Name].state != domain.AgentReady {
			return false
		}
	}
	return true
}

func hostPort(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	port := u.Port()
	if host == "" || port == "" {
		return ""
	}
	return net.JoinHostPort(host, port)
}
