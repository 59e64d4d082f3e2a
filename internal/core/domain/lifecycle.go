package domain

// AgentState is the launcher-owned lifecycle state of one agent process.
// Transitions happen only through explicit start/stop/reset/health-check
// operations; agents themselves only report passive health.
type AgentState string

const (
	AgentStopped  AgentState = "stopped"
	AgentStarting AgentState = "starting"
	AgentReady    AgentState = "ready"
	AgentBusy     AgentState = "busy"
	AgentError    AgentState = "error"
)

// AgentStatus is the launcher's view of one managed agent.
type AgentStatus struct {
	Name  string     `json:"name"`
	URL   string     `json:"url"`
	State AgentState `json:"state"`
	PID   int        `json:"pid,omitempty"`
}
