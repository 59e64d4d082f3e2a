package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LLMConfig selects and parameterizes the inference backend.
type LLMConfig struct {
	Mode    string // "local" (Ollama) or "remote" (OpenAI-compatible)
	BaseURL string
	APIKey  string
	Model   string
}

// AssessorConfig configures the assessor agent process.
type AssessorConfig struct {
	Host            string
	Port            int
	ExecutorURL     string
	DatasetPath     string
	CacheDir        string
	QuestionTimeout time.Duration
	JudgeThreshold  float64
	SafetyCheck     bool
	LLM             LLMConfig
}

// ExecutorConfig configures the executor agent process.
type ExecutorConfig struct {
	Host          string
	Port          int
	MaxIterations int
	TracePath     string
	LLM           LLMConfig
}

// AgentProcess describes how the launcher spawns one agent.
type AgentProcess struct {
	Name    string
	URL     string
	Command string
	Args    []string
}

// LauncherConfig configures the launcher process.
type LauncherConfig struct {
	Host          string
	Port          int
	AssessorURL   string
	ExecutorURL   string
	Assessor      AgentProcess
	Executor      AgentProcess
	DBPath        string
	ReportPath    string
	ReadyTimeout  time.Duration
	HealthTimeout time.Duration
	StopGrace     time.Duration
	AutoStart     bool
}

// LoadAssessor reads assessor settings from the environment.
func LoadAssessor() AssessorConfig {
	host := envStr("ASSESSOR_HOST", "127.0.0.1")
	port := envInt("ASSESSOR_PORT", 9000)
	return AssessorConfig{
		Host:            host,
		Port:            port,
		ExecutorURL:     envStr("EXECUTOR_URL", fmt.Sprintf("http://%s:%d", envStr("EXECUTOR_HOST", "127.0.0.1"), envInt("EXECUTOR_PORT", 8000))),
		DatasetPath:     envStr("ARENA_DATASET", "data/public.csv"),
		CacheDir:        envStr("ARENA_CACHE_DIR", "data/filings"),
		QuestionTimeout: envDur("ARENA_QUESTION_TIMEOUT", 120*time.Second),
		JudgeThreshold:  envFloat("ARENA_JUDGE_THRESHOLD", 0.8),
		SafetyCheck:     envBool("ARENA_SAFETY_CHECK", false),
		LLM:             loadLLM(),
	}
}

// LoadExecutor reads executor settings from the environment.
func LoadExecutor() ExecutorConfig {
	return ExecutorConfig{
		Host:          envStr("EXECUTOR_HOST", "127.0.0.1"),
		Port:          envInt("EXECUTOR_PORT", 8000),
		MaxIterations: envInt("ARENA_MAX_ITERATIONS", 6),
		TracePath:     envStr("ARENA_TRACE_PATH", ""),
		LLM:           loadLLM(),
	}
}

// LoadLauncher reads launcher settings from the environment. Agent commands
// default to sibling binaries of the launcher executable.
func LoadLauncher() LauncherConfig {
	assessorURL := fmt.Sprintf("http://%s:%d", envStr("ASSESSOR_HOST", "127.0.0.1"), envInt("ASSESSOR_PORT", 9000))
	executorURL := fmt.Sprintf("http://%s:%d", envStr("EXECUTOR_HOST", "127.0.0.1"), envInt("EXECUTOR_PORT", 8000))

	return LauncherConfig{
		Host:        envStr("LAUNCHER_HOST", "0.0.0.0"),
		Port:        envInt("LAUNCHER_PORT", 7000),
		AssessorURL: assessorURL,
		ExecutorURL: executorURL,
		Assessor: AgentProcess{
			Name:    "assessor",
			URL:     assessorURL,
			Command: envStr("ASSESSOR_CMD", siblingBinary("assessor")),
		},
		Executor: AgentProcess{
			Name:    "executor",
			URL:     executorURL,
			Command: envStr("EXECUTOR_CMD", siblingBinary("executor")),
		},
		DBPath:        envStr("ARENA_DB_PATH", "arena.db"),
		ReportPath:    envStr("ARENA_REPORT_PATH", "results/report.json"),
		ReadyTimeout:  envDur("ARENA_READY_TIMEOUT", 30*time.Second),
		HealthTimeout: envDur("ARENA_HEALTH_TIMEOUT", 2*time.Second),
		StopGrace:     envDur("ARENA_STOP_GRACE", 10*time.Second),
		AutoStart:     envBool("ARENA_AUTO_START", true),
	}
}

func loadLLM() LLMConfig {
	return LLMConfig{
		Mode:    envStr("LLM_MODE", "local"),
		BaseURL: envStr("LLM_BASE_URL", ""),
		APIKey:  envStr("LLM_API_KEY", ""),
		Model:   envStr("LLM_MODEL", ""),
	}
}

func siblingBinary(name string) string {
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
