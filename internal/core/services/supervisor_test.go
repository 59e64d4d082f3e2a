package services

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finarena/finarena/internal/config"
	"github.com/finarena/finarena/internal/core/domain"
)

func sleepSpec(name, url string) config.AgentProcess {
	return config.AgentProcess{Name: name, URL: url, Command: "sleep", Args: []string{"30"}}
}

func healthyProbe(ctx context.Context, baseURL string) error { return nil }

func failingProbe(ctx context.Context, baseURL string) error {
	return fmt.Errorf("connection refused")
}

func TestSupervisorStartAndStop(t *testing.T) {
	sup := NewSupervisor(testLogger(),
		[]config.AgentProcess{sleepSpec("assessor", "http://127.0.0.1:0")},
		healthyProbe,
		SupervisorOptions{ReadyTimeout: 2 * time.Second, StopGrace: 2 * time.Second})

	require.NoError(t, sup.Start(context.Background()))
	assert.True(t, sup.AllReady())

	states := sup.States()
	require.Len(t, states, 1)
	assert.Equal(t, domain.AgentReady, states[0].State)
	assert.NotZero(t, states[0].PID)

	sup.Stop()
	states = sup.States()
	assert.Equal(t, domain.AgentStopped, states[0].State)
	assert.False(t, sup.AllReady())

	// Idempotent.
	sup.Stop()
}

func TestSupervisorReadinessTimeout(t *testing.T) {
	sup := NewSupervisor(testLogger(),
		[]config.AgentProcess{sleepSpec("assessor", "http://127.0.0.1:0")},
		failingProbe,
		SupervisorOptions{ReadyTimeout: 300 * time.Millisecond, HealthTimeout: 100 * time.Millisecond, StopGrace: 2 * time.Second})

	err := sup.Start(context.Background())
	require.Error(t, err)

	var startup *domain.StartupError
	require.ErrorAs(t, err, &startup)
	assert.Equal(t, "assessor", startup.Agent)

	states := sup.States()
	assert.NotEqual(t, domain.AgentReady, states[0].State)
}

func TestSupervisorPortConflict(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	spec := sleepSpec("assessor", "http://"+ln.Addr().String())
	sup := NewSupervisor(testLogger(), []config.AgentProcess{spec}, healthyProbe,
		SupervisorOptions{ReadyTimeout: time.Second, StopGrace: time.Second})

	err = sup.Start(context.Background())
	require.Error(t, err)

	var startup *domain.StartupError
	require.ErrorAs(t, err, &startup)
	assert.Contains(t, startup.Err.Error(), "already in use")
}

func TestSupervisorPartialFailureTearsDown(t *testing.T) {
	probe := func(ctx context.Context, baseURL string) error {
		// First agent comes up; the second never does.
		if baseURL == "http://127.0.0.1:1" {
			return nil
		}
		return fmt.Errorf("never ready")
	}

	sup := NewSupervisor(testLogger(),
		[]config.AgentProcess{
			sleepSpec("assessor", "http://127.0.0.1:1"),
			sleepSpec("executor", "http://127.0.0.1:2"),
		},
		probe,
		SupervisorOptions{ReadyTimeout: 300 * time.Millisecond, HealthTimeout: 100 * time.Millisecond, StopGrace: 2 * time.Second})

	err := sup.Start(context.Background())
	require.Error(t, err)

	for _, st := range sup.States() {
		assert.NotEqual(t, domain.AgentReady, st.State, "agent %s must be torn down", st.Name)
	}
}

func TestSupervisorHealthProbeTimeoutMarksError(t *testing.T) {
	ready := true
	probe := func(ctx context.Context, baseURL string) error {
		if ready {
			return nil
		}
		// Simulate an agent that stops answering: block until the probe
		// context's fixed timeout fires.
		<-ctx.Done()
		return ctx.Err()
	}

	sup := NewSupervisor(testLogger(),
		[]config.AgentProcess{sleepSpec("assessor", "http://127.0.0.1:0")},
		probe,
		SupervisorOptions{ReadyTimeout: 2 * time.Second, HealthTimeout: 100 * time.Millisecond, StopGrace: 2 * time.Second})
	defer sup.Stop()

	require.NoError(t, sup.Start(context.Background()))

	ready = false
	start := time.Now()
	statuses := sup.Health(context.Background())
	assert.Less(t, time.Since(start), time.Second, "probe must respect the fixed timeout")
	assert.Equal(t, domain.AgentError, statuses[0].State)

	// Recovery on the next successful probe.
	ready = true
	statuses = sup.Health(context.Background())
	assert.Equal(t, domain.AgentReady, statuses[0].State)
}
