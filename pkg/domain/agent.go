package domain

import (
	"fmt"
	"time"
)

type AgentState string

const (
	// Agent process has started, and waits for configuration.
	AgentStarting AgentState = "STARTING"

	// Agent can take a new batch of tests.
	AgentIdle AgentState = "IDLE"

	// Agent is running tests.
	AgentBusy AgentState = "BUSY"

	// Agent has run all tests of its batch and uploaded results.
	AgentFinished AgentState = "FINISHED"

	// Backend (or orchestrator) answered with an error.
	AgentBackendFailure AgentState = "BACKEND_FAILURE"

	// Backend (or orchestrator) could not be reached.
	AgentBackendUnreachable AgentState = "BACKEND_UNREACHABLE"

	// Agent failed to run tests.
	AgentError AgentState = "ERROR"

	// Agent is told to quit.
	AgentTerminated AgentState = "TERMINATED"

	// Agent stopped sending heartbeats.
	AgentCrashed AgentState = "CRASHED"
)

func (as AgentState) String() string {
	return string(as)
}

func AsAgentState(state string) (AgentState, error) {
	switch state {
	case string(AgentStarting):
		return AgentStarting, nil
	case string(AgentIdle):
		return AgentIdle, nil
	case string(AgentBusy):
		return AgentBusy, nil
	case string(AgentFinished):
		return AgentFinished, nil
	case string(AgentBackendFailure):
		return AgentBackendFailure, nil
	case string(AgentBackendUnreachable):
		return AgentBackendUnreachable, nil
	case string(AgentError):
		return AgentError, nil
	case string(AgentTerminated):
		return AgentTerminated, nil
	case string(AgentCrashed):
		return AgentCrashed, nil
	default:
		return "", fmt.Errorf("'%s' is not AgentState", state)
	}
}

// Final reports whether an agent in this state will never take tests again.
func (as AgentState) Final() bool {
	switch as {
	case AgentTerminated, AgentError, AgentCrashed:
		return true
	default:
		return false
	}
}

// LiveStates are states where the agent is expected to send heartbeats.
func LiveStates() []AgentState {
	return []AgentState{
		AgentStarting, AgentIdle, AgentBusy, AgentFinished,
		AgentBackendFailure, AgentBackendUnreachable,
	}
}

// FinalStates are states where no more heartbeats are expected.
func FinalStates() []AgentState {
	return []AgentState{AgentTerminated, AgentError, AgentCrashed}
}

type AgentInfo struct {
	// Pod name (k8s) or container id (docker). Unique among agents.
	ContainerId   string
	ContainerName string
	Version       string
}

type Agent struct {
	AgentInfo
	ExecutionId   int64
	State         AgentState
	Progress      int
	LastHeartbeat time.Time
}

func (a Agent) Equal(o Agent) bool {
	return a.AgentInfo == o.AgentInfo &&
		a.ExecutionId == o.ExecutionId &&
		a.State == o.State &&
		a.Progress == o.Progress &&
		a.LastHeartbeat.Equal(o.LastHeartbeat)
}

// Stale reports whether the agent missed heartbeats for longer than timeout.
func (a Agent) Stale(now time.Time, timeout time.Duration) bool {
	if a.State.Final() {
		return false
	}
	return a.LastHeartbeat.Add(timeout).Before(now)
}
